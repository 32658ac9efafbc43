package run

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zumanm1/netaudit/internal/collect"
	"github.com/zumanm1/netaudit/internal/config"
	"github.com/zumanm1/netaudit/internal/connect"
	"github.com/zumanm1/netaudit/internal/event"
	"github.com/zumanm1/netaudit/pkg/models"
)

// Session is the device conversation a worker drives commands through.
type Session interface {
	Run(ctx context.Context, cmd string) (string, error)
}

// SessionSource hands out ready device sessions. Acquire is expected to do
// its own transport retries; an error from it means the device is
// unreachable for this run.
type SessionSource interface {
	Acquire(ctx context.Context, device *models.DeviceRecord) (Session, error)
	Release(s Session)
	CloseIdle()
}

// Sink receives terminal jobs and the finished run for persistence.
type Sink interface {
	RecordJob(ctx context.Context, runID string, job *models.Job, result *models.LayerResult) error
	RecordRun(ctx context.Context, report *Report) error
}

// ManagerSource adapts the connection manager to the SessionSource the
// executor consumes.
type ManagerSource struct {
	Manager *connect.Manager
}

func (s ManagerSource) Acquire(ctx context.Context, device *models.DeviceRecord) (Session, error) {
	sess, err := s.Manager.Acquire(ctx, device)
	if err != nil {
		return nil, err
	}
	return sess, nil
}

func (s ManagerSource) Release(sess Session) {
	if cs, ok := sess.(*connect.Session); ok {
		s.Manager.Release(cs)
	}
}

func (s ManagerSource) CloseIdle() { s.Manager.CloseIdle() }

// Executor fans (device, layer) jobs out over a bounded worker pool and
// aggregates the outcome into a Report.
type Executor struct {
	cfg    *config.Config
	source SessionSource
	bus    *event.Bus
	sink   Sink
	logger *zap.Logger

	// collectorFor is swappable in tests.
	collectorFor func(layer models.Layer) (collect.Collector, error)
}

// NewExecutor creates an executor. The sink may be nil when persistence is
// not wanted.
func NewExecutor(cfg *config.Config, source SessionSource, bus *event.Bus, sink Sink, logger *zap.Logger) *Executor {
	return &Executor{
		cfg:          cfg,
		source:       source,
		bus:          bus,
		sink:         sink,
		logger:       logger,
		collectorFor: collect.For,
	}
}

// runState is the per-run coordination shared by workers.
type runState struct {
	mu      sync.Mutex
	skipped map[string]string // hostname -> reason
}

func (st *runState) skipDevice(hostname, reason string) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if _, ok := st.skipped[hostname]; !ok {
		st.skipped[hostname] = reason
	}
}

func (st *runState) skipReason(hostname string) (string, bool) {
	st.mu.Lock()
	defer st.mu.Unlock()
	reason, ok := st.skipped[hostname]
	return reason, ok
}

// Run executes every (device, layer) pair and blocks until all jobs reach a
// terminal status. The returned error is non-nil only when the run was cut
// short by a jump host failure; per-device failures are reported through
// the Report.
func (e *Executor) Run(ctx context.Context, devices []*models.DeviceRecord, layers []models.Layer) (*Report, error) {
	if e.cfg.RunDeadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.RunDeadline)
		defer cancel()
	}

	report := newReport(uuid.NewString())
	state := &runState{skipped: make(map[string]string)}

	e.logger.Info("run started",
		zap.String("run_id", report.RunID),
		zap.Int("devices", len(devices)),
		zap.Int("layers", len(layers)),
		zap.Int("workers", e.cfg.Workers),
	)
	e.publish(ctx, TopicRunStarted, RunStartedPayload{
		RunID:   report.RunID,
		Devices: len(devices),
		Layers:  layers,
		Workers: e.cfg.Workers,
	})

	// Jobs are queued device-major so a device's remaining work sits
	// behind the job that discovers it is unreachable.
	jobs := make(chan *models.Job)
	var wg sync.WaitGroup
	for i := 0; i < e.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				e.dispatch(ctx, job, report, state)
			}
		}()
	}

	for _, device := range devices {
		for _, layer := range layers {
			jobs <- &models.Job{Device: device, Layer: layer, Status: models.JobPending}
		}
	}
	close(jobs)
	wg.Wait()

	e.source.CloseIdle()
	report.finalize()

	if e.sink != nil {
		if err := e.sink.RecordRun(context.WithoutCancel(ctx), report); err != nil {
			e.logger.Warn("failed to persist run", zap.String("run_id", report.RunID), zap.Error(err))
		}
	}

	fatal := report.fatalErr()
	payload := RunCompletedPayload{
		RunID:     report.RunID,
		Succeeded: report.Succeeded,
		Failed:    report.Failed,
		Skipped:   report.Skipped,
	}
	if fatal != nil {
		payload.Fatal = fatal.Error()
	}
	e.publish(ctx, TopicRunCompleted, payload)

	e.logger.Info("run completed",
		zap.String("run_id", report.RunID),
		zap.Int("succeeded", report.Succeeded),
		zap.Int("failed", report.Failed),
		zap.Int("skipped", report.Skipped),
		zap.Duration("duration", report.Duration()),
	)
	return report, fatal
}

// dispatch decides whether a dequeued job still gets to run.
func (e *Executor) dispatch(ctx context.Context, job *models.Job, report *Report, state *runState) {
	host := job.Device.Hostname

	switch {
	case report.fatalErr() != nil:
		e.finishJob(ctx, job, report, models.JobSkipped, nil, "jump host unreachable")
		return
	case ctx.Err() != nil:
		e.finishJob(ctx, job, report, models.JobSkipped, nil, "run deadline exceeded")
		return
	}
	if reason, ok := state.skipReason(host); ok {
		e.publish(ctx, TopicDeviceSkipped, DeviceSkippedPayload{RunID: report.RunID, Hostname: host, Reason: reason})
		e.finishJob(ctx, job, report, models.JobSkipped, nil, reason)
		return
	}

	e.runJob(ctx, job, report, state)
}

// runJob drives one (device, layer) collection, retrying recoverable
// session failures up to the configured attempt budget.
func (e *Executor) runJob(ctx context.Context, job *models.Job, report *Report, state *runState) {
	job.Status = models.JobRunning
	start := time.Now()

	collector, err := e.collectorFor(job.Layer)
	if err != nil {
		e.finishJob(ctx, job, report, models.JobFailed, nil, err.Error())
		return
	}

	var lastResult *models.LayerResult
	var lastErr error
	for attempt := 1; attempt <= e.attempts(); attempt++ {
		job.Attempts = attempt

		session, acqErr := e.source.Acquire(ctx, job.Device)
		if acqErr != nil {
			if errors.Is(acqErr, connect.ErrJumpHostDown) {
				// Without the jump transport no device was ever attempted;
				// this job is abandoned like all the others.
				report.setFatal(acqErr)
				e.logger.Error("jump host unreachable, abandoning run", zap.Error(acqErr))
				job.Attempts = 0
				e.finishJob(ctx, job, report, models.JobSkipped, nil, acqErr.Error())
				return
			}
			// Acquire has already burned its transport retries. The
			// device is unreachable: fail this job and skip the rest.
			state.skipDevice(job.Device.Hostname, acqErr.Error())
			e.finishJob(ctx, job, report, models.JobFailed, lastResult, acqErr.Error())
			return
		}

		sessionsInUse.Inc()
		result, runErr := collector.Collect(ctx, session, job.Device)
		e.source.Release(session)
		sessionsInUse.Dec()

		if result != nil {
			lastResult = result
		}
		if runErr == nil {
			jobDuration.WithLabelValues(string(job.Layer)).Observe(time.Since(start).Seconds())
			e.finishJob(ctx, job, report, models.JobSucceeded, result, "")
			return
		}

		lastErr = runErr
		e.logger.Warn("collection attempt failed",
			zap.String("hostname", job.Device.Hostname),
			zap.String("layer", string(job.Layer)),
			zap.Int("attempt", attempt),
			zap.Error(runErr),
		)
		if attempt < e.attempts() && !sleepCtx(ctx, e.cfg.Backoff) {
			break
		}
	}

	jobDuration.WithLabelValues(string(job.Layer)).Observe(time.Since(start).Seconds())
	e.finishJob(ctx, job, report, models.JobFailed, lastResult, lastErr.Error())
}

func (e *Executor) attempts() int {
	if e.cfg.Attempts < 1 {
		return 1
	}
	return e.cfg.Attempts
}

// finishJob moves a job to its terminal status and records it everywhere a
// terminal job is observed.
func (e *Executor) finishJob(ctx context.Context, job *models.Job, report *Report, status models.JobStatus, result *models.LayerResult, errMsg string) {
	job.Status = status
	job.Error = errMsg
	report.recordJob(job, result)

	jobsTotal.WithLabelValues(string(status)).Inc()
	if result != nil {
		for _, cr := range result.Commands {
			commandsTotal.WithLabelValues(string(cr.Kind)).Inc()
		}
	}

	if e.sink != nil {
		if err := e.sink.RecordJob(context.WithoutCancel(ctx), report.RunID, job, result); err != nil {
			e.logger.Warn("failed to persist job",
				zap.String("hostname", job.Device.Hostname),
				zap.String("layer", string(job.Layer)),
				zap.Error(err),
			)
		}
	}

	e.publish(ctx, TopicJobFinished, JobFinishedPayload{
		RunID:    report.RunID,
		Hostname: job.Device.Hostname,
		Layer:    job.Layer,
		Status:   status,
		Attempts: job.Attempts,
		Error:    errMsg,
	})
}

func (e *Executor) publish(ctx context.Context, topic string, payload any) {
	if e.bus == nil {
		return
	}
	e.bus.Publish(ctx, event.Event{
		Topic:     topic,
		Source:    "run",
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	})
}

// sleepCtx waits for d and reports false if the context ended first.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
