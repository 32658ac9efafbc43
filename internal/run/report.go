package run

import (
	"sync"
	"time"

	"github.com/zumanm1/netaudit/pkg/models"
)

// Report aggregates the outcome of one run. Workers record into it
// concurrently; reads are safe once the executor has returned.
type Report struct {
	mu sync.Mutex

	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time

	// Jobs holds every scheduled job in terminal state, in completion
	// order. Results holds the transcripts of jobs that produced any,
	// including partial transcripts from failed attempts.
	Jobs    []*models.Job
	Results []*models.LayerResult

	Succeeded int
	Failed    int
	Skipped   int

	// CommandErrors counts individual command transcripts the device
	// rejected, across all jobs including succeeded ones.
	CommandErrors int

	// Fatal is set when the run was cut short by a jump host failure.
	Fatal error

	matrix map[string]map[models.Layer]models.JobStatus
}

func newReport(runID string) *Report {
	return &Report{
		RunID:     runID,
		StartedAt: time.Now().UTC(),
		matrix:    make(map[string]map[models.Layer]models.JobStatus),
	}
}

// recordJob files a terminal job and its transcripts, if any.
func (r *Report) recordJob(job *models.Job, result *models.LayerResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.Jobs = append(r.Jobs, job)
	if result != nil {
		r.Results = append(r.Results, result)
		for _, cr := range result.Commands {
			if cr.Kind == models.ResultError {
				r.CommandErrors++
			}
		}
	}

	switch job.Status {
	case models.JobSucceeded:
		r.Succeeded++
	case models.JobFailed:
		r.Failed++
	case models.JobSkipped:
		r.Skipped++
	}

	host := job.Device.Hostname
	if r.matrix[host] == nil {
		r.matrix[host] = make(map[models.Layer]models.JobStatus)
	}
	r.matrix[host][job.Layer] = job.Status
}

func (r *Report) setFatal(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.Fatal == nil {
		r.Fatal = err
	}
}

func (r *Report) fatalErr() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.Fatal
}

func (r *Report) finalize() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.FinishedAt.IsZero() {
		r.FinishedAt = time.Now().UTC()
	}
}

// StatusOf returns the terminal status of one (device, layer) job, or
// JobPending if the pair was never scheduled.
func (r *Report) StatusOf(hostname string, layer models.Layer) models.JobStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	if row, ok := r.matrix[hostname]; ok {
		if st, ok := row[layer]; ok {
			return st
		}
	}
	return models.JobPending
}

// Duration returns the wall time of the run.
func (r *Report) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}
