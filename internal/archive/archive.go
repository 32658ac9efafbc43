package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/zumanm1/netaudit/internal/run"
	"github.com/zumanm1/netaudit/pkg/models"
)

// Compile-time interface guard.
var _ run.Sink = (*Store)(nil)

// RunRow is one archived run.
type RunRow struct {
	ID            string
	StartedAt     time.Time
	FinishedAt    time.Time
	Succeeded     int
	Failed        int
	Skipped       int
	CommandErrors int
	Fatal         string
}

// JobRow is one archived (device, layer) job.
type JobRow struct {
	RunID    string
	Hostname string
	Layer    models.Layer
	Status   models.JobStatus
	Attempts int
	Error    string
	Platform models.Platform
	Summary  map[string]string
}

// RecordJob archives a terminal job with its command transcripts, if any.
func (s *Store) RecordJob(ctx context.Context, runID string, job *models.Job, result *models.LayerResult) error {
	platform := ""
	summary := "{}"
	if result != nil {
		platform = string(result.Platform)
		if len(result.Summary) > 0 {
			raw, err := json.Marshal(result.Summary)
			if err != nil {
				return fmt.Errorf("marshal summary: %w", err)
			}
			summary = string(raw)
		}
	}

	return s.Tx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO jobs (run_id, hostname, layer, status, attempts, error, platform, summary)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, job.Device.Hostname, string(job.Layer), string(job.Status),
			job.Attempts, job.Error, platform, summary,
		)
		if err != nil {
			return fmt.Errorf("insert job: %w", err)
		}

		if result == nil {
			return nil
		}
		for i, cr := range result.Commands {
			_, err := tx.ExecContext(ctx, `
				INSERT OR REPLACE INTO command_results (run_id, hostname, layer, seq, command, output, kind, duration_ms, error)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				runID, job.Device.Hostname, string(job.Layer), i,
				cr.Command, cr.Output, string(cr.Kind), cr.Duration.Milliseconds(), cr.Err,
			)
			if err != nil {
				return fmt.Errorf("insert command result: %w", err)
			}
		}
		return nil
	})
}

// RecordRun archives the finished run's totals.
func (s *Store) RecordRun(ctx context.Context, report *run.Report) error {
	fatal := ""
	if report.Fatal != nil {
		fatal = report.Fatal.Error()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs (id, started_at, finished_at, succeeded, failed, skipped, command_errors, fatal)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		report.RunID, report.StartedAt, report.FinishedAt,
		report.Succeeded, report.Failed, report.Skipped, report.CommandErrors, fatal,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// Runs returns the most recent archived runs, newest first.
func (s *Store) Runs(ctx context.Context, limit int) ([]RunRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, succeeded, failed, skipped, command_errors, fatal
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRow
	for rows.Next() {
		var r RunRow
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.Succeeded, &r.Failed, &r.Skipped, &r.CommandErrors, &r.Fatal); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Jobs returns every archived job of one run.
func (s *Store) Jobs(ctx context.Context, runID string) ([]JobRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, hostname, layer, status, attempts, error, platform, summary
		FROM jobs WHERE run_id = ? ORDER BY hostname, layer`, runID)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()

	var jobs []JobRow
	for rows.Next() {
		var j JobRow
		var layer, status, platform, summary string
		if err := rows.Scan(&j.RunID, &j.Hostname, &layer, &status, &j.Attempts, &j.Error, &platform, &summary); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		j.Layer = models.Layer(layer)
		j.Status = models.JobStatus(status)
		j.Platform = models.Platform(platform)
		if err := json.Unmarshal([]byte(summary), &j.Summary); err != nil {
			return nil, fmt.Errorf("decode summary: %w", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// Transcripts returns the ordered command transcripts of one archived job.
func (s *Store) Transcripts(ctx context.Context, runID, hostname string, layer models.Layer) ([]models.CommandResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT command, output, kind, duration_ms, error
		FROM command_results
		WHERE run_id = ? AND hostname = ? AND layer = ?
		ORDER BY seq`, runID, hostname, string(layer))
	if err != nil {
		return nil, fmt.Errorf("query command results: %w", err)
	}
	defer rows.Close()

	var results []models.CommandResult
	for rows.Next() {
		var cr models.CommandResult
		var kind string
		var durationMS int64
		if err := rows.Scan(&cr.Command, &cr.Output, &kind, &durationMS, &cr.Err); err != nil {
			return nil, fmt.Errorf("scan command result: %w", err)
		}
		cr.Kind = models.ResultKind(kind)
		cr.Duration = time.Duration(durationMS) * time.Millisecond
		results = append(results, cr)
	}
	return results, rows.Err()
}
