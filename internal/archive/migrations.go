package archive

import "database/sql"

// migrations returns the archive schema migrations.
func migrations() []Migration {
	return []Migration{
		{
			Version:     1,
			Description: "create archive tables (runs, jobs, command_results)",
			Up: func(tx *sql.Tx) error {
				stmts := []string{
					`CREATE TABLE runs (
						id             TEXT PRIMARY KEY,
						started_at     DATETIME NOT NULL,
						finished_at    DATETIME NOT NULL,
						succeeded      INTEGER NOT NULL DEFAULT 0,
						failed         INTEGER NOT NULL DEFAULT 0,
						skipped        INTEGER NOT NULL DEFAULT 0,
						command_errors INTEGER NOT NULL DEFAULT 0,
						fatal          TEXT NOT NULL DEFAULT ''
					)`,
					`CREATE TABLE jobs (
						run_id   TEXT NOT NULL,
						hostname TEXT NOT NULL,
						layer    TEXT NOT NULL,
						status   TEXT NOT NULL,
						attempts INTEGER NOT NULL DEFAULT 0,
						error    TEXT NOT NULL DEFAULT '',
						platform TEXT NOT NULL DEFAULT '',
						summary  TEXT NOT NULL DEFAULT '{}',
						PRIMARY KEY (run_id, hostname, layer)
					)`,
					`CREATE INDEX idx_jobs_run ON jobs(run_id)`,
					`CREATE INDEX idx_jobs_hostname ON jobs(hostname)`,
					`CREATE TABLE command_results (
						run_id      TEXT NOT NULL,
						hostname    TEXT NOT NULL,
						layer       TEXT NOT NULL,
						seq         INTEGER NOT NULL,
						command     TEXT NOT NULL,
						output      TEXT NOT NULL DEFAULT '',
						kind        TEXT NOT NULL,
						duration_ms INTEGER NOT NULL DEFAULT 0,
						error       TEXT NOT NULL DEFAULT '',
						PRIMARY KEY (run_id, hostname, layer, seq)
					)`,
					`CREATE INDEX idx_command_results_run ON command_results(run_id)`,
				}
				for _, stmt := range stmts {
					if _, err := tx.Exec(stmt); err != nil {
						return err
					}
				}
				return nil
			},
		},
	}
}
