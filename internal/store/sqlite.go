package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/amishk599/jobpilot/internal/model"
)

// SQLiteLedger is a model.Ledger backed by a SQLite database. The job ID is
// the primary key, so a second record for the same job is rejected.
type SQLiteLedger struct {
	db *sql.DB
}

// NewSQLiteLedger opens (or creates) a SQLite database at dbPath and ensures
// the applications table exists.
func NewSQLiteLedger(dbPath string) (*SQLiteLedger, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}
	// SQLite has a single writer; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	// Verify the connection is alive.
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging sqlite db: %w", err)
	}

	createTable := `CREATE TABLE IF NOT EXISTS applications (
		job_id              TEXT PRIMARY KEY,
		run_id              TEXT NOT NULL,
		profile_snapshot_id TEXT NOT NULL,
		title               TEXT NOT NULL,
		company             TEXT NOT NULL,
		url                 TEXT NOT NULL,
		score               REAL NOT NULL,
		platform            TEXT NOT NULL,
		status              TEXT NOT NULL,
		step                TEXT NOT NULL DEFAULT '',
		failure_reason      TEXT NOT NULL DEFAULT '',
		recorded_at         DATETIME NOT NULL
	)`
	if _, err := db.Exec(createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating applications table: %w", err)
	}

	return &SQLiteLedger{db: db}, nil
}

// Append stores rec. It returns model.ErrDuplicate if the job is already recorded.
func (s *SQLiteLedger) Append(ctx context.Context, rec model.ApplicationRecord) error {
	if rec.JobID == "" {
		return errors.New("ledger record has no job ID")
	}
	res, err := s.db.ExecContext(ctx, `INSERT OR IGNORE INTO applications
		(job_id, run_id, profile_snapshot_id, title, company, url, score, platform, status, step, failure_reason, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.JobID, rec.RunID, rec.ProfileSnapshotID, rec.Title, rec.Company, rec.URL, rec.Score,
		rec.Platform, string(rec.Status), rec.Step, rec.FailureReason, rec.Timestamp.UTC(),
	)
	if err != nil {
		return fmt.Errorf("recording application %s: %w", rec.JobID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("recording application %s: %w", rec.JobID, err)
	}
	if n == 0 {
		return model.ErrDuplicate
	}
	return nil
}

// HasRecord returns true if the given job ID has already been recorded.
func (s *SQLiteLedger) HasRecord(jobID string) (bool, error) {
	var exists int
	err := s.db.QueryRow("SELECT 1 FROM applications WHERE job_id = ?", jobID).Scan(&exists)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking ledger for %s: %w", jobID, err)
	}
	return true, nil
}

// Records returns every record in insertion order.
func (s *SQLiteLedger) Records() ([]model.ApplicationRecord, error) {
	rows, err := s.db.Query(`SELECT job_id, run_id, profile_snapshot_id, title, company, url, score,
		platform, status, step, failure_reason, recorded_at FROM applications ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("listing applications: %w", err)
	}
	defer rows.Close()

	var out []model.ApplicationRecord
	for rows.Next() {
		var (
			rec    model.ApplicationRecord
			status string
			at     time.Time
		)
		if err := rows.Scan(&rec.JobID, &rec.RunID, &rec.ProfileSnapshotID, &rec.Title, &rec.Company, &rec.URL,
			&rec.Score, &rec.Platform, &status, &rec.Step, &rec.FailureReason, &at); err != nil {
			return nil, fmt.Errorf("scanning application: %w", err)
		}
		rec.Status = model.Status(status)
		rec.Timestamp = at.UTC()
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Prune deletes records older than the given duration so their jobs can be
// applied to again.
func (s *SQLiteLedger) Prune(olderThan time.Duration) error {
	cutoff := time.Now().Add(-olderThan).UTC()
	_, err := s.db.Exec("DELETE FROM applications WHERE recorded_at < ?", cutoff)
	if err != nil {
		return fmt.Errorf("pruning applications older than %v: %w", olderThan, err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *SQLiteLedger) Close() error {
	return s.db.Close()
}
