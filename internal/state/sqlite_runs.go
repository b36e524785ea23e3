package state

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RunStatus is the lifecycle state of a compile run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Run is one invocation of the compiler over a set of libraries.
type Run struct {
	ID          string
	Status      RunStatus
	Libraries   int
	Errors      int
	StartedAt   time.Time
	CompletedAt time.Time
}

// StartRun records a new compile run.
func (s *Store) StartRun(ctx context.Context) (*Run, error) {
	run := &Run{
		ID:        uuid.New().String(),
		Status:    RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO compile_runs (id, status, started_at) VALUES (?, ?, ?)`,
		run.ID, run.Status, run.StartedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("recording run: %w", err)
	}
	return run, nil
}

// FinishRun closes out a run with its library and error counts. Any
// error count marks the run failed.
func (s *Store) FinishRun(ctx context.Context, run *Run, libraries, errors int) error {
	run.Libraries = libraries
	run.Errors = errors
	run.CompletedAt = time.Now().UTC()
	run.Status = RunStatusCompleted
	if errors > 0 {
		run.Status = RunStatusFailed
	}

	_, err := s.db.ExecContext(ctx,
		`UPDATE compile_runs SET status = ?, libraries = ?, errors = ?, completed_at = ? WHERE id = ?`,
		run.Status, run.Libraries, run.Errors, run.CompletedAt, run.ID,
	)
	if err != nil {
		return fmt.Errorf("finishing run: %w", err)
	}
	return nil
}

// RecentRuns returns the most recent runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]*Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, status, libraries, errors, started_at, completed_at
		 FROM compile_runs ORDER BY started_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		run := &Run{}
		var completedAt sql.NullTime
		if err := rows.Scan(&run.ID, &run.Status, &run.Libraries, &run.Errors, &run.StartedAt, &completedAt); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		if completedAt.Valid {
			run.CompletedAt = completedAt.Time
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}
