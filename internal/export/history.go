package export

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// History list bounds.
const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 200
)

// timestampLayout is fixed-width so stored timestamps sort as text.
const timestampLayout = "2006-01-02T15:04:05.000000Z07:00"

// HistoryRepository stores export runs.
type HistoryRepository interface {
	Create(ctx context.Context, run *Run) error
	List(ctx context.Context, limit int) ([]Run, error)
}

// SQLiteHistory stores export runs in the export_runs table.
type SQLiteHistory struct {
	db *sql.DB
}

// NewSQLiteHistory creates a history repository.
func NewSQLiteHistory(db *sql.DB) *SQLiteHistory {
	return &SQLiteHistory{db: db}
}

// Create inserts a run.
func (h *SQLiteHistory) Create(ctx context.Context, run *Run) error {
	_, err := h.db.ExecContext(ctx,
		`INSERT INTO export_runs (id, origin, status, entities, output_file, error, duration_ms, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, string(run.Origin), run.Status, run.Entities, run.OutputFile, run.Error,
		run.Duration.Milliseconds(),
		run.StartedAt.UTC().Format(timestampLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting export run: %w", err)
	}
	return nil
}

// List returns the most recent runs first. The limit is clamped to
// [1, MaxHistoryLimit]; zero or negative means DefaultHistoryLimit.
func (h *SQLiteHistory) List(ctx context.Context, limit int) ([]Run, error) {
	limit = clampLimit(limit)

	rows, err := h.db.QueryContext(ctx,
		`SELECT id, origin, status, entities, output_file, error, duration_ms, started_at
		 FROM export_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("querying export runs: %w", err)
	}
	defer rows.Close()

	runs := make([]Run, 0, limit)
	for rows.Next() {
		var (
			run        Run
			origin     string
			durationMS int64
			startedAt  string
		)
		if err := rows.Scan(&run.ID, &origin, &run.Status, &run.Entities, &run.OutputFile,
			&run.Error, &durationMS, &startedAt); err != nil {
			return nil, fmt.Errorf("scanning export run: %w", err)
		}

		t, err := time.Parse(timestampLayout, startedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing export run timestamp %q: %w", startedAt, err)
		}
		run.Origin = Origin(origin)
		run.Duration = time.Duration(durationMS) * time.Millisecond
		run.StartedAt = t
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating export runs: %w", err)
	}
	return runs, nil
}

func clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultHistoryLimit
	case limit > MaxHistoryLimit:
		return MaxHistoryLimit
	default:
		return limit
	}
}
