package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/anvil/offbridge/internal/task"
)

// HistoryRecord is one completed delegation as stored.
type HistoryRecord struct {
	RequestID   string
	Module      string
	Operation   string
	Priority    string
	Success     bool
	Error       string
	ErrorClass  string
	ElapsedMs   int64
	Attempts    int
	CompletedAt time.Time
}

// RecordResult appends a history row for a terminal request outcome.
func (s *Store) RecordResult(ctx context.Context, req *task.Request, res *task.Result) error {
	success := 0
	if res.Success {
		success = 1
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO delegation_history
		(request_id, module, operation, priority, success, error, error_class, elapsed_ms, attempts, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)`,
		req.ID, req.Module, req.Operation, req.Priority.String(),
		success, res.Error, res.ErrorClass, res.Elapsed.Milliseconds(), res.Attempts)
	if err != nil {
		return fmt.Errorf("record result %s: %w", req.ID, err)
	}
	return nil
}

// RecentHistory returns up to limit most recent completions.
func (s *Store) RecentHistory(ctx context.Context, limit int) ([]HistoryRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT request_id, module, operation, priority, success, error, error_class,
		       elapsed_ms, attempts, completed_at
		FROM delegation_history
		ORDER BY completed_at DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []HistoryRecord
	for rows.Next() {
		var r HistoryRecord
		var success int
		if err := rows.Scan(&r.RequestID, &r.Module, &r.Operation, &r.Priority,
			&success, &r.Error, &r.ErrorClass, &r.ElapsedMs, &r.Attempts, &r.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		r.Success = success == 1
		out = append(out, r)
	}
	return out, rows.Err()
}
