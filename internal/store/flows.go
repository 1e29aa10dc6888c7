package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// CreateFlow persists a scheduled recurring prompt.
func (s *Store) CreateFlow(ctx context.Context, flow Flow) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO flows(id, worker_id, schedule, next_run_at) VALUES(?, ?, ?, ?)`,
		flow.ID, flow.WorkerID, flow.Schedule, formatTime(flow.NextRunAt))
	if isUniqueViolation(err) {
		return fmt.Errorf("flow %q: %w", flow.ID, ErrConflict)
	}
	return err
}

// ListFlowsDue returns flows whose next run is at or before now,
// soonest first.
func (s *Store) ListFlowsDue(ctx context.Context, now time.Time) ([]Flow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, worker_id, schedule, next_run_at
		 FROM flows
		 WHERE next_run_at <= ?
		 ORDER BY next_run_at, id`,
		formatTime(now))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	flows := make([]Flow, 0)
	for rows.Next() {
		var flow Flow
		var nextRun string
		if err := rows.Scan(&flow.ID, &flow.WorkerID, &flow.Schedule, &nextRun); err != nil {
			return nil, err
		}
		flow.NextRunAt = parseTime(nextRun)
		flows = append(flows, flow)
	}
	return flows, rows.Err()
}

// UpdateFlowNextRun advances a flow's schedule pointer after a run.
func (s *Store) UpdateFlowNextRun(ctx context.Context, id string, next time.Time) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE flows SET next_run_at = ? WHERE id = ?`, formatTime(next), id)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("flow %q: %w", id, ErrNotFound)
	}
	return nil
}

// DeleteFlowsForWorker removes a worker's flows during teardown.
func (s *Store) DeleteFlowsForWorker(ctx context.Context, workerID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM flows WHERE worker_id = ?`, workerID)
	return err
}

// GetFlow returns one flow by id.
func (s *Store) GetFlow(ctx context.Context, id string) (Flow, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, worker_id, schedule, next_run_at FROM flows WHERE id = ?`, id)
	var flow Flow
	var nextRun string
	err := row.Scan(&flow.ID, &flow.WorkerID, &flow.Schedule, &nextRun)
	if errors.Is(err, sql.ErrNoRows) {
		return Flow{}, fmt.Errorf("flow %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return Flow{}, err
	}
	flow.NextRunAt = parseTime(nextRun)
	return flow, nil
}
