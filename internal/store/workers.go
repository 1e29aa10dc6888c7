package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const workerColumns = `id, session_id, tmux_session, tmux_window, agent_type, agent_profile, parent_id, status, last_active`

func (s *Store) CreateWorker(ctx context.Context, worker Worker) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO workers(`+workerColumns+`) VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		worker.ID,
		worker.SessionID,
		worker.TmuxSession,
		worker.TmuxWindow,
		worker.AgentType,
		nullableText(worker.AgentProfile),
		nullableText(worker.ParentID),
		worker.Status,
		formatTime(worker.LastActive))
	if isUniqueViolation(err) {
		return fmt.Errorf("worker %q: %w", worker.ID, ErrConflict)
	}
	return err
}

func (s *Store) GetWorker(ctx context.Context, id string) (Worker, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+workerColumns+` FROM workers WHERE id = ?`, id)
	worker, err := scanWorker(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Worker{}, fmt.Errorf("worker %q: %w", id, ErrNotFound)
	}
	return worker, err
}

// ListWorkers returns the session's workers, oldest first. An empty
// sessionID lists every worker.
func (s *Store) ListWorkers(ctx context.Context, sessionID string) ([]Worker, error) {
	query := `SELECT ` + workerColumns + ` FROM workers ORDER BY last_active, id`
	args := []any{}
	if sessionID != "" {
		query = `SELECT ` + workerColumns + ` FROM workers WHERE session_id = ? ORDER BY last_active, id`
		args = append(args, sessionID)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	workers := make([]Worker, 0)
	for rows.Next() {
		worker, err := scanWorker(rows)
		if err != nil {
			return nil, err
		}
		workers = append(workers, worker)
	}
	return workers, rows.Err()
}

func (s *Store) UpdateWorkerStatus(ctx context.Context, id, status string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE workers SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("worker %q: %w", id, ErrNotFound)
	}
	return nil
}

// TouchWorker bumps last_active, typically after input delivery.
func (s *Store) TouchWorker(ctx context.Context, id string, at time.Time) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE workers SET last_active = ? WHERE id = ?`, formatTime(at), id)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("worker %q: %w", id, ErrNotFound)
	}
	return nil
}

func (s *Store) DeleteWorker(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM workers WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("worker %q: %w", id, ErrNotFound)
	}
	return nil
}

func scanWorker(scanner rowScanner) (Worker, error) {
	var worker Worker
	var profile, parent sql.NullString
	var lastActive string
	err := scanner.Scan(
		&worker.ID,
		&worker.SessionID,
		&worker.TmuxSession,
		&worker.TmuxWindow,
		&worker.AgentType,
		&profile,
		&parent,
		&worker.Status,
		&lastActive)
	if err != nil {
		return Worker{}, err
	}
	worker.AgentProfile = profile.String
	worker.ParentID = parent.String
	worker.LastActive = parseTime(lastActive)
	return worker, nil
}
