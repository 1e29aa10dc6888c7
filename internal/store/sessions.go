package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// CreateSession persists a session record. A duplicate id or name
// reports ErrConflict.
func (s *Store) CreateSession(ctx context.Context, session Session) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions(id, name, status, created_at) VALUES(?, ?, ?, ?)`,
		session.ID, session.Name, session.Status, formatTime(session.CreatedAt))
	if isUniqueViolation(err) {
		return fmt.Errorf("session %q: %w", session.Name, ErrConflict)
	}
	return err
}

func (s *Store) GetSession(ctx context.Context, id string) (Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, status, created_at FROM sessions WHERE id = ?`, id)
	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, fmt.Errorf("session %q: %w", id, ErrNotFound)
	}
	return session, err
}

func (s *Store) GetSessionByName(ctx context.Context, name string) (Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, status, created_at FROM sessions WHERE name = ?`, name)
	session, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Session{}, fmt.Errorf("session %q: %w", name, ErrNotFound)
	}
	return session, err
}

func (s *Store) ListSessions(ctx context.Context) ([]Session, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, status, created_at FROM sessions ORDER BY created_at, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := make([]Session, 0)
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

func (s *Store) UpdateSessionStatus(ctx context.Context, id, status string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("session %q: %w", id, ErrNotFound)
	}
	return nil
}

// DeleteSession removes the session record; worker rows cascade.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("session %q: %w", id, ErrNotFound)
	}
	return nil
}

func scanSession(scanner rowScanner) (Session, error) {
	var session Session
	var createdAt string
	if err := scanner.Scan(&session.ID, &session.Name, &session.Status, &createdAt); err != nil {
		return Session{}, err
	}
	session.CreatedAt = parseTime(createdAt)
	return session, nil
}
