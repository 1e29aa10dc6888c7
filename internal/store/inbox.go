package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// EnqueueMessage appends a pending mailbox entry for receiverID.
func (s *Store) EnqueueMessage(ctx context.Context, senderID, receiverID, body string) (Message, error) {
	now := nowTimestamp()
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO inbox(sender_id, receiver_id, message, status, created_at)
		 VALUES(?, ?, ?, 'pending', ?)`,
		senderID, receiverID, body, now)
	if err != nil {
		return Message{}, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return Message{}, err
	}
	return Message{
		ID:         id,
		SenderID:   senderID,
		ReceiverID: receiverID,
		Body:       body,
		Status:     MessagePending,
		CreatedAt:  parseTime(now),
	}, nil
}

// NextPendingMessage returns the oldest pending message for
// receiverID, or ErrNotFound when the mailbox is drained.
func (s *Store) NextPendingMessage(ctx context.Context, receiverID string) (Message, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, sender_id, receiver_id, message, status, created_at
		 FROM inbox
		 WHERE receiver_id = ? AND status = 'pending'
		 ORDER BY id
		 LIMIT 1`,
		receiverID)
	message, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Message{}, fmt.Errorf("no pending message for %q: %w", receiverID, ErrNotFound)
	}
	return message, err
}

// UpdateMessageStatus flips a message out of pending. The flip is what
// makes delivery exactly-once: a message already delivered or failed
// is never picked up again.
func (s *Store) UpdateMessageStatus(ctx context.Context, id int64, status string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE inbox SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return err
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("message %d: %w", id, ErrNotFound)
	}
	return nil
}

// ListMessages returns the receiver's mailbox, oldest first. An empty
// status matches all statuses.
func (s *Store) ListMessages(ctx context.Context, receiverID, status string) ([]Message, error) {
	query := `SELECT id, sender_id, receiver_id, message, status, created_at
		 FROM inbox WHERE receiver_id = ?`
	args := []any{receiverID}
	if status != "" {
		query += ` AND status = ?`
		args = append(args, status)
	}
	query += ` ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	messages := make([]Message, 0)
	for rows.Next() {
		message, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, message)
	}
	return messages, rows.Err()
}

func scanMessage(scanner rowScanner) (Message, error) {
	var message Message
	var createdAt string
	err := scanner.Scan(
		&message.ID,
		&message.SenderID,
		&message.ReceiverID,
		&message.Body,
		&message.Status,
		&createdAt)
	if err != nil {
		return Message{}, err
	}
	message.CreatedAt = parseTime(createdAt)
	return message, nil
}
