// Package inbox queues messages between workers and delivers them when
// the receiving agent is free. Delivery is gated on the receiver being
// idle or completed so a message never interrupts a running turn.
package inbox

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cao-dev/cao/internal/provider"
	"github.com/cao-dev/cao/internal/store"
)

// Deliverer is the slice of the orchestrator the inbox needs: a live
// status read and input delivery.
type Deliverer interface {
	SendInput(ctx context.Context, workerID, text string) error
	WorkerStatus(ctx context.Context, workerID string) (provider.Status, error)
}

// Service persists messages and pushes them to idle receivers.
type Service struct {
	store     *store.Store
	deliverer Deliverer
	logger    *slog.Logger
}

func NewService(st *store.Store, d Deliverer, logger *slog.Logger) *Service {
	return &Service{store: st, deliverer: d, logger: logger}
}

// Enqueue appends a pending message and tries to deliver it right away.
// The message is persisted either way; a failed opportunistic delivery
// is logged, not returned, because the watcher retries on the next idle
// transition.
func (s *Service) Enqueue(ctx context.Context, senderID, receiverID, text string) (store.Message, error) {
	msg, err := s.store.EnqueueMessage(ctx, senderID, receiverID, text)
	if err != nil {
		return store.Message{}, err
	}
	if _, err := s.TryDeliver(ctx, receiverID); err != nil {
		s.logger.Warn("opportunistic delivery failed", "receiver", receiverID, "error", err)
	}
	return msg, nil
}

// TryDeliver sends the receiver's oldest pending message when the
// receiver is idle or completed. Reports whether a message was
// delivered. No pending messages or a busy receiver is a no-op.
func (s *Service) TryDeliver(ctx context.Context, receiverID string) (bool, error) {
	msg, err := s.store.NextPendingMessage(ctx, receiverID)
	if errors.Is(err, store.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	status, err := s.deliverer.WorkerStatus(ctx, receiverID)
	if err != nil {
		return false, err
	}
	if status != provider.StatusIdle && status != provider.StatusCompleted {
		return false, nil
	}

	if err := s.deliverer.SendInput(ctx, receiverID, formatDelivery(msg)); err != nil {
		if uerr := s.store.UpdateMessageStatus(ctx, msg.ID, store.MessageFailed); uerr != nil {
			s.logger.Warn("marking message failed", "message", msg.ID, "error", uerr)
		}
		return false, fmt.Errorf("delivering message %d: %w", msg.ID, err)
	}
	if err := s.store.UpdateMessageStatus(ctx, msg.ID, store.MessageDelivered); err != nil {
		return true, err
	}
	return true, nil
}

// List returns a receiver's messages, optionally filtered by status.
func (s *Service) List(ctx context.Context, receiverID, status string) ([]store.Message, error) {
	return s.store.ListMessages(ctx, receiverID, status)
}

// formatDelivery prefixes the body with the sender so the receiving
// agent knows whom to reply to.
func formatDelivery(msg store.Message) string {
	return fmt.Sprintf("[message from %s] %s", msg.SenderID, msg.Body)
}
