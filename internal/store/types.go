package store

import "time"

// Session statuses.
const (
	SessionActive     = "active"
	SessionDetached   = "detached"
	SessionTerminated = "terminated"
)

// Message statuses. Rows are never deleted by normal operation; the
// status flip from pending is what guards exactly-once delivery.
const (
	MessagePending   = "pending"
	MessageDelivered = "delivered"
	MessageFailed    = "failed"
)

// Session is one orchestrated tmux session.
type Session struct {
	ID        string
	Name      string
	Status    string
	CreatedAt time.Time
}

// Worker is one agent running in a tmux window. Status is the
// last-observed hint only; live reads go through the provider.
type Worker struct {
	ID           string
	SessionID    string
	TmuxSession  string
	TmuxWindow   string
	AgentType    string
	AgentProfile string
	// ParentID is the delegating worker, empty for user-created workers.
	ParentID   string
	Status     string
	LastActive time.Time
}

// Message is one mailbox entry.
type Message struct {
	ID         int64
	SenderID   string
	ReceiverID string
	Body       string
	Status     string
	CreatedAt  time.Time
}

// Flow is a scheduled recurring prompt for a worker.
type Flow struct {
	ID        string
	WorkerID  string
	Schedule  string
	NextRunAt time.Time
}
