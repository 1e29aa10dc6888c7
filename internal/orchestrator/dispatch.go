package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/cao-dev/cao/internal/provider"
	"github.com/cao-dev/cao/internal/store"
)

// HandoffRequest delegates one task to a fresh worker and blocks for
// the answer.
type HandoffRequest struct {
	SessionID string
	// ParentID is the delegating worker; its agent type and profile are
	// inherited when AgentType is empty.
	ParentID  string
	AgentType provider.Type
	Profile   string
	WorkDir   string
	Message   string
	Timeout   time.Duration
	// CleanupOnTimeout deletes the worker when the deadline passes.
	// Default keeps it so the stalled agent can be inspected; the
	// configured cleanup-on-timeout setting also enables it.
	CleanupOnTimeout bool
}

// HandoffResult reports the outcome. Failures are data, not errors:
// the delegating agent reads this result as its tool output.
type HandoffResult struct {
	Success  bool
	WorkerID string
	Response string
	Reason   string
}

// AssignRequest is the fire-and-forget variant of a handoff.
type AssignRequest struct {
	SessionID string
	ParentID  string
	AgentType provider.Type
	Profile   string
	WorkDir   string
	Message   string
}

// resolveAgent fills an empty agent type (and profile) from the parent
// worker, falling back to the configured default.
func (o *Orchestrator) resolveAgent(ctx context.Context, agentType provider.Type, profileName, parentID string) (provider.Type, string, error) {
	if agentType != "" {
		return agentType, profileName, nil
	}
	if parentID != "" {
		parent, err := o.store.GetWorker(ctx, parentID)
		if err != nil {
			return "", "", err
		}
		inherited, err := provider.ParseType(parent.AgentType)
		if err != nil {
			return "", "", err
		}
		if profileName == "" {
			profileName = parent.AgentProfile
		}
		return inherited, profileName, nil
	}
	fallback, err := provider.ParseType(o.cfg.Settings.DefaultAgent)
	return fallback, profileName, err
}

// Handoff creates a worker, sends the message, and waits for the
// agent's answer. The worker is asked to exit and deleted on success;
// on timeout it is kept for inspection unless CleanupOnTimeout.
func (o *Orchestrator) Handoff(ctx context.Context, req HandoffRequest) (HandoffResult, error) {
	agentType, profileName, err := o.resolveAgent(ctx, req.AgentType, req.Profile, req.ParentID)
	if err != nil {
		return HandoffResult{}, err
	}
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = o.cfg.HandoffTimeout()
	}

	worker, err := o.CreateWorker(ctx, req.SessionID, WorkerConfig{
		AgentType: agentType,
		Profile:   profileName,
		WorkDir:   req.WorkDir,
		ParentID:  req.ParentID,
	})
	if err != nil {
		if worker.ID != "" {
			return HandoffResult{WorkerID: worker.ID, Reason: err.Error()}, nil
		}
		return HandoffResult{}, err
	}

	// Freshly initialized TUIs drop input typed during their first
	// render; a short settle makes delivery reliable.
	select {
	case <-ctx.Done():
		return HandoffResult{WorkerID: worker.ID, Reason: ctx.Err().Error()}, nil
	case <-time.After(o.settleDelay):
	}

	if err := o.SendInput(ctx, worker.ID, req.Message); err != nil {
		return HandoffResult{WorkerID: worker.ID, Reason: err.Error()}, nil
	}

	p, _, err := o.providerFor(ctx, worker.ID)
	if err != nil {
		return HandoffResult{WorkerID: worker.ID, Reason: err.Error()}, nil
	}
	targets := []provider.Status{provider.StatusCompleted, provider.StatusError}
	ok, err := provider.WaitStatus(ctx, p, targets, timeout, o.pollInterval)
	if err != nil {
		return HandoffResult{WorkerID: worker.ID, Reason: err.Error()}, nil
	}
	if !ok {
		cleanup := req.CleanupOnTimeout || o.cfg.Settings.CleanupOnTimeout
		return o.handoffTimeout(ctx, worker.ID, timeout, cleanup), nil
	}

	status, err := p.Status(ctx)
	if err != nil || status != provider.StatusCompleted {
		reason := fmt.Sprintf("agent finished with status %s", status)
		if err != nil {
			reason = err.Error()
		}
		return HandoffResult{WorkerID: worker.ID, Reason: reason}, nil
	}

	response, err := o.GetOutput(ctx, worker.ID, OutputLast)
	if err != nil {
		return HandoffResult{WorkerID: worker.ID, Reason: fmt.Sprintf("extracting response: %v", err)}, nil
	}

	o.exitWorker(ctx, worker.ID, p)
	if err := o.DeleteWorker(ctx, worker.ID); err != nil {
		o.logger.Warn("handoff worker teardown failed", "worker", worker.ID, "error", err)
	}

	return HandoffResult{Success: true, WorkerID: worker.ID, Response: response}, nil
}

func (o *Orchestrator) handoffTimeout(ctx context.Context, workerID string, timeout time.Duration, cleanup bool) HandoffResult {
	reason := fmt.Sprintf("no completion within %s", timeout)
	if cleanup {
		if err := o.DeleteWorker(ctx, workerID); err != nil {
			o.logger.Warn("timeout cleanup failed", "worker", workerID, "error", err)
		}
		return HandoffResult{WorkerID: workerID, Reason: reason}
	}
	o.logger.Info("handoff timed out, keeping worker", "worker", workerID)
	return HandoffResult{WorkerID: workerID, Reason: reason + " (worker kept for inspection)"}
}

// exitWorker asks the agent to quit using its own exit convention.
func (o *Orchestrator) exitWorker(ctx context.Context, workerID string, p provider.Provider) {
	exit := p.ExitCommand()
	var err error
	if exit.Text != "" {
		err = o.SendInput(ctx, workerID, exit.Text)
	} else if exit.Key != "" {
		err = o.SendSpecialKey(ctx, workerID, exit.Key)
	}
	if err != nil {
		o.logger.Warn("agent exit failed", "worker", workerID, "error", err)
	}
}

// Assign creates a worker and sends the message without waiting for an
// answer. The caller polls or reads the mailbox later.
func (o *Orchestrator) Assign(ctx context.Context, req AssignRequest) (store.Worker, error) {
	agentType, profileName, err := o.resolveAgent(ctx, req.AgentType, req.Profile, req.ParentID)
	if err != nil {
		return store.Worker{}, err
	}

	worker, err := o.CreateWorker(ctx, req.SessionID, WorkerConfig{
		AgentType: agentType,
		Profile:   profileName,
		WorkDir:   req.WorkDir,
		ParentID:  req.ParentID,
	})
	if err != nil {
		return worker, err
	}

	select {
	case <-ctx.Done():
		return worker, ctx.Err()
	case <-time.After(o.settleDelay):
	}

	if err := o.SendInput(ctx, worker.ID, req.Message); err != nil {
		return worker, fmt.Errorf("sending assignment: %w", err)
	}
	return worker, nil
}
