package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/cao-dev/cao/internal/provider"
	"github.com/cao-dev/cao/internal/store"
)

// Output modes for GetOutput.
const (
	OutputFull = "full"
	OutputLast = "last"
)

// providerFor returns the worker's provider, rehydrating one from the
// stored record when the registry has no live instance (after a
// restart). Rehydration never re-runs Initialize; the agent is assumed
// to still be running in its pane.
func (o *Orchestrator) providerFor(ctx context.Context, workerID string) (provider.Provider, store.Worker, error) {
	worker, err := o.store.GetWorker(ctx, workerID)
	if err != nil {
		return nil, store.Worker{}, err
	}

	p, err := o.registry.GetOrCreate(workerID, func() (provider.Provider, error) {
		agentType, err := provider.ParseType(worker.AgentType)
		if err != nil {
			return nil, err
		}
		cfg, err := o.providerConfig(workerID, WorkerConfig{
			AgentType: agentType,
			Profile:   worker.AgentProfile,
			ParentID:  worker.ParentID,
		})
		if err != nil {
			return nil, err
		}
		return provider.New(agentType, o.term.Pane(worker.TmuxSession, worker.TmuxWindow), cfg)
	})
	if err != nil {
		return nil, store.Worker{}, err
	}
	return p, worker, nil
}

// SendInput delivers text to a worker via bracketed paste, then the
// variant's Enter count. Paste keeps "/" and "!" from triggering TUI
// hotkeys mid-message.
func (o *Orchestrator) SendInput(ctx context.Context, workerID, text string) error {
	p, worker, err := o.providerFor(ctx, workerID)
	if err != nil {
		return err
	}
	pane := o.term.Pane(worker.TmuxSession, worker.TmuxWindow)

	if err := pane.PasteText(text); err != nil {
		return fmt.Errorf("pasting input: %w", err)
	}
	for i := 0; i < p.PasteEnterCount(); i++ {
		if err := pane.SendKey("Enter"); err != nil {
			return fmt.Errorf("submitting input: %w", err)
		}
	}
	p.MarkInputReceived()
	if err := o.store.TouchWorker(ctx, workerID, time.Now()); err != nil {
		o.logger.Warn("touch worker failed", "worker", workerID, "error", err)
	}
	return nil
}

// SendSpecialKey sends a raw tmux key name ("Enter", "Escape", "C-c")
// without a trailing newline.
func (o *Orchestrator) SendSpecialKey(ctx context.Context, workerID, key string) error {
	_, worker, err := o.providerFor(ctx, workerID)
	if err != nil {
		return err
	}
	return o.term.Pane(worker.TmuxSession, worker.TmuxWindow).SendKey(key)
}

// GetOutput returns the worker's pane contents. OutputFull is the raw
// scrollback with escape sequences preserved; OutputLast extracts the
// agent's final response.
func (o *Orchestrator) GetOutput(ctx context.Context, workerID, mode string) (string, error) {
	p, worker, err := o.providerFor(ctx, workerID)
	if err != nil {
		return "", err
	}
	pane := o.term.Pane(worker.TmuxSession, worker.TmuxWindow)

	buffer, err := pane.CaptureAll()
	if err != nil {
		return "", fmt.Errorf("capturing pane: %w", err)
	}
	switch mode {
	case OutputFull, "":
		return buffer, nil
	case OutputLast:
		return p.ExtractLastMessage(buffer)
	}
	return "", fmt.Errorf("unknown output mode %q", mode)
}

// WorkerStatus reads the worker's live status through its provider and
// persists it as the stored hint.
func (o *Orchestrator) WorkerStatus(ctx context.Context, workerID string) (provider.Status, error) {
	p, _, err := o.providerFor(ctx, workerID)
	if err != nil {
		return provider.StatusError, err
	}
	status, err := p.Status(ctx)
	if err != nil {
		return status, err
	}
	if err := o.store.UpdateWorkerStatus(ctx, workerID, string(status)); err != nil {
		o.logger.Warn("status hint update failed", "worker", workerID, "error", err)
	}
	return status, nil
}

// LookupProvider returns a live provider without touching the store or
// rehydrating. The inbox watcher uses it for cheap pre-checks.
func (o *Orchestrator) LookupProvider(workerID string) (provider.Provider, bool) {
	return o.registry.Get(workerID)
}
