package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cao-dev/cao/internal/config"
	"github.com/cao-dev/cao/internal/provider"
	"github.com/cao-dev/cao/internal/store"
)

// A worker whose agent failed to initialize keeps its record with
// status error so the pane can be inspected.
const (
	workerStatusInitializing = "initializing"
	workerStatusError        = "error"
)

// CreateSession creates a tmux session with one worker window, persists
// both records, and initializes the agent. A duplicate name reports
// store.ErrConflict before anything is created.
func (o *Orchestrator) CreateSession(ctx context.Context, name string, wc WorkerConfig) (store.Session, store.Worker, error) {
	if _, err := o.store.GetSessionByName(ctx, name); err == nil {
		return store.Session{}, store.Worker{}, fmt.Errorf("session %q: %w", name, store.ErrConflict)
	} else if !errors.Is(err, store.ErrNotFound) {
		// A store failure is not a free name.
		return store.Session{}, store.Worker{}, err
	}

	session := store.Session{
		ID:        newSessionID(),
		Name:      name,
		Status:    store.SessionActive,
		CreatedAt: time.Now(),
	}
	workerID := newWorkerID()
	windowName := newWindowName(wc)

	env := config.WorkerEnv(workerID, wc.ParentID)
	if err := o.term.NewSession(session.ID, windowName, wc.WorkDir, env); err != nil {
		return store.Session{}, store.Worker{}, fmt.Errorf("creating tmux session: %w", err)
	}

	if err := o.store.CreateSession(ctx, session); err != nil {
		o.rollbackSession(session.ID)
		return store.Session{}, store.Worker{}, err
	}

	worker, err := o.launchWorker(ctx, session, workerID, windowName, wc)
	if err != nil && worker.ID == "" {
		// Nothing persisted for the worker; undo the session too.
		_ = o.store.DeleteSession(ctx, session.ID)
		o.rollbackSession(session.ID)
		return store.Session{}, store.Worker{}, err
	}
	return session, worker, err
}

// CreateWorker adds a worker window to an existing session.
func (o *Orchestrator) CreateWorker(ctx context.Context, sessionID string, wc WorkerConfig) (store.Worker, error) {
	session, err := o.store.GetSession(ctx, sessionID)
	if err != nil {
		return store.Worker{}, err
	}

	workerID := newWorkerID()
	windowName := newWindowName(wc)
	if err := o.term.NewWindow(session.ID, windowName, wc.WorkDir, config.WorkerEnv(workerID, wc.ParentID)); err != nil {
		return store.Worker{}, fmt.Errorf("creating tmux window: %w", err)
	}

	worker, err := o.launchWorker(ctx, session, workerID, windowName, wc)
	if err != nil && worker.ID == "" {
		_ = o.term.KillWindow(session.ID, windowName)
		return store.Worker{}, err
	}
	return worker, err
}

// launchWorker persists the worker record, starts pipe-pane logging,
// and initializes the agent. An initialization failure records
// status=error and returns the worker along with the error; the pane
// stays up for inspection.
func (o *Orchestrator) launchWorker(ctx context.Context, session store.Session, workerID, windowName string, wc WorkerConfig) (store.Worker, error) {
	worker := store.Worker{
		ID:           workerID,
		SessionID:    session.ID,
		TmuxSession:  session.ID,
		TmuxWindow:   windowName,
		AgentType:    string(wc.AgentType),
		AgentProfile: wc.Profile,
		ParentID:     wc.ParentID,
		Status:       workerStatusInitializing,
		LastActive:   time.Now(),
	}

	cfg, err := o.providerConfig(workerID, wc)
	if err != nil {
		return store.Worker{}, err
	}
	if err := o.store.CreateWorker(ctx, worker); err != nil {
		return store.Worker{}, err
	}

	pane := o.term.Pane(worker.TmuxSession, worker.TmuxWindow)

	p, err := o.registry.GetOrCreate(workerID, func() (provider.Provider, error) {
		return provider.New(wc.AgentType, pane, cfg)
	})
	if err != nil {
		_ = o.store.UpdateWorkerStatus(ctx, workerID, workerStatusError)
		worker.Status = workerStatusError
		return worker, err
	}

	if err := o.ensureLogsDir(); err != nil {
		o.logger.Warn("pipe-pane log dir", "error", err)
	} else if err := o.term.PipePane(pane.Target(), o.cfg.WorkerLogPath(workerID)); err != nil {
		o.logger.Warn("pipe-pane start failed", "worker", workerID, "error", err)
	}
	if o.watcher != nil {
		if err := o.watcher.Register(workerID, p, o.cfg.WorkerLogPath(workerID)); err != nil {
			o.logger.Warn("inbox watcher register failed", "worker", workerID, "error", err)
		}
	}

	if err := p.Initialize(ctx); err != nil {
		_ = o.store.UpdateWorkerStatus(ctx, workerID, workerStatusError)
		worker.Status = workerStatusError
		return worker, fmt.Errorf("initializing %s agent: %w", wc.AgentType, err)
	}

	worker.Status = string(provider.StatusIdle)
	_ = o.store.UpdateWorkerStatus(ctx, workerID, worker.Status)
	o.logger.Info("worker ready", "worker", workerID, "session", session.ID, "agent", wc.AgentType)
	return worker, nil
}

// rollbackSession best-effort kills a tmux session created during a
// failed CreateSession.
func (o *Orchestrator) rollbackSession(sessionID string) {
	if err := o.term.KillSession(sessionID); err != nil {
		o.logger.Warn("rollback kill-session failed", "session", sessionID, "error", err)
	}
}

// DeleteWorker tears a worker down in dependency order: stop log
// piping, unregister the watcher, clean up the provider, kill the
// window, delete the record. Individual step failures are logged and
// suppressed; the record delete is what counts.
func (o *Orchestrator) DeleteWorker(ctx context.Context, workerID string) error {
	worker, err := o.store.GetWorker(ctx, workerID)
	if err != nil {
		return err
	}

	target := o.term.Pane(worker.TmuxSession, worker.TmuxWindow).Target()
	if err := o.term.StopPipePane(target); err != nil {
		o.logger.Warn("pipe-pane stop failed", "worker", workerID, "error", err)
	}
	if o.watcher != nil {
		o.watcher.Unregister(workerID)
	}
	o.registry.Remove(workerID)
	if err := o.term.KillWindow(worker.TmuxSession, worker.TmuxWindow); err != nil {
		o.logger.Warn("kill-window failed", "worker", workerID, "error", err)
	}
	if err := o.store.DeleteFlowsForWorker(ctx, workerID); err != nil {
		o.logger.Warn("flow cleanup failed", "worker", workerID, "error", err)
	}
	return o.store.DeleteWorker(ctx, workerID)
}

// DeleteSession deletes every owned worker, then the tmux session and
// the record. Workers go first so their teardown can still address
// their windows.
func (o *Orchestrator) DeleteSession(ctx context.Context, sessionID string) error {
	session, err := o.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}

	workers, err := o.store.ListWorkers(ctx, session.ID)
	if err != nil {
		return err
	}
	for _, worker := range workers {
		if err := o.DeleteWorker(ctx, worker.ID); err != nil {
			o.logger.Warn("worker teardown failed", "worker", worker.ID, "error", err)
		}
	}

	if err := o.term.KillSession(session.ID); err != nil {
		o.logger.Warn("kill-session failed", "session", session.ID, "error", err)
	}
	return o.store.DeleteSession(ctx, session.ID)
}

// ListSessions returns all session records with status refreshed from
// tmux: gone means terminated, alive without a client means detached.
// Refreshed statuses are persisted as the stored hint; sessions tmux
// cannot answer for keep it.
func (o *Orchestrator) ListSessions(ctx context.Context) ([]store.Session, error) {
	sessions, err := o.store.ListSessions(ctx)
	if err != nil {
		return nil, err
	}
	for i := range sessions {
		status, err := o.sessionStatus(sessions[i].ID)
		if err != nil {
			o.logger.Warn("session status refresh failed", "session", sessions[i].ID, "error", err)
			continue
		}
		if status == sessions[i].Status {
			continue
		}
		sessions[i].Status = status
		if err := o.store.UpdateSessionStatus(ctx, sessions[i].ID, status); err != nil {
			o.logger.Warn("session hint update failed", "session", sessions[i].ID, "error", err)
		}
	}
	return sessions, nil
}

func (o *Orchestrator) sessionStatus(sessionID string) (string, error) {
	alive, err := o.term.HasSession(sessionID)
	if err != nil {
		return "", err
	}
	if !alive {
		return store.SessionTerminated, nil
	}
	attached, err := o.term.SessionAttached(sessionID)
	if err != nil {
		return "", err
	}
	if !attached {
		return store.SessionDetached, nil
	}
	return store.SessionActive, nil
}

// WatchExisting registers the log watcher for every stored worker, so
// a fresh process resumes idle-triggered mailbox delivery for workers
// created by earlier invocations. Workers whose provider cannot be
// rehydrated are skipped. Returns how many workers are being watched.
func (o *Orchestrator) WatchExisting(ctx context.Context) (int, error) {
	if o.watcher == nil {
		return 0, nil
	}
	sessions, err := o.store.ListSessions(ctx)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, session := range sessions {
		workers, err := o.store.ListWorkers(ctx, session.ID)
		if err != nil {
			return count, err
		}
		for _, worker := range workers {
			p, _, err := o.providerFor(ctx, worker.ID)
			if err != nil {
				o.logger.Warn("watch skipped worker", "worker", worker.ID, "error", err)
				continue
			}
			if err := o.watcher.Register(worker.ID, p, o.cfg.WorkerLogPath(worker.ID)); err != nil {
				o.logger.Warn("watch register failed", "worker", worker.ID, "error", err)
				continue
			}
			count++
		}
	}
	return count, nil
}

// ListWorkers returns a session's workers with live status refreshed
// through each worker's provider. Unreachable workers keep their
// stored hint.
func (o *Orchestrator) ListWorkers(ctx context.Context, sessionID string) ([]store.Worker, error) {
	workers, err := o.store.ListWorkers(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	for i := range workers {
		status, err := o.WorkerStatus(ctx, workers[i].ID)
		if err != nil {
			continue
		}
		workers[i].Status = string(status)
	}
	return workers, nil
}
