package orchestrator

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cao-dev/cao/internal/config"
	"github.com/cao-dev/cao/internal/profile"
	"github.com/cao-dev/cao/internal/provider"
	"github.com/cao-dev/cao/internal/store"
)

const (
	claudeIdleBuffer = "Welcome to Claude Code\n\n> "
	claudeDoneBuffer = "> hi\n\n⏺ done and dusted\n\n> "
	claudeBusyBuffer = "✶ Thinking… (esc to interrupt)"
)

func newTestOrchestrator(t *testing.T, ft *fakeTerm) (*Orchestrator, *store.Store) {
	t.Helper()
	root := t.TempDir()
	st, err := store.Open(filepath.Join(root, "cao.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	cfg := config.Config{
		Root: root,
		Settings: config.Settings{
			DefaultAgent:      "claude_code",
			HandoffTimeoutSec: 300,
		},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	o := New(st, ft, provider.NewRegistry(), profile.NewStore(filepath.Join(root, "profiles")), cfg, logger)
	o.settleDelay = 10 * time.Millisecond
	o.pollInterval = 20 * time.Millisecond
	return o, st
}

func TestCreateSessionPersistsRecords(t *testing.T) {
	ft := newFakeTerm(claudeIdleBuffer)
	o, st := newTestOrchestrator(t, ft)
	ctx := context.Background()

	session, worker, err := o.CreateSession(ctx, "alpha", WorkerConfig{AgentType: provider.ClaudeCode})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if !strings.HasPrefix(session.ID, "cao-") {
		t.Errorf("session id = %q, want cao- prefix", session.ID)
	}
	if worker.SessionID != session.ID {
		t.Errorf("worker session = %q, want %q", worker.SessionID, session.ID)
	}
	if worker.Status != string(provider.StatusIdle) {
		t.Errorf("worker status = %q, want idle", worker.Status)
	}

	if _, err := st.GetSessionByName(ctx, "alpha"); err != nil {
		t.Errorf("session record missing: %v", err)
	}
	stored, err := st.GetWorker(ctx, worker.ID)
	if err != nil {
		t.Fatalf("worker record missing: %v", err)
	}
	if stored.AgentType != "claude_code" {
		t.Errorf("stored agent type = %q", stored.AgentType)
	}

	if len(ft.sessions) != 1 || ft.sessions[0] != session.ID {
		t.Errorf("tmux sessions = %v", ft.sessions)
	}
	if len(ft.piped) != 1 {
		t.Errorf("pipe-pane not started: %v", ft.piped)
	}
	pane := ft.onlyPane()
	if pane == nil {
		t.Fatal("expected exactly one pane")
	}
	if len(pane.commands) == 0 || !strings.HasPrefix(pane.commands[0], "claude") {
		t.Errorf("agent command = %v", pane.commands)
	}
}

func TestCreateSessionDuplicateName(t *testing.T) {
	ft := newFakeTerm(claudeIdleBuffer)
	o, _ := newTestOrchestrator(t, ft)
	ctx := context.Background()

	if _, _, err := o.CreateSession(ctx, "alpha", WorkerConfig{AgentType: provider.ClaudeCode}); err != nil {
		t.Fatalf("first CreateSession: %v", err)
	}
	_, _, err := o.CreateSession(ctx, "alpha", WorkerConfig{AgentType: provider.ClaudeCode})
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("err = %v, want ErrConflict", err)
	}
	if len(ft.sessions) != 1 {
		t.Errorf("duplicate name still created a tmux session: %v", ft.sessions)
	}
}

func TestCreateSessionStoreErrorAborts(t *testing.T) {
	ft := newFakeTerm(claudeIdleBuffer)
	o, st := newTestOrchestrator(t, ft)

	// A closed database is a store failure, not a free name.
	st.Close()
	_, _, err := o.CreateSession(context.Background(), "alpha", WorkerConfig{AgentType: provider.ClaudeCode})
	if err == nil {
		t.Fatal("expected error from a failing store")
	}
	if errors.Is(err, store.ErrConflict) {
		t.Errorf("err = %v, want the store failure, not ErrConflict", err)
	}
	if len(ft.sessions) != 0 {
		t.Errorf("tmux session created despite store failure: %v", ft.sessions)
	}
}

func TestCreateWorkerUnknownSession(t *testing.T) {
	ft := newFakeTerm(claudeIdleBuffer)
	o, _ := newTestOrchestrator(t, ft)

	_, err := o.CreateWorker(context.Background(), "no-such", WorkerConfig{AgentType: provider.ClaudeCode})
	if !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
	if len(ft.windows) != 0 {
		t.Errorf("window created for unknown session: %v", ft.windows)
	}
}

func TestCreateWorkerInitFailureKeepsRecord(t *testing.T) {
	ft := newFakeTerm(claudeIdleBuffer)
	o, st := newTestOrchestrator(t, ft)
	ctx := context.Background()

	session, _, err := o.CreateSession(ctx, "alpha", WorkerConfig{AgentType: provider.ClaudeCode})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	// kiro_cli refuses to launch without a profile.
	worker, err := o.CreateWorker(ctx, session.ID, WorkerConfig{AgentType: provider.KiroCLI})
	if !errors.Is(err, provider.ErrBadProfile) {
		t.Fatalf("err = %v, want ErrBadProfile", err)
	}
	if worker.ID == "" {
		t.Fatal("expected the failed worker record to be returned")
	}
	stored, err := st.GetWorker(ctx, worker.ID)
	if err != nil {
		t.Fatalf("failed worker record missing: %v", err)
	}
	if stored.Status != workerStatusError {
		t.Errorf("stored status = %q, want %q", stored.Status, workerStatusError)
	}
	if _, err := st.GetSession(ctx, session.ID); err != nil {
		t.Errorf("session should survive a worker init failure: %v", err)
	}
}

func TestSendInputPasteAndEnter(t *testing.T) {
	ft := newFakeTerm(claudeIdleBuffer)
	o, _ := newTestOrchestrator(t, ft)
	ctx := context.Background()

	_, worker, err := o.CreateSession(ctx, "alpha", WorkerConfig{AgentType: provider.ClaudeCode})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	pane := ft.onlyPane()
	pane.reset()

	if err := o.SendInput(ctx, worker.ID, "hello there"); err != nil {
		t.Fatalf("SendInput: %v", err)
	}
	if len(pane.pasted) != 1 || pane.pasted[0] != "hello there" {
		t.Errorf("pasted = %v", pane.pasted)
	}
	// Claude's Ink editor needs the second Enter to submit.
	if len(pane.keys) != 2 || pane.keys[0] != "Enter" || pane.keys[1] != "Enter" {
		t.Errorf("keys = %v, want two Enters", pane.keys)
	}
}

func TestGetOutputModes(t *testing.T) {
	ft := newFakeTerm(claudeIdleBuffer)
	o, _ := newTestOrchestrator(t, ft)
	ctx := context.Background()

	_, worker, err := o.CreateSession(ctx, "alpha", WorkerConfig{AgentType: provider.ClaudeCode})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	ft.onlyPane().setBuffer(claudeDoneBuffer)

	full, err := o.GetOutput(ctx, worker.ID, OutputFull)
	if err != nil {
		t.Fatalf("GetOutput full: %v", err)
	}
	if full != claudeDoneBuffer {
		t.Errorf("full output = %q", full)
	}

	last, err := o.GetOutput(ctx, worker.ID, OutputLast)
	if err != nil {
		t.Fatalf("GetOutput last: %v", err)
	}
	if last != "done and dusted" {
		t.Errorf("last output = %q", last)
	}

	if _, err := o.GetOutput(ctx, worker.ID, "sideways"); err == nil {
		t.Error("expected error for unknown mode")
	}
}

func TestWorkerStatusPersistsHint(t *testing.T) {
	ft := newFakeTerm(claudeIdleBuffer)
	o, st := newTestOrchestrator(t, ft)
	ctx := context.Background()

	_, worker, err := o.CreateSession(ctx, "alpha", WorkerConfig{AgentType: provider.ClaudeCode})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	ft.onlyPane().setBuffer(claudeBusyBuffer)

	status, err := o.WorkerStatus(ctx, worker.ID)
	if err != nil {
		t.Fatalf("WorkerStatus: %v", err)
	}
	if status != provider.StatusProcessing {
		t.Errorf("status = %q, want processing", status)
	}
	stored, err := st.GetWorker(ctx, worker.ID)
	if err != nil {
		t.Fatalf("GetWorker: %v", err)
	}
	if stored.Status != string(provider.StatusProcessing) {
		t.Errorf("stored hint = %q, want processing", stored.Status)
	}
}

func TestDeleteWorker(t *testing.T) {
	ft := newFakeTerm(claudeIdleBuffer)
	o, st := newTestOrchestrator(t, ft)
	ctx := context.Background()

	_, worker, err := o.CreateSession(ctx, "alpha", WorkerConfig{AgentType: provider.ClaudeCode})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	if err := o.DeleteWorker(ctx, worker.ID); err != nil {
		t.Fatalf("DeleteWorker: %v", err)
	}
	if _, err := st.GetWorker(ctx, worker.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("worker record should be gone, got %v", err)
	}
	if len(ft.killedWindows) != 1 {
		t.Errorf("killed windows = %v", ft.killedWindows)
	}
	if len(ft.stoppedPipes) != 1 {
		t.Errorf("stopped pipes = %v", ft.stoppedPipes)
	}
	if o.registry.Len() != 0 {
		t.Errorf("provider still registered after delete")
	}
}

func TestListSessionsRefreshesStatus(t *testing.T) {
	ft := newFakeTerm(claudeIdleBuffer)
	o, st := newTestOrchestrator(t, ft)
	ctx := context.Background()

	session, _, err := o.CreateSession(ctx, "alpha", WorkerConfig{AgentType: provider.ClaudeCode})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	// Sessions start detached; nobody has attached a client yet.
	sessions, err := o.ListSessions(ctx)
	if err != nil {
		t.Fatalf("ListSessions: %v", err)
	}
	if len(sessions) != 1 || sessions[0].Status != store.SessionDetached {
		t.Errorf("sessions = %+v, want detached", sessions)
	}

	ft.setAttached(session.ID, true)
	sessions, err = o.ListSessions(ctx)
	if err != nil {
		t.Fatalf("ListSessions attached: %v", err)
	}
	if sessions[0].Status != store.SessionActive {
		t.Errorf("status = %q, want active", sessions[0].Status)
	}

	// The tmux session dying out from under us shows as terminated and
	// the hint is persisted.
	_ = ft.KillSession(session.ID)
	sessions, err = o.ListSessions(ctx)
	if err != nil {
		t.Fatalf("ListSessions terminated: %v", err)
	}
	if sessions[0].Status != store.SessionTerminated {
		t.Errorf("status = %q, want terminated", sessions[0].Status)
	}
	stored, err := st.GetSession(ctx, session.ID)
	if err != nil {
		t.Fatalf("GetSession: %v", err)
	}
	if stored.Status != store.SessionTerminated {
		t.Errorf("stored hint = %q, want terminated", stored.Status)
	}
}

func TestWatchExistingRegistersStoredWorkers(t *testing.T) {
	ft := newFakeTerm(claudeIdleBuffer)
	o, _ := newTestOrchestrator(t, ft)
	ctx := context.Background()

	session, first, err := o.CreateSession(ctx, "alpha", WorkerConfig{AgentType: provider.ClaudeCode})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	second, err := o.CreateWorker(ctx, session.ID, WorkerConfig{AgentType: provider.ClaudeCode})
	if err != nil {
		t.Fatalf("CreateWorker: %v", err)
	}

	// A fresh process starts with an empty registry and an empty
	// watcher; providers rehydrate from the stored records.
	o.registry = provider.NewRegistry()
	fw := &fakeWatcher{}
	o.SetWatcher(fw)

	n, err := o.WatchExisting(ctx)
	if err != nil {
		t.Fatalf("WatchExisting: %v", err)
	}
	if n != 2 {
		t.Errorf("watching %d workers, want 2", n)
	}
	ids := fw.registeredIDs()
	if !ids[first.ID] || !ids[second.ID] {
		t.Errorf("registered = %v, want both workers", fw.registered)
	}
}

func TestDeleteSessionCascades(t *testing.T) {
	ft := newFakeTerm(claudeIdleBuffer)
	o, st := newTestOrchestrator(t, ft)
	ctx := context.Background()

	session, _, err := o.CreateSession(ctx, "alpha", WorkerConfig{AgentType: provider.ClaudeCode})
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if _, err := o.CreateWorker(ctx, session.ID, WorkerConfig{AgentType: provider.ClaudeCode}); err != nil {
		t.Fatalf("CreateWorker: %v", err)
	}

	if err := o.DeleteSession(ctx, session.ID); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	if _, err := st.GetSession(ctx, session.ID); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("session record should be gone, got %v", err)
	}
	workers, err := st.ListWorkers(ctx, session.ID)
	if err != nil {
		t.Fatalf("ListWorkers: %v", err)
	}
	if len(workers) != 0 {
		t.Errorf("worker records remain: %v", workers)
	}
	if len(ft.killedWindows) != 2 {
		t.Errorf("killed windows = %v", ft.killedWindows)
	}
	if len(ft.killedSessions) != 1 || ft.killedSessions[0] != session.ID {
		t.Errorf("killed sessions = %v", ft.killedSessions)
	}
}
