package inbox

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/cao-dev/cao/internal/provider"
	"github.com/cao-dev/cao/internal/store"
)

var testIdlePattern = regexp.MustCompile(`(?m)^\s*>\s`)

type stubProvider struct{}

func (stubProvider) Type() provider.Type { return provider.ClaudeCode }

func (stubProvider) Initialize(ctx context.Context) error { return nil }

func (stubProvider) Status(ctx context.Context) (provider.Status, error) {
	return provider.StatusIdle, nil
}

func (stubProvider) ExtractLastMessage(buffer string) (string, error) { return buffer, nil }

func (stubProvider) IdleLogPattern() *regexp.Regexp { return testIdlePattern }

func (stubProvider) ExitCommand() provider.ExitCommand { return provider.ExitCommand{} }

func (stubProvider) PasteEnterCount() int { return 1 }

func (stubProvider) MarkInputReceived() {}

func (stubProvider) Cleanup() {}

func newTestWatcher(t *testing.T, svc *Service) *Watcher {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	w, err := NewWatcher(svc, logger)
	if err != nil {
		t.Fatalf("NewWatcher: %v", err)
	}
	t.Cleanup(func() { w.Close() })
	return w
}

func appendLine(t *testing.T, path, line string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	defer f.Close()
	if _, err := f.WriteString(line); err != nil {
		t.Fatalf("append log: %v", err)
	}
}

func waitDelivered(t *testing.T, st *store.Store, receiverID string, want int) bool {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		got, err := st.ListMessages(context.Background(), receiverID, store.MessageDelivered)
		if err != nil {
			t.Fatalf("ListMessages: %v", err)
		}
		if len(got) >= want {
			return true
		}
		time.Sleep(20 * time.Millisecond)
	}
	return false
}

func TestWatcherDeliversOnIdleWrite(t *testing.T) {
	d := &fakeDeliverer{status: provider.StatusProcessing}
	svc, st := newTestService(t, d)
	w := newTestWatcher(t, svc)
	ctx := context.Background()

	if _, err := svc.Enqueue(ctx, "w1", "w2", "queued while busy"); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	logPath := filepath.Join(t.TempDir(), "w2.log")
	if err := w.Register("w2", stubProvider{}, logPath); err != nil {
		t.Fatalf("Register: %v", err)
	}

	// Spinner output does not match the idle pattern; nothing delivers.
	appendLine(t, logPath, "✶ Thinking…\n")
	time.Sleep(100 * time.Millisecond)
	if sent := d.sentCopy(); len(sent) != 0 {
		t.Fatalf("delivered on non-idle write: %v", sent)
	}

	// Prompt redraw flips the pre-check; the agent now reads as idle.
	d.setStatus(provider.StatusIdle)
	appendLine(t, logPath, "> \n")
	if !waitDelivered(t, st, "w2", 1) {
		t.Fatal("message never delivered after idle write")
	}
	sent := d.sentCopy()
	if len(sent) != 1 || sent[0] != "[message from w1] queued while busy" {
		t.Errorf("sent = %v", sent)
	}
}

func TestWatcherUnregisterStopsDelivery(t *testing.T) {
	d := &fakeDeliverer{status: provider.StatusProcessing}
	svc, st := newTestService(t, d)
	w := newTestWatcher(t, svc)
	ctx := context.Background()

	if _, err := svc.Enqueue(ctx, "w1", "w2", "undeliverable"); err != nil {
		t.Fatalf("Enqueue: %v", err)
	}

	logPath := filepath.Join(t.TempDir(), "w2.log")
	if err := w.Register("w2", stubProvider{}, logPath); err != nil {
		t.Fatalf("Register: %v", err)
	}
	w.Unregister("w2")

	d.setStatus(provider.StatusIdle)
	appendLine(t, logPath, "> \n")
	time.Sleep(150 * time.Millisecond)
	if sent := d.sentCopy(); len(sent) != 0 {
		t.Errorf("delivered after unregister: %v", sent)
	}
	pending, err := st.ListMessages(ctx, "w2", store.MessagePending)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(pending) != 1 {
		t.Errorf("pending = %v", pending)
	}
}

func TestWatcherRegisterCreatesLog(t *testing.T) {
	d := &fakeDeliverer{status: provider.StatusIdle}
	svc, _ := newTestService(t, d)
	w := newTestWatcher(t, svc)

	logPath := filepath.Join(t.TempDir(), "missing.log")
	if err := w.Register("w9", stubProvider{}, logPath); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if _, err := os.Stat(logPath); err != nil {
		t.Errorf("log file not created: %v", err)
	}
}

func TestTailMatches(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "tail.log")
	content := "\x1b[38;5;10mstreaming output\x1b[0m\n> \n"
	if err := os.WriteFile(logPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	ok, err := tailMatches(logPath, testIdlePattern)
	if err != nil {
		t.Fatalf("tailMatches: %v", err)
	}
	if !ok {
		t.Error("idle prompt in tail not matched")
	}

	ok, err = tailMatches(logPath, regexp.MustCompile(`never-appears`))
	if err != nil {
		t.Fatalf("tailMatches: %v", err)
	}
	if ok {
		t.Error("matched a pattern that is not in the log")
	}
	if _, err := tailMatches(filepath.Join(dir, "absent.log"), testIdlePattern); err == nil {
		t.Error("expected error for a missing log")
	}
}
