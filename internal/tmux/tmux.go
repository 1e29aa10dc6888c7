// Package tmux wraps the tmux binary for session, window, and pane
// operations. Workers run inside tmux windows; targets are either a
// session name or "session:window".
package tmux

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/cao-dev/cao/internal/util"
)

// Sentinel errors mapped from tmux stderr output.
var (
	ErrNoServer        = errors.New("tmux server not running")
	ErrSessionExists   = errors.New("session already exists")
	ErrSessionNotFound = errors.New("session not found")
	ErrWindowNotFound  = errors.New("window not found")
)

// Tmux executes tmux commands against the default server socket.
type Tmux struct {
	bin string
}

// NewTmux returns a Tmux using the tmux binary on PATH.
func NewTmux() *Tmux {
	return &Tmux{bin: "tmux"}
}

// run executes a tmux command and returns stdout.
func (t *Tmux) run(args ...string) (string, error) {
	cmd := exec.Command(t.bin, args...)
	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", t.wrapError(err, strings.TrimSpace(stderr.String()), args)
	}
	return stdout.String(), nil
}

// runInput executes a tmux command with data on stdin.
func (t *Tmux) runInput(input string, args ...string) error {
	cmd := exec.Command(t.bin, args...)
	cmd.Stdin = strings.NewReader(input)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return t.wrapError(err, strings.TrimSpace(stderr.String()), args)
	}
	return nil
}

// wrapError maps tmux stderr text to sentinel errors.
func (t *Tmux) wrapError(err error, stderr string, args []string) error {
	switch {
	case strings.Contains(stderr, "no server running"),
		strings.Contains(stderr, "error connecting to"):
		return ErrNoServer
	case strings.Contains(stderr, "duplicate session"):
		return ErrSessionExists
	case strings.Contains(stderr, "session not found"),
		strings.Contains(stderr, "can't find session"):
		return ErrSessionNotFound
	case strings.Contains(stderr, "can't find window"),
		strings.Contains(stderr, "window not found"):
		return ErrWindowNotFound
	}
	if stderr != "" {
		return fmt.Errorf("tmux %s: %s", strings.Join(args, " "), stderr)
	}
	return fmt.Errorf("tmux %s: %w", strings.Join(args, " "), err)
}

// NewSession creates a detached session whose first window is named
// windowName. env entries are exported into the session environment.
func (t *Tmux) NewSession(session, windowName, dir string, env map[string]string) error {
	args := []string{"new-session", "-d", "-s", session}
	if windowName != "" {
		args = append(args, "-n", windowName)
	}
	if dir != "" {
		args = append(args, "-c", dir)
	}
	for k, v := range env {
		args = append(args, "-e", k+"="+v)
	}
	_, err := t.run(args...)
	return err
}

// NewWindow creates a window in an existing session.
func (t *Tmux) NewWindow(session, windowName, dir string, env map[string]string) error {
	args := []string{"new-window", "-d", "-t", session, "-n", windowName}
	if dir != "" {
		args = append(args, "-c", dir)
	}
	for k, v := range env {
		args = append(args, "-e", k+"="+v)
	}
	_, err := t.run(args...)
	return err
}

// HasSession reports whether a session exists. A missing server is
// not an error: no server means no sessions.
func (t *Tmux) HasSession(session string) (bool, error) {
	_, err := t.run("has-session", "-t", "="+session)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, ErrNoServer) || errors.Is(err, ErrSessionNotFound) {
		return false, nil
	}
	// has-session exits 1 for unknown sessions on some tmux versions
	// without a recognizable message.
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return false, nil
	}
	return false, err
}

// ListSessions returns the names of all sessions. No server yields an
// empty list.
func (t *Tmux) ListSessions() ([]string, error) {
	out, err := t.run("list-sessions", "-F", "#{session_name}")
	if err != nil {
		if errors.Is(err, ErrNoServer) {
			return nil, nil
		}
		return nil, err
	}
	var sessions []string
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line != "" {
			sessions = append(sessions, line)
		}
	}
	return sessions, nil
}

// ListWindows returns the window names of a session.
func (t *Tmux) ListWindows(session string) ([]string, error) {
	out, err := t.run("list-windows", "-t", session, "-F", "#{window_name}")
	if err != nil {
		return nil, err
	}
	var windows []string
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		if line != "" {
			windows = append(windows, line)
		}
	}
	return windows, nil
}

// KillSession terminates a session and every window in it.
func (t *Tmux) KillSession(session string) error {
	_, err := t.run("kill-session", "-t", session)
	return err
}

// KillWindow terminates a single window.
func (t *Tmux) KillWindow(session, window string) error {
	_, err := t.run("kill-window", "-t", session+":"+window)
	return err
}

// SessionInfo describes a session and its window count.
type SessionInfo struct {
	Name     string
	Windows  int
	Attached bool
}

// GetSessionInfo returns name, window count, and attachment state.
func (t *Tmux) GetSessionInfo(session string) (*SessionInfo, error) {
	out, err := t.run("display-message", "-p", "-t", session,
		"#{session_name}|#{session_windows}|#{session_attached}")
	if err != nil {
		return nil, err
	}
	parts := strings.Split(strings.TrimSpace(out), "|")
	if len(parts) != 3 {
		return nil, fmt.Errorf("unexpected display-message output: %q", out)
	}
	windows, err := strconv.Atoi(parts[1])
	if err != nil {
		return nil, fmt.Errorf("parse window count: %w", err)
	}
	attached, err := strconv.Atoi(parts[2])
	if err != nil {
		return nil, fmt.Errorf("parse attached count: %w", err)
	}
	return &SessionInfo{Name: parts[0], Windows: windows, Attached: attached > 0}, nil
}

// PasteText delivers text to a pane via bracketed paste so that
// characters like "/" and "!" cannot trigger TUI hotkeys. Enter is
// sent separately.
func (t *Tmux) PasteText(target, text string) error {
	if err := t.runInput(text, "load-buffer", "-"); err != nil {
		return err
	}
	// -p requests bracketed paste, -d deletes the buffer after use.
	_, err := t.run("paste-buffer", "-d", "-p", "-t", target)
	return err
}

// SendKeysLiteral types text without interpreting key names and
// without a trailing Enter.
func (t *Tmux) SendKeysLiteral(target, text string) error {
	_, err := t.run("send-keys", "-t", target, "-l", text)
	return err
}

// SendKeysRaw sends a tmux key name ("Enter", "C-c", "C-d", "Escape").
func (t *Tmux) SendKeysRaw(target, key string) error {
	_, err := t.run("send-keys", "-t", target, key)
	return err
}

// SendCommand types a shell command literally and submits it.
func (t *Tmux) SendCommand(target, command string) error {
	if err := t.SendKeysLiteral(target, command); err != nil {
		return err
	}
	return t.SendKeysRaw(target, "Enter")
}

// A window can lag behind new-window for a beat; captures retry
// through that instead of surfacing a phantom miss.
var captureRetry = util.RetryConfig{
	MaxAttempts:  3,
	InitialDelay: 50 * time.Millisecond,
	IsRetryable: func(err error) bool {
		return errors.Is(err, ErrWindowNotFound) || util.IsTransient(err)
	},
}

// CapturePane captures the last lines of a pane including scrollback,
// preserving escape sequences. Providers that match on colors need
// the raw bytes.
func (t *Tmux) CapturePane(target string, lines int) (string, error) {
	return util.Retry(context.Background(), captureRetry, func() (string, error) {
		return t.run("capture-pane", "-t", target, "-e", "-p", "-S", "-"+strconv.Itoa(lines))
	})
}

// CapturePaneAll captures the full scrollback of a pane.
func (t *Tmux) CapturePaneAll(target string) (string, error) {
	return util.Retry(context.Background(), captureRetry, func() (string, error) {
		return t.run("capture-pane", "-t", target, "-e", "-p", "-S", "-")
	})
}

// PipePane appends all new pane output to file.
func (t *Tmux) PipePane(target, file string) error {
	_, err := t.run("pipe-pane", "-t", target, "cat >> "+shellQuote(file))
	return err
}

// StopPipePane disconnects a previously attached pipe.
func (t *Tmux) StopPipePane(target string) error {
	_, err := t.run("pipe-pane", "-t", target)
	return err
}

func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
