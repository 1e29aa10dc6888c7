package provider

import (
	"context"
	"strings"
	"time"
)

// Polling defaults mirroring the orchestration flow: shell readiness
// is checked twice a second, agent status once a second.
const (
	DefaultPollInterval = time.Second
	shellPollInterval   = 500 * time.Millisecond
	shellReadyTimeout   = 10 * time.Second
)

// WaitStatus polls p until its status matches one of targets. Returns
// true on match, false when timeout elapses without one. Status errors
// and context cancellation are propagated.
func WaitStatus(ctx context.Context, p Provider, targets []Status, timeout, interval time.Duration) (bool, error) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		status, err := p.Status(ctx)
		if err != nil {
			return false, err
		}
		for _, target := range targets {
			if status == target {
				return true, nil
			}
		}
		if time.Now().After(deadline) {
			return false, nil
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-ticker.C:
		}
	}
}

// waitForShell blocks until the pane shows a stable shell prompt: two
// consecutive identical non-empty captures. Fresh tmux windows need
// this before a launch command can be typed.
func waitForShell(ctx context.Context, pane Pane, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	var previous string
	first := true

	for time.Now().Before(deadline) {
		output, err := pane.Capture(historyLines)
		if err == nil && strings.TrimSpace(output) != "" && !first && output == previous {
			return nil
		}
		previous = output
		first = false

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(shellPollInterval):
		}
	}
	return ErrShellTimeout
}
