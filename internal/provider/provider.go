// Package provider adapts CLI coding agents running inside tmux panes.
// A provider knows how to launch its agent, infer execution state from
// the rendered terminal buffer, and extract the agent's last response.
//
// Detection is screen scraping: each variant carries regular
// expressions for its agent's prompt, spinner, response marker, and
// permission dialogs. Matching happens against ANSI-stripped text
// except where a variant's prompt is only identifiable by its color
// codes (q_cli).
package provider

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/cao-dev/cao/internal/profile"
)

// Type identifies a supported CLI agent. The set is closed: adding an
// agent means adding a variant to this package.
type Type string

const (
	ClaudeCode Type = "claude_code"
	Codex      Type = "codex"
	GeminiCLI  Type = "gemini_cli"
	KimiCLI    Type = "kimi_cli"
	KiroCLI    Type = "kiro_cli"
	QCLI       Type = "q_cli"
)

// Types lists all supported agent types.
func Types() []Type {
	return []Type{ClaudeCode, Codex, GeminiCLI, KimiCLI, KiroCLI, QCLI}
}

// ParseType validates an agent type string.
func ParseType(s string) (Type, error) {
	t := Type(s)
	switch t {
	case ClaudeCode, Codex, GeminiCLI, KimiCLI, KiroCLI, QCLI:
		return t, nil
	}
	return "", fmt.Errorf("unknown agent type %q", s)
}

// Status is the inferred execution state of an agent.
type Status string

const (
	StatusIdle       Status = "idle"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusWaiting    Status = "waiting_user_answer"
	StatusError      Status = "error"
)

// Extraction and initialization failures.
var (
	ErrNoResponse         = errors.New("no response marker found")
	ErrIncompleteResponse = errors.New("response incomplete: no prompt after response")
	ErrEmptyResponse      = errors.New("empty response")
	ErrInitTimeout        = errors.New("agent initialization timed out")
	ErrShellTimeout       = errors.New("shell initialization timed out")
	ErrBadProfile         = errors.New("invalid agent profile")
)

// historyLines is the default scrollback depth for status captures.
const historyLines = 200

// Pane is the terminal surface a provider drives. *tmux.Pane satisfies
// it; tests substitute scripted fakes.
type Pane interface {
	Capture(lines int) (string, error)
	CaptureAll() (string, error)
	SendCommand(command string) error
	SendKey(key string) error
}

// ExitCommand is how an agent is asked to quit. Exactly one field is
// set: Text is typed and submitted, Key is a raw tmux key (no Enter).
type ExitCommand struct {
	Text string
	Key  string
}

// Config carries per-worker context into a provider.
type Config struct {
	WorkerID    string
	ProfileName string
	// Profile is the loaded profile content, nil when ProfileName is
	// empty. Variants that only need the name (kiro_cli, q_cli) ignore
	// the content.
	Profile *profile.Profile
	// WorkDir is the pane's working directory, used by variants that
	// drop context files there (gemini_cli).
	WorkDir string
	// HomeDir overrides the user home for settings files. Empty means
	// os.UserHomeDir.
	HomeDir string
	// ExtraArgs are appended to the agent launch command verbatim.
	ExtraArgs []string
}

// Provider drives one CLI agent in one pane.
type Provider interface {
	Type() Type

	// Initialize launches the agent in the pane and blocks until it is
	// ready for input or ctx/deadline expires.
	Initialize(ctx context.Context) error

	// Status infers the agent's state from the current pane contents.
	Status(ctx context.Context) (Status, error)

	// ExtractLastMessage pulls the agent's final response out of a
	// captured buffer.
	ExtractLastMessage(buffer string) (string, error)

	// IdleLogPattern is a cheap pattern the inbox watcher tests against
	// the tail of a pipe-pane log before paying for a full Status call.
	IdleLogPattern() *regexp.Regexp

	// ExitCommand is how to ask the agent to quit.
	ExitCommand() ExitCommand

	// PasteEnterCount is how many Enter presses submit a bracketed
	// paste in this agent's TUI.
	PasteEnterCount() int

	// MarkInputReceived tells the provider that input was delivered to
	// the pane by the orchestrator. Most variants ignore it.
	MarkInputReceived()

	// Cleanup releases provider-owned resources. Idempotent.
	Cleanup()
}

// New constructs the variant for typ. Variants that require a profile
// name reject an empty one here, before anything touches the pane.
func New(typ Type, pane Pane, cfg Config) (Provider, error) {
	switch typ {
	case ClaudeCode:
		return newClaudeCode(pane, cfg), nil
	case Codex:
		return newCodex(pane, cfg), nil
	case GeminiCLI:
		return newGeminiCLI(pane, cfg), nil
	case KimiCLI:
		return newKimiCLI(pane, cfg), nil
	case KiroCLI:
		if cfg.ProfileName == "" {
			return nil, fmt.Errorf("kiro_cli: %w: profile name required", ErrBadProfile)
		}
		return newKiroCLI(pane, cfg), nil
	case QCLI:
		if cfg.ProfileName == "" {
			return nil, fmt.Errorf("q_cli: %w: profile name required", ErrBadProfile)
		}
		return newQCLI(pane, cfg), nil
	}
	return nil, fmt.Errorf("unknown agent type %q", typ)
}
