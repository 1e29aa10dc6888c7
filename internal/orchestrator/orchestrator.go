// Package orchestrator manages sessions and workers: tmux lifecycle,
// persisted records, provider binding, and input/output routing. It is
// the only layer that touches tmux, the store, and the providers
// together; commands above it are thin consumers.
package orchestrator

import (
	"log/slog"
	"os"
	"time"

	"github.com/cao-dev/cao/internal/config"
	"github.com/cao-dev/cao/internal/profile"
	"github.com/cao-dev/cao/internal/provider"
	"github.com/cao-dev/cao/internal/store"
	"github.com/cao-dev/cao/internal/tmux"
)

// Pane is the terminal surface of one worker window.
type Pane interface {
	provider.Pane
	PasteText(text string) error
	Target() string
}

// Terminal is the tmux surface the orchestrator drives. *tmux.Tmux is
// adapted by NewTerminal; tests substitute fakes.
type Terminal interface {
	NewSession(session, windowName, dir string, env map[string]string) error
	NewWindow(session, windowName, dir string, env map[string]string) error
	KillSession(session string) error
	KillWindow(session, window string) error
	HasSession(session string) (bool, error)
	SessionAttached(session string) (bool, error)
	PipePane(target, file string) error
	StopPipePane(target string) error
	Pane(session, window string) Pane
}

type tmuxTerminal struct {
	t *tmux.Tmux
}

// NewTerminal adapts the tmux binary wrapper to the Terminal interface.
func NewTerminal(t *tmux.Tmux) Terminal {
	return tmuxTerminal{t: t}
}

func (tt tmuxTerminal) NewSession(session, windowName, dir string, env map[string]string) error {
	return tt.t.NewSession(session, windowName, dir, env)
}

func (tt tmuxTerminal) NewWindow(session, windowName, dir string, env map[string]string) error {
	return tt.t.NewWindow(session, windowName, dir, env)
}

func (tt tmuxTerminal) KillSession(session string) error { return tt.t.KillSession(session) }

func (tt tmuxTerminal) KillWindow(session, window string) error {
	return tt.t.KillWindow(session, window)
}

func (tt tmuxTerminal) HasSession(session string) (bool, error) { return tt.t.HasSession(session) }

func (tt tmuxTerminal) SessionAttached(session string) (bool, error) {
	info, err := tt.t.GetSessionInfo(session)
	if err != nil {
		return false, err
	}
	return info.Attached, nil
}

func (tt tmuxTerminal) PipePane(target, file string) error { return tt.t.PipePane(target, file) }

func (tt tmuxTerminal) StopPipePane(target string) error { return tt.t.StopPipePane(target) }

func (tt tmuxTerminal) Pane(session, window string) Pane { return tt.t.NewPane(session, window) }

// LogWatcher is notified when worker pipe-pane logs start and stop
// existing. The inbox watcher implements it.
type LogWatcher interface {
	Register(workerID string, p provider.Provider, logPath string) error
	Unregister(workerID string)
}

// WorkerConfig describes the agent to launch in a new worker.
type WorkerConfig struct {
	AgentType provider.Type
	// Profile names a TOML profile; required for kiro_cli and q_cli.
	Profile string
	// WorkDir is the window's working directory; empty means the
	// orchestrator process's cwd.
	WorkDir string
	// ParentID records the delegating worker for handoff/assign.
	ParentID  string
	ExtraArgs []string
}

// Orchestrator coordinates the store, tmux, and providers. All state
// is explicit; construct one in main and pass it down.
type Orchestrator struct {
	store    *store.Store
	term     Terminal
	registry *provider.Registry
	profiles *profile.Store
	cfg      config.Config
	logger   *slog.Logger
	watcher  LogWatcher

	// Tuned down in tests.
	settleDelay  time.Duration
	pollInterval time.Duration
}

// New wires an orchestrator. logger must not be nil.
func New(st *store.Store, term Terminal, registry *provider.Registry, profiles *profile.Store, cfg config.Config, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		store:        st,
		term:         term,
		registry:     registry,
		profiles:     profiles,
		cfg:          cfg,
		logger:       logger,
		settleDelay:  2 * time.Second,
		pollInterval: provider.DefaultPollInterval,
	}
}

// SetWatcher attaches the inbox log watcher. Called after construction
// because the watcher itself needs the orchestrator for delivery.
func (o *Orchestrator) SetWatcher(w LogWatcher) { o.watcher = w }

// loadProfile resolves a worker's profile content, nil when unnamed.
func (o *Orchestrator) loadProfile(name string) (*profile.Profile, error) {
	if name == "" {
		return nil, nil
	}
	return o.profiles.Load(name)
}

func (o *Orchestrator) providerConfig(workerID string, wc WorkerConfig) (provider.Config, error) {
	p, err := o.loadProfile(wc.Profile)
	if err != nil {
		return provider.Config{}, err
	}
	return provider.Config{
		WorkerID:    workerID,
		ProfileName: wc.Profile,
		Profile:     p,
		WorkDir:     wc.WorkDir,
		ExtraArgs:   wc.ExtraArgs,
	}, nil
}

// ensureLogsDir creates the pipe-pane log directory on first use.
func (o *Orchestrator) ensureLogsDir() error {
	return os.MkdirAll(o.cfg.LogsDir(), 0o755)
}
