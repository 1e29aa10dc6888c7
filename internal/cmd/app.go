package cmd

import (
	"log/slog"
	"os"
	"sync"

	"github.com/cao-dev/cao/internal/config"
	"github.com/cao-dev/cao/internal/inbox"
	"github.com/cao-dev/cao/internal/orchestrator"
	"github.com/cao-dev/cao/internal/profile"
	"github.com/cao-dev/cao/internal/provider"
	"github.com/cao-dev/cao/internal/store"
	"github.com/cao-dev/cao/internal/tmux"
)

// app is the object graph every command runs against. Each CLI
// invocation opens its own: config, store, tmux, orchestrator, inbox.
type app struct {
	cfg     config.Config
	store   *store.Store
	orch    *orchestrator.Orchestrator
	inbox   *inbox.Service
	watcher *inbox.Watcher
	logger  *slog.Logger

	closeOnce sync.Once
}

func openApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	st, err := store.Open(cfg.DBPath())
	if err != nil {
		return nil, err
	}

	term := orchestrator.NewTerminal(tmux.NewTmux())
	registry := provider.NewRegistry()
	profiles := profile.NewStore(cfg.ProfilesDir())
	orch := orchestrator.New(st, term, registry, profiles, cfg, logger)

	svc := inbox.NewService(st, orch, logger)
	watcher, err := inbox.NewWatcher(svc, logger)
	if err != nil {
		st.Close()
		return nil, err
	}
	orch.SetWatcher(watcher)

	return &app{
		cfg:     cfg,
		store:   st,
		orch:    orch,
		inbox:   svc,
		watcher: watcher,
		logger:  logger,
	}, nil
}

// Close is safe to call twice; launch closes early before handing the
// terminal to tmux.
func (a *app) Close() {
	a.closeOnce.Do(func() {
		_ = a.watcher.Close()
		_ = a.store.Close()
	})
}
