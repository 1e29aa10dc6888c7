// Package config resolves the cao state directory and user settings.
// Everything cao persists lives under one root: the SQLite database,
// agent profiles, and per-worker pipe-pane logs.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// SettingsPath is the user settings file, relative to the root.
const SettingsPath = "settings.toml"

// Settings are the optional user-tunable defaults from settings.toml.
type Settings struct {
	// DefaultAgent is used when a launch command names no agent type.
	DefaultAgent string `toml:"default-agent"`
	// HandoffTimeoutSec bounds how long a handoff waits for the
	// delegate to complete.
	HandoffTimeoutSec int `toml:"handoff-timeout-seconds"`
	// CleanupOnTimeout deletes a timed-out handoff worker instead of
	// keeping it for inspection.
	CleanupOnTimeout bool `toml:"cleanup-on-timeout"`
}

// Config is the resolved runtime configuration.
type Config struct {
	// Root is the state directory, $CAO_HOME or ~/.cao.
	Root     string
	Settings Settings
}

const (
	defaultAgent             = "claude_code"
	defaultHandoffTimeoutSec = 300
)

// Load resolves the state directory and reads settings.toml when
// present. A missing settings file is not an error; defaults apply.
func Load() (Config, error) {
	root := os.Getenv(EnvHome)
	if root == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return Config{}, fmt.Errorf("resolving home directory: %w", err)
		}
		root = filepath.Join(home, ".cao")
	}
	return LoadFrom(root)
}

// LoadFrom reads configuration rooted at an explicit directory.
func LoadFrom(root string) (Config, error) {
	cfg := Config{
		Root: root,
		Settings: Settings{
			DefaultAgent:      defaultAgent,
			HandoffTimeoutSec: defaultHandoffTimeoutSec,
		},
	}

	path := filepath.Join(root, SettingsPath)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg.Settings); err != nil {
		return Config{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	if cfg.Settings.DefaultAgent == "" {
		cfg.Settings.DefaultAgent = defaultAgent
	}
	if cfg.Settings.HandoffTimeoutSec <= 0 {
		cfg.Settings.HandoffTimeoutSec = defaultHandoffTimeoutSec
	}
	return cfg, nil
}

// DBPath is the SQLite database location.
func (c Config) DBPath() string {
	return filepath.Join(c.Root, "cao.db")
}

// ProfilesDir holds the agent profile TOML files.
func (c Config) ProfilesDir() string {
	return filepath.Join(c.Root, "profiles")
}

// LogsDir holds per-worker pipe-pane logs.
func (c Config) LogsDir() string {
	return filepath.Join(c.Root, "logs")
}

// WorkerLogPath is the pipe-pane log for one worker.
func (c Config) WorkerLogPath(workerID string) string {
	return filepath.Join(c.LogsDir(), workerID+".log")
}

// HandoffTimeout is the settings timeout as a duration.
func (c Config) HandoffTimeout() time.Duration {
	return time.Duration(c.Settings.HandoffTimeoutSec) * time.Second
}
