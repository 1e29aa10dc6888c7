package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadFromDefaults(t *testing.T) {
	cfg, err := LoadFrom(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Settings.DefaultAgent != "claude_code" {
		t.Errorf("DefaultAgent = %q", cfg.Settings.DefaultAgent)
	}
	if cfg.HandoffTimeout() != 300*time.Second {
		t.Errorf("HandoffTimeout = %v", cfg.HandoffTimeout())
	}
}

func TestLoadFromSettingsFile(t *testing.T) {
	root := t.TempDir()
	settings := `default-agent = "codex"
handoff-timeout-seconds = 60
cleanup-on-timeout = true
`
	if err := os.WriteFile(filepath.Join(root, SettingsPath), []byte(settings), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(root)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Settings.DefaultAgent != "codex" {
		t.Errorf("DefaultAgent = %q", cfg.Settings.DefaultAgent)
	}
	if cfg.HandoffTimeout() != time.Minute {
		t.Errorf("HandoffTimeout = %v", cfg.HandoffTimeout())
	}
	if !cfg.Settings.CleanupOnTimeout {
		t.Error("CleanupOnTimeout not read")
	}
}

func TestLoadFromBadSettings(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, SettingsPath), []byte("default-agent = ["), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFrom(root); err == nil {
		t.Error("expected parse error")
	}
}

func TestPaths(t *testing.T) {
	cfg := Config{Root: "/state"}
	if cfg.DBPath() != "/state/cao.db" {
		t.Errorf("DBPath = %q", cfg.DBPath())
	}
	if cfg.WorkerLogPath("w1") != "/state/logs/w1.log" {
		t.Errorf("WorkerLogPath = %q", cfg.WorkerLogPath("w1"))
	}
}

func TestWorkerEnv(t *testing.T) {
	env := WorkerEnv("w1", "")
	if env[EnvTerminalID] != "w1" {
		t.Errorf("env = %v", env)
	}
	if _, ok := env[EnvParentTerminalID]; ok {
		t.Error("parent id set for root worker")
	}

	env = WorkerEnv("w2", "w1")
	if env[EnvParentTerminalID] != "w1" {
		t.Errorf("env = %v", env)
	}
}
