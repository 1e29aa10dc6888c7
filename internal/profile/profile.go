// Package profile loads agent profiles: named TOML files carrying a
// system prompt and optional MCP server configuration that providers
// inject into their launch commands.
package profile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// ErrNotFound indicates the named profile file does not exist.
var ErrNotFound = errors.New("agent profile not found")

// MCPServer describes one MCP server an agent should launch.
type MCPServer struct {
	Command string            `toml:"command"`
	Args    []string          `toml:"args"`
	Env     map[string]string `toml:"env"`
	// EnvVars lists parent-environment variable names to forward to the
	// server process, for CLIs that do not inherit the shell environment.
	EnvVars []string `toml:"env-vars"`
	// TimeoutSec overrides the CLI's tool-call timeout for this server.
	TimeoutSec float64 `toml:"timeout-sec"`
}

// Profile is a named agent configuration.
type Profile struct {
	Name         string               `toml:"-"`
	Description  string               `toml:"description"`
	SystemPrompt string               `toml:"system-prompt"`
	MCPServers   map[string]MCPServer `toml:"mcp-servers"`
}

// Store loads profiles from a directory of <name>.toml files.
type Store struct {
	dir string
}

// NewStore returns a Store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: dir}
}

// Load reads and parses the named profile.
func (s *Store) Load(name string) (*Profile, error) {
	if name == "" {
		return nil, fmt.Errorf("profile name is empty")
	}
	if strings.ContainsAny(name, "/\\") {
		return nil, fmt.Errorf("invalid profile name %q", name)
	}
	path := filepath.Join(s.dir, name+".toml")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("profile %q: %w", name, ErrNotFound)
		}
		return nil, fmt.Errorf("read profile %q: %w", name, err)
	}
	var p Profile
	if err := toml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("parse profile %q: %w", name, err)
	}
	p.Name = name
	return &p, nil
}

// List returns the names of all profiles in the store.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read profile dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".toml") {
			continue
		}
		names = append(names, strings.TrimSuffix(e.Name(), ".toml"))
	}
	return names, nil
}
