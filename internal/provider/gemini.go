package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/cao-dev/cao/internal/ansi"
)

// Gemini CLI is an Ink TUI that keeps its input box rendered at all
// times, including while the model is working. The idle placeholder
// alone therefore never proves idleness; the Braille spinner has to be
// ruled out first.
var (
	geminiIdlePrompt = regexp.MustCompile(`\*\s+Type your message`)
	geminiIdleLog    = regexp.MustCompile(`\*.*Type your message`)
	// Submitted queries render as "> query text" inside the bordered
	// input box.
	geminiQueryPrefix = regexp.MustCompile(`(?m)^\s*>\s+\S`)
	// Response lines carry a ✦ four-pointed star prefix.
	geminiResponsePrefix = regexp.MustCompile(`✦\s`)
	geminiSpinner        = regexp.MustCompile(`[⠋⠙⠹⠸⠼⠴⠦⠧⠇⠏].*\(esc to cancel`)
	geminiModelLine      = regexp.MustCompile(`Responding with\s+\S+`)
	geminiErrorLine      = regexp.MustCompile(`(?m)^(?:Error:|ERROR:|Traceback \(most recent call last\):|ConnectionError:|APIError:)`)
	geminiBoxTop         = regexp.MustCompile(`▀{10,}`)
	geminiBoxBottom      = regexp.MustCompile(`▄{10,}`)
	geminiStatusBar      = regexp.MustCompile(`(?:sandbox|no sandbox).*(?:Auto|/mod(?:e|el))`)
	geminiYOLOLine       = regexp.MustCompile(`YOLO mode`)
)

const (
	geminiIdleTailLines = 50
	geminiInitTimeout   = 120 * time.Second
	geminiWarmupMarker  = "CAO_SHELL_READY"
)

type geminiCLI struct {
	pane Pane
	cfg  Config

	// The -i flag submits the system prompt as the first user message,
	// so readiness means completed, not idle.
	usesPromptInteractive bool
	mcpServerNames        []string
	geminiMDPath          string
	geminiMDBackupPath    string
}

func newGeminiCLI(pane Pane, cfg Config) *geminiCLI {
	return &geminiCLI{pane: pane, cfg: cfg}
}

func (g *geminiCLI) Type() Type { return GeminiCLI }

func (g *geminiCLI) homeDir() (string, error) {
	if g.cfg.HomeDir != "" {
		return g.cfg.HomeDir, nil
	}
	return os.UserHomeDir()
}

// buildCommand assembles the gemini launch command. The system prompt
// goes through -i (prompt-interactive): GEMINI.md alone is weak
// project context the model shrugs off, while -i text is adopted as a
// direct instruction. GEMINI.md is still written as reinforcement.
func (g *geminiCLI) buildCommand() (string, error) {
	parts := []string{"gemini", "--yolo", "--sandbox", "false"}

	if p := g.cfg.Profile; p != nil {
		if p.SystemPrompt != "" {
			parts = append(parts, "-i", p.SystemPrompt)
			g.usesPromptInteractive = true
			if g.cfg.WorkDir != "" {
				if err := g.writeGeminiMD(p.SystemPrompt); err != nil {
					return "", err
				}
			}
		}
		if len(p.MCPServers) > 0 {
			if err := g.registerMCPServers(); err != nil {
				return "", err
			}
		}
	}
	parts = append(parts, g.cfg.ExtraArgs...)
	return joinArgs(parts), nil
}

func (g *geminiCLI) writeGeminiMD(systemPrompt string) error {
	path := filepath.Join(g.cfg.WorkDir, "GEMINI.md")
	backup := path + ".cao_backup"
	if _, err := os.Stat(path); err == nil {
		if err := os.Rename(path, backup); err != nil {
			return fmt.Errorf("back up GEMINI.md: %w", err)
		}
		g.geminiMDBackupPath = backup
	}
	if err := os.WriteFile(path, []byte(systemPrompt), 0o644); err != nil {
		return fmt.Errorf("write GEMINI.md: %w", err)
	}
	g.geminiMDPath = path
	return nil
}

type geminiMCPEntry struct {
	Command string            `json:"command"`
	Args    []string          `json:"args"`
	Env     map[string]string `json:"env"`
}

// registerMCPServers writes MCP entries straight into
// ~/.gemini/settings.json. "gemini mcp add" spawns a Node.js process
// per server (seconds each); the direct write is equivalent and
// instant.
func (g *geminiCLI) registerMCPServers() error {
	home, err := g.homeDir()
	if err != nil {
		return err
	}
	path := filepath.Join(home, ".gemini", "settings.json")

	settings := map[string]json.RawMessage{}
	if data, err := os.ReadFile(path); err == nil {
		if err := json.Unmarshal(data, &settings); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	} else if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	servers := map[string]geminiMCPEntry{}
	if raw, ok := settings["mcpServers"]; ok {
		if err := json.Unmarshal(raw, &servers); err != nil {
			return fmt.Errorf("parse mcpServers in %s: %w", path, err)
		}
	}

	for name, srv := range g.cfg.Profile.MCPServers {
		env := map[string]string{}
		for k, v := range srv.Env {
			env[k] = v
		}
		env["CAO_TERMINAL_ID"] = g.cfg.WorkerID
		args := srv.Args
		if args == nil {
			args = []string{}
		}
		servers[name] = geminiMCPEntry{Command: srv.Command, Args: args, Env: env}
		g.mcpServerNames = append(g.mcpServerNames, name)
	}

	raw, err := json.Marshal(servers)
	if err != nil {
		return err
	}
	settings["mcpServers"] = raw
	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func (g *geminiCLI) unregisterMCPServers() {
	if len(g.mcpServerNames) == 0 {
		return
	}
	home, err := g.homeDir()
	if err != nil {
		return
	}
	path := filepath.Join(home, ".gemini", "settings.json")
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	settings := map[string]json.RawMessage{}
	if json.Unmarshal(data, &settings) != nil {
		return
	}
	servers := map[string]geminiMCPEntry{}
	if raw, ok := settings["mcpServers"]; ok {
		if json.Unmarshal(raw, &servers) != nil {
			return
		}
	}
	for _, name := range g.mcpServerNames {
		delete(servers, name)
	}
	if raw, err := json.Marshal(servers); err == nil {
		settings["mcpServers"] = raw
		if out, err := json.MarshalIndent(settings, "", "  "); err == nil {
			_ = os.WriteFile(path, out, 0o644)
		}
	}
	g.mcpServerNames = nil
}

func (g *geminiCLI) Initialize(ctx context.Context) error {
	if err := waitForShell(ctx, g.pane, shellReadyTimeout); err != nil {
		return err
	}

	// Gemini's Ink TUI exits silently when the shell's init scripts
	// (nvm, brew shellenv) are still loading. An echo round-trip with
	// output verification proves the shell is fully interactive.
	if err := g.pane.SendCommand("echo " + geminiWarmupMarker); err != nil {
		return err
	}
	warmupDeadline := time.Now().Add(15 * time.Second)
	for time.Now().Before(warmupDeadline) {
		output, err := g.pane.Capture(historyLines)
		if err == nil && strings.Contains(output, geminiWarmupMarker) {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(shellPollInterval):
		}
	}

	command, err := g.buildCommand()
	if err != nil {
		return err
	}
	if err := g.pane.SendCommand(command); err != nil {
		return err
	}

	// The idle placeholder appears before the -i prompt has been
	// processed and before MCP servers connect; accepting it too early
	// loses the first message. With -i, only completed proves
	// readiness.
	targets := []Status{StatusIdle, StatusCompleted}
	if g.usesPromptInteractive {
		targets = []Status{StatusCompleted}
	}
	ok, err := WaitStatus(ctx, g, targets, geminiInitTimeout, DefaultPollInterval)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInitTimeout
	}
	return nil
}

func (g *geminiCLI) Status(ctx context.Context) (Status, error) {
	if err := ctx.Err(); err != nil {
		return StatusError, err
	}
	output, err := g.pane.Capture(historyLines)
	if err != nil {
		return StatusError, err
	}
	if strings.TrimSpace(output) == "" {
		return StatusError, nil
	}

	clean := ansi.StripSGR(output)
	bottom := tailStrings(ansi.Lines(strings.TrimSpace(clean)), geminiIdleTailLines)

	idleVisible := false
	spinnerVisible := false
	for _, line := range bottom {
		if geminiIdlePrompt.MatchString(line) {
			idleVisible = true
		}
		if geminiSpinner.MatchString(line) {
			spinnerVisible = true
		}
	}

	if idleVisible {
		if spinnerVisible {
			return StatusProcessing, nil
		}
		if geminiQueryPrefix.MatchString(clean) && geminiResponsePrefix.MatchString(clean) {
			return StatusCompleted, nil
		}
		return StatusIdle, nil
	}
	if geminiErrorLine.MatchString(clean) {
		return StatusError, nil
	}
	return StatusProcessing, nil
}

// ExtractLastMessage collects the content between the last submitted
// query and the idle placeholder, dropping TUI chrome: box borders,
// status bar, YOLO indicator, model line, spinner lines.
func (g *geminiCLI) ExtractLastMessage(buffer string) (string, error) {
	clean := ansi.StripSGR(buffer)
	lines := ansi.Lines(clean)

	lastQuery := -1
	for i, line := range lines {
		if geminiQueryPrefix.MatchString(line) {
			lastQuery = i
		}
	}
	if lastQuery == -1 {
		return "", ErrNoResponse
	}

	promptIdx := len(lines)
	for i := lastQuery + 1; i < len(lines); i++ {
		if geminiIdlePrompt.MatchString(lines[i]) {
			promptIdx = i
			break
		}
	}

	var responseLines []string
	for i := lastQuery + 1; i < promptIdx; i++ {
		line := strings.TrimSpace(lines[i])
		switch {
		case line == "":
		case geminiBoxTop.MatchString(line), geminiBoxBottom.MatchString(line):
		case geminiStatusBar.MatchString(line):
		case geminiYOLOLine.MatchString(line):
		case geminiModelLine.MatchString(line):
		case geminiSpinner.MatchString(line):
		default:
			responseLines = append(responseLines, line)
		}
	}
	if len(responseLines) == 0 {
		return "", ErrEmptyResponse
	}
	return strings.TrimSpace(strings.Join(responseLines, "\n")), nil
}

func (g *geminiCLI) IdleLogPattern() *regexp.Regexp { return geminiIdleLog }

// ExitCommand is Ctrl-D: Gemini has no /exit command, only EOF.
func (g *geminiCLI) ExitCommand() ExitCommand { return ExitCommand{Key: "C-d"} }

func (g *geminiCLI) PasteEnterCount() int { return 2 }

func (g *geminiCLI) MarkInputReceived() {}

func (g *geminiCLI) Cleanup() {
	g.unregisterMCPServers()

	if g.geminiMDPath != "" {
		if err := os.Remove(g.geminiMDPath); err == nil || os.IsNotExist(err) {
			if g.geminiMDBackupPath != "" {
				_ = os.Rename(g.geminiMDBackupPath, g.geminiMDPath)
			}
		}
		g.geminiMDPath = ""
		g.geminiMDBackupPath = ""
	}
}
