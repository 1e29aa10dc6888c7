package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cao-dev/cao/internal/ansi"
)

// Kimi CLI's prompt is "username@dirname✨" (or 💫 in thinking mode),
// end-of-line anchored to distinguish a bare prompt from one with
// typed text after it. User input renders in a ╭─...╰─ box; thinking
// output shares the response bullet glyph and is only identifiable by
// its gray color in the raw bytes.
var (
	kimiIdlePrompt = regexp.MustCompile(`\w+@[\w.-]+[✨💫]`)
	kimiIdleEOL    = regexp.MustCompile(`\w+@[\w.-]+[✨💫]\s*$`)
	kimiIdleLog    = regexp.MustCompile(`[✨💫]`)
	kimiBoxStart   = regexp.MustCompile(`╭─`)
	kimiBoxEnd     = regexp.MustCompile(`╰─`)
	kimiThinkRaw   = regexp.MustCompile(`\x1b\[38;5;244m\s*•`)
	kimiStatusBar  = regexp.MustCompile(`\d+:\d+\s+.*(?:agent|shell)\s*\(`)
	kimiWelcome    = regexp.MustCompile(`Welcome to Kimi Code CLI!`)
	kimiErrorLine  = regexp.MustCompile(`(?m)^(?:Error:|ERROR:|Traceback \(most recent call last\):|ConnectionError:|APIError:)`)
)

const kimiIdleTailLines = 50

type kimiCLI struct {
	pane Pane
	cfg  Config

	tempDir string
	// Latches once a user input box is seen. Long responses scroll the
	// box out of the capture window and not every response uses
	// bullets, so completion cannot be re-derived per call.
	hasReceivedInput bool
	timeoutPatched   bool
}

func newKimiCLI(pane Pane, cfg Config) *kimiCLI {
	return &kimiCLI{pane: pane, cfg: cfg}
}

func (k *kimiCLI) Type() Type { return KimiCLI }

// buildCommand assembles the kimi launch command. A profile's system
// prompt becomes a temp agent file extending the default agent; MCP
// servers travel as a --mcp-config JSON blob.
func (k *kimiCLI) buildCommand() (string, error) {
	parts := []string{"kimi", "--yolo"}

	if p := k.cfg.Profile; p != nil {
		if p.SystemPrompt != "" {
			dir, err := os.MkdirTemp("", "cao_kimi_")
			if err != nil {
				return "", fmt.Errorf("create agent temp dir: %w", err)
			}
			k.tempDir = dir
			if err := os.WriteFile(filepath.Join(dir, "system.md"), []byte(p.SystemPrompt), 0o644); err != nil {
				return "", err
			}
			agentYAML := "version: 1\nagent:\n  extend: default\n  system_prompt_path: ./system.md\n"
			agentFile := filepath.Join(dir, "agent.yaml")
			if err := os.WriteFile(agentFile, []byte(agentYAML), 0o644); err != nil {
				return "", err
			}
			parts = append(parts, "--agent-file", agentFile)
		}

		if len(p.MCPServers) > 0 {
			// Kimi's 60s MCP tool timeout is too short for delegation
			// calls. The config file is edited in place: the --config
			// flag bypasses the default config and breaks OAuth.
			k.ensureMCPTimeout()

			mcpConfig := map[string]map[string]any{}
			for name, srv := range p.MCPServers {
				entry := map[string]any{"command": srv.Command}
				if len(srv.Args) > 0 {
					entry["args"] = srv.Args
				}
				env := map[string]string{}
				for ek, ev := range srv.Env {
					env[ek] = ev
				}
				// Kimi does not forward parent env vars to MCP
				// subprocesses.
				if _, ok := env["CAO_TERMINAL_ID"]; !ok {
					env["CAO_TERMINAL_ID"] = k.cfg.WorkerID
				}
				entry["env"] = env
				mcpConfig[name] = entry
			}
			blob, err := json.Marshal(mcpConfig)
			if err != nil {
				return "", err
			}
			parts = append(parts, "--mcp-config", string(blob))
		}
	}
	parts = append(parts, k.cfg.ExtraArgs...)
	return joinArgs(parts), nil
}

// ensureMCPTimeout raises tool_call_timeout_ms to 600000 in
// ~/.kimi/config.toml when it is lower. Never reverted: concurrent
// kimi workers share the file.
func (k *kimiCLI) ensureMCPTimeout() {
	if k.timeoutPatched {
		return
	}
	k.timeoutPatched = true

	home := k.cfg.HomeDir
	if home == "" {
		var err error
		if home, err = os.UserHomeDir(); err != nil {
			return
		}
	}
	path := filepath.Join(home, ".kimi", "config.toml")
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}
	re := regexp.MustCompile(`(tool_call_timeout_ms\s*=\s*)(\d+)`)
	m := re.FindSubmatch(data)
	if m == nil {
		return
	}
	current, err := strconv.Atoi(string(m[2]))
	if err != nil || current >= 600000 {
		return
	}
	patched := re.ReplaceAll(data, []byte("${1}600000"))
	_ = os.WriteFile(path, patched, 0o644)
}

func (k *kimiCLI) Initialize(ctx context.Context) error {
	if err := waitForShell(ctx, k.pane, shellReadyTimeout); err != nil {
		return err
	}
	command, err := k.buildCommand()
	if err != nil {
		return err
	}
	if err := k.pane.SendCommand(command); err != nil {
		return err
	}
	// First-run setup and concurrent worker startups make kimi slow to
	// show its prompt.
	ok, err := WaitStatus(ctx, k, []Status{StatusIdle}, 120*time.Second, DefaultPollInterval)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInitTimeout
	}
	return nil
}

func (k *kimiCLI) Status(ctx context.Context) (Status, error) {
	if err := ctx.Err(); err != nil {
		return StatusError, err
	}
	output, err := k.pane.Capture(historyLines)
	if err != nil {
		return StatusError, err
	}
	if strings.TrimSpace(output) == "" {
		return StatusError, nil
	}

	clean := ansi.StripSGR(output)
	bottom := tailStrings(ansi.Lines(strings.TrimSpace(clean)), kimiIdleTailLines)

	idleVisible := false
	for _, line := range bottom {
		if kimiIdleEOL.MatchString(line) {
			idleVisible = true
			break
		}
	}

	// Latch user input. The welcome banner also draws ╭─/╰─ boxes, so:
	// while processing (banner may have scrolled out) any box start is
	// user input; while a prompt is visible, two or more box ends mean
	// a message was submitted (the banner contributes exactly one).
	if !idleVisible {
		if kimiBoxStart.MatchString(clean) {
			k.hasReceivedInput = true
		}
	} else if len(kimiBoxEnd.FindAllStringIndex(clean, -1)) >= 2 {
		k.hasReceivedInput = true
	}

	if idleVisible {
		if k.hasReceivedInput {
			return StatusCompleted, nil
		}
		return StatusIdle, nil
	}
	if kimiErrorLine.MatchString(clean) {
		return StatusError, nil
	}
	return StatusProcessing, nil
}

// ExtractLastMessage returns the content between the last user input
// box and the next prompt, dropping thinking bullets (gray in the raw
// bytes) and the status bar. When the box has scrolled out of capture,
// everything before the last prompt is used instead.
func (k *kimiCLI) ExtractLastMessage(buffer string) (string, error) {
	clean := ansi.StripSGR(buffer)
	rawLines := ansi.Lines(buffer)
	cleanLines := ansi.Lines(clean)

	boxEnd := -1
	for i, line := range cleanLines {
		if kimiBoxEnd.MatchString(line) {
			boxEnd = i
		}
	}
	if boxEnd == -1 {
		return k.extractWithoutInputBox(rawLines, cleanLines)
	}

	promptIdx := len(cleanLines)
	for i := boxEnd + 1; i < len(cleanLines); i++ {
		if kimiIdlePrompt.MatchString(cleanLines[i]) {
			promptIdx = i
			break
		}
	}

	var all, filtered []string
	for i := boxEnd + 1; i < promptIdx; i++ {
		clean := strings.TrimSpace(cleanLines[i])
		if clean == "" {
			continue
		}
		all = append(all, clean)

		raw := ""
		if i < len(rawLines) {
			raw = rawLines[i]
		}
		if kimiThinkRaw.MatchString(raw) || kimiStatusBar.MatchString(clean) {
			continue
		}
		filtered = append(filtered, clean)
	}
	if len(all) == 0 {
		return "", ErrEmptyResponse
	}
	if len(filtered) == 0 {
		// Everything matched the thinking filter; better to return the
		// unfiltered tail than nothing.
		return strings.TrimSpace(strings.Join(all, "\n")), nil
	}
	return strings.TrimSpace(strings.Join(filtered, "\n")), nil
}

func (k *kimiCLI) extractWithoutInputBox(rawLines, cleanLines []string) (string, error) {
	promptIdx := len(cleanLines)
	for i := len(cleanLines) - 1; i >= 0; i-- {
		if kimiIdlePrompt.MatchString(cleanLines[i]) {
			promptIdx = i
			break
		}
	}

	var filtered []string
	for i := 0; i < promptIdx; i++ {
		clean := strings.TrimSpace(cleanLines[i])
		if clean == "" {
			continue
		}
		raw := ""
		if i < len(rawLines) {
			raw = rawLines[i]
		}
		if kimiThinkRaw.MatchString(raw) || kimiStatusBar.MatchString(clean) || kimiWelcome.MatchString(clean) {
			continue
		}
		filtered = append(filtered, clean)
	}
	if len(filtered) == 0 {
		return "", ErrNoResponse
	}
	return strings.TrimSpace(strings.Join(filtered, "\n")), nil
}

func (k *kimiCLI) IdleLogPattern() *regexp.Regexp { return kimiIdleLog }

func (k *kimiCLI) ExitCommand() ExitCommand { return ExitCommand{Text: "/exit"} }

// PasteEnterCount is 1: prompt_toolkit submits on a single Enter after
// bracketed paste, unlike the Ink TUIs.
func (k *kimiCLI) PasteEnterCount() int { return 1 }

func (k *kimiCLI) MarkInputReceived() { k.hasReceivedInput = true }

func (k *kimiCLI) Cleanup() {
	if k.tempDir != "" {
		_ = os.RemoveAll(k.tempDir)
		k.tempDir = ""
	}
	k.hasReceivedInput = false
}
