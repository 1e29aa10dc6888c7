package provider

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cao-dev/cao/internal/ansi"
)

// Codex runs with --no-alt-screen, so its output is inline scrollback
// and nothing can be anchored to the end of the buffer. The idle
// prompt glyphs are only checked in the last few lines, and the TUI
// footer ("? for shortcuts", "context left") is excluded from user
// input scans because its suggestion text starts with the same ›
// glyph as a typed message.
var (
	// An empty prompt line. Distinguishes "› " (idle) from "› message".
	codexIdlePromptStrict = regexp.MustCompile(`(?m)^\s*(?:❯|›|codex>)\s*$`)
	// User input: "You ..." label style or "› text" interactive style.
	// [^\S\n] keeps the match on one line.
	codexUserPrefix = regexp.MustCompile(`(?im)^(?:You\b|›[^\S\n]*\S)`)
	// Assistant output: "assistant:/codex:/agent:" labels or • bullets.
	codexAssistantPrefix = regexp.MustCompile(`(?im)^(?:(?:assistant|codex|agent)\s*:|\s*•)`)
	codexAssistantLabel  = regexp.MustCompile(`(?i)^(?:assistant|codex|agent)\s*:\s*`)
	codexWaitingPrompt   = regexp.MustCompile(`(?im)^(?:Approve|Allow)\b.*\b(?:y/n|yes/no|yes|no)\b`)
	codexErrorLine       = regexp.MustCompile(`(?im)^(?:Error:|ERROR:|Traceback \(most recent call last\):|panic:)`)
	codexTUIFooter       = regexp.MustCompile(`(?:\?\s+for shortcuts|context left)`)
	// Progress spinner: "• Working (12s • esc to interrupt)". Its •
	// aliases the assistant bullet, so it must win over completed.
	codexTUIProgress = regexp.MustCompile(`•.*\(\d+s\s*•\s*esc to interrupt\)`)
	codexTrustPrompt = regexp.MustCompile(`allow Codex to work in this folder`)
	codexWelcome     = regexp.MustCompile(`OpenAI Codex`)
	// The ❯ glyph is rendered but never written to the raw output
	// stream, so the pipe-pane pre-check keys off the footer instead.
	codexIdleLog = regexp.MustCompile(`\? for shortcuts`)
)

const codexIdleTailLines = 5

type codex struct {
	pane Pane
	cfg  Config
}

func newCodex(pane Pane, cfg Config) *codex {
	return &codex{pane: pane, cfg: cfg}
}

func (c *codex) Type() Type { return Codex }

// buildCommand assembles the codex launch command. The system prompt
// travels as a -c developer_instructions override (a TOML basic
// string, so backslashes, quotes, and newlines are escaped), and MCP
// servers as dotted -c overrides so nothing touches global config.
func (c *codex) buildCommand() string {
	parts := []string{"codex", "--no-alt-screen", "--disable", "shell_snapshot"}

	if p := c.cfg.Profile; p != nil {
		if p.SystemPrompt != "" {
			parts = append(parts, "-c", `developer_instructions="`+tomlEscape(p.SystemPrompt)+`"`)
		}
		for name, srv := range p.MCPServers {
			prefix := "mcp_servers." + name
			if srv.Command != "" {
				parts = append(parts, "-c", fmt.Sprintf(`%s.command="%s"`, prefix, srv.Command))
			}
			if len(srv.Args) > 0 {
				parts = append(parts, "-c", prefix+".args="+tomlStringArray(srv.Args))
			}
			for k, v := range srv.Env {
				parts = append(parts, "-c", fmt.Sprintf(`%s.env.%s="%s"`, prefix, k, v))
			}
			// Codex does not forward parent env vars to MCP
			// subprocesses; the worker id must be listed explicitly so
			// delegation tools can identify their caller.
			envVars := srv.EnvVars
			if !contains(envVars, "CAO_TERMINAL_ID") {
				envVars = append(append([]string{}, envVars...), "CAO_TERMINAL_ID")
			}
			parts = append(parts, "-c", prefix+".env_vars="+tomlStringArray(envVars))
			// Delegation tool calls create a worker, initialize its
			// agent, and wait for completion; Codex's 60s default is
			// far too short. Must be a TOML float: Codex deserializes
			// tool_timeout_sec as Option<f64> and silently drops
			// integers.
			timeout := srv.TimeoutSec
			if timeout == 0 {
				timeout = 600.0
			}
			parts = append(parts, "-c",
				prefix+".tool_timeout_sec="+strconv.FormatFloat(timeout, 'f', 1, 64))
		}
	}
	parts = append(parts, c.cfg.ExtraArgs...)
	return joinArgs(parts)
}

func (c *codex) Initialize(ctx context.Context) error {
	if err := waitForShell(ctx, c.pane, shellReadyTimeout); err != nil {
		return err
	}

	// Codex exits immediately in freshly-created tmux windows where
	// the shell has not completed a full interactive command cycle.
	if err := c.pane.SendCommand("echo ready"); err != nil {
		return err
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(2 * time.Second):
	}

	if err := c.pane.SendCommand(c.buildCommand()); err != nil {
		return err
	}

	if err := c.handleTrustPrompt(ctx, 20*time.Second); err != nil {
		return err
	}

	ok, err := WaitStatus(ctx, c, []Status{StatusIdle}, 60*time.Second, DefaultPollInterval)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInitTimeout
	}
	return nil
}

// handleTrustPrompt auto-accepts the workspace trust dialog Codex
// shows for new directories. The user already confirmed the working
// directory when launching the worker.
func (c *codex) handleTrustPrompt(ctx context.Context, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		output, err := c.pane.Capture(historyLines)
		if err == nil && strings.TrimSpace(output) != "" {
			clean := ansi.StripSGR(output)
			if codexTrustPrompt.MatchString(clean) {
				return c.pane.SendKey("Enter")
			}
			if codexWelcome.MatchString(clean) {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Second):
		}
	}
	// Absence of both banner and prompt is not fatal; the idle wait
	// that follows has its own timeout.
	return nil
}

func (c *codex) Status(ctx context.Context) (Status, error) {
	if err := ctx.Err(); err != nil {
		return StatusError, err
	}
	output, err := c.pane.Capture(historyLines)
	if err != nil {
		return StatusError, err
	}
	if strings.TrimSpace(output) == "" {
		return StatusError, nil
	}

	clean := ansi.StripSGR(output)
	lines := ansi.Lines(clean)
	tail := strings.Join(tailStrings(lines, 25), "\n")

	cutoff := codexFooterCutoff(clean, lines)

	var lastUser []int
	for _, m := range codexUserPrefix.FindAllStringIndex(clean, -1) {
		if m[0] < cutoff {
			lastUser = m
		}
	}
	afterUser := clean
	if lastUser != nil {
		afterUser = clean[lastUser[0]:]
	}
	assistantAfterUser := lastUser != nil && codexAssistantPrefix.MatchString(afterUser)

	// The trust menu's › aliases the idle prompt and its explanatory
	// text matches processing keywords, so it wins outright.
	if codexTrustPrompt.MatchString(clean) {
		return StatusWaiting, nil
	}

	bottom := tailStrings(ansi.Lines(strings.TrimSpace(clean)), codexIdleTailLines)
	idleAtEnd := false
	for _, line := range bottom {
		if codexIdlePromptStrict.MatchString(line) {
			idleAtEnd = true
			break
		}
	}

	// Permission and error lines only count when they follow the last
	// user message and are not quoted inside an assistant response.
	if lastUser != nil {
		if !assistantAfterUser {
			if codexWaitingPrompt.MatchString(afterUser) {
				return StatusWaiting, nil
			}
			if codexErrorLine.MatchString(afterUser) {
				return StatusError, nil
			}
		}
	} else {
		if codexWaitingPrompt.MatchString(tail) {
			return StatusWaiting, nil
		}
		if codexErrorLine.MatchString(tail) {
			return StatusError, nil
		}
	}

	if idleAtEnd {
		if codexTUIProgress.MatchString(tail) {
			return StatusProcessing, nil
		}
		if lastUser != nil && assistantAfterUser {
			return StatusCompleted, nil
		}
		return StatusIdle, nil
	}
	return StatusProcessing, nil
}

// codexFooterCutoff returns the byte offset past which user input
// scans must not look, excluding the TUI footer when present.
func codexFooterCutoff(clean string, lines []string) int {
	footer := false
	for _, line := range tailStrings(lines, codexIdleTailLines) {
		if codexTUIFooter.MatchString(line) {
			footer = true
			break
		}
	}
	if footer && len(lines) > codexIdleTailLines {
		return len(strings.Join(lines[:len(lines)-codexIdleTailLines], "\n"))
	}
	return len(clean)
}

// ExtractLastMessage finds the last user message and returns the
// assistant output between it and the next empty idle prompt. Falls
// back to marker-based extraction when no user message is present.
func (c *codex) ExtractLastMessage(buffer string) (string, error) {
	clean := ansi.StripSGR(buffer)
	lines := ansi.Lines(clean)
	cutoff := codexFooterCutoff(clean, lines)
	footerPresent := cutoff != len(clean)

	var userMatches [][]int
	for _, m := range codexUserPrefix.FindAllStringIndex(clean, -1) {
		if m[0] < cutoff {
			userMatches = append(userMatches, m)
		}
	}

	if len(userMatches) > 0 {
		lastUser := userMatches[len(userMatches)-1]

		// The first assistant marker after the user message starts the
		// response; this skips wrapped multi-line user input.
		responseStart := -1
		if loc := codexAssistantPrefix.FindStringIndex(clean[lastUser[0]:]); loc != nil {
			responseStart = lastUser[0] + loc[0]
		} else {
			lineEnd := strings.IndexByte(clean[lastUser[0]:], '\n')
			if lineEnd == -1 {
				responseStart = len(clean)
			} else {
				responseStart = lastUser[0] + lineEnd + 1
			}
		}

		end := len(clean)
		if loc := codexIdlePromptStrict.FindStringIndex(clean[responseStart:]); loc != nil {
			end = responseStart + loc[0]
		} else if footerPresent {
			end = cutoff
		}

		if responseStart <= end {
			text := strings.TrimSpace(clean[responseStart:end])
			if text != "" {
				return strings.TrimSpace(codexAssistantLabel.ReplaceAllString(text, "")), nil
			}
		}
	}

	matches := codexAssistantPrefix.FindAllStringIndex(clean, -1)
	if len(matches) == 0 {
		return "", ErrNoResponse
	}
	start := matches[len(matches)-1][1]
	end := len(clean)
	if loc := codexIdlePromptStrict.FindStringIndex(clean[start:]); loc != nil {
		end = start + loc[0]
	}
	answer := strings.TrimSpace(clean[start:end])
	if answer == "" {
		return "", ErrEmptyResponse
	}
	return answer, nil
}

func (c *codex) IdleLogPattern() *regexp.Regexp { return codexIdleLog }

func (c *codex) ExitCommand() ExitCommand { return ExitCommand{Text: "/exit"} }

func (c *codex) PasteEnterCount() int { return 2 }

func (c *codex) MarkInputReceived() {}

func (c *codex) Cleanup() {}

func tomlEscape(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	// Literal newlines would split the launch command across pane
	// lines mid-send.
	s = strings.ReplaceAll(s, "\n", `\n`)
	return s
}

func tomlStringArray(items []string) string {
	quoted := make([]string, len(items))
	for i, item := range items {
		quoted[i] = `"` + tomlEscape(item) + `"`
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

func tailStrings(lines []string, n int) []string {
	if len(lines) <= n {
		return lines
	}
	return lines[len(lines)-n:]
}

func contains(items []string, want string) bool {
	for _, item := range items {
		if item == want {
			return true
		}
	}
	return false
}
