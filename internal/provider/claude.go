package provider

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/cao-dev/cao/internal/ansi"
)

// Claude Code renders responses behind a ⏺ marker and shows a spinner
// with "(esc to interrupt)" while working. ANSI codes may sit between
// the marker and the response text.
var (
	ccResponse   = regexp.MustCompile(`⏺(?:\x1b\[[0-9;]*m)*\s+`)
	ccProcessing = regexp.MustCompile(`[✶✢✽✻·✳].*….*\(esc to interrupt\)`)
	// The input prompt is "> " with a regular or non-breaking space.
	ccIdlePrompt = regexp.MustCompile(`>[\s\x{00A0}]`)
	// Permission menus render numbered options behind a ❯ cursor.
	ccPermissionMenu = regexp.MustCompile(`❯\s*\d+\.`)
	ccIdleLog        = regexp.MustCompile(`(?m)^\s*>[\s\x{00A0}]`)
	ccPromptLine     = regexp.MustCompile(`^>\s`)
)

const ccSeparator = "────────"

type claudeCode struct {
	pane Pane
	cfg  Config
}

func newClaudeCode(pane Pane, cfg Config) *claudeCode {
	return &claudeCode{pane: pane, cfg: cfg}
}

func (c *claudeCode) Type() Type { return ClaudeCode }

func (c *claudeCode) Initialize(ctx context.Context) error {
	if err := waitForShell(ctx, c.pane, shellReadyTimeout); err != nil {
		return err
	}
	args := append([]string{"claude"}, c.cfg.ExtraArgs...)
	if err := c.pane.SendCommand(joinArgs(args)); err != nil {
		return err
	}
	ok, err := WaitStatus(ctx, c, []Status{StatusIdle}, 30*time.Second, 500*time.Millisecond)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInitTimeout
	}
	return nil
}

func (c *claudeCode) Status(ctx context.Context) (Status, error) {
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

	if ccProcessing.MatchString(output) {
		return StatusProcessing, nil
	}
	if ccPermissionMenu.MatchString(output) && ccIdlePrompt.MatchString(output) {
		return StatusWaiting, nil
	}
	if ccResponse.MatchString(output) && ccIdlePrompt.MatchString(output) {
		return StatusCompleted, nil
	}
	if ccIdlePrompt.MatchString(output) {
		return StatusIdle, nil
	}
	return StatusProcessing, nil
}

// ExtractLastMessage pulls the text after the final ⏺ marker, stopping
// at the next input prompt or box separator.
func (c *claudeCode) ExtractLastMessage(buffer string) (string, error) {
	matches := ccResponse.FindAllStringIndex(buffer, -1)
	if len(matches) == 0 {
		return "", ErrNoResponse
	}
	rest := buffer[matches[len(matches)-1][1]:]

	var lines []string
	for _, line := range ansi.Lines(rest) {
		if ccPromptLine.MatchString(line) || strings.Contains(line, ccSeparator) {
			break
		}
		lines = append(lines, strings.TrimSpace(line))
	}
	answer := strings.TrimSpace(ansi.StripSGR(strings.Join(lines, "\n")))
	if answer == "" {
		return "", ErrEmptyResponse
	}
	return answer, nil
}

func (c *claudeCode) IdleLogPattern() *regexp.Regexp { return ccIdleLog }

func (c *claudeCode) ExitCommand() ExitCommand { return ExitCommand{Text: "/exit"} }

func (c *claudeCode) PasteEnterCount() int { return 2 }

func (c *claudeCode) MarkInputReceived() {}

func (c *claudeCode) Cleanup() {}
