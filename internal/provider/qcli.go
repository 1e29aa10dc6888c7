package provider

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/cao-dev/cao/internal/ansi"
)

// Amazon Q's prompt is only distinguishable from its response text by
// its colors: cyan "[profile]" followed by a purple ">". Status
// detection therefore matches against the raw capture with escape
// sequences intact. A purple prompt without the profile tag means Q
// rejected the profile name and fell back to its generic prompt.
var (
	qGreenArrow    = regexp.MustCompile(`\x1b\[38;5;10m>\s*\x1b\[39m`)
	qGenericPrompt = regexp.MustCompile(`\x1b\[38;5;13m>\s*\x1b\[39m\s*$`)
)

const (
	qErrorIndicator = "amazon q is having trouble responding right now"
	qBell           = "\x07"
)

type qCLI struct {
	pane Pane
	cfg  Config

	prompt *regexp.Regexp
}

func newQCLI(pane Pane, cfg Config) *qCLI {
	prompt := fmt.Sprintf(`\x1b\[38;5;14m\[%s\]\s*\x1b\[38;5;13m>\s*\x1b\[39m\s*$`,
		regexp.QuoteMeta(cfg.ProfileName))
	return &qCLI{pane: pane, cfg: cfg, prompt: regexp.MustCompile(prompt)}
}

func (q *qCLI) Type() Type { return QCLI }

func (q *qCLI) Initialize(ctx context.Context) error {
	if err := waitForShell(ctx, q.pane, shellReadyTimeout); err != nil {
		return err
	}
	args := append([]string{"q", "chat", "--agent", q.cfg.ProfileName}, q.cfg.ExtraArgs...)
	if err := q.pane.SendCommand(joinArgs(args)); err != nil {
		return err
	}
	ok, err := WaitStatus(ctx, q, []Status{StatusIdle}, 30*time.Second, DefaultPollInterval)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInitTimeout
	}
	return nil
}

func (q *qCLI) Status(ctx context.Context) (Status, error) {
	if err := ctx.Err(); err != nil {
		return StatusError, err
	}
	output, err := q.pane.Capture(historyLines)
	if err != nil {
		return StatusError, err
	}
	if strings.TrimSpace(output) == "" {
		return StatusError, nil
	}

	if strings.Contains(strings.ToLower(ansi.StripSGR(output)), qErrorIndicator) {
		return StatusError, nil
	}
	if q.isWaitingForPermission(output) {
		return StatusWaiting, nil
	}
	if q.promptOnAnyLine(output) {
		if q.hasResponseMessage(output) {
			return StatusCompleted, nil
		}
		return StatusIdle, nil
	}
	if qGenericPrompt.MatchString(lastNonEmptyLine(output)) {
		return StatusError, fmt.Errorf("%w: %q rejected, Q fell back to generic prompt",
			ErrBadProfile, q.cfg.ProfileName)
	}
	return StatusProcessing, nil
}

func (q *qCLI) promptOnAnyLine(output string) bool {
	for _, line := range ansi.Lines(output) {
		if q.prompt.MatchString(line) {
			return true
		}
	}
	return false
}

func (q *qCLI) isWaitingForPermission(output string) bool {
	// "Allow this action? [y/n/t]:" with the agent prompt re-rendered
	// below it.
	permission := regexp.MustCompile(`(?s)Allow this action\?.*\[.*y.*/.*n.*/.*t.*\]:`)
	loc := permission.FindStringIndex(output)
	if loc == nil {
		return false
	}
	return q.promptOnAnyLine(output[loc[1]:])
}

// hasResponseMessage reports whether a green response arrow appears on
// an earlier line than the final prompt.
func (q *qCLI) hasResponseMessage(output string) bool {
	lastPrompt, lastArrow := -1, -1
	for i, line := range ansi.Lines(output) {
		if q.prompt.MatchString(line) {
			lastPrompt = i
		}
		if qGreenArrow.MatchString(line) {
			lastArrow = i
		}
	}
	return lastArrow != -1 && lastPrompt != -1 && lastArrow < lastPrompt
}

// ExtractLastMessage returns the lines between the last green arrow
// and the final agent prompt.
func (q *qCLI) ExtractLastMessage(buffer string) (string, error) {
	matches := qGreenArrow.FindAllStringIndex(buffer, -1)
	if len(matches) == 0 {
		return "", ErrNoResponse
	}
	rest := buffer[matches[len(matches)-1][1]:]

	var lines []string
	foundPrompt := false
	for _, line := range ansi.Lines(rest) {
		if q.prompt.MatchString(line) {
			foundPrompt = true
			break
		}
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, qBell) {
			lines = append(lines, trimmed)
		}
	}
	if !foundPrompt {
		return "", ErrIncompleteResponse
	}

	answer := strings.TrimSpace(ansi.StripAll(strings.Join(lines, "\n")))
	if answer == "" {
		return "", ErrEmptyResponse
	}
	return answer, nil
}

func (q *qCLI) IdleLogPattern() *regexp.Regexp {
	return regexp.MustCompile(`\x1b\[38;5;14m\[` + regexp.QuoteMeta(q.cfg.ProfileName) + `\]`)
}

func (q *qCLI) ExitCommand() ExitCommand { return ExitCommand{Text: "/exit"} }

func (q *qCLI) PasteEnterCount() int { return 2 }

func (q *qCLI) MarkInputReceived() {}

func (q *qCLI) Cleanup() {}

func lastNonEmptyLine(s string) string {
	lines := ansi.Lines(s)
	for i := len(lines) - 1; i >= 0; i-- {
		if strings.TrimSpace(ansi.StripAll(lines[i])) != "" {
			return lines[i]
		}
	}
	return ""
}
