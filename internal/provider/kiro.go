package provider

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/cao-dev/cao/internal/ansi"
)

// Kiro CLI prompts carry the agent profile name, an optional progress
// percentage, an optional λ, and an optional ! for pending changes:
// "[developer] >", "[developer] 50% λ !>". Responses start with a
// line-anchored green arrow. All matching runs on ANSI-stripped text;
// only the log pre-check pattern keeps its color codes because
// pipe-pane output is raw.
var (
	kiroGreenArrow = regexp.MustCompile(`(?m)^>\s*`)
	kiroIdleLog    = regexp.MustCompile(`\x1b\[38;5;\d+m\[.+?\].*\x1b\[38;5;\d+m>\s*\x1b\[\d*m`)
)

const kiroErrorIndicator = "kiro is having trouble responding right now"

type kiroCLI struct {
	pane Pane
	cfg  Config

	idlePrompt       *regexp.Regexp
	permissionPrompt *regexp.Regexp
}

func newKiroCLI(pane Pane, cfg Config) *kiroCLI {
	idle := fmt.Sprintf(`\[%s\]\s*(?:\d+%%\s*)?(?:λ\s*)?!?>\s*`, regexp.QuoteMeta(cfg.ProfileName))
	// Permission prompts end with the idle prompt on the same screen:
	// "Allow this action? [y/n/t]: [developer] >"
	permission := `(?s)Allow this action\?.*\[.*y.*/.*n.*/.*t.*\]:[ \t]*` + idle
	return &kiroCLI{
		pane:             pane,
		cfg:              cfg,
		idlePrompt:       regexp.MustCompile(idle),
		permissionPrompt: regexp.MustCompile(permission),
	}
}

func (k *kiroCLI) Type() Type { return KiroCLI }

func (k *kiroCLI) Initialize(ctx context.Context) error {
	if err := waitForShell(ctx, k.pane, shellReadyTimeout); err != nil {
		return err
	}
	args := append([]string{"kiro-cli", "chat", "--agent", k.cfg.ProfileName}, k.cfg.ExtraArgs...)
	if err := k.pane.SendCommand(joinArgs(args)); err != nil {
		return err
	}
	ok, err := WaitStatus(ctx, k, []Status{StatusIdle}, 30*time.Second, DefaultPollInterval)
	if err != nil {
		return err
	}
	if !ok {
		return ErrInitTimeout
	}
	return nil
}

func (k *kiroCLI) Status(ctx context.Context) (Status, error) {
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

	// No prompt on screen means the agent is still writing.
	if !k.idlePrompt.MatchString(clean) {
		return StatusProcessing, nil
	}
	if strings.Contains(strings.ToLower(clean), kiroErrorIndicator) {
		return StatusError, nil
	}
	if k.permissionPrompt.MatchString(clean) {
		return StatusWaiting, nil
	}

	// A response exists when a prompt appears after the last green
	// arrow. An arrow with no prompt after it is mid-response.
	arrows := kiroGreenArrow.FindAllStringIndex(clean, -1)
	if len(arrows) > 0 {
		lastArrowEnd := arrows[len(arrows)-1][1]
		for _, prompt := range k.idlePrompt.FindAllStringIndex(clean, -1) {
			if prompt[0] > lastArrowEnd {
				return StatusCompleted, nil
			}
		}
		return StatusProcessing, nil
	}
	return StatusIdle, nil
}

// ExtractLastMessage returns the text between the last green arrow and
// the prompt that follows it.
func (k *kiroCLI) ExtractLastMessage(buffer string) (string, error) {
	clean := ansi.StripSGR(buffer)

	arrows := kiroGreenArrow.FindAllStringIndex(clean, -1)
	if len(arrows) == 0 {
		return "", ErrNoResponse
	}
	prompts := k.idlePrompt.FindAllStringIndex(clean, -1)
	if len(prompts) == 0 {
		return "", ErrIncompleteResponse
	}

	lastArrowEnd := arrows[len(arrows)-1][1]
	end := -1
	for _, prompt := range prompts {
		if prompt[0] > lastArrowEnd {
			end = prompt[0]
			break
		}
	}
	if end < 0 {
		return "", ErrIncompleteResponse
	}

	answer := strings.TrimSpace(ansi.StripAll(clean[lastArrowEnd:end]))
	if answer == "" {
		return "", ErrEmptyResponse
	}
	return answer, nil
}

func (k *kiroCLI) IdleLogPattern() *regexp.Regexp { return kiroIdleLog }

func (k *kiroCLI) ExitCommand() ExitCommand { return ExitCommand{Text: "/exit"} }

func (k *kiroCLI) PasteEnterCount() int { return 2 }

func (k *kiroCLI) MarkInputReceived() {}

func (k *kiroCLI) Cleanup() {}
