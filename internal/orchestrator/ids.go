package orchestrator

import (
	"strings"

	"github.com/google/uuid"

	"github.com/cao-dev/cao/internal/util"
)

// Short hex ids keep tmux targets readable while staying unique enough
// for a single state directory.

func hexID(n int) string {
	return strings.ReplaceAll(uuid.New().String(), "-", "")[:n]
}

// newSessionID is the tmux session name and the record id.
func newSessionID() string { return "cao-" + hexID(8) }

func newWorkerID() string { return hexID(8) }

// newWindowName tags the window with what runs in it: the profile name
// when there is one, the agent type otherwise. Slugged because profile
// names can contain characters tmux targets cannot.
func newWindowName(wc WorkerConfig) string {
	base := wc.Profile
	if base == "" {
		base = string(wc.AgentType)
	}
	return util.Slug(base) + "-" + hexID(4)
}
