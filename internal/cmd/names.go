package cmd

import (
	"strings"

	"github.com/google/uuid"
)

// generateSessionName produces a default session name like cao-3f9a12bc.
func generateSessionName() string {
	return "cao-" + strings.ReplaceAll(uuid.New().String(), "-", "")[:8]
}
