// Package util holds small shared helpers: name slugs, retry with
// backoff, and cross-process file locking.
package util

import (
	"strings"
)

// maxSlugLen keeps tmux window names short enough for status bars.
const maxSlugLen = 32

// Slug normalizes a name for use in tmux targets. tmux treats ".", ":"
// and whitespace as target syntax, so anything outside [a-z0-9-] is
// collapsed to a dash.
func Slug(name string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	slug := strings.Trim(b.String(), "-")
	if len(slug) > maxSlugLen {
		slug = strings.Trim(slug[:maxSlugLen], "-")
	}
	if slug == "" {
		return "worker"
	}
	return slug
}
