// Package ansi strips terminal escape sequences from captured pane
// content and provides small line helpers shared by the provider and
// inbox packages.
package ansi

import (
	"regexp"
	"strings"
)

var (
	// csiPattern matches CSI sequences (colors, cursor movement,
	// bracketed-paste markers). The final byte range is deliberately
	// wide: agent TUIs emit private-mode sequences like \x1b[?2004h.
	csiPattern = regexp.MustCompile(`\x1b\[[0-9;?]*[a-zA-Z]`)

	// oscPattern matches OSC sequences (window title, hyperlinks),
	// terminated by BEL or ST.
	oscPattern = regexp.MustCompile(`\x1b\][^\x07\x1b]*(?:\x07|\x1b\\)`)

	// escPattern matches the remaining two-byte ESC sequences.
	escPattern = regexp.MustCompile(`\x1b[@-_]`)

	// bareCSIPattern matches CSI bodies whose ESC byte was already
	// consumed, which tmux capture occasionally produces mid-line.
	bareCSIPattern = regexp.MustCompile(`\[[?0-9;]*[a-zA-Z]`)

	// sgrPattern matches color/style sequences only.
	sgrPattern = regexp.MustCompile(`\x1b\[[0-9;]*m`)

	controlPattern = regexp.MustCompile("[\x00-\x08\x0b-\x1f\x7f]")
)

// StripSGR removes color and style sequences, leaving all other
// escape sequences in place.
func StripSGR(s string) string {
	return sgrPattern.ReplaceAllString(s, "")
}

// Strip removes all escape sequences.
func Strip(s string) string {
	s = oscPattern.ReplaceAllString(s, "")
	s = csiPattern.ReplaceAllString(s, "")
	s = escPattern.ReplaceAllString(s, "")
	return s
}

// StripAll removes escape sequences, orphaned CSI bodies, and
// non-printing control characters. Newlines and tabs survive.
func StripAll(s string) string {
	s = Strip(s)
	s = bareCSIPattern.ReplaceAllString(s, "")
	s = controlPattern.ReplaceAllString(s, "")
	return s
}

// Lines splits on newlines, tolerating CRLF.
func Lines(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return strings.Split(s, "\n")
}

// TailLines returns the last n lines of s.
func TailLines(s string, n int) []string {
	lines := Lines(s)
	if len(lines) <= n {
		return lines
	}
	return lines[len(lines)-n:]
}

// Tail returns the last n lines of s rejoined.
func Tail(s string, n int) string {
	return strings.Join(TailLines(s, n), "\n")
}
