// Package style renders aligned text tables for CLI listings.
package style

import (
	"os"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"
	"golang.org/x/term"
)

// Alignment positions cell text inside its column.
type Alignment int

const (
	AlignLeft Alignment = iota
	AlignRight
	AlignCenter
)

// Column describes one table column.
type Column struct {
	Name  string
	Width int
	Align Alignment
}

var (
	headerStyle    = lipgloss.NewStyle().Bold(true)
	separatorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
)

// Table accumulates rows and renders them with fixed-width columns.
// All setters return the table for chaining.
type Table struct {
	columns   []Column
	rows      [][]string
	headerSep bool
	indent    string
}

func NewTable(columns ...Column) *Table {
	return &Table{columns: columns, headerSep: true, indent: "  "}
}

func (t *Table) SetIndent(indent string) *Table {
	t.indent = indent
	return t
}

func (t *Table) SetHeaderSeparator(on bool) *Table {
	t.headerSep = on
	return t
}

// AddRow appends a row. Missing trailing cells are padded with empty
// strings; extra cells are dropped.
func (t *Table) AddRow(values ...string) *Table {
	row := make([]string, len(t.columns))
	copy(row, values)
	t.rows = append(t.rows, row)
	return t
}

// Render returns the table as a newline-terminated string. A table
// with no columns renders as nothing.
func (t *Table) Render() string {
	if len(t.columns) == 0 {
		return ""
	}
	var b strings.Builder

	cells := make([]string, 0, len(t.columns))
	for _, col := range t.columns {
		cells = append(cells, t.pad(headerStyle.Render(col.Name), col.Name, col.Width, col.Align))
	}
	b.WriteString(t.indent + strings.Join(cells, " ") + "\n")

	if t.headerSep {
		width := len(t.columns) - 1
		for _, col := range t.columns {
			width += col.Width
		}
		b.WriteString(t.indent + separatorStyle.Render(strings.Repeat("─", width)) + "\n")
	}

	for _, row := range t.rows {
		cells = cells[:0]
		for i, col := range t.columns {
			cell := truncate(row[i], col.Width)
			cells = append(cells, t.pad(cell, cell, col.Width, col.Align))
		}
		b.WriteString(t.indent + strings.Join(cells, " ") + "\n")
	}
	return b.String()
}

// pad aligns styled text within width using the plain text's length,
// so escape sequences do not count against the column.
func (t *Table) pad(styled, plain string, width int, align Alignment) string {
	gap := width - utf8.RuneCountInString(plain)
	if gap <= 0 {
		return styled
	}
	switch align {
	case AlignRight:
		return strings.Repeat(" ", gap) + styled
	case AlignCenter:
		left := gap / 2
		return strings.Repeat(" ", left) + styled + strings.Repeat(" ", gap-left)
	default:
		return styled + strings.Repeat(" ", gap)
	}
}

func truncate(s string, width int) string {
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	if width <= 3 {
		return string(runes[:width])
	}
	return string(runes[:width-3]) + "..."
}

var sgrPattern = regexp.MustCompile(`\x1b\[[0-9;]*m`)

func stripAnsi(s string) string {
	return sgrPattern.ReplaceAllString(s, "")
}

// TermWidth returns the width of stdout, or a fixed fallback when
// stdout is not a terminal.
func TermWidth() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		return w
	}
	return 100
}
