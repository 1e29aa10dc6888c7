package style

import (
	"strings"
	"testing"
)

func TestNewTableDefaults(t *testing.T) {
	tbl := NewTable(
		Column{Name: "Name", Width: 10},
		Column{Name: "Value", Width: 20},
	)
	if len(tbl.columns) != 2 {
		t.Errorf("columns = %d, want 2", len(tbl.columns))
	}
	if !tbl.headerSep {
		t.Error("headerSep should default to true")
	}
	if tbl.indent != "  " {
		t.Errorf("indent = %q, want two spaces", tbl.indent)
	}
}

func TestTableChaining(t *testing.T) {
	tbl := NewTable(Column{Name: "A", Width: 5})
	if tbl.SetIndent("    ") != tbl || tbl.SetHeaderSeparator(false) != tbl || tbl.AddRow("x") != tbl {
		t.Error("setters should return the table for chaining")
	}
	if tbl.indent != "    " || tbl.headerSep {
		t.Errorf("indent = %q headerSep = %v", tbl.indent, tbl.headerSep)
	}
}

func TestAddRowPadsShortRows(t *testing.T) {
	tbl := NewTable(
		Column{Name: "A", Width: 5},
		Column{Name: "B", Width: 5},
	)
	tbl.AddRow("only-one")
	if len(tbl.rows[0]) != 2 {
		t.Fatalf("row len = %d, want 2", len(tbl.rows[0]))
	}
	if tbl.rows[0][1] != "" {
		t.Errorf("padded cell = %q, want empty", tbl.rows[0][1])
	}
}

func TestRenderEmpty(t *testing.T) {
	if got := NewTable().Render(); got != "" {
		t.Errorf("Render() with no columns = %q, want empty", got)
	}
}

func TestRenderBasic(t *testing.T) {
	tbl := NewTable(
		Column{Name: "ID", Width: 5},
		Column{Name: "Name", Width: 10},
	)
	tbl.SetHeaderSeparator(false).SetIndent("")
	tbl.AddRow("1", "alice")
	tbl.AddRow("2", "bob")

	lines := strings.Split(strings.TrimRight(tbl.Render(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines = %d, want header + 2 rows: %v", len(lines), lines)
	}
	if row := stripAnsi(lines[1]); !strings.Contains(row, "1") || !strings.Contains(row, "alice") {
		t.Errorf("row 1 = %q", row)
	}
	if row := stripAnsi(lines[2]); !strings.Contains(row, "2") || !strings.Contains(row, "bob") {
		t.Errorf("row 2 = %q", row)
	}
}

func TestRenderSeparator(t *testing.T) {
	tbl := NewTable(Column{Name: "X", Width: 5}).SetIndent("")
	tbl.AddRow("val")

	lines := strings.Split(strings.TrimRight(tbl.Render(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines = %d, want header + separator + row", len(lines))
	}
	if sep := stripAnsi(lines[1]); !strings.Contains(sep, "─") {
		t.Errorf("separator line = %q", sep)
	}
}

func TestRenderIndent(t *testing.T) {
	tbl := NewTable(Column{Name: "A", Width: 5}).SetIndent(">>>")
	tbl.AddRow("x")
	for _, line := range strings.Split(strings.TrimRight(tbl.Render(), "\n"), "\n") {
		if !strings.HasPrefix(line, ">>>") {
			t.Errorf("line missing indent: %q", line)
		}
	}
}

func TestRenderTruncation(t *testing.T) {
	tbl := NewTable(Column{Name: "N", Width: 8}).SetHeaderSeparator(false).SetIndent("")
	tbl.AddRow("this-is-way-too-long-for-the-column")

	lines := strings.Split(strings.TrimRight(tbl.Render(), "\n"), "\n")
	row := strings.TrimSpace(stripAnsi(lines[1]))
	if !strings.HasSuffix(row, "...") {
		t.Errorf("truncated row = %q, want ... suffix", row)
	}
	if len(row) > 8 {
		t.Errorf("truncated row too wide: %q", row)
	}
}

func TestPad(t *testing.T) {
	tbl := &Table{}
	tests := []struct {
		name  string
		text  string
		width int
		align Alignment
		want  string
	}{
		{"left", "hi", 10, AlignLeft, "hi        "},
		{"right", "hi", 10, AlignRight, "        hi"},
		{"center", "hi", 10, AlignCenter, "    hi    "},
		{"exact", "hello", 5, AlignLeft, "hello"},
		{"overflow", "toolong", 3, AlignLeft, "toolong"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tbl.pad(tt.text, tt.text, tt.width, tt.align); got != tt.want {
				t.Errorf("pad = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPadIgnoresEscapes(t *testing.T) {
	tbl := &Table{}
	styled := "\x1b[1mhi\x1b[0m"
	got := tbl.pad(styled, "hi", 6, AlignLeft)
	if got != styled+"    " {
		t.Errorf("pad = %q", got)
	}
}

func TestStripAnsi(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"hello", "hello"},
		{"\x1b[1mhello\x1b[0m", "hello"},
		{"before\x1b[32mgreen\x1b[0mafter", "beforegreenafter"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := stripAnsi(tt.input); got != tt.want {
			t.Errorf("stripAnsi(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestTermWidthFallback(t *testing.T) {
	// Test binaries usually run without a tty; either way the result
	// must be positive.
	if w := TermWidth(); w <= 0 {
		t.Errorf("TermWidth() = %d", w)
	}
}
