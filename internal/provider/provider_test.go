package provider

import (
	"context"
	"errors"
	"testing"
)

// fakePane serves scripted captures and records what was sent to it.
type fakePane struct {
	buffer   string
	captures []string // when set, served in order, last repeats
	idx      int
	commands []string
	keys     []string
	err      error
}

func (f *fakePane) Capture(lines int) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if len(f.captures) > 0 {
		out := f.captures[f.idx]
		if f.idx < len(f.captures)-1 {
			f.idx++
		}
		return out, nil
	}
	return f.buffer, nil
}

func (f *fakePane) CaptureAll() (string, error) { return f.Capture(0) }

func (f *fakePane) SendCommand(command string) error {
	f.commands = append(f.commands, command)
	return nil
}

func (f *fakePane) SendKey(key string) error {
	f.keys = append(f.keys, key)
	return nil
}

func TestParseType(t *testing.T) {
	for _, typ := range Types() {
		got, err := ParseType(string(typ))
		if err != nil || got != typ {
			t.Errorf("ParseType(%q) = %v, %v", typ, got, err)
		}
	}
	if _, err := ParseType("emacs"); err == nil {
		t.Error("expected error for unknown type")
	}
}

func TestNewRequiresProfileName(t *testing.T) {
	pane := &fakePane{}
	for _, typ := range []Type{KiroCLI, QCLI} {
		if _, err := New(typ, pane, Config{}); !errors.Is(err, ErrBadProfile) {
			t.Errorf("New(%s) without profile: got %v, want ErrBadProfile", typ, err)
		}
	}
	for _, typ := range []Type{ClaudeCode, Codex, GeminiCLI, KimiCLI} {
		if _, err := New(typ, pane, Config{}); err != nil {
			t.Errorf("New(%s): %v", typ, err)
		}
	}
}

func TestEmptyBufferIsError(t *testing.T) {
	pane := &fakePane{buffer: "   \n  "}
	ctx := context.Background()
	providers := []Provider{
		newClaudeCode(pane, Config{}),
		newCodex(pane, Config{}),
		newGeminiCLI(pane, Config{}),
		newKimiCLI(pane, Config{}),
		newKiroCLI(pane, Config{ProfileName: "dev"}),
		newQCLI(pane, Config{ProfileName: "dev"}),
	}
	for _, p := range providers {
		status, err := p.Status(ctx)
		if err != nil {
			t.Fatalf("%s: %v", p.Type(), err)
		}
		if status != StatusError {
			t.Errorf("%s: empty buffer = %s, want error", p.Type(), status)
		}
	}
}

func TestJoinArgs(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"claude"}, "claude"},
		{[]string{"q", "chat", "--agent", "dev"}, "q chat --agent dev"},
		{[]string{"gemini", "-i", "You are a helper"}, "gemini -i 'You are a helper'"},
		{[]string{"echo", "it's"}, `echo 'it'\''s'`},
	}
	for _, tt := range tests {
		if got := joinArgs(tt.args); got != tt.want {
			t.Errorf("joinArgs(%v) = %q, want %q", tt.args, got, tt.want)
		}
	}
}
