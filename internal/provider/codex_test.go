package provider

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/cao-dev/cao/internal/profile"
)

func TestCodexStatus(t *testing.T) {
	tests := []struct {
		name   string
		buffer string
		want   Status
	}{
		{
			name:   "empty prompt with footer means idle",
			buffer: "OpenAI Codex v1.0\n\n› \n? for shortcuts",
			want:   StatusIdle,
		},
		{
			name:   "assistant output after user message means completed",
			buffer: "› fix the bug\n• Fixed it by adjusting the loop bound.\n\n› \n? for shortcuts",
			want:   StatusCompleted,
		},
		{
			name:   "progress spinner beats completed",
			buffer: "› do the work\n• Working (3s • esc to interrupt)\n› \n? for shortcuts",
			want:   StatusProcessing,
		},
		{
			name:   "trust dialog means waiting",
			buffer: "Do you want to allow Codex to work in this folder?\n› Yes, continue",
			want:   StatusWaiting,
		},
		{
			name:   "approval question means waiting",
			buffer: "› run the script\nApprove running ./deploy.sh? y/n\n› ",
			want:   StatusWaiting,
		},
		{
			name:   "error after user message means error",
			buffer: "› run it\nError: something broke\n› ",
			want:   StatusError,
		},
		{
			name:   "no prompt at end means processing",
			buffer: "› do the work\nstreaming output without a prompt",
			want:   StatusProcessing,
		},
		{
			// An Error: line inside the response is the agent quoting
			// output, not the agent failing.
			name:   "error line quoted in a response means completed",
			buffer: "› run it\n• Build log follows\nError: expected failure in the fixture\n\n› \n? for shortcuts",
			want:   StatusCompleted,
		},
		{
			name:   "approval wording quoted in a response means completed",
			buffer: "› check perms\n• Done, nothing needed your input\nApprove running rm? y/n was answered automatically\n\n› \n? for shortcuts",
			want:   StatusCompleted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newCodex(&fakePane{buffer: tt.buffer}, Config{})
			got, err := p.Status(context.Background())
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("Status = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestCodexExtractLastMessage(t *testing.T) {
	p := newCodex(&fakePane{}, Config{})

	buffer := "› summarize the diff\ncodex: All good, two files touched.\n› \n? for shortcuts"
	got, err := p.ExtractLastMessage(buffer)
	if err != nil {
		t.Fatal(err)
	}
	if got != "All good, two files touched." {
		t.Errorf("extracted %q", got)
	}
}

func TestCodexExtractFallsBackToMarker(t *testing.T) {
	// No user message on screen: extraction falls back to the last
	// assistant marker.
	p := newCodex(&fakePane{}, Config{})

	buffer := "codex: Standalone note.\n› "
	got, err := p.ExtractLastMessage(buffer)
	if err != nil {
		t.Fatal(err)
	}
	if got != "Standalone note." {
		t.Errorf("extracted %q", got)
	}
}

func TestCodexExtractNoResponse(t *testing.T) {
	p := newCodex(&fakePane{}, Config{})
	if _, err := p.ExtractLastMessage("plain banner text"); !errors.Is(err, ErrNoResponse) {
		t.Errorf("got %v, want ErrNoResponse", err)
	}
}

func TestCodexBuildCommand(t *testing.T) {
	p := newCodex(&fakePane{}, Config{
		WorkerID: "w1",
		Profile: &profile.Profile{
			SystemPrompt: "Say \"hi\"\nthen stop",
			MCPServers: map[string]profile.MCPServer{
				"cao": {Command: "cao", Args: []string{"mcp", "serve"}, EnvVars: []string{"PATH"}},
			},
		},
	})
	command := p.buildCommand()

	for _, want := range []string{
		"codex --no-alt-screen --disable shell_snapshot",
		`developer_instructions="Say \"hi\"\nthen stop"`,
		`mcp_servers.cao.command="cao"`,
		`mcp_servers.cao.args=["mcp", "serve"]`,
		`mcp_servers.cao.env_vars=["PATH", "CAO_TERMINAL_ID"]`,
		"mcp_servers.cao.tool_timeout_sec=600.0",
	} {
		if !strings.Contains(command, want) {
			t.Errorf("command missing %q:\n%s", want, command)
		}
	}
	if strings.Contains(command, "\n") {
		t.Error("command contains a literal newline")
	}
}

func TestTomlEscape(t *testing.T) {
	got := tomlEscape("a\\b\"c\nd")
	if got != `a\\b\"c\nd` {
		t.Errorf("tomlEscape = %q", got)
	}
}
