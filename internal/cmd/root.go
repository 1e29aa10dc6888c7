// Package cmd provides the CLI commands for the cao tool.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:     "cao",
	Short:   "CLI agent orchestrator",
	Version: Version,
	Long: `cao orchestrates CLI coding agents (Claude Code, Codex, Gemini CLI,
Kimi CLI, Kiro CLI, Amazon Q) as addressable workers, each in its own
tmux window.

Workers are created in named sessions, receive input through bracketed
paste, and report their state by screen-scraping the rendered terminal.
One worker can delegate to another synchronously (handoff) or
fire-and-forget (assign), and queued mailbox messages are delivered as
soon as the receiving agent goes idle.`,
}

var verbose bool

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log debug detail to stderr")
}

// Execute runs the root command and returns an exit code for main.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		return 1
	}
	return 0
}
