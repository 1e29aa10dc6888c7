package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/cao-dev/cao/internal/config"
	"github.com/cao-dev/cao/internal/orchestrator"
	"github.com/cao-dev/cao/internal/provider"
)

var handoffCmd = &cobra.Command{
	Use:   "handoff <message>...",
	Short: "Delegate a task to a fresh worker and wait for its answer",
	Long: `Create a worker in the given session, send the message, and block
until the agent finishes. On success the agent's final response is
printed and the worker is torn down. On error or timeout the reason is
printed and the command exits nonzero; a timed-out worker is kept for
inspection unless cleanup-on-timeout is configured.

The agent type is inherited from --parent when set, otherwise the
configured default applies.

Examples:
  cao handoff --session cao-3f9a12bc "write tests for pkg/parser"
  cao handoff --session cao-3f9a12bc --agent codex --timeout 10m "refactor"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runHandoff,
}

var (
	handoffSession string
	handoffParent  string
	handoffAgent   string
	handoffProfile string
	handoffWorkDir string
	handoffTimeout time.Duration
	handoffCleanup bool
)

func init() {
	handoffCmd.Flags().StringVarP(&handoffSession, "session", "s", "", "Session to create the worker in (required)")
	handoffCmd.Flags().StringVar(&handoffParent, "parent", os.Getenv(config.EnvTerminalID), "Delegating worker id (default: $"+config.EnvTerminalID+")")
	handoffCmd.Flags().StringVarP(&handoffAgent, "agent", "a", "", "Agent type (default: inherit from parent, then settings)")
	handoffCmd.Flags().StringVarP(&handoffProfile, "profile", "p", "", "Agent profile name")
	handoffCmd.Flags().StringVar(&handoffWorkDir, "workdir", "", "Working directory for the worker")
	handoffCmd.Flags().DurationVarP(&handoffTimeout, "timeout", "t", 0, "Completion deadline (default from settings)")
	handoffCmd.Flags().BoolVar(&handoffCleanup, "cleanup-on-timeout", false, "Delete the worker if the deadline passes")
	_ = handoffCmd.MarkFlagRequired("session")
	rootCmd.AddCommand(handoffCmd)
}

func runHandoff(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	var agentType provider.Type
	if handoffAgent != "" {
		if agentType, err = provider.ParseType(handoffAgent); err != nil {
			return fmt.Errorf("%w (available: %s)", err, joinTypes())
		}
	}

	// The completion wait keeps this process alive; let it host idle
	// delivery for existing workers meanwhile.
	if _, err := a.orch.WatchExisting(cmd.Context()); err != nil {
		a.logger.Warn("resuming log watch", "error", err)
	}

	result, err := a.orch.Handoff(cmd.Context(), orchestrator.HandoffRequest{
		SessionID:        handoffSession,
		ParentID:         handoffParent,
		AgentType:        agentType,
		Profile:          handoffProfile,
		WorkDir:          handoffWorkDir,
		Message:          strings.Join(args, " "),
		Timeout:          handoffTimeout,
		CleanupOnTimeout: handoffCleanup,
	})
	if err != nil {
		return err
	}
	if !result.Success {
		return fmt.Errorf("handoff failed (worker %s): %s", result.WorkerID, result.Reason)
	}
	fmt.Println(result.Response)
	return nil
}
