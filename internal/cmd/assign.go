package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cao-dev/cao/internal/config"
	"github.com/cao-dev/cao/internal/orchestrator"
	"github.com/cao-dev/cao/internal/provider"
)

var assignCmd = &cobra.Command{
	Use:   "assign <message>...",
	Short: "Delegate a task to a fresh worker without waiting",
	Long: `Create a worker in the given session, send the message, and return
immediately. Poll the worker with 'cao status' and read its answer with
'cao output --mode last', or have it report back through the mailbox.

Examples:
  cao assign --session cao-3f9a12bc "profile the hot path"
  cao assign --session cao-3f9a12bc --agent gemini_cli "document pkg/store"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAssign,
}

var (
	assignSession string
	assignParent  string
	assignAgent   string
	assignProfile string
	assignWorkDir string
)

func init() {
	assignCmd.Flags().StringVarP(&assignSession, "session", "s", "", "Session to create the worker in (required)")
	assignCmd.Flags().StringVar(&assignParent, "parent", os.Getenv(config.EnvTerminalID), "Delegating worker id (default: $"+config.EnvTerminalID+")")
	assignCmd.Flags().StringVarP(&assignAgent, "agent", "a", "", "Agent type (default: inherit from parent, then settings)")
	assignCmd.Flags().StringVarP(&assignProfile, "profile", "p", "", "Agent profile name")
	assignCmd.Flags().StringVar(&assignWorkDir, "workdir", "", "Working directory for the worker")
	_ = assignCmd.MarkFlagRequired("session")
	rootCmd.AddCommand(assignCmd)
}

func runAssign(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	var agentType provider.Type
	if assignAgent != "" {
		if agentType, err = provider.ParseType(assignAgent); err != nil {
			return fmt.Errorf("%w (available: %s)", err, joinTypes())
		}
	}

	worker, err := a.orch.Assign(cmd.Context(), orchestrator.AssignRequest{
		SessionID: assignSession,
		ParentID:  assignParent,
		AgentType: agentType,
		Profile:   assignProfile,
		WorkDir:   assignWorkDir,
		Message:   strings.Join(args, " "),
	})
	if err != nil {
		return err
	}
	fmt.Printf("Assigned to worker: %s\n", worker.ID)
	return nil
}
