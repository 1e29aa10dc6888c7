package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var deleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete a worker or a session",
	RunE:  requireSubcommand,
}

var deleteWorkerCmd = &cobra.Command{
	Use:   "worker <worker-id>",
	Short: "Tear down one worker",
	Long: `Stop log piping, clean up the agent, kill the tmux window, and delete
the worker record. Individual teardown steps that fail are logged and
skipped; the record delete always runs.`,
	Args: cobra.ExactArgs(1),
	RunE: runDeleteWorker,
}

var deleteSessionCmd = &cobra.Command{
	Use:   "session <session-id>",
	Short: "Tear down a session and all its workers",
	Args:  cobra.ExactArgs(1),
	RunE:  runDeleteSession,
}

func init() {
	deleteCmd.AddCommand(deleteWorkerCmd, deleteSessionCmd)
	rootCmd.AddCommand(deleteCmd)
}

func runDeleteWorker(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.orch.DeleteWorker(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Printf("Worker deleted: %s\n", args[0])
	return nil
}

func runDeleteSession(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.orch.DeleteSession(cmd.Context(), args[0]); err != nil {
		return err
	}
	fmt.Printf("Session deleted: %s\n", args[0])
	return nil
}

// requireSubcommand errors instead of silently printing help when a
// parent command is called bare or with an unknown subcommand.
func requireSubcommand(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("requires a subcommand\n\nRun '%s --help' for usage", cmd.CommandPath())
	}
	return fmt.Errorf("unknown command %q for %q", args[0], cmd.CommandPath())
}
