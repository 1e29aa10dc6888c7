package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status <worker-id>",
	Short: "Show a worker's live status",
	Long: `Read the worker's status from its rendered terminal: idle, processing,
completed, waiting_user_answer, or error.`,
	Args: cobra.ExactArgs(1),
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	status, err := a.orch.WorkerStatus(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	fmt.Println(status)
	return nil
}
