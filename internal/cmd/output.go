package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cao-dev/cao/internal/orchestrator"
)

var outputCmd = &cobra.Command{
	Use:   "output <worker-id>",
	Short: "Read a worker's pane output",
	Long: `Print a worker's terminal output.

Modes:
  full   raw scrollback, escape sequences preserved (default)
  last   the agent's most recent response, extracted and cleaned`,
	Args: cobra.ExactArgs(1),
	RunE: runOutput,
}

var outputMode string

func init() {
	outputCmd.Flags().StringVarP(&outputMode, "mode", "m", orchestrator.OutputFull, "Output mode: full or last")
	rootCmd.AddCommand(outputCmd)
}

func runOutput(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	out, err := a.orch.GetOutput(cmd.Context(), args[0], outputMode)
	if err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}
