package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var sendCmd = &cobra.Command{
	Use:   "send <worker-id> <message>...",
	Short: "Send input to a worker",
	Long: `Deliver text to a worker's agent through bracketed paste. Multiple
message arguments are joined with spaces.

With --key, send a single tmux key name instead of text:

  cao send --key Escape 3f9a12bc
  cao send 3f9a12bc "run the tests and fix failures"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSend,
}

var sendKey string

func init() {
	sendCmd.Flags().StringVar(&sendKey, "key", "", "Send a raw key (Enter, Escape, C-c) instead of text")
	rootCmd.AddCommand(sendCmd)
}

func runSend(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	workerID := args[0]
	if sendKey != "" {
		if len(args) > 1 {
			return fmt.Errorf("--key takes no message arguments")
		}
		return a.orch.SendSpecialKey(cmd.Context(), workerID, sendKey)
	}
	if len(args) < 2 {
		return fmt.Errorf("message required")
	}
	return a.orch.SendInput(cmd.Context(), workerID, strings.Join(args[1:], " "))
}
