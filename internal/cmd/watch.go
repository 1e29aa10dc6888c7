package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Deliver queued messages as workers go idle",
	Long: `Watch every worker's pane log and deliver its pending inbox messages
the moment the agent shows its idle prompt. Runs until interrupted.

Workers launched after watch started are not picked up; restart watch
to adopt them.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	n, err := a.orch.WatchExisting(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Printf("Watching %d workers. Press Ctrl-C to stop.\n", n)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()
	return nil
}
