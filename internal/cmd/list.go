package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/cao-dev/cao/internal/style"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions and their workers",
	Long: `List every session with its workers. Worker status is read live from
each agent's pane; unreachable workers show their last recorded status.`,
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	sessions, err := a.orch.ListSessions(cmd.Context())
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Println("No sessions.")
		fmt.Println("\nStart one with: cao launch")
		return nil
	}

	for _, session := range sessions {
		fmt.Printf("%s  %s  (%s)\n", session.ID, session.Name, session.Status)

		workers, err := a.orch.ListWorkers(cmd.Context(), session.ID)
		if err != nil {
			fmt.Printf("  workers unavailable: %v\n", err)
			continue
		}
		tbl := style.NewTable(
			style.Column{Name: "WORKER", Width: 10},
			style.Column{Name: "AGENT", Width: 12},
			style.Column{Name: "PROFILE", Width: 14},
			style.Column{Name: "STATUS", Width: 20},
			style.Column{Name: "LAST ACTIVE", Width: 16},
		)
		for _, w := range workers {
			tbl.AddRow(w.ID, w.AgentType, w.AgentProfile, w.Status, formatLastActive(w.LastActive))
		}
		fmt.Print(tbl.Render())
	}
	return nil
}

func formatLastActive(t time.Time) string {
	if t.IsZero() {
		return "n/a"
	}
	return t.Local().Format("2006-01-02 15:04")
}
