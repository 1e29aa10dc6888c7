package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cao-dev/cao/internal/profile"
	"github.com/cao-dev/cao/internal/style"
)

var profilesCmd = &cobra.Command{
	Use:   "profiles",
	Short: "List available agent profiles",
	Long: `List the TOML agent profiles in the profiles directory. A profile
carries a system prompt and MCP server configuration injected into the
agent's launch command.`,
	RunE: runProfiles,
}

func init() {
	rootCmd.AddCommand(profilesCmd)
}

func runProfiles(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	profiles := profile.NewStore(a.cfg.ProfilesDir())
	names, err := profiles.List()
	if err != nil {
		return err
	}
	if len(names) == 0 {
		fmt.Printf("No profiles in %s.\n", a.cfg.ProfilesDir())
		return nil
	}

	tbl := style.NewTable(
		style.Column{Name: "NAME", Width: 20},
		style.Column{Name: "DESCRIPTION", Width: 50},
	)
	for _, name := range names {
		p, err := profiles.Load(name)
		if err != nil {
			tbl.AddRow(name, fmt.Sprintf("unreadable: %v", err))
			continue
		}
		tbl.AddRow(name, p.Description)
	}
	fmt.Print(tbl.Render())
	return nil
}
