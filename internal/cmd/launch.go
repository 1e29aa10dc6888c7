package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cao-dev/cao/internal/orchestrator"
	"github.com/cao-dev/cao/internal/provider"
)

var launchCmd = &cobra.Command{
	Use:   "launch",
	Short: "Create a session with one agent worker",
	Long: `Create a new tmux session, start an agent in its first window, and
wait for the agent to reach its input prompt.

The agent type defaults to the configured default-agent. kiro_cli and
q_cli require a profile.

Examples:
  cao launch
  cao launch --agent claude_code --name review
  cao launch --agent q_cli --profile developer
  cao launch --headless`,
	RunE: runLaunch,
}

var (
	launchAgent    string
	launchProfile  string
	launchName     string
	launchWorkDir  string
	launchHeadless bool
)

func init() {
	launchCmd.Flags().StringVarP(&launchAgent, "agent", "a", "", "Agent type (default from settings)")
	launchCmd.Flags().StringVarP(&launchProfile, "profile", "p", "", "Agent profile name")
	launchCmd.Flags().StringVarP(&launchName, "name", "n", "", "Session name (default: auto-generated)")
	launchCmd.Flags().StringVar(&launchWorkDir, "workdir", "", "Working directory for the worker")
	launchCmd.Flags().BoolVar(&launchHeadless, "headless", false, "Do not attach to the tmux session")
	rootCmd.AddCommand(launchCmd)
}

func runLaunch(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	agentName := launchAgent
	if agentName == "" {
		agentName = a.cfg.Settings.DefaultAgent
	}
	agentType, err := provider.ParseType(agentName)
	if err != nil {
		return fmt.Errorf("%w (available: %s)", err, joinTypes())
	}

	name := launchName
	if name == "" {
		name = generateSessionName()
	}

	session, worker, err := a.orch.CreateSession(cmd.Context(), name, orchestrator.WorkerConfig{
		AgentType: agentType,
		Profile:   launchProfile,
		WorkDir:   launchWorkDir,
	})
	if err != nil {
		return err
	}

	fmt.Printf("Session created: %s (%s)\n", session.Name, session.ID)
	fmt.Printf("Worker ready: %s (%s)\n", worker.ID, worker.AgentType)

	if launchHeadless {
		return nil
	}
	// Hand the terminal to tmux. Everything is released first so the
	// attached worker's own cao invocations run unimpeded for as long
	// as the user stays attached.
	a.Close()
	attach := exec.Command("tmux", "attach-session", "-t", session.ID)
	attach.Stdin = os.Stdin
	attach.Stdout = os.Stdout
	attach.Stderr = os.Stderr
	return attach.Run()
}

func joinTypes() string {
	names := make([]string, 0, len(provider.Types()))
	for _, t := range provider.Types() {
		names = append(names, string(t))
	}
	return strings.Join(names, ", ")
}
