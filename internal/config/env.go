package config

// Environment variables cao sets or reads. CAO_TERMINAL_ID is injected
// into every worker window so agents (and their MCP subprocesses) can
// identify themselves when calling back; CAO_PARENT_TERMINAL_ID links
// a delegated worker to its creator.
const (
	EnvHome             = "CAO_HOME"
	EnvTerminalID       = "CAO_TERMINAL_ID"
	EnvParentTerminalID = "CAO_PARENT_TERMINAL_ID"
)

// WorkerEnv is the environment injected into a worker's tmux window.
func WorkerEnv(workerID, parentID string) map[string]string {
	env := map[string]string{EnvTerminalID: workerID}
	if parentID != "" {
		env[EnvParentTerminalID] = parentID
	}
	return env
}
