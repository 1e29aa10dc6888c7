// cao orchestrates CLI coding agents as tmux-hosted workers.
package main

import (
	"os"

	"github.com/cao-dev/cao/internal/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
