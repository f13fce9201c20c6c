package main

import (
	"os"

	"github.com/codex-k8s/ticketlint/internal/cli"
	"github.com/codex-k8s/ticketlint/internal/logging"
)

// main is the entry point for the ticketlint CLI binary.
func main() {
	logger := logging.NewLogger(os.Stderr, logging.LevelInfo)
	if err := cli.Execute(os.Args[1:], logger); err != nil {
		if !cli.IsAnnotated(err) {
			logger.Error("command failed", "error", err)
		}
		os.Exit(1)
	}
}
