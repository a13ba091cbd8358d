// Package cmd implements the taxline command line interface.
package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/taxline/taxline/internal/log"
)

var rootCmd = &cobra.Command{
	Use:   "taxline",
	Short: "Tax advisory query routing service",
	Long: `taxline answers tax and bookkeeping questions from a curated knowledge
base and routes each query either to an AI-generated answer or to a human
specialist, based on complexity, urgency, and answer confidence.

Run "taxline serve" to start the HTTP API, or "taxline ask" for a one-shot
question from the terminal.`,
}

// newLogger builds the process logger. TAXLINE_DEBUG=1 lowers the level to
// debug; json selects the output format.
func newLogger(json bool) log.Logger {
	level := slog.LevelInfo
	if os.Getenv("TAXLINE_DEBUG") == "1" {
		level = slog.LevelDebug
	}
	return log.New(log.Config{Level: level, JSON: json})
}
