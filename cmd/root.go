// Package cmd implements the docuchat command line interface.
package cmd

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/koopa0/docuchat/internal/app"
	"github.com/koopa0/docuchat/internal/log"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "docuchat",
	Short: "docuchat - chat with your documents",
	Long: `docuchat ingests a folder of documents into PostgreSQL with pgvector
and answers questions about them with retrieval-augmented generation.

Run "docuchat ingest" to index your documents folder, then
"docuchat chat" to start asking questions.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// newApp wires the application for a command invocation.
func newApp(cmd *cobra.Command) (*app.App, error) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := log.New(log.Config{Level: level})

	return app.New(cmd.Context(), logger)
}
