// Package cmd implements the wildrag command line interface.
package cmd

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/wildvoice/wildrag/internal/log"
)

var logger log.Logger = log.NewNop()

var rootCmd = &cobra.Command{
	Use:   "wildrag",
	Short: "Entity scoped retrieval augmented generation",
	Long: `wildrag answers questions against entity scoped knowledge bases.

Documents are ingested into per-entity vector containers; queries are
grounded with the entity's perspective prompt, retrieve the most similar
chunks and synthesize an answer from them.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(*cobra.Command, []string) {
		// A missing .env file is fine.
		_ = godotenv.Load()

		level := slog.LevelInfo
		if os.Getenv("DEBUG") != "" {
			level = slog.LevelDebug
		}
		logger = log.New(log.Config{Level: level})
		slog.SetDefault(logger)
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
