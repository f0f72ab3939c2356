// Package cmd provides the CLI commands for swasth.
//
// Commands:
//   - serve: HTTP API server with SSE streaming chat
//   - ingest: index a folder of documents into the knowledge base
//   - version: build information
//
// Signal handling and graceful shutdown are implemented for long-running
// commands via context cancellation.
package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/swasthai/swasth/internal/log"
)

var rootCmd = &cobra.Command{
	Use:   "swasth",
	Short: "Swasth AI - retrieval-augmented medical assistant service",
	Long: `Swasth AI serves a medical assistant chat API backed by a
PostgreSQL vector store. Documents ingested into the knowledge base and
summaries of past conversations are retrieved per question and spliced
into the model prompt.`,
	SilenceUsage: true,
}

// Execute runs the root command. Called once from main.
func Execute() error {
	level := slog.LevelInfo
	if os.Getenv("DEBUG") != "" {
		level = slog.LevelDebug
	}
	logger := log.New(log.Config{Level: level, JSON: os.Getenv("SWASTH_LOG_JSON") != ""})
	slog.SetDefault(logger)

	return rootCmd.Execute()
}
