package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/swasthai/swasth/internal/app"
	"github.com/swasthai/swasth/internal/config"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [dir]",
	Short: "Index a folder of documents into the knowledge base",
	Long: `Ingest walks the given directory (default: the configured knowledge
directory), splits every supported document into chunks, embeds each
chunk, and stores the vectors in PostgreSQL. Unsupported files are
skipped. Only one sweep may run against a directory at a time.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := ""
		if len(args) > 0 {
			dir = args[0]
		}
		return runIngest(dir)
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(dir string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if dir == "" {
		dir = cfg.KnowledgeDir
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := slog.Default()

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	report, err := a.Pipeline.Folder(ctx, dir)
	if err != nil {
		return fmt.Errorf("ingesting %s: %w", dir, err)
	}

	fmt.Printf("Ingested %d files (%d chunks stored) in %s\n",
		report.FilesIngested, report.ChunksStored, report.Duration.Round(time.Millisecond))
	if report.FilesSkipped > 0 {
		fmt.Printf("Skipped %d unsupported files\n", report.FilesSkipped)
	}
	if report.FilesFailed > 0 {
		fmt.Printf("Failed to read %d files\n", report.FilesFailed)
	}

	return nil
}
