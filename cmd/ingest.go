package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/arealhq/arealbot/internal/app"
	"github.com/arealhq/arealbot/internal/config"
	"github.com/arealhq/arealbot/internal/ingest"
)

var ingestRoles []string

var ingestCmd = &cobra.Command{
	Use:   "ingest [directory]",
	Short: "Load documents from a directory into the knowledge base",
	Long: `Ingest splits .txt and .md files into chunks, embeds them, and stores
them with role tags. Roles are inferred from path keywords (hr/, sales/,
internal/, ...); files that match nothing get the --roles default.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringSliceVar(&ingestRoles, "roles", []string{"public"},
		"default roles for documents without path keywords")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := app.Setup(ctx, cfg)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			a.Logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	ingestor, err := ingest.New(a.Knowledge, nil, ingestRoles,
		a.Logger.With("component", "ingest"))
	if err != nil {
		return fmt.Errorf("creating ingestor: %w", err)
	}

	result, err := ingestor.AddDirectory(ctx, args[0])
	if err != nil {
		return fmt.Errorf("ingesting %s: %w", args[0], err)
	}

	fmt.Printf("Processed %d files (%d skipped, %d failed), %d chunks added in %s\n",
		result.FilesProcessed, result.FilesSkipped, result.FilesFailed,
		result.ChunksAdded, result.Elapsed.Round(time.Millisecond))
	return nil
}
