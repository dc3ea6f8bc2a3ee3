package commands

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/intel/university-curriculum-enabling-tool-sub000/internal/observability"
	"github.com/intel/university-curriculum-enabling-tool-sub000/internal/services"
	contextutils "github.com/intel/university-curriculum-enabling-tool-sub000/internal/utils"

	"github.com/spf13/cobra"
)

// DBOpener opens the configured database
type DBOpener func(ctx context.Context) (*sql.DB, error)

// IngestCommand returns the ingest command
func IngestCommand(logger *observability.Logger, openDB DBOpener) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "ingest <chunks.json>",
		Short: "Load source chunks into the database",
		Long: `Load a JSON array of source chunks into the source_chunks table.

Each chunk is keyed by sourceId and order; existing rows with the same key are
replaced. Migrations run first when database.auto_migrate is set.

Use --dry-run to validate the file without connecting to the database.`,
		Args: cobra.ExactArgs(1),
		RunE: runIngest(logger, openDB, &dryRun),
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Validate the chunks file without writing to the database")

	return cmd
}

func runIngest(logger *observability.Logger, openDB DBOpener, dryRun *bool) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		chunks, err := services.LoadChunksFile(args[0])
		if err != nil {
			return err
		}
		sources := make(map[string]struct{})
		for i, c := range chunks {
			if c.SourceID == "" {
				return contextutils.WrapErrorf(contextutils.ErrMissingRequired, "chunk %d has no sourceId", i)
			}
			sources[c.SourceID] = struct{}{}
		}

		if *dryRun {
			fmt.Fprintf(cmd.OutOrStdout(), "%d chunks from %d sources are valid\n", len(chunks), len(sources))
			return nil
		}

		db, err := openDB(ctx)
		if err != nil {
			return contextutils.WrapError(err, "failed to connect to database")
		}
		defer func() {
			if err := db.Close(); err != nil {
				logger.Warn(ctx, "Warning: failed to close database connection", map[string]interface{}{"error": err.Error()})
			}
		}()

		if err := services.NewPostgresChunkRepository(db, logger).SaveChunks(ctx, chunks); err != nil {
			logger.Error(ctx, "Failed to ingest source chunks", err, map[string]interface{}{"file": args[0]})
			return err
		}

		logger.Info(ctx, "Ingested source chunks", map[string]interface{}{
			"file":    args[0],
			"chunks":  len(chunks),
			"sources": len(sources),
		})
		fmt.Fprintf(cmd.OutOrStdout(), "ingested %d chunks from %d sources\n", len(chunks), len(sources))
		return nil
	}
}
