package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/wildvoice/wildrag/internal/config"
	"github.com/wildvoice/wildrag/internal/entity"
	"github.com/wildvoice/wildrag/internal/ingest"
	"github.com/wildvoice/wildrag/internal/knowledge"
	"github.com/wildvoice/wildrag/internal/storage"
)

var ingestFlags struct {
	dir          string
	backend      string
	dataDir      string
	recursive    bool
	update       bool
	enrich       bool
	strategy     string
	chunkSize    int
	chunkOverlap int
}

var ingestCmd = &cobra.Command{
	Use:   "ingest <entity>",
	Short: "Ingest documents into an entity's knowledge base",
	Long: `ingest reads the documents in a directory, splits them into chunks,
optionally enriches them with generated metadata, embeds them and writes
them to the entity's container. Chunks already present are skipped unless
--update is set.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestFlags.dir, "dir", "", "directory with source documents (required)")
	ingestCmd.Flags().StringVar(&ingestFlags.backend, "backend", "local", "storage backend (local, postgres or qdrant)")
	ingestCmd.Flags().StringVar(&ingestFlags.dataDir, "data-dir", defaultDataDir(), "snapshot directory for the local backend")
	ingestCmd.Flags().BoolVar(&ingestFlags.recursive, "recursive", false, "descend into subdirectories")
	ingestCmd.Flags().BoolVar(&ingestFlags.update, "update", false, "rewrite chunks that are already stored")
	ingestCmd.Flags().BoolVar(&ingestFlags.enrich, "enrich", false, "generate title, summary, keyword and question metadata")
	ingestCmd.Flags().StringVar(&ingestFlags.strategy, "strategy", "", "chunking strategy (overrides configuration)")
	ingestCmd.Flags().IntVar(&ingestFlags.chunkSize, "chunk-size", 0, "chunk size in tokens (overrides configuration)")
	ingestCmd.Flags().IntVar(&ingestFlags.chunkOverlap, "chunk-overlap", -1, "chunk overlap in tokens (overrides configuration)")
	_ = ingestCmd.MarkFlagRequired("dir")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	entityCfg, err := entity.Default().Get(args[0])
	if err != nil {
		return err
	}

	strategy := cfg.SplitStrategy
	if ingestFlags.strategy != "" {
		strategy = ingestFlags.strategy
	}
	chunkSize := cfg.ChunkSize
	if ingestFlags.chunkSize > 0 {
		chunkSize = ingestFlags.chunkSize
	}
	chunkOverlap := cfg.ChunkOverlap
	if ingestFlags.chunkOverlap >= 0 {
		chunkOverlap = ingestFlags.chunkOverlap
	}

	splitter, err := ingest.NewSplitter(strategy, chunkSize, chunkOverlap)
	if err != nil {
		return err
	}

	ctx := cmd.Context()

	reader := ingest.NewReader(logger)
	docs, err := reader.Read(ctx, ingestFlags.dir, ingestFlags.recursive)
	if err != nil {
		return err
	}
	if len(docs) == 0 {
		return fmt.Errorf("no supported documents in %s", ingestFlags.dir)
	}

	var chunks []knowledge.Chunk
	for _, doc := range docs {
		chunks = append(chunks, splitter.Split(doc)...)
	}
	logger.Info("documents split", "documents", len(docs), "chunks", len(chunks))

	factory := newFactory(cfg)

	if ingestFlags.enrich {
		// One model call per second keeps enrichment under quota.
		enricher := ingest.NewEnricher(factory.NewGenerator(), rate.NewLimiter(rate.Limit(1), 1), nil, logger)
		if err := enricher.Enrich(ctx, chunks); err != nil {
			return err
		}
	}

	sc, pool, err := openIngestStorage(ctx, cfg, entityCfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := sc.Close(ctx); err != nil {
			logger.Warn("closing storage", "error", err)
		}
		if pool != nil {
			pool.Close()
		}
	}()

	added, err := sc.AddChunks(ctx, chunks, true, ingestFlags.update)
	if err != nil {
		return err
	}
	if len(added) == 0 {
		cmd.Println("Nothing to do, all chunks are already stored.")
		return nil
	}

	if err := sc.Index(ctx, added, factory.NewEmbedder()); err != nil {
		return err
	}
	if err := sc.Save(ctx); err != nil {
		return err
	}

	cmd.Println(fmt.Sprintf("Ingested %d chunks into %s.%s (%d skipped).",
		len(added), entityCfg.DatabaseName, entityCfg.ContainerName, len(chunks)-len(added)))
	return nil
}

// openIngestStorage creates or opens the entity's container on the selected
// backend. The returned pool is non-nil for the Postgres backend and must
// be closed by the caller after the storage context.
func openIngestStorage(ctx context.Context, cfg *config.Config, entityCfg entity.Config) (*storage.Context, *pgxpool.Pool, error) {
	backend, err := parseBackend(ingestFlags.backend)
	if err != nil {
		return nil, nil, err
	}

	opts := storage.Options{
		Backend:   backend,
		Database:  entityCfg.DatabaseName,
		Container: entityCfg.ContainerName,
		BaseDir:   ingestFlags.dataDir,
	}

	if backend == storage.BackendPostgres {
		pool, err := openPostgres(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		opts.Pool = pool
	}

	// Append to an existing container, provision a fresh one otherwise.
	sc, err := storage.Load(ctx, opts, logger)
	if errors.Is(err, storage.ErrStorageNotFound) {
		sc, err = storage.Create(ctx, opts, logger)
	}
	if err != nil {
		if opts.Pool != nil {
			opts.Pool.Close()
		}
		return nil, nil, err
	}
	return sc, opts.Pool, nil
}
