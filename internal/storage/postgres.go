package storage

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/wildvoice/wildrag/internal/ai"
	"github.com/wildvoice/wildrag/internal/knowledge"
	"github.com/wildvoice/wildrag/internal/log"
)

// postgresStore maps a container to schema <database>, table <container>.
// The embedding column is vector(3072). pgvector caps HNSW indexes at 2000
// dimensions for full precision vectors, so the index and the distance
// operator both go through a halfvec cast.
type postgresStore struct {
	pool      *pgxpool.Pool
	database  string
	container string
	logger    log.Logger
}

func (s *postgresStore) table() string {
	return pgx.Identifier{s.database, s.container}.Sanitize()
}

func createPostgres(ctx context.Context, opts Options, logger log.Logger) (*postgresStore, error) {
	s := &postgresStore{
		pool:      opts.Pool,
		database:  opts.Database,
		container: opts.Container,
		logger:    logger,
	}
	if s.pool == nil {
		return nil, fmt.Errorf("postgres backend requires a connection pool")
	}

	schema := pgx.Identifier{s.database}.Sanitize()
	indexName := pgx.Identifier{s.database + "_" + s.container + "_embedding_idx"}.Sanitize()

	stmts := []string{
		fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s", schema),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			metadata JSONB NOT NULL DEFAULT '{}',
			embedding vector(%d)
		)`, s.table(), ai.EmbeddingDimensions),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s USING hnsw ((embedding::halfvec(%d)) halfvec_cosine_ops)",
			indexName, s.table(), ai.EmbeddingDimensions),
	}
	for _, stmt := range stmts {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return nil, fmt.Errorf("provisioning container %s.%s: %w", s.database, s.container, err)
		}
	}

	_, err := s.pool.Exec(ctx,
		`INSERT INTO wildrag_containers (database_name, container_name)
		 VALUES ($1, $2) ON CONFLICT DO NOTHING`,
		s.database, s.container)
	if err != nil {
		return nil, fmt.Errorf("registering container %s.%s: %w", s.database, s.container, err)
	}

	logger.Info("postgres container ready", "database", s.database, "container", s.container)
	return s, nil
}

func loadPostgres(ctx context.Context, opts Options, logger log.Logger) (*postgresStore, error) {
	s := &postgresStore{
		pool:      opts.Pool,
		database:  opts.Database,
		container: opts.Container,
		logger:    logger,
	}
	if s.pool == nil {
		return nil, fmt.Errorf("postgres backend requires a connection pool")
	}

	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = $1 AND table_name = $2
		)`, s.database, s.container).Scan(&exists)
	if err != nil {
		return nil, fmt.Errorf("checking container %s.%s: %w", s.database, s.container, err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s.%s", ErrStorageNotFound, s.database, s.container)
	}
	return s, nil
}

func (s *postgresStore) Has(ctx context.Context, id string) (bool, error) {
	var exists bool
	query := fmt.Sprintf("SELECT EXISTS (SELECT 1 FROM %s WHERE id = $1)", s.table())
	if err := s.pool.QueryRow(ctx, query, id).Scan(&exists); err != nil {
		return false, fmt.Errorf("checking chunk existence: %w", err)
	}
	return exists, nil
}

func (s *postgresStore) Put(ctx context.Context, chunk knowledge.Chunk) error {
	query := fmt.Sprintf(`INSERT INTO %s (id, content, metadata, embedding)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET content = EXCLUDED.content,
		    metadata = EXCLUDED.metadata,
		    embedding = COALESCE(EXCLUDED.embedding, %s.embedding)`,
		s.table(), s.table())

	var embedding any
	if chunk.Embedding != nil {
		embedding = pgvector.NewVector(chunk.Embedding)
	}
	md := chunk.Metadata
	if md == nil {
		md = map[string]string{}
	}

	if _, err := s.pool.Exec(ctx, query, chunk.ID, chunk.Text, md, embedding); err != nil {
		return fmt.Errorf("upserting chunk %s: %w", chunk.ID, err)
	}
	return nil
}

func (s *postgresStore) Search(ctx context.Context, vector []float32, topK int) ([]SearchResult, error) {
	query := fmt.Sprintf(`SELECT id, content, metadata,
			1 - (embedding::halfvec(%d) <=> $1::halfvec(%d)) AS similarity
		FROM %s
		WHERE embedding IS NOT NULL
		ORDER BY embedding::halfvec(%d) <=> $1::halfvec(%d)
		LIMIT $2`,
		ai.EmbeddingDimensions, ai.EmbeddingDimensions,
		s.table(),
		ai.EmbeddingDimensions, ai.EmbeddingDimensions)

	rows, err := s.pool.Query(ctx, query, pgvector.NewVector(vector), topK)
	if err != nil {
		return nil, fmt.Errorf("searching container %s.%s: %w", s.database, s.container, err)
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var (
			chunk knowledge.Chunk
			score float64
		)
		if err := rows.Scan(&chunk.ID, &chunk.Text, &chunk.Metadata, &score); err != nil {
			return nil, fmt.Errorf("scanning search result: %w", err)
		}
		chunk.ExcludedLLMMetadataKeys = []string{knowledge.MetaFileName}
		chunk.ExcludedEmbedMetadataKeys = []string{knowledge.MetaFileName}
		results = append(results, SearchResult{Chunk: chunk, Score: score})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading search results: %w", err)
	}
	return results, nil
}

func (s *postgresStore) FileNames(ctx context.Context) ([]string, error) {
	query := fmt.Sprintf(
		"SELECT DISTINCT metadata->>'file_name' FROM %s WHERE metadata ? 'file_name'",
		s.table())

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("listing trace names: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scanning trace name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading trace names: %w", err)
	}
	return names, nil
}

// Save is a no-op, every Put writes through.
func (s *postgresStore) Save(context.Context) error { return nil }

// Close is a no-op, the pool is owned by the caller.
func (s *postgresStore) Close(context.Context) error { return nil }
