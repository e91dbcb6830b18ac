// Package storage persists chunks and their embeddings.
//
// Two working backends exist: a local JSON directory snapshot for offline
// use and PostgreSQL with pgvector for shared deployments. Both are
// addressed by a (database, container) pair; entities map to containers.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wildvoice/wildrag/internal/ai"
	"github.com/wildvoice/wildrag/internal/knowledge"
	"github.com/wildvoice/wildrag/internal/log"
)

// Backend identifies a storage implementation.
type Backend string

const (
	BackendLocal    Backend = "local"
	BackendPostgres Backend = "postgres"
	BackendQdrant   Backend = "qdrant"
)

var (
	// ErrStorageNotFound indicates the requested container does not exist.
	ErrStorageNotFound = errors.New("storage not found")

	// ErrBackendNotImplemented indicates a backend that is declared but
	// has no working implementation.
	ErrBackendNotImplemented = errors.New("storage backend not implemented")

	// ErrInvalidDimensions indicates an embedding with the wrong width.
	ErrInvalidDimensions = errors.New("invalid embedding dimensions")
)

// SearchResult is a retrieved chunk with its cosine similarity score.
type SearchResult struct {
	Chunk knowledge.Chunk
	Score float64
}

// Store is the per-container persistence contract shared by backends.
type Store interface {
	// Has reports whether a chunk with the given ID is stored.
	Has(ctx context.Context, id string) (bool, error)

	// Put inserts or replaces a chunk, embedding included.
	Put(ctx context.Context, chunk knowledge.Chunk) error

	// Search returns the topK most similar chunks by cosine similarity.
	Search(ctx context.Context, vector []float32, topK int) ([]SearchResult, error)

	// FileNames lists the trace file names already in use.
	FileNames(ctx context.Context) ([]string, error)

	// Save flushes state to durable storage where the backend buffers.
	Save(ctx context.Context) error

	Close(ctx context.Context) error
}

// Options selects and addresses a backend.
type Options struct {
	Backend   Backend
	Database  string
	Container string

	// BaseDir is the snapshot directory root for the local backend.
	BaseDir string

	// Pool is the connection pool for the PostgreSQL backend. The caller
	// keeps ownership and closes it.
	Pool *pgxpool.Pool
}

// Context wraps a Store with the chunk bookkeeping shared by all backends:
// content addressed IDs, idempotent insertion and trace name assignment.
type Context struct {
	store   Store
	backend Backend
	logger  log.Logger
}

// Create provisions a new container and returns a context for it.
func Create(ctx context.Context, opts Options, logger log.Logger) (*Context, error) {
	if logger == nil {
		logger = log.NewNop()
	}
	store, err := createStore(ctx, opts, logger)
	if err != nil {
		return nil, err
	}
	return &Context{store: store, backend: opts.Backend, logger: logger}, nil
}

// Load opens an existing container. A missing container returns
// ErrStorageNotFound.
func Load(ctx context.Context, opts Options, logger log.Logger) (*Context, error) {
	if logger == nil {
		logger = log.NewNop()
	}
	store, err := loadStore(ctx, opts, logger)
	if err != nil {
		return nil, err
	}
	return &Context{store: store, backend: opts.Backend, logger: logger}, nil
}

func createStore(ctx context.Context, opts Options, logger log.Logger) (Store, error) {
	switch opts.Backend {
	case BackendLocal:
		return createLocal(opts, logger)
	case BackendPostgres:
		return createPostgres(ctx, opts, logger)
	case BackendQdrant:
		return nil, fmt.Errorf("%w: %s", ErrBackendNotImplemented, opts.Backend)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", opts.Backend)
	}
}

func loadStore(ctx context.Context, opts Options, logger log.Logger) (Store, error) {
	switch opts.Backend {
	case BackendLocal:
		return loadLocal(opts, logger)
	case BackendPostgres:
		return loadPostgres(ctx, opts, logger)
	case BackendQdrant:
		return nil, fmt.Errorf("%w: %s", ErrBackendNotImplemented, opts.Backend)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", opts.Backend)
	}
}

// Backend returns the backend this context operates on.
func (c *Context) Backend() Backend { return c.backend }

// AddChunks stores chunks, skipping those already present unless update is
// set. When generateID is set each chunk ID is recomputed from its text.
// Trace file names are made unique with ordinal suffixes. The returned
// slice holds the chunks actually written, with their final metadata.
func (c *Context) AddChunks(ctx context.Context, chunks []knowledge.Chunk, generateID, update bool) ([]knowledge.Chunk, error) {
	existing, err := c.store.FileNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing trace names: %w", err)
	}
	used := make(map[string]bool, len(existing))
	for _, name := range existing {
		used[name] = true
	}

	var added []knowledge.Chunk
	for _, chunk := range chunks {
		if generateID || chunk.ID == "" {
			chunk.ID = knowledge.ContentHash(chunk.Text)
		}

		has, err := c.store.Has(ctx, chunk.ID)
		if err != nil {
			return added, fmt.Errorf("checking chunk %s: %w", chunk.ID, err)
		}
		if has && !update {
			c.logger.Info("chunk already stored, skipping", "id", chunk.ID)
			continue
		}

		if base := chunk.Metadata[knowledge.MetaFileName]; base != "" {
			name := uniqueName(base, used)
			used[name] = true
			if name != base {
				md := make(map[string]string, len(chunk.Metadata))
				for k, v := range chunk.Metadata {
					md[k] = v
				}
				md[knowledge.MetaFileName] = name
				chunk.Metadata = md
			}
		}

		if err := c.store.Put(ctx, chunk); err != nil {
			return added, fmt.Errorf("storing chunk %s: %w", chunk.ID, err)
		}
		added = append(added, chunk)
	}

	c.logger.Info("chunks stored",
		"requested", len(chunks),
		"written", len(added),
		"skipped", len(chunks)-len(added))
	return added, nil
}

// Index embeds the given chunks and stores them with their vectors.
func (c *Context) Index(ctx context.Context, chunks []knowledge.Chunk, embedder ai.Embedder) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.EmbedText()
	}

	vectors, err := embedder.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embedding %d chunks: %w", len(chunks), err)
	}
	if len(vectors) != len(chunks) {
		return fmt.Errorf("embedding returned %d vectors for %d chunks", len(vectors), len(chunks))
	}

	for i, chunk := range chunks {
		if len(vectors[i]) != ai.EmbeddingDimensions {
			return fmt.Errorf("%w: chunk %s has %d, want %d",
				ErrInvalidDimensions, chunk.ID, len(vectors[i]), ai.EmbeddingDimensions)
		}
		chunk.Embedding = vectors[i]
		if err := c.store.Put(ctx, chunk); err != nil {
			return fmt.Errorf("storing vector for chunk %s: %w", chunk.ID, err)
		}
	}

	c.logger.Info("chunks indexed", "count", len(chunks))
	return nil
}

// Search returns the topK chunks most similar to the query vector.
func (c *Context) Search(ctx context.Context, vector []float32, topK int) ([]SearchResult, error) {
	if len(vector) != ai.EmbeddingDimensions {
		return nil, fmt.Errorf("%w: query has %d, want %d",
			ErrInvalidDimensions, len(vector), ai.EmbeddingDimensions)
	}
	return c.store.Search(ctx, vector, topK)
}

// Save flushes buffered state. A no-op for backends that write through.
func (c *Context) Save(ctx context.Context) error {
	return c.store.Save(ctx)
}

// Close releases backend resources.
func (c *Context) Close(ctx context.Context) error {
	return c.store.Close(ctx)
}

// uniqueName returns base when free, else the first base_<n> not in used.
func uniqueName(base string, used map[string]bool) string {
	if !used[base] {
		return base
	}
	for n := 1; ; n++ {
		candidate := base + "_" + strconv.Itoa(n)
		if !used[candidate] {
			return candidate
		}
	}
}
