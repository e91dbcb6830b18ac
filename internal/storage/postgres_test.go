package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wildvoice/wildrag/internal/ai"
	"github.com/wildvoice/wildrag/internal/knowledge"
	"github.com/wildvoice/wildrag/internal/log"
	"github.com/wildvoice/wildrag/internal/testutil"
)

func TestPostgresBackend(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}

	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	opts := Options{
		Backend:   BackendPostgres,
		Database:  "vectorSearchDB",
		Container: "seal_vectorSearchContainer",
		Pool:      db.Pool,
	}

	// Loading before creation fails.
	_, err := Load(ctx, opts, log.NewNop())
	assert.ErrorIs(t, err, ErrStorageNotFound)

	sc, err := Create(ctx, opts, log.NewNop())
	require.NoError(t, err)

	// Creation is idempotent.
	_, err = Create(ctx, opts, log.NewNop())
	require.NoError(t, err)

	// The container is registered in the catalog.
	var registered bool
	err = db.Pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM wildrag_containers
		 WHERE database_name = $1 AND container_name = $2)`,
		opts.Database, opts.Container).Scan(&registered)
	require.NoError(t, err)
	assert.True(t, registered)

	chunks := []knowledge.Chunk{
		knowledge.NewChunk("seals rest on sandbanks", map[string]string{knowledge.MetaFileName: "report.txt"}),
		knowledge.NewChunk("seagrass grows in shallow water", map[string]string{knowledge.MetaFileName: "report.txt"}),
	}
	added, err := sc.AddChunks(ctx, chunks, true, false)
	require.NoError(t, err)
	require.Len(t, added, 2)
	assert.Equal(t, "report.txt", added[0].Metadata[knowledge.MetaFileName])
	assert.Equal(t, "report.txt_1", added[1].Metadata[knowledge.MetaFileName])

	// Re-ingestion writes nothing.
	again, err := sc.AddChunks(ctx, chunks, true, false)
	require.NoError(t, err)
	assert.Empty(t, again)

	require.NoError(t, sc.Index(ctx, added, &stubEmbedder{dims: ai.EmbeddingDimensions}))

	query := make([]float32, ai.EmbeddingDimensions)
	query[0] = 1
	query[1] = 1

	results, err := sc.Search(ctx, query, 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "seals rest on sandbanks", results[0].Chunk.Text)
	assert.InDelta(t, 1.0, results[0].Score, 0.01)

	// Loading the existing container now succeeds and sees the data.
	reloaded, err := Load(ctx, opts, log.NewNop())
	require.NoError(t, err)
	results, err = reloaded.Search(ctx, query, 5)
	require.NoError(t, err)
	assert.Len(t, results, 2)
}
