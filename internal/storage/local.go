package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gofrs/flock"

	"github.com/wildvoice/wildrag/internal/knowledge"
	"github.com/wildvoice/wildrag/internal/log"
)

// Snapshot file names inside a local container directory.
const (
	docStoreFile = "docstore.json"
	vectorsFile  = "vectors.json"
	indexFile    = "index.json"
	lockFile     = ".lock"
)

const lockTimeout = 10 * time.Second

// localStore keeps chunks in memory and snapshots them to a directory as
// JSON. Concurrent processes are serialized with a file lock during
// snapshot reads and writes.
type localStore struct {
	dir    string
	logger log.Logger

	docs    map[string]knowledge.Chunk
	vectors map[string][]float32
	names   []string
}

// storedChunk is the docstore.json representation of a chunk. Embeddings
// live in vectors.json.
type storedChunk struct {
	ID                        string            `json:"id"`
	Text                      string            `json:"text"`
	Metadata                  map[string]string `json:"metadata,omitempty"`
	ExcludedLLMMetadataKeys   []string          `json:"excluded_llm_metadata_keys,omitempty"`
	ExcludedEmbedMetadataKeys []string          `json:"excluded_embed_metadata_keys,omitempty"`
}

func containerDir(opts Options) string {
	return filepath.Join(opts.BaseDir, opts.Database, opts.Container)
}

func createLocal(opts Options, logger log.Logger) (*localStore, error) {
	dir := containerDir(opts)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating storage directory %s: %w", dir, err)
	}
	logger.Info("local storage created", "dir", dir)
	return &localStore{
		dir:     dir,
		logger:  logger,
		docs:    make(map[string]knowledge.Chunk),
		vectors: make(map[string][]float32),
	}, nil
}

func loadLocal(opts Options, logger log.Logger) (*localStore, error) {
	dir := containerDir(opts)
	if _, err := os.Stat(dir); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrStorageNotFound, dir)
		}
		return nil, fmt.Errorf("checking storage directory %s: %w", dir, err)
	}

	s := &localStore{
		dir:     dir,
		logger:  logger,
		docs:    make(map[string]knowledge.Chunk),
		vectors: make(map[string][]float32),
	}
	if err := s.withLock(func() error { return s.load() }); err != nil {
		return nil, err
	}
	logger.Info("local storage loaded", "dir", dir, "chunks", len(s.docs))
	return s, nil
}

func (s *localStore) Has(_ context.Context, id string) (bool, error) {
	_, ok := s.docs[id]
	return ok, nil
}

func (s *localStore) Put(_ context.Context, chunk knowledge.Chunk) error {
	if chunk.Embedding != nil {
		s.vectors[chunk.ID] = chunk.Embedding
	}
	stored := chunk
	stored.Embedding = nil
	s.docs[chunk.ID] = stored
	if name := chunk.Metadata[knowledge.MetaFileName]; name != "" {
		s.recordName(name)
	}
	return nil
}

func (s *localStore) Search(_ context.Context, vector []float32, topK int) ([]SearchResult, error) {
	results := make([]SearchResult, 0, len(s.vectors))
	for id, v := range s.vectors {
		chunk, ok := s.docs[id]
		if !ok {
			continue
		}
		chunk.Embedding = v
		results = append(results, SearchResult{
			Chunk: chunk,
			Score: cosineSimilarity(vector, v),
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func (s *localStore) FileNames(_ context.Context) ([]string, error) {
	out := make([]string, len(s.names))
	copy(out, s.names)
	return out, nil
}

func (s *localStore) Save(_ context.Context) error {
	return s.withLock(func() error { return s.save() })
}

func (s *localStore) Close(context.Context) error { return nil }

func (s *localStore) recordName(name string) {
	for _, n := range s.names {
		if n == name {
			return
		}
	}
	s.names = append(s.names, name)
}

func (s *localStore) withLock(fn func() error) error {
	lock := flock.New(filepath.Join(s.dir, lockFile))
	ctx, cancel := context.WithTimeout(context.Background(), lockTimeout)
	defer cancel()

	ok, err := lock.TryLockContext(ctx, 100*time.Millisecond)
	if err != nil {
		return fmt.Errorf("acquiring storage lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("storage lock at %s is held by another process", s.dir)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			s.logger.Warn("releasing storage lock", "error", err)
		}
	}()

	return fn()
}

func (s *localStore) save() error {
	docs := make([]storedChunk, 0, len(s.docs))
	for _, c := range s.docs {
		docs = append(docs, storedChunk{
			ID:                        c.ID,
			Text:                      c.Text,
			Metadata:                  c.Metadata,
			ExcludedLLMMetadataKeys:   c.ExcludedLLMMetadataKeys,
			ExcludedEmbedMetadataKeys: c.ExcludedEmbedMetadataKeys,
		})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })

	if err := writeJSONFile(filepath.Join(s.dir, docStoreFile), docs); err != nil {
		return err
	}
	if err := writeJSONFile(filepath.Join(s.dir, vectorsFile), s.vectors); err != nil {
		return err
	}
	if err := writeJSONFile(filepath.Join(s.dir, indexFile), s.names); err != nil {
		return err
	}

	s.logger.Debug("snapshot written", "dir", s.dir, "chunks", len(s.docs))
	return nil
}

func (s *localStore) load() error {
	var docs []storedChunk
	if err := readJSONFile(filepath.Join(s.dir, docStoreFile), &docs); err != nil {
		return err
	}
	for _, d := range docs {
		s.docs[d.ID] = knowledge.Chunk{
			ID:                        d.ID,
			Text:                      d.Text,
			Metadata:                  d.Metadata,
			ExcludedLLMMetadataKeys:   d.ExcludedLLMMetadataKeys,
			ExcludedEmbedMetadataKeys: d.ExcludedEmbedMetadataKeys,
		}
	}
	if err := readJSONFile(filepath.Join(s.dir, vectorsFile), &s.vectors); err != nil {
		return err
	}
	if err := readJSONFile(filepath.Join(s.dir, indexFile), &s.names); err != nil {
		return err
	}
	return nil
}

// writeJSONFile writes atomically via a temp file and rename.
func writeJSONFile(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", filepath.Base(path), err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("closing %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("replacing %s: %w", filepath.Base(path), err)
	}
	return nil
}

// readJSONFile decodes path into v. A missing file leaves v untouched so
// partially written containers still load.
func readJSONFile(path string, v any) error {
	data, err := os.ReadFile(path) // #nosec G304 -- path is built from configured storage dirs
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding %s: %w", filepath.Base(path), err)
	}
	return nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
