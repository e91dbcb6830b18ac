// Package query answers questions against an entity's knowledge base:
// retrieve the most similar chunks, then synthesize an answer from them.
package query

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/wildvoice/wildrag/internal/ai"
	"github.com/wildvoice/wildrag/internal/entity"
	"github.com/wildvoice/wildrag/internal/knowledge"
	"github.com/wildvoice/wildrag/internal/log"
	"github.com/wildvoice/wildrag/internal/storage"
)

// DefaultTopK is the number of chunks retrieved per query.
const DefaultTopK = 5

const synthesisPrompt = "Context information is below.\n" +
	"---------------------\n" +
	"%s\n" +
	"---------------------\n" +
	"Given the context information and not prior knowledge, answer the query.\n" +
	"Query: %s\n" +
	"Answer: "

// Storage is the slice of the storage context the service needs.
type Storage interface {
	Search(ctx context.Context, vector []float32, topK int) ([]storage.SearchResult, error)
	Close(ctx context.Context) error
}

// Connector opens the knowledge base behind an entity. A fresh connection
// is made per query and closed when the query finishes.
type Connector interface {
	Connect(ctx context.Context, database, container string) (Storage, error)
}

// Source describes one retrieved chunk in a query result.
type Source struct {
	FileName string  `json:"file_name"`
	Score    float64 `json:"score"`
	Text     string  `json:"text"`
}

// Result is a completed query.
type Result struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
	Query   string   `json:"query"`
	Entity  string   `json:"entity"`
}

// Service runs entity scoped retrieval and synthesis.
type Service struct {
	registry  *entity.Registry
	generator ai.Generator
	embedder  ai.Embedder
	connector Connector
	topK      int
	logger    log.Logger
}

// NewService creates a query service. topK <= 0 selects DefaultTopK.
func NewService(registry *entity.Registry, generator ai.Generator, embedder ai.Embedder, connector Connector, topK int, logger log.Logger) *Service {
	if topK <= 0 {
		topK = DefaultTopK
	}
	if logger == nil {
		logger = log.NewNop()
	}
	return &Service{
		registry:  registry,
		generator: generator,
		embedder:  embedder,
		connector: connector,
		topK:      topK,
		logger:    logger,
	}
}

// Process answers queryText against the named entity's knowledge base.
// The entity's grounded prompt is prepended to the query for retrieval and
// synthesis; the returned Result carries the original query unchanged.
func (s *Service) Process(ctx context.Context, entityName, queryText string) (*Result, error) {
	cfg, err := s.registry.Get(entityName)
	if err != nil {
		return nil, err
	}

	grounded := queryText
	if cfg.GroundedPrompt != "" {
		grounded = cfg.GroundedPrompt + " " + queryText
	}
	s.logger.Debug("processing query",
		"entity", entityName,
		"database", cfg.DatabaseName,
		"container", cfg.ContainerName)

	store, err := s.connector.Connect(ctx, cfg.DatabaseName, cfg.ContainerName)
	if err != nil {
		return nil, fmt.Errorf("connecting to knowledge base for %s: %w", entityName, err)
	}
	defer func() {
		if err := store.Close(ctx); err != nil {
			s.logger.Warn("closing knowledge base", "entity", entityName, "error", err)
		}
	}()

	vectors, err := s.embedder.Embed(ctx, []string{grounded})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embedding query: got %d vectors, want 1", len(vectors))
	}

	results, err := store.Search(ctx, vectors[0], s.topK)
	if err != nil {
		return nil, fmt.Errorf("searching knowledge base: %w", err)
	}

	answer, err := s.synthesize(ctx, grounded, results)
	if err != nil {
		return nil, err
	}

	sources := make([]Source, len(results))
	for i, r := range results {
		sources[i] = Source{
			FileName: r.Chunk.FileName(),
			Score:    r.Score,
			Text:     r.Chunk.Text,
		}
	}

	s.logger.Info("query answered",
		"entity", entityName,
		"sources", len(sources))
	return &Result{
		Answer:  answer,
		Sources: sources,
		Query:   queryText,
		Entity:  entityName,
	}, nil
}

func (s *Service) synthesize(ctx context.Context, groundedQuery string, results []storage.SearchResult) (string, error) {
	parts := make([]string, len(results))
	for i, r := range results {
		parts[i] = chunkContext(r.Chunk)
	}
	contextStr := strings.Join(parts, "\n\n")

	answer, err := s.generator.Generate(ctx, fmt.Sprintf(synthesisPrompt, contextStr, groundedQuery))
	if err != nil {
		return "", fmt.Errorf("synthesizing answer: %w", err)
	}
	return strings.TrimSpace(answer), nil
}

// chunkContext renders the language model view of a chunk: visible
// metadata as key value lines, then the text.
func chunkContext(c knowledge.Chunk) string {
	md := c.LLMMetadata()
	if len(md) == 0 {
		return c.Text
	}
	keys := make([]string, 0, len(md))
	for k := range md {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteString(": ")
		b.WriteString(md[k])
		b.WriteString("\n")
	}
	b.WriteString("\n")
	b.WriteString(c.Text)
	return b.String()
}

// IsClientError reports whether err stems from bad caller input rather
// than a backend failure.
func IsClientError(err error) bool {
	var unknown *entity.UnknownEntityError
	return errors.As(err, &unknown)
}
