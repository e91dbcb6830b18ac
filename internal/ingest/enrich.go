package ingest

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/time/rate"

	"github.com/wildvoice/wildrag/internal/ai"
	"github.com/wildvoice/wildrag/internal/knowledge"
	"github.com/wildvoice/wildrag/internal/log"
)

// extractor generates one metadata value for a chunk.
type extractor struct {
	key    string
	prompt string
}

// The prompt set mirrors common document understanding extractors: a title,
// a section summary, keywords and answerable questions per excerpt.
var extractors = []extractor{
	{
		key: knowledge.MetaTitle,
		prompt: "Context: %s\n\n" +
			"Give a short title that summarizes the unique entities and themes found in the context. " +
			"Answer with the title only.\n\nTitle: ",
	},
	{
		key: knowledge.MetaSummary,
		prompt: "Here is the content of the section:\n%s\n\n" +
			"Summarize the key topics and entities of the section.\n\nSummary: ",
	},
	{
		key: knowledge.MetaKeywords,
		prompt: "Context: %s\n\n" +
			"Give 5 unique keywords for this excerpt. Format as comma separated.\n\nKeywords: ",
	},
	{
		key: knowledge.MetaQuestions,
		prompt: "Here is the context:\n%s\n\n" +
			"Given the contextual information, generate 3 questions this context can provide " +
			"specific answers to which are unlikely to be found elsewhere. " +
			"Answer with the questions only, one per line.\n\nQuestions: ",
	},
}

// Enricher attaches generated metadata to chunks. Calls to the model are
// throttled and retried on rate limits; a failed extraction skips that key
// rather than failing the whole run.
type Enricher struct {
	gen     ai.Generator
	limiter *rate.Limiter
	retrier *ai.Retrier
	logger  log.Logger
}

// NewEnricher creates an enricher. limiter may be nil to disable
// throttling, retrier may be nil for the package defaults.
func NewEnricher(gen ai.Generator, limiter *rate.Limiter, retrier *ai.Retrier, logger log.Logger) *Enricher {
	if logger == nil {
		logger = log.NewNop()
	}
	if retrier == nil {
		retrier = ai.NewRetrier(logger)
	}
	return &Enricher{gen: gen, limiter: limiter, retrier: retrier, logger: logger}
}

// Enrich runs all extractors over the chunks in place.
func (e *Enricher) Enrich(ctx context.Context, chunks []knowledge.Chunk) error {
	for i := range chunks {
		for _, ex := range extractors {
			if e.limiter != nil {
				if err := e.limiter.Wait(ctx); err != nil {
					return fmt.Errorf("waiting for rate limiter: %w", err)
				}
			}

			var value string
			err := e.retrier.Do(ctx, func(ctx context.Context) error {
				var genErr error
				value, genErr = e.gen.Generate(ctx, fmt.Sprintf(ex.prompt, chunks[i].Text))
				return genErr
			})
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				e.logger.Warn("metadata extraction failed",
					"key", ex.key,
					"chunk", chunks[i].ID,
					"error", err)
				continue
			}

			if chunks[i].Metadata == nil {
				chunks[i].Metadata = make(map[string]string)
			}
			chunks[i].Metadata[ex.key] = strings.TrimSpace(value)
		}
	}
	e.logger.Info("chunks enriched", "count", len(chunks))
	return nil
}
