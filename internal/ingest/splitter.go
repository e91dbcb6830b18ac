package ingest

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/wildvoice/wildrag/internal/config"
	"github.com/wildvoice/wildrag/internal/knowledge"
)

// Splitter divides a document into chunks.
type Splitter interface {
	Split(doc knowledge.Document) []knowledge.Chunk
}

// NewSplitter builds a splitter for the given strategy. chunkSize and
// chunkOverlap are measured in estimated tokens.
func NewSplitter(strategy string, chunkSize, chunkOverlap int) (Splitter, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("%w: %d", config.ErrInvalidChunkSize, chunkSize)
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		return nil, fmt.Errorf("%w: %d", config.ErrInvalidChunkOverlap, chunkOverlap)
	}
	switch strategy {
	case config.StrategySentence:
		return &sentenceSplitter{chunkSize: chunkSize, chunkOverlap: chunkOverlap}, nil
	case config.StrategyToken:
		return &tokenSplitter{chunkSize: chunkSize, chunkOverlap: chunkOverlap}, nil
	default:
		return nil, fmt.Errorf("%w: %q", config.ErrInvalidSplitStrategy, strategy)
	}
}

// estimateTokens approximates the token count at four characters per token.
func estimateTokens(s string) int {
	return (len(s) + 3) / 4
}

var sentencePattern = regexp.MustCompile(`[^.!?]+[.!?]+(?:\s|$)|[^.!?]+$`)

// sentenceSplitter accumulates whole sentences until the chunk size is
// reached. Consecutive chunks share trailing sentences up to the overlap
// budget so context is not cut mid-thought.
type sentenceSplitter struct {
	chunkSize    int
	chunkOverlap int
}

func (s *sentenceSplitter) Split(doc knowledge.Document) []knowledge.Chunk {
	text := strings.TrimSpace(doc.Text)
	if text == "" {
		return nil
	}

	sentences := sentencePattern.FindAllString(text, -1)
	for i, sentence := range sentences {
		sentences[i] = strings.TrimSpace(sentence)
	}

	var (
		chunks  []knowledge.Chunk
		current []string
		tokens  int
	)
	flush := func() {
		if len(current) == 0 {
			return
		}
		chunks = append(chunks, knowledge.NewChunk(strings.Join(current, " "), doc.Metadata))

		// Seed the next chunk with trailing sentences within the
		// overlap budget.
		var carried []string
		carriedTokens := 0
		for i := len(current) - 1; i >= 0; i-- {
			t := estimateTokens(current[i])
			if carriedTokens+t > s.chunkOverlap {
				break
			}
			carried = append([]string{current[i]}, carried...)
			carriedTokens += t
		}
		current = carried
		tokens = carriedTokens
	}

	for _, sentence := range sentences {
		if sentence == "" {
			continue
		}
		t := estimateTokens(sentence)
		if tokens+t > s.chunkSize && len(current) > 0 {
			flush()
		}
		current = append(current, sentence)
		tokens += t
	}
	if len(current) > 0 {
		chunks = append(chunks, knowledge.NewChunk(strings.Join(current, " "), doc.Metadata))
	}
	return chunks
}

// tokenSplitter slides a fixed word window over the document without
// regard for sentence boundaries.
type tokenSplitter struct {
	chunkSize    int
	chunkOverlap int
}

func (s *tokenSplitter) Split(doc knowledge.Document) []knowledge.Chunk {
	words := strings.Fields(doc.Text)
	if len(words) == 0 {
		return nil
	}

	step := s.chunkSize - s.chunkOverlap
	var chunks []knowledge.Chunk
	for start := 0; start < len(words); start += step {
		end := start + s.chunkSize
		if end > len(words) {
			end = len(words)
		}
		chunks = append(chunks, knowledge.NewChunk(strings.Join(words[start:end], " "), doc.Metadata))
		if end == len(words) {
			break
		}
	}
	return chunks
}
