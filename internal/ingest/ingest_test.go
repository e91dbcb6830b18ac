package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/wildvoice/wildrag/internal/ai"
	"github.com/wildvoice/wildrag/internal/config"
	"github.com/wildvoice/wildrag/internal/knowledge"
	"github.com/wildvoice/wildrag/internal/log"
)

// fakeRunner records invocations and returns canned output.
type fakeRunner struct {
	output []byte
	err    error
	calls  [][]string
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	return f.output, f.err
}

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600))
}

func TestReaderMissingDirectory(t *testing.T) {
	r := NewReader(log.NewNop())
	_, err := r.Read(context.Background(), filepath.Join(t.TempDir(), "nope"), false)
	assert.ErrorIs(t, err, ErrDirectoryNotFound)
}

func TestReaderNotADirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "file.txt", "content")

	r := NewReader(log.NewNop())
	_, err := r.Read(context.Background(), filepath.Join(dir, "file.txt"), false)
	assert.ErrorIs(t, err, ErrDirectoryNotFound)
}

func TestReaderTextFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "seals rest on sandbanks")
	writeFile(t, dir, "b.md", "# seagrass\n\ngrows in shallow water")
	writeFile(t, dir, "ignored.bin", "\x00\x01")
	writeFile(t, dir, "empty.txt", "   \n")

	r := NewReader(log.NewNop())
	docs, err := r.Read(context.Background(), dir, false)
	require.NoError(t, err)
	require.Len(t, docs, 2)

	names := []string{docs[0].Metadata[knowledge.MetaFileName], docs[1].Metadata[knowledge.MetaFileName]}
	assert.ElementsMatch(t, []string{"a.txt", "b.md"}, names)

	for _, doc := range docs {
		assert.Contains(t, doc.Metadata[knowledge.MetaFilePath], dir)
	}
}

func TestReaderRecursion(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "top.txt", "top level")
	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.Mkdir(sub, 0o750))
	writeFile(t, sub, "nested.txt", "nested")

	r := NewReader(log.NewNop())

	docs, err := r.Read(context.Background(), dir, false)
	require.NoError(t, err)
	assert.Len(t, docs, 1)

	docs, err = r.Read(context.Background(), dir, true)
	require.NoError(t, err)
	assert.Len(t, docs, 2)
}

func TestReaderPDF(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "report.pdf", "%PDF-1.4 fake")

	runner := &fakeRunner{output: []byte("extracted pdf text")}
	r := NewReaderWithRunner(runner, log.NewNop())

	docs, err := r.Read(context.Background(), dir, false)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "extracted pdf text", docs[0].Text)
	assert.Equal(t, "report.pdf", docs[0].Metadata[knowledge.MetaFileName])

	require.Len(t, runner.calls, 1)
	assert.Equal(t, "pdftotext", runner.calls[0][0])
	assert.Equal(t, "-", runner.calls[0][2])
}

func TestReaderPDFFailure(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "broken.pdf", "%PDF-1.4 fake")

	runner := &fakeRunner{err: errors.New("syntax error")}
	r := NewReaderWithRunner(runner, log.NewNop())

	_, err := r.Read(context.Background(), dir, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.pdf")
}

func TestNewSplitterValidation(t *testing.T) {
	_, err := NewSplitter(config.StrategySentence, 0, 0)
	assert.ErrorIs(t, err, config.ErrInvalidChunkSize)

	_, err = NewSplitter(config.StrategySentence, 10, 10)
	assert.ErrorIs(t, err, config.ErrInvalidChunkOverlap)

	_, err = NewSplitter(config.StrategySentence, 10, -1)
	assert.ErrorIs(t, err, config.ErrInvalidChunkOverlap)

	_, err = NewSplitter("paragraph", 10, 2)
	assert.ErrorIs(t, err, config.ErrInvalidSplitStrategy)
}

func TestSentenceSplitter(t *testing.T) {
	s, err := NewSplitter(config.StrategySentence, 10, 3)
	require.NoError(t, err)

	doc := knowledge.Document{
		Text: "Seals rest on sandbanks. Seagrass grows in shallow water. " +
			"Tides shape the coast. Birds feed in the mudflats.",
		Metadata: map[string]string{knowledge.MetaFileName: "report.txt"},
	}

	chunks := s.Split(doc)
	require.NotEmpty(t, chunks)

	for _, c := range chunks {
		assert.Equal(t, knowledge.ContentHash(c.Text), c.ID)
		assert.Equal(t, "report.txt", c.Metadata[knowledge.MetaFileName])
		// Sentences stay intact.
		assert.True(t, strings.HasSuffix(c.Text, "."), "chunk ends mid-sentence: %q", c.Text)
	}

	// All sentences appear somewhere.
	all := ""
	for _, c := range chunks {
		all += c.Text + " "
	}
	assert.Contains(t, all, "Seals rest on sandbanks.")
	assert.Contains(t, all, "Birds feed in the mudflats.")
}

func TestSentenceSplitterSingleChunk(t *testing.T) {
	s, err := NewSplitter(config.StrategySentence, 1000, 0)
	require.NoError(t, err)

	chunks := s.Split(knowledge.Document{Text: "One sentence. Two sentences."})
	require.Len(t, chunks, 1)
	assert.Equal(t, "One sentence. Two sentences.", chunks[0].Text)
}

func TestSentenceSplitterEmpty(t *testing.T) {
	s, err := NewSplitter(config.StrategySentence, 10, 2)
	require.NoError(t, err)
	assert.Empty(t, s.Split(knowledge.Document{Text: "  \n "}))
}

func TestTokenSplitter(t *testing.T) {
	s, err := NewSplitter(config.StrategyToken, 4, 1)
	require.NoError(t, err)

	chunks := s.Split(knowledge.Document{Text: "one two three four five six seven"})
	require.Len(t, chunks, 3)
	assert.Equal(t, "one two three four", chunks[0].Text)
	assert.Equal(t, "four five six seven", chunks[1].Text)
	assert.Equal(t, "seven", chunks[2].Text)
}

func TestTokenSplitterNoOverlap(t *testing.T) {
	s, err := NewSplitter(config.StrategyToken, 2, 0)
	require.NoError(t, err)

	chunks := s.Split(knowledge.Document{Text: "a b c d e"})
	require.Len(t, chunks, 3)
	assert.Equal(t, "a b", chunks[0].Text)
	assert.Equal(t, "c d", chunks[1].Text)
	assert.Equal(t, "e", chunks[2].Text)
}

// scriptedGenerator returns a fixed answer per prompt prefix match and
// counts calls.
type scriptedGenerator struct {
	answer string
	err    error
	fails  int
	calls  int
}

func (g *scriptedGenerator) Generate(context.Context, string) (string, error) {
	g.calls++
	if g.fails > 0 {
		g.fails--
		return "", errors.New("rate limit exceeded")
	}
	if g.err != nil {
		return "", g.err
	}
	return fmt.Sprintf(" %s \n", g.answer), nil
}

func TestEnricherSetsAllKeys(t *testing.T) {
	gen := &scriptedGenerator{answer: "generated"}
	e := NewEnricher(gen, nil, &ai.Retrier{Attempts: 2, Delay: 0, Logger: log.NewNop()}, log.NewNop())

	chunks := []knowledge.Chunk{knowledge.NewChunk("seals rest on sandbanks", nil)}
	require.NoError(t, e.Enrich(context.Background(), chunks))

	md := chunks[0].Metadata
	assert.Equal(t, "generated", md[knowledge.MetaTitle])
	assert.Equal(t, "generated", md[knowledge.MetaSummary])
	assert.Equal(t, "generated", md[knowledge.MetaKeywords])
	assert.Equal(t, "generated", md[knowledge.MetaQuestions])
	assert.Equal(t, len(extractors), gen.calls)
}

func TestEnricherRetriesRateLimits(t *testing.T) {
	gen := &scriptedGenerator{answer: "ok", fails: 1}
	e := NewEnricher(gen, nil, &ai.Retrier{Attempts: 2, Delay: 0, Logger: log.NewNop()}, log.NewNop())

	chunks := []knowledge.Chunk{knowledge.NewChunk("text", nil)}
	require.NoError(t, e.Enrich(context.Background(), chunks))
	assert.Equal(t, "ok", chunks[0].Metadata[knowledge.MetaTitle])
	assert.Equal(t, len(extractors)+1, gen.calls)
}

func TestEnricherSkipsFailedExtractions(t *testing.T) {
	gen := &scriptedGenerator{err: errors.New("model unavailable")}
	e := NewEnricher(gen, nil, &ai.Retrier{Attempts: 1, Delay: 0, Logger: log.NewNop()}, log.NewNop())

	chunks := []knowledge.Chunk{knowledge.NewChunk("text", nil)}
	require.NoError(t, e.Enrich(context.Background(), chunks))
	assert.Empty(t, chunks[0].Metadata[knowledge.MetaTitle])
}

func TestEnricherHonorsContext(t *testing.T) {
	gen := &scriptedGenerator{answer: "ok"}
	// A zero-burst limiter can never admit a call.
	e := NewEnricher(gen, rate.NewLimiter(rate.Limit(1), 0), nil, log.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := e.Enrich(ctx, []knowledge.Chunk{knowledge.NewChunk("text", nil)})
	require.Error(t, err)
	assert.Zero(t, gen.calls)
}
