package knowledge

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContentHash(t *testing.T) {
	// Known SHA-256 vector.
	assert.Equal(t,
		"9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08",
		ContentHash("test"))

	assert.Equal(t, ContentHash("same text"), ContentHash("same text"))
	assert.NotEqual(t, ContentHash("one"), ContentHash("two"))
}

func TestNewChunk(t *testing.T) {
	c := NewChunk("seals rest on sandbanks", map[string]string{
		MetaFileName: "report.txt",
		MetaTitle:    "Wadden Sea Report",
	})

	assert.Equal(t, ContentHash("seals rest on sandbanks"), c.ID)
	assert.Equal(t, "report.txt", c.Metadata[MetaFileName])
	assert.Contains(t, c.ExcludedLLMMetadataKeys, MetaFileName)
	assert.Contains(t, c.ExcludedEmbedMetadataKeys, MetaFileName)
}

func TestNewChunkCopiesMetadata(t *testing.T) {
	src := map[string]string{"k": "v"}
	c := NewChunk("text", src)
	src["k"] = "changed"

	assert.Equal(t, "v", c.Metadata["k"])
}

func TestMetadataViewsExcludeFileName(t *testing.T) {
	c := NewChunk("text", map[string]string{
		MetaFileName: "doc.pdf",
		MetaTitle:    "Title",
	})

	llm := c.LLMMetadata()
	assert.NotContains(t, llm, MetaFileName)
	assert.Equal(t, "Title", llm[MetaTitle])

	embed := c.EmbedMetadata()
	assert.NotContains(t, embed, MetaFileName)
	assert.Equal(t, "Title", embed[MetaTitle])

	// The underlying metadata still carries the file name for tracing.
	assert.Equal(t, "doc.pdf", c.Metadata[MetaFileName])
}

func TestEmbedText(t *testing.T) {
	c := NewChunk("chunk body", map[string]string{
		MetaFileName: "doc.txt",
		MetaTitle:    "A Title",
		MetaKeywords: "seal, sandbank",
	})

	got := c.EmbedText()
	assert.Contains(t, got, "document_title: A Title")
	assert.Contains(t, got, "excerpt_keywords: seal, sandbank")
	assert.NotContains(t, got, "doc.txt")
	assert.Contains(t, got, "chunk body")

	bare := NewChunk("bare", map[string]string{MetaFileName: "doc.txt"})
	assert.Equal(t, "bare", bare.EmbedText())
}

func TestFileName(t *testing.T) {
	c := NewChunk("text", map[string]string{MetaFileName: "report.pdf"})
	assert.Equal(t, "report.pdf", c.FileName())

	assert.Equal(t, "unknown", NewChunk("text", nil).FileName())
	assert.Equal(t, "unknown", NewChunk("text", map[string]string{MetaFileName: ""}).FileName())
}
