// Package knowledge defines the document and chunk types that flow through
// ingestion, storage and retrieval.
//
// Chunks are content addressed: the ID of a chunk is the SHA-256 hex digest
// of its text. Two chunks with the same text are the same chunk, which makes
// repeated ingestion of the same material idempotent.
package knowledge

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
)

// Metadata keys written by ingestion and used at query time.
const (
	MetaFileName  = "file_name"
	MetaFilePath  = "file_path"
	MetaTitle     = "document_title"
	MetaSummary   = "section_summary"
	MetaKeywords  = "excerpt_keywords"
	MetaQuestions = "questions_this_excerpt_can_answer"
)

// Document is a source file read during ingestion, before splitting.
type Document struct {
	Text     string
	Metadata map[string]string
}

// Chunk is the unit of storage and retrieval.
type Chunk struct {
	// ID is the SHA-256 hex digest of Text. See ContentHash.
	ID string

	Text     string
	Metadata map[string]string

	// Embedding is the vector for Text, populated at indexing time.
	Embedding []float32

	// ExcludedLLMMetadataKeys lists metadata keys hidden from the language
	// model view of this chunk.
	ExcludedLLMMetadataKeys []string

	// ExcludedEmbedMetadataKeys lists metadata keys hidden from the
	// embedding view of this chunk.
	ExcludedEmbedMetadataKeys []string
}

// ContentHash returns the SHA-256 hex digest of text.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// NewChunk builds a chunk for text with its content hash as ID. The file
// name key is excluded from both the LLM and the embedding views so that
// trace information never leaks into prompts or vectors.
func NewChunk(text string, metadata map[string]string) Chunk {
	md := make(map[string]string, len(metadata))
	for k, v := range metadata {
		md[k] = v
	}
	return Chunk{
		ID:                        ContentHash(text),
		Text:                      text,
		Metadata:                  md,
		ExcludedLLMMetadataKeys:   []string{MetaFileName},
		ExcludedEmbedMetadataKeys: []string{MetaFileName},
	}
}

// LLMMetadata returns the metadata visible to the language model.
func (c Chunk) LLMMetadata() map[string]string {
	return c.filteredMetadata(c.ExcludedLLMMetadataKeys)
}

// EmbedMetadata returns the metadata visible to the embedding model.
func (c Chunk) EmbedMetadata() map[string]string {
	return c.filteredMetadata(c.ExcludedEmbedMetadataKeys)
}

func (c Chunk) filteredMetadata(excluded []string) map[string]string {
	out := make(map[string]string, len(c.Metadata))
	for k, v := range c.Metadata {
		if !contains(excluded, k) {
			out[k] = v
		}
	}
	return out
}

// EmbedText returns the text submitted to the embedding model: the visible
// metadata as "key: value" lines followed by the chunk text.
func (c Chunk) EmbedText() string {
	md := c.EmbedMetadata()
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

// FileName returns the source file name recorded during ingestion, or
// "unknown" when the chunk carries none.
func (c Chunk) FileName() string {
	if name, ok := c.Metadata[MetaFileName]; ok && name != "" {
		return name
	}
	return "unknown"
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
