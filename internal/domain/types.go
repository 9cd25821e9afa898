package domain

import (
	"context"
	"fmt"
)

// Document is a unit of ingested text. Content is retained for listing and
// display; retrieval always goes through the document's chunks.
type Document struct {
	ID      string
	Title   string
	Content string
	// Ordinals of the chunks derived from Content, in chunk order.
	ChunkOrdinals []int
}

// Chunks reports how many chunks were indexed for the document.
func (d Document) Chunks() int { return len(d.ChunkOrdinals) }

// Chunk is a bounded text window derived from a document, the unit of
// embedding and retrieval.
type Chunk struct {
	DocID   string
	Ordinal int
	Text    string
}

// Key returns the externally visible chunk identifier, e.g. "doc1_chunk_0".
// It is stable across index compaction, unlike the internal row number.
func (c Chunk) Key() string {
	return fmt.Sprintf("%s_chunk_%d", c.DocID, c.Ordinal)
}

// SearchResult is a retrieved chunk with its similarity score.
type SearchResult struct {
	Chunk Chunk
	Score float32
}

// DocumentSummary describes a document without its full content.
type DocumentSummary struct {
	ID     string
	Title  string
	Chunks int
}

// Chunker splits document text into windows suitable for embedding.
type Chunker interface {
	Chunk(docID, text string) ([]Chunk, error)
}

// Embedder maps texts to fixed-length dense vectors. Implementations call an
// external provider; the returned vectors are L2-normalized.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	Dimension() int
}

// Generator produces an answer to a question grounded on the given context
// chunks. Treated as opaque; failures are not retried here.
type Generator interface {
	Generate(ctx context.Context, question string, contextChunks []string) (string, error)
}
