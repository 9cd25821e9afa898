package chunker

import (
	"fmt"

	"docqa/internal/domain"
)

// WindowChunker splits text into fixed-size sliding windows with overlap.
// Windows are measured in runes so chunk boundaries never split a UTF-8
// sequence and every chunk is a substring of the input.
type WindowChunker struct {
	size    int
	overlap int
}

// NewWindowChunker validates the window parameters. The overlap must be
// non-negative and strictly smaller than the window size.
func NewWindowChunker(size, overlap int) (*WindowChunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", domain.ErrInvalidConfig, size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: overlap must be in [0,%d), got %d", domain.ErrInvalidConfig, size, overlap)
	}
	return &WindowChunker{size: size, overlap: overlap}, nil
}

// Chunk splits text into overlapping windows. Boundaries are deterministic:
// each window starts size-overlap runes after the previous one, and the
// sequence ends with the first window that reaches the end of the text. Empty
// input yields no chunks.
func (c *WindowChunker) Chunk(docID, text string) ([]domain.Chunk, error) {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil, nil
	}
	step := c.size - c.overlap
	var chunks []domain.Chunk
	for start, ordinal := 0, 0; start < len(runes); start, ordinal = start+step, ordinal+1 {
		end := start + c.size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, domain.Chunk{
			DocID:   docID,
			Ordinal: ordinal,
			Text:    string(runes[start:end]),
		})
		if end == len(runes) {
			break
		}
	}
	return chunks, nil
}
