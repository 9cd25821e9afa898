package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/domain"
)

func TestNewWindowChunker(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		overlap int
		wantErr bool
	}{
		{name: "valid", size: 20, overlap: 5},
		{name: "zero overlap", size: 10, overlap: 0},
		{name: "zero size", size: 0, overlap: 0, wantErr: true},
		{name: "negative size", size: -1, overlap: 0, wantErr: true},
		{name: "negative overlap", size: 10, overlap: -1, wantErr: true},
		{name: "overlap equals size", size: 10, overlap: 10, wantErr: true},
		{name: "overlap exceeds size", size: 10, overlap: 15, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewWindowChunker(tt.size, tt.overlap)
			if tt.wantErr {
				assert.ErrorIs(t, err, domain.ErrInvalidConfig)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestChunkWindows(t *testing.T) {
	c, err := NewWindowChunker(20, 5)
	require.NoError(t, err)

	chunks, err := c.Chunk("doc1", strings.Repeat("A", 50))
	require.NoError(t, err)
	require.Len(t, chunks, 3)

	assert.Equal(t, "doc1_chunk_0", chunks[0].Key())
	assert.Equal(t, "doc1_chunk_1", chunks[1].Key())
	assert.Equal(t, "doc1_chunk_2", chunks[2].Key())
	for _, ch := range chunks {
		assert.Len(t, ch.Text, 20)
	}
}

func TestChunkEmptyInput(t *testing.T) {
	c, err := NewWindowChunker(20, 5)
	require.NoError(t, err)

	chunks, err := c.Chunk("doc1", "")
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestChunkTrailingPartialWindow(t *testing.T) {
	c, err := NewWindowChunker(10, 2)
	require.NoError(t, err)

	text := "abcdefghijklm" // 13 runes, step 8: [0,10) then [8,13)
	chunks, err := c.Chunk("d", text)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "abcdefghij", chunks[0].Text)
	assert.Equal(t, "ijklm", chunks[1].Text)
}

func TestChunkShorterThanWindow(t *testing.T) {
	c, err := NewWindowChunker(100, 10)
	require.NoError(t, err)

	chunks, err := c.Chunk("d", "short text")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "short text", chunks[0].Text)
	assert.Equal(t, 0, chunks[0].Ordinal)
}

func TestChunkDeterministic(t *testing.T) {
	c, err := NewWindowChunker(16, 4)
	require.NoError(t, err)

	text := strings.Repeat("the quick brown fox ", 10)
	a, err := c.Chunk("d", text)
	require.NoError(t, err)
	b, err := c.Chunk("d", text)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestChunkUnicodeBoundaries(t *testing.T) {
	c, err := NewWindowChunker(4, 1)
	require.NoError(t, err)

	text := "héllø wörld ünïcødé"
	chunks, err := c.Chunk("d", text)
	require.NoError(t, err)
	for _, ch := range chunks {
		assert.True(t, strings.Contains(text, ch.Text), "chunk %q must be a substring", ch.Text)
	}
}
