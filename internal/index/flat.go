// Package index implements a flat (exact) nearest-neighbor index over dense
// vectors. Similarity is the inner product; vectors are expected to be
// L2-normalized by the embedder, which makes the score cosine similarity.
package index

import (
	"fmt"
	"sort"

	"docqa/internal/domain"
)

// Hit is one search result: the internal row number and its score. Row
// numbers are invalidated by Rebuild; callers must not retain them across
// mutations.
type Hit struct {
	Row   int
	Score float32
}

// Flat stores embeddings of a fixed dimensionality and searches them by brute
// force. It is not synchronized; the document store owns all access.
type Flat struct {
	dim     int
	vectors [][]float32
}

// NewFlat creates an empty index for vectors of the given dimensionality.
func NewFlat(dim int) (*Flat, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("%w: dimension must be positive, got %d", domain.ErrInvalidConfig, dim)
	}
	return &Flat{dim: dim}, nil
}

// Dimension returns the configured vector dimensionality.
func (f *Flat) Dimension() int { return f.dim }

// Size returns the number of stored vectors.
func (f *Flat) Size() int { return len(f.vectors) }

// Vectors exposes the stored vectors in row order for persistence. The
// returned slices must be treated as read-only.
func (f *Flat) Vectors() [][]float32 { return f.vectors }

// Clone returns an index sharing the vector data but with an independent row
// slice, so appends to the clone do not affect the original.
func (f *Flat) Clone() *Flat {
	vs := make([][]float32, len(f.vectors))
	copy(vs, f.vectors)
	return &Flat{dim: f.dim, vectors: vs}
}

// Add appends vectors and returns their assigned rows. The whole batch is
// rejected if any vector has the wrong dimensionality.
func (f *Flat) Add(vectors [][]float32) ([]int, error) {
	for i, v := range vectors {
		if len(v) != f.dim {
			return nil, fmt.Errorf("%w: vector %d has dimension %d, index expects %d",
				domain.ErrDimensionMismatch, i, len(v), f.dim)
		}
	}
	rows := make([]int, len(vectors))
	for i := range vectors {
		rows[i] = len(f.vectors)
		f.vectors = append(f.vectors, vectors[i])
	}
	return rows, nil
}

// Search returns up to topK rows ranked by score descending, ties broken by
// row ascending. Fewer than topK hits are returned when the index is smaller.
func (f *Flat) Search(query []float32, topK int) ([]Hit, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: top_k must be positive, got %d", domain.ErrInvalidArgument, topK)
	}
	if len(query) != f.dim {
		return nil, fmt.Errorf("%w: query has dimension %d, index expects %d",
			domain.ErrDimensionMismatch, len(query), f.dim)
	}
	hits := make([]Hit, len(f.vectors))
	for i, v := range f.vectors {
		hits[i] = Hit{Row: i, Score: dot(query, v)}
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Row < hits[j].Row
	})
	if topK < len(hits) {
		hits = hits[:topK]
	}
	return hits, nil
}

// Rebuild compacts the index down to the given surviving rows, in the given
// order, and returns the new index together with the old-row to new-row
// mapping. The receiver is left untouched so a failed commit can keep it.
func (f *Flat) Rebuild(keep []int) (*Flat, map[int]int, error) {
	compacted := &Flat{dim: f.dim, vectors: make([][]float32, 0, len(keep))}
	remap := make(map[int]int, len(keep))
	for _, row := range keep {
		if row < 0 || row >= len(f.vectors) {
			return nil, nil, fmt.Errorf("%w: rebuild references row %d of %d", domain.ErrIndexCorruption, row, len(f.vectors))
		}
		if _, dup := remap[row]; dup {
			return nil, nil, fmt.Errorf("%w: rebuild references row %d twice", domain.ErrIndexCorruption, row)
		}
		remap[row] = len(compacted.vectors)
		compacted.vectors = append(compacted.vectors, f.vectors[row])
	}
	return compacted, remap, nil
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
