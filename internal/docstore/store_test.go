package docstore

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/chunker"
	"docqa/internal/domain"
	"docqa/internal/index"
	"docqa/internal/metadata"
)

// stubEmbedder is a deterministic local embedder: identical text always maps
// to the identical L2-normalized vector.
type stubEmbedder struct {
	dim    int
	err    error
	badDim bool
}

func (e *stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, e.dim)
		for j, r := range t {
			v[(j+int(r))%e.dim] += float32(int(r)%13) + 1
		}
		if e.badDim {
			v = append(v, 1)
		}
		var norm float32
		for _, x := range v {
			norm += x * x
		}
		if norm > 0 {
			inv := float32(1 / math.Sqrt(float64(norm)))
			for k := range v {
				v[k] *= inv
			}
		}
		out[i] = v
	}
	return out, nil
}

func (e *stubEmbedder) Dimension() int { return e.dim }

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return newTestStoreAt(t, t.TempDir())
}

func newTestStoreAt(t *testing.T, dir string) *Store {
	t.Helper()
	ch, err := chunker.NewWindowChunker(20, 5)
	require.NoError(t, err)
	s, err := New(dir, ch, &stubEmbedder{dim: 8}, nil)
	require.NoError(t, err)
	return s
}

func TestIngestScenario(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	doc, err := s.Ingest(ctx, "doc1", "Doc One", strings.Repeat("A", 50))
	require.NoError(t, err)
	assert.Equal(t, "doc1", doc.ID)
	assert.Equal(t, 3, doc.Chunks())
	assert.Equal(t, []int{0, 1, 2}, doc.ChunkOrdinals)
	assert.Equal(t, 3, s.idx.Size())
	assert.Equal(t, 3, s.tab.Len())

	results, err := s.Query(ctx, "AAAA", 5)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(results), 3)
	require.NotEmpty(t, results)
	for _, r := range results {
		assert.True(t, strings.HasPrefix(r.Chunk.Key(), "doc1_chunk_"))
	}
}

func TestIngestDuplicateRejected(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Ingest(ctx, "doc1", "", strings.Repeat("A", 50))
	require.NoError(t, err)

	_, err = s.Ingest(ctx, "doc1", "", "different content")
	assert.ErrorIs(t, err, domain.ErrDuplicateDocument)
	// nothing added
	assert.Equal(t, 3, s.idx.Size())
	assert.Len(t, s.List(), 1)
}

func TestIngestGeneratesID(t *testing.T) {
	s := newTestStore(t)

	doc, err := s.Ingest(context.Background(), "", "untitled", "some content here")
	require.NoError(t, err)
	assert.NotEmpty(t, doc.ID)
}

func TestIngestEmptyContent(t *testing.T) {
	s := newTestStore(t)

	doc, err := s.Ingest(context.Background(), "empty", "", "")
	require.NoError(t, err)
	assert.Equal(t, 0, doc.Chunks())
	assert.Equal(t, 0, s.idx.Size())
	assert.Len(t, s.List(), 1)
}

func TestIngestEmbeddingFailureCommitsNothing(t *testing.T) {
	dir := t.TempDir()
	ch, err := chunker.NewWindowChunker(20, 5)
	require.NoError(t, err)
	emb := &stubEmbedder{dim: 8}
	s, err := New(dir, ch, emb, nil)
	require.NoError(t, err)

	emb.err = errors.New("provider down")
	_, err = s.Ingest(context.Background(), "doc1", "", strings.Repeat("A", 50))
	assert.ErrorIs(t, err, domain.ErrEmbedding)
	assert.Equal(t, 0, s.idx.Size())
	assert.Equal(t, 0, s.tab.Len())
	assert.Empty(t, s.List())
}

func TestIngestDimensionDriftCommitsNothing(t *testing.T) {
	dir := t.TempDir()
	ch, err := chunker.NewWindowChunker(20, 5)
	require.NoError(t, err)
	emb := &stubEmbedder{dim: 8, badDim: true}
	s, err := New(dir, ch, emb, nil)
	require.NoError(t, err)

	_, err = s.Ingest(context.Background(), "doc1", "", strings.Repeat("A", 50))
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
	assert.Equal(t, 0, s.idx.Size())
	assert.Equal(t, 0, s.tab.Len())
}

func TestDeleteRestoresCounts(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Ingest(ctx, "keep", "", strings.Repeat("B", 50))
	require.NoError(t, err)
	vectorsBefore, rowsBefore := s.idx.Size(), s.tab.Len()

	_, err = s.Ingest(ctx, "doc1", "", strings.Repeat("A", 50))
	require.NoError(t, err)
	require.NoError(t, s.Delete("doc1"))

	assert.Equal(t, vectorsBefore, s.idx.Size())
	assert.Equal(t, rowsBefore, s.tab.Len())

	results, err := s.Query(ctx, "AAAA", 5)
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, "doc1", r.Chunk.DocID)
	}
}

func TestDeleteThenQueryReturnsNothing(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Ingest(ctx, "doc1", "", strings.Repeat("A", 50))
	require.NoError(t, err)
	require.NoError(t, s.Delete("doc1"))

	results, err := s.Query(ctx, "AAAA", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestDeleteUnknown(t *testing.T) {
	s := newTestStore(t)
	err := s.Delete("nope")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeleteRemapsSurvivors(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Ingest(ctx, "first", "", strings.Repeat("A", 50))
	require.NoError(t, err)
	_, err = s.Ingest(ctx, "second", "", strings.Repeat("B", 50))
	require.NoError(t, err)
	require.NoError(t, s.Delete("first"))

	// survivors must be findable under their new rows
	results, err := s.Query(ctx, "BBBB", 5)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	for _, r := range results {
		assert.Equal(t, "second", r.Chunk.DocID)
	}
	assert.Equal(t, s.idx.Size(), s.tab.Len())
}

func TestDeleteAtomicityOnPersistFailure(t *testing.T) {
	dir := t.TempDir()
	s := newTestStoreAt(t, dir)
	ctx := context.Background()

	_, err := s.Ingest(ctx, "doc1", "", strings.Repeat("A", 50))
	require.NoError(t, err)
	_, err = s.Ingest(ctx, "doc2", "", strings.Repeat("B", 50))
	require.NoError(t, err)

	docsBefore := s.List()
	vectorsBefore := s.idx.Size()

	s.persist = func(*index.Flat, *metadata.Table) error {
		return errors.New("disk full")
	}
	err = s.Delete("doc1")
	require.Error(t, err)

	assert.Equal(t, vectorsBefore, s.idx.Size())
	assert.Equal(t, docsBefore, s.List())

	// on-disk pair still loads and matches the pre-delete state
	reloaded := newTestStoreAt(t, dir)
	assert.Equal(t, vectorsBefore, reloaded.idx.Size())
	assert.Equal(t, docsBefore, reloaded.List())
}

func TestIngestAtomicityOnPersistFailure(t *testing.T) {
	s := newTestStore(t)

	s.persist = func(*index.Flat, *metadata.Table) error {
		return errors.New("disk full")
	}
	_, err := s.Ingest(context.Background(), "doc1", "", strings.Repeat("A", 50))
	require.Error(t, err)
	assert.Equal(t, 0, s.idx.Size())
	assert.Empty(t, s.List())
}

func TestQueryRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	content := "The chunked vector index keeps metadata synchronized across deletions."
	_, err := s.Ingest(ctx, "doc1", "", content)
	require.NoError(t, err)

	results, err := s.Query(ctx, "vector index keeps m", 3)
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.True(t, strings.Contains(content, results[0].Chunk.Text))
}

func TestQueryInvalidTopK(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Query(context.Background(), "q", 0)
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)
}

func TestQueryEmptyStore(t *testing.T) {
	s := newTestStore(t)
	results, err := s.Query(context.Background(), "anything", 5)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestQueryOrdering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Ingest(ctx, "doc1", "", strings.Repeat("A", 50))
	require.NoError(t, err)

	results, err := s.Query(ctx, strings.Repeat("A", 20), 5)
	require.NoError(t, err)
	require.Len(t, results, 3)
	for i := 1; i < len(results); i++ {
		if results[i-1].Score == results[i].Score {
			assert.Less(t, results[i-1].Chunk.Key(), results[i].Chunk.Key())
		} else {
			assert.Greater(t, results[i-1].Score, results[i].Score)
		}
	}
}

func TestListIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.Ingest(ctx, "b", "second", "bbbb")
	require.NoError(t, err)
	_, err = s.Ingest(ctx, "a", "first", "aaaa")
	require.NoError(t, err)

	first := s.List()
	second := s.List()
	assert.Equal(t, first, second)
	require.Len(t, first, 2)
	// insertion order, not lexical
	assert.Equal(t, "b", first[0].ID)
	assert.Equal(t, "a", first[1].ID)
}

func TestBijectionAfterMixedOperations(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	steps := []struct {
		op string
		id string
	}{
		{"ingest", "a"}, {"ingest", "b"}, {"delete", "a"},
		{"ingest", "c"}, {"ingest", "d"}, {"delete", "c"}, {"delete", "b"},
	}
	for _, st := range steps {
		var err error
		switch st.op {
		case "ingest":
			_, err = s.Ingest(ctx, st.id, "", strings.Repeat(st.id, 42))
		case "delete":
			err = s.Delete(st.id)
		}
		require.NoError(t, err, "%s %s", st.op, st.id)
		require.Equal(t, s.idx.Size(), s.tab.Len(), "bijection after %s %s", st.op, st.id)
		for row := 0; row < s.tab.Len(); row++ {
			_, ok := s.tab.Get(row)
			require.True(t, ok)
		}
	}
}

func TestDocument(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Ingest(context.Background(), "doc1", "Title", "content here")
	require.NoError(t, err)

	doc, err := s.Document("doc1")
	require.NoError(t, err)
	assert.Equal(t, "Title", doc.Title)
	assert.Equal(t, "content here", doc.Content)

	_, err = s.Document("missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
