// Package docstore composes the vector index and the metadata table into one
// synchronized document store with atomic ingest, delete and query.
//
// Invariant: every live index row has exactly one metadata entry and vice
// versa. Mutations build the replacement index/table aside, persist them, and
// only then swap them in, so readers observe fully-old or fully-new state and
// a failed persist changes nothing.
package docstore

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"docqa/internal/domain"
	"docqa/internal/index"
	"docqa/internal/metadata"
)

// Store owns the index/metadata pair. All access goes through its lock:
// ingest and delete are exclusive, query and list share a read lock.
type Store struct {
	dir      string
	chunker  domain.Chunker
	embedder domain.Embedder
	logger   *zap.Logger

	mu  sync.RWMutex
	idx *index.Flat
	tab *metadata.Table

	// replaced in tests to simulate persistence failure
	persist func(*index.Flat, *metadata.Table) error
}

// New loads the artifact pair from dir (or starts empty) and validates it
// against the embedder's dimensionality. A torn or inconsistent pair fails
// here; the store never serves queries against a corrupt index.
func New(dir string, chunker domain.Chunker, embedder domain.Embedder, logger *zap.Logger) (*Store, error) {
	if chunker == nil {
		return nil, fmt.Errorf("%w: chunker is required", domain.ErrInvalidConfig)
	}
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", domain.ErrInvalidConfig)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	dim := embedder.Dimension()
	idx, tab, err := loadArtifacts(dir, dim)
	if err != nil {
		return nil, err
	}
	s := &Store{
		dir:      dir,
		chunker:  chunker,
		embedder: embedder,
		logger:   logger,
		idx:      idx,
		tab:      tab,
	}
	s.persist = s.saveArtifacts
	logger.Info("document store loaded",
		zap.String("dir", dir),
		zap.Int("dimension", dim),
		zap.Int("vectors", idx.Size()),
		zap.Int("documents", len(tab.Documents())),
	)
	return s, nil
}

// Ingest chunks and embeds content, then commits all chunks to both stores
// and persists, all-or-nothing. An empty id gets a generated UUID. Ingesting
// an existing id is rejected; delete the old document first. Embedding runs
// before the exclusive lock is taken, so slow collaborator calls do not block
// readers.
func (s *Store) Ingest(ctx context.Context, id, title, content string) (domain.Document, error) {
	if id == "" {
		id = uuid.NewString()
	}

	s.mu.RLock()
	exists := s.tab.HasDocument(id)
	s.mu.RUnlock()
	if exists {
		return domain.Document{}, fmt.Errorf("%w: %q", domain.ErrDuplicateDocument, id)
	}

	chunks, err := s.chunker.Chunk(id, content)
	if err != nil {
		return domain.Document{}, err
	}
	texts := make([]string, len(chunks))
	ordinals := make([]int, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
		ordinals[i] = ch.Ordinal
	}

	var vectors [][]float32
	if len(texts) > 0 {
		vectors, err = s.embedder.Embed(ctx, texts)
		if err != nil {
			return domain.Document{}, embeddingError(err)
		}
		if len(vectors) != len(texts) {
			return domain.Document{}, fmt.Errorf("%w: got %d embeddings for %d chunks",
				domain.ErrEmbedding, len(vectors), len(texts))
		}
	}

	doc := domain.Document{ID: id, Title: title, Content: content, ChunkOrdinals: ordinals}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tab.HasDocument(id) {
		return domain.Document{}, fmt.Errorf("%w: %q", domain.ErrDuplicateDocument, id)
	}

	newIdx := s.idx.Clone()
	rows, err := newIdx.Add(vectors)
	if err != nil {
		return domain.Document{}, err
	}
	newTab := s.tab.Clone()
	for i, row := range rows {
		if err := newTab.Put(row, chunks[i]); err != nil {
			return domain.Document{}, err
		}
	}
	if err := newTab.AddDocument(doc); err != nil {
		return domain.Document{}, err
	}

	if err := s.persist(newIdx, newTab); err != nil {
		return domain.Document{}, fmt.Errorf("persist after ingest: %w", err)
	}
	s.idx, s.tab = newIdx, newTab

	s.logger.Info("document ingested",
		zap.String("doc_id", id),
		zap.Int("chunks", len(chunks)),
		zap.Int("vectors", s.idx.Size()),
	)
	return doc, nil
}

// Delete removes a document, its metadata rows and its vectors. The index is
// eagerly rebuilt from the surviving vectors and every surviving metadata row
// is remapped to its new row, so no dangling rows outlive the call. Cost is
// linear in the surviving vectors; deletion is not a hot path here.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.tab.HasDocument(id) {
		return fmt.Errorf("%w: %q", domain.ErrNotFound, id)
	}

	survivors := s.tab.SurvivingRows(id)
	newIdx, remap, err := s.idx.Rebuild(survivors)
	if err != nil {
		return err
	}
	newTab := s.tab.Clone()
	removed, err := newTab.RemoveByDoc(id)
	if err != nil {
		return err
	}
	// The table compacts survivors in old row order, which must agree with
	// the index's new row assignment.
	for i, row := range survivors {
		if remap[row] != i {
			return fmt.Errorf("%w: row %d remapped to %d, metadata expects %d",
				domain.ErrIndexCorruption, row, remap[row], i)
		}
	}
	if newIdx.Size() != newTab.Len() {
		return fmt.Errorf("%w: rebuild left %d vectors and %d metadata rows",
			domain.ErrIndexCorruption, newIdx.Size(), newTab.Len())
	}

	if err := s.persist(newIdx, newTab); err != nil {
		return fmt.Errorf("persist after delete: %w", err)
	}
	s.idx, s.tab = newIdx, newTab

	s.logger.Info("document deleted",
		zap.String("doc_id", id),
		zap.Int("removed_chunks", len(removed)),
		zap.Int("vectors", s.idx.Size()),
	)
	return nil
}

// Query embeds the question, searches the index and resolves each hit to its
// chunk. A hit whose row has no metadata entry fails the whole query rather
// than being skipped. Results are ordered by score descending, ties broken by
// chunk key ascending.
func (s *Store) Query(ctx context.Context, question string, topK int) ([]domain.SearchResult, error) {
	if topK <= 0 {
		return nil, fmt.Errorf("%w: top_k must be positive, got %d", domain.ErrInvalidArgument, topK)
	}

	// Embed before taking the read lock; the collaborator may be slow.
	vecs, err := s.embedder.Embed(ctx, []string{question})
	if err != nil {
		return nil, embeddingError(err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("%w: got %d embeddings for one question", domain.ErrEmbedding, len(vecs))
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.idx.Size() == 0 {
		return nil, nil
	}
	hits, err := s.idx.Search(vecs[0], topK)
	if err != nil {
		return nil, err
	}
	results := make([]domain.SearchResult, 0, len(hits))
	for _, h := range hits {
		ch, ok := s.tab.Get(h.Row)
		if !ok {
			return nil, fmt.Errorf("%w: row %d has no metadata entry", domain.ErrIndexCorruption, h.Row)
		}
		results = append(results, domain.SearchResult{Chunk: ch, Score: h.Score})
	}
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Chunk.Key() < results[j].Chunk.Key()
	})
	return results, nil
}

// List returns document summaries in insertion order. Read-only; no embedding
// calls.
func (s *Store) List() []domain.DocumentSummary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tab.Documents()
}

// Document returns the full record for id, including content.
func (s *Store) Document(id string) (domain.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.tab.Document(id)
	if !ok {
		return domain.Document{}, fmt.Errorf("%w: %q", domain.ErrNotFound, id)
	}
	return doc, nil
}

func embeddingError(err error) error {
	if errors.Is(err, domain.ErrEmbedding) || errors.Is(err, domain.ErrDimensionMismatch) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrEmbedding, err)
}
