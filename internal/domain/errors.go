package domain

import "errors"

// Error kinds for the document store and its collaborators. Callers classify
// with errors.Is; messages wrapped around these carry the concrete cause.
var (
	// ErrInvalidConfig reports bad construction parameters, such as a chunk
	// overlap that is not smaller than the chunk size.
	ErrInvalidConfig = errors.New("invalid config")

	// ErrInvalidArgument reports a bad per-call argument, such as top_k <= 0.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrDimensionMismatch reports an embedding whose length differs from the
	// index's configured dimensionality.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrDuplicateDocument reports an ingest under an id that already exists.
	// The caller must delete the old document first.
	ErrDuplicateDocument = errors.New("duplicate document")

	// ErrNotFound reports an unknown document id.
	ErrNotFound = errors.New("document not found")

	// ErrEmbedding reports a failure of the embedding collaborator.
	ErrEmbedding = errors.New("embedding failed")

	// ErrGeneration reports a failure of the answer-generation collaborator.
	ErrGeneration = errors.New("answer generation failed")

	// ErrIndexCorruption reports a violated index/metadata bijection or a torn
	// persistence artifact pair. Requires operator intervention; never
	// silently repaired.
	ErrIndexCorruption = errors.New("index corruption")
)
