package driven

import (
	"context"

	"github.com/custodia-labs/papersoul/internal/core/domain"
)

// LexicalIndex ranks corpus chunks by term overlap with a query.
// Results are ordered best first; rank is the position in the slice.
type LexicalIndex interface {
	// Search returns up to limit chunks matching the query.
	Search(ctx context.Context, query string, limit int) ([]domain.Chunk, error)

	// Close releases resources.
	Close() error
}

// VectorIndex ranks corpus chunks by embedding similarity.
// Results are ordered best first; rank is the position in the slice.
type VectorIndex interface {
	// Search returns up to limit chunks nearest to the query vector.
	Search(ctx context.Context, query []float32, limit int) ([]domain.Chunk, error)

	// Count returns the number of indexed chunks.
	Count() int

	// Close releases resources.
	Close() error
}

// CorpusIndex is the pair of read-only indexes built for one corpus.
type CorpusIndex struct {
	CorpusID string
	Lexical  LexicalIndex
	Vector   VectorIndex
}

// Close releases both indexes.
func (c *CorpusIndex) Close() error {
	var firstErr error
	if c.Lexical != nil {
		if err := c.Lexical.Close(); err != nil {
			firstErr = err
		}
	}
	if c.Vector != nil {
		if err := c.Vector.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// IndexOpener opens the on-disk indexes of a corpus.
// Implementations must fail with domain.ErrIndexNotFound when an artifact is missing.
type IndexOpener interface {
	// Open loads both indexes for the corpus.
	Open(ctx context.Context, corpusID string) (*CorpusIndex, error)

	// Missing returns the paths of absent artifacts, empty when the index is complete.
	Missing(corpusID string) []string

	// Version identifies the published build of a corpus index. It changes
	// whenever a new build replaces the artifacts, including from another process.
	Version(corpusID string) (string, error)
}

// IndexWriter builds the index artifacts of a corpus in a staging directory
// and publishes them atomically.
type IndexWriter interface {
	// Write stores all chunks (with embeddings) and publishes the new index.
	Write(ctx context.Context, corpusID string, chunks []domain.Chunk) (string, error)
}
