// Package vector implements the embedding index of a corpus on chromem-go.
//
// The index is persisted as a single vectors.gob file exported from an
// in-memory chromem database. Similarity is cosine.
package vector

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"

	chromem "github.com/philippgille/chromem-go"

	"github.com/custodia-labs/papersoul/internal/core/domain"
	"github.com/custodia-labs/papersoul/internal/core/ports/driven"
	"github.com/custodia-labs/papersoul/internal/logger"
)

// FileName is the artifact name inside a corpus index directory.
const FileName = "vectors.gob"

const collectionName = "chunks"

// Ensure Index implements the interface.
var _ driven.VectorIndex = (*Index)(nil)

// errTextQuery is returned if chromem ever tries to embed text itself.
// Queries are always embedded by the caller.
var errTextQuery = errors.New("vector index only accepts precomputed embeddings")

func noEmbedding(context.Context, string) ([]float32, error) {
	return nil, errTextQuery
}

// Index is a read-only vector index.
type Index struct {
	db         *chromem.DB
	collection *chromem.Collection
}

// Build writes a new vector index for chunks at path. Every chunk must
// carry an embedding of the same dimension.
func Build(ctx context.Context, path string, chunks []domain.Chunk) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: %s", domain.ErrAlreadyExists, path)
	}

	db := chromem.NewDB()
	collection, err := db.CreateCollection(collectionName, nil, noEmbedding)
	if err != nil {
		return fmt.Errorf("create collection: %w", err)
	}

	docs := make([]chromem.Document, 0, len(chunks))
	for _, c := range chunks {
		if len(c.Embedding) == 0 {
			return fmt.Errorf("%w: chunk %s has no embedding", domain.ErrInvalidInput, c.ID)
		}
		docs = append(docs, chromem.Document{
			ID:        c.ID,
			Content:   c.Content,
			Embedding: c.Embedding,
			Metadata: map[string]string{
				"document_id": c.DocumentID,
				"corpus_id":   c.CorpusID,
				"position":    strconv.Itoa(c.Position),
			},
		})
	}

	if len(docs) > 0 {
		if err := collection.AddDocuments(ctx, docs, runtime.NumCPU()); err != nil {
			return fmt.Errorf("add documents: %w", err)
		}
	}

	if err := db.ExportToFile(path, false, ""); err != nil {
		return fmt.Errorf("export vector index: %w", err)
	}

	logger.Debug("vector index: %d chunks written to %s", len(docs), path)
	return nil
}

// Open loads an existing vector index into memory.
func Open(path string) (*Index, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrIndexNotFound, path)
		}
		return nil, err
	}

	db := chromem.NewDB()
	if err := db.ImportFromFile(path, ""); err != nil {
		return nil, fmt.Errorf("import vector index: %w", err)
	}

	collection := db.GetCollection(collectionName, noEmbedding)
	if collection == nil {
		return nil, fmt.Errorf("vector index %s has no %q collection", path, collectionName)
	}

	return &Index{db: db, collection: collection}, nil
}

// Search returns up to limit chunks nearest to query, best first.
// chromem rejects limits above the collection size, so limit is clamped.
func (i *Index) Search(ctx context.Context, query []float32, limit int) ([]domain.Chunk, error) {
	if n := i.collection.Count(); limit > n {
		limit = n
	}
	if limit <= 0 || len(query) == 0 {
		return nil, nil
	}

	results, err := i.collection.QueryEmbedding(ctx, query, limit, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	chunks := make([]domain.Chunk, 0, len(results))
	for _, r := range results {
		position, _ := strconv.Atoi(r.Metadata["position"])
		chunks = append(chunks, domain.Chunk{
			ID:         r.ID,
			DocumentID: r.Metadata["document_id"],
			CorpusID:   r.Metadata["corpus_id"],
			Position:   position,
			Content:    r.Content,
		})
	}
	return chunks, nil
}

// Count returns the number of indexed chunks.
func (i *Index) Count() int {
	return i.collection.Count()
}

// Close drops the in-memory collection.
func (i *Index) Close() error {
	return i.db.Reset()
}
