package driving

import (
	"context"

	"github.com/custodia-labs/papersoul/internal/core/domain"
)

// IndexService builds corpus indexes offline.
type IndexService interface {
	// Build chunks, embeds and indexes every text file of the corpus, then
	// atomically replaces any existing index.
	Build(ctx context.Context, corpusID string) (*domain.IndexStats, error)

	// Missing returns the absent artifact paths of a corpus index.
	Missing(corpusID string) []string
}
