package driven

import (
	"context"

	"github.com/custodia-labs/papersoul/internal/core/domain"
)

// Normaliser transforms raw corpus files into documents.
type Normaliser interface {
	// SupportedMIMETypes returns the MIME types this normaliser handles.
	SupportedMIMETypes() []string

	// Normalise transforms a raw file into a document.
	Normalise(ctx context.Context, raw *domain.RawDocument) (*domain.Document, error)
}
