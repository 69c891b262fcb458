// Package trim provides a processor that normalises chunk whitespace.
package trim

import (
	"context"
	"strings"

	"github.com/custodia-labs/papersoul/internal/core/domain"
)

// Processor trims surrounding whitespace from chunk text and drops chunks
// that end up empty. Positions are renumbered to stay contiguous.
// It implements the PostProcessor interface.
type Processor struct{}

// New creates a trim processor.
func New() *Processor {
	return &Processor{}
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "trim"
}

// Process trims the incoming chunks.
func (p *Processor) Process(_ context.Context, _ *domain.Document, chunks []domain.Chunk) ([]domain.Chunk, error) {
	out := chunks[:0]
	for _, c := range chunks {
		c.Content = strings.TrimSpace(c.Content)
		if c.Content == "" {
			continue
		}
		c.Position = len(out)
		out = append(out, c)
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}
