package normalisers

import (
	"context"
	"fmt"

	"github.com/custodia-labs/papersoul/internal/core/domain"
	"github.com/custodia-labs/papersoul/internal/core/ports/driven"
)

// Ensure Dispatcher implements the interface.
var _ driven.Normaliser = (*Dispatcher)(nil)

// Dispatcher routes each raw file to the normaliser registered for its MIME type.
// When several normalisers claim a type, the first one registered wins.
type Dispatcher struct {
	byMIME map[string]driven.Normaliser
	order  []string
}

// NewDispatcher creates a dispatcher over the given normalisers.
func NewDispatcher(normalisers ...driven.Normaliser) *Dispatcher {
	d := &Dispatcher{byMIME: make(map[string]driven.Normaliser)}
	for _, n := range normalisers {
		for _, mime := range n.SupportedMIMETypes() {
			if _, ok := d.byMIME[mime]; ok {
				continue
			}
			d.byMIME[mime] = n
			d.order = append(d.order, mime)
		}
	}
	return d
}

// SupportedMIMETypes returns every MIME type a registered normaliser handles.
func (d *Dispatcher) SupportedMIMETypes() []string {
	return append([]string(nil), d.order...)
}

// Normalise delegates to the normaliser for raw.MIMEType.
func (d *Dispatcher) Normalise(ctx context.Context, raw *domain.RawDocument) (*domain.Document, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}
	n, ok := d.byMIME[raw.MIMEType]
	if !ok {
		return nil, fmt.Errorf("%w: no normaliser for %q", domain.ErrUnsupportedType, raw.MIMEType)
	}
	return n.Normalise(ctx, raw)
}
