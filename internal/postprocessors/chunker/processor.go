// Package chunker provides a fixed-size text chunking processor.
package chunker

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/custodia-labs/papersoul/internal/core/domain"
)

// DefaultChunkSize is the default number of characters per chunk.
const DefaultChunkSize = domain.DefaultChunkSize

// DefaultChunkOverlap is the default number of overlapping characters.
const DefaultChunkOverlap = domain.DefaultChunkOverlap

// separators are preferred break points, strongest first.
var separators = []string{"\n\n", "\n", "。", "！", "？", ". ", "! ", "? ", "；", "; ", "，", ", ", " "}

// Processor splits document content into overlapping windows of characters.
// Windows end at the strongest separator found in their second half, so
// chunks tend to break between paragraphs and sentences rather than words.
// It implements the PostProcessor interface.
type Processor struct {
	chunkSize int
	overlap   int
}

// Option configures the chunker processor.
type Option func(*Processor)

// WithChunkSize sets the chunk size in characters.
func WithChunkSize(size int) Option {
	return func(p *Processor) {
		if size > 0 {
			p.chunkSize = size
		}
	}
}

// WithOverlap sets the overlap between chunks in characters.
func WithOverlap(overlap int) Option {
	return func(p *Processor) {
		if overlap >= 0 {
			p.overlap = overlap
		}
	}
}

// New creates a new chunker processor with the given options.
func New(opts ...Option) *Processor {
	p := &Processor{
		chunkSize: DefaultChunkSize,
		overlap:   DefaultChunkOverlap,
	}

	for _, opt := range opts {
		opt(p)
	}

	// Ensure overlap doesn't exceed chunk size
	if p.overlap >= p.chunkSize {
		p.overlap = p.chunkSize / 4
	}

	return p
}

// Name returns the processor name.
func (p *Processor) Name() string {
	return "chunker"
}

// Process splits the document content into chunks.
// Input chunks are ignored; this processor creates new chunks from document content.
// Chunk IDs derive from the document ID and position, so rebuilding an
// unchanged corpus yields the same IDs.
func (p *Processor) Process(_ context.Context, doc *domain.Document, _ []domain.Chunk) ([]domain.Chunk, error) {
	runes := []rune(doc.Content)
	if len(runes) == 0 {
		return nil, nil
	}

	chunks := make([]domain.Chunk, 0, len(runes)/(p.chunkSize-p.overlap)+1)
	start := 0
	for start < len(runes) {
		end := min(start+p.chunkSize, len(runes))
		if end < len(runes) {
			end = p.breakPoint(runes, start, end)
		}

		position := len(chunks)
		chunks = append(chunks, domain.Chunk{
			ID:         chunkID(doc.ID, position),
			DocumentID: doc.ID,
			CorpusID:   doc.CorpusID,
			Content:    string(runes[start:end]),
			Position:   position,
		})

		if end == len(runes) {
			break
		}
		// Always advance, even when the window shrank below the overlap.
		start = max(end-p.overlap, start+1)
	}

	return chunks, nil
}

// breakPoint moves end back to just after the strongest separator in the
// second half of the window, or keeps it when there is none.
func (p *Processor) breakPoint(runes []rune, start, end int) int {
	window := string(runes[start:end])
	half := len(string(runes[start : start+(end-start)/2]))
	for _, sep := range separators {
		if i := strings.LastIndex(window, sep); i >= half {
			return start + len([]rune(window[:i+len(sep)]))
		}
	}
	return end
}

func chunkID(documentID string, position int) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(fmt.Sprintf("%s#%d", documentID, position))).String()
}
