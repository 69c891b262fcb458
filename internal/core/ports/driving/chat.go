package driving

import (
	"context"

	"github.com/custodia-labs/papersoul/internal/core/domain"
)

// ChatService answers user turns in character.
type ChatService interface {
	// Respond generates the full reply, persists the exchange and, when memory
	// is enabled, extracts long-term facts from it.
	Respond(ctx context.Context, req domain.ChatRequest) (string, error)

	// RespondStream starts a streamed reply. Nothing is persisted until the
	// stream is drained and finalised.
	RespondStream(ctx context.Context, req domain.ChatRequest) (ReplyStream, error)
}

// ReplyStream is a two-phase, single-consumer reply.
//
// Next yields fragments until it returns io.EOF. Finalize may then be called
// once to persist the exchange. Close abandons the stream; an abandoned
// stream persists nothing.
type ReplyStream interface {
	// Next returns the next reply fragment, or io.EOF when the reply is complete.
	Next() (string, error)

	// Finalize persists the exchange using the full reply and returns it.
	// It returns domain.ErrStreamIncomplete if called before io.EOF.
	Finalize(ctx context.Context) (string, error)

	// Close releases the stream. It is safe to call after Finalize.
	Close() error

	// Stage reports the request stage.
	Stage() domain.Stage
}

// RetrievalService exposes grounding context lookup without generation.
type RetrievalService interface {
	// Retrieve returns the fused top-k chunks for a query against a corpus.
	Retrieve(ctx context.Context, corpusID, query string, k int) ([]domain.Chunk, error)
}

// MemoryService exposes long-term memory lookups.
type MemoryService interface {
	// Retrieve returns up to k facts of (session, role) ranked for the query.
	Retrieve(ctx context.Context, sessionID, roleID, query string, k int) ([]string, error)

	// Count returns the number of facts owned by (session, role).
	Count(ctx context.Context, sessionID, roleID string) (int, error)
}
