package driven

import "context"

// LLMService provides chat generation for in-character replies and fact extraction.
//
// Implementations may include:
//   - OpenAI and OpenAI-compatible gateways
//   - Anthropic (Claude)
//   - Ollama (local models)
type LLMService interface {
	// Chat conducts a multi-turn conversation and returns the full reply.
	Chat(ctx context.Context, messages []ChatMessage, opts ChatOptions) (string, error)

	// ChatStream conducts a multi-turn conversation and streams the reply.
	// The returned stream must be closed by the caller.
	ChatStream(ctx context.Context, messages []ChatMessage, opts ChatOptions) (ChatStream, error)

	// ModelName returns the name of the LLM model being used.
	ModelName() string

	// Ping validates the service is reachable by making a lightweight test request.
	Ping(ctx context.Context) error

	// Close releases resources.
	Close() error
}

// ChatStream is a forward-only sequence of reply fragments.
type ChatStream interface {
	// Recv returns the next fragment. It returns io.EOF once the reply is complete.
	Recv() (string, error)

	// Close releases the underlying connection. It is safe to call more than once.
	Close() error
}

// ChatMessage represents a single message in a conversation.
type ChatMessage struct {
	// Role is one of "system", "user", or "assistant".
	Role string

	// Content is the message text.
	Content string
}

// ChatOptions configures chat behaviour.
type ChatOptions struct {
	// MaxTokens is the maximum number of tokens to generate.
	MaxTokens int

	// Temperature controls randomness (0.0 = deterministic, 1.0 = creative).
	Temperature float64
}
