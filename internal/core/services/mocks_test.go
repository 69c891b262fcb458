package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/custodia-labs/papersoul/internal/core/domain"
	"github.com/custodia-labs/papersoul/internal/core/ports/driven"
)

// --- Mock implementations ---

// mockLexicalIndex implements driven.LexicalIndex for testing.
type mockLexicalIndex struct {
	hits      []domain.Chunk
	searchErr error
	queries   []string
	closed    bool
}

func (m *mockLexicalIndex) Search(_ context.Context, query string, limit int) ([]domain.Chunk, error) {
	m.queries = append(m.queries, query)
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	if limit > len(m.hits) {
		return m.hits, nil
	}
	return m.hits[:limit], nil
}

func (m *mockLexicalIndex) Close() error {
	m.closed = true
	return nil
}

// mockVectorIndex implements driven.VectorIndex for testing.
type mockVectorIndex struct {
	hits      []domain.Chunk
	searchErr error
	closed    bool
}

func (m *mockVectorIndex) Search(_ context.Context, _ []float32, limit int) ([]domain.Chunk, error) {
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	if limit > len(m.hits) {
		return m.hits, nil
	}
	return m.hits[:limit], nil
}

func (m *mockVectorIndex) Count() int {
	return len(m.hits)
}

func (m *mockVectorIndex) Close() error {
	m.closed = true
	return nil
}

// mockEmbeddingService implements driven.EmbeddingService for testing.
type mockEmbeddingService struct {
	mu        sync.Mutex
	embedding []float32
	embedErr  error
	// failures makes the first n EmbedBatch calls fail.
	failures int
	calls    int
	texts    []string
}

func (m *mockEmbeddingService) Embed(_ context.Context, _ string) ([]float32, error) {
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	return m.vector(), nil
}

func (m *mockEmbeddingService) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.embedErr != nil {
		return nil, m.embedErr
	}
	if m.failures > 0 {
		m.failures--
		return nil, errors.New("rate limited")
	}
	m.texts = append(m.texts, texts...)
	result := make([][]float32, len(texts))
	for i := range texts {
		result[i] = m.vector()
	}
	return result, nil
}

func (m *mockEmbeddingService) vector() []float32 {
	if m.embedding != nil {
		return m.embedding
	}
	return []float32{0.1, 0.2, 0.3}
}

func (m *mockEmbeddingService) Dimensions() int {
	return len(m.vector())
}

func (m *mockEmbeddingService) ModelName() string {
	return "mock-embed"
}

func (m *mockEmbeddingService) Ping(_ context.Context) error {
	return m.embedErr
}

func (m *mockEmbeddingService) Close() error {
	return nil
}

// mockChatStream implements driven.ChatStream for testing.
type mockChatStream struct {
	mu     sync.Mutex
	pieces []string
	err    error
	pos    int
	closed int
}

func (m *mockChatStream) Recv() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.pos < len(m.pieces) {
		p := m.pieces[m.pos]
		m.pos++
		return p, nil
	}
	if m.err != nil {
		return "", m.err
	}
	return "", io.EOF
}

func (m *mockChatStream) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed++
	return nil
}

// mockLLMService implements driven.LLMService for testing.
type mockLLMService struct {
	mu        sync.Mutex
	reply     string
	chatErr   error
	stream    *mockChatStream
	streamErr error
	// extraction is returned for prompts asking for long-term facts.
	extraction string
	requests   [][]driven.ChatMessage
	options    []driven.ChatOptions
}

func (m *mockLLMService) Chat(_ context.Context, messages []driven.ChatMessage, opts driven.ChatOptions) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, messages)
	m.options = append(m.options, opts)
	if len(messages) == 1 && strings.Contains(messages[0].Content, "long-term memory") {
		return m.extraction, nil
	}
	if m.chatErr != nil {
		return "", m.chatErr
	}
	return m.reply, nil
}

func (m *mockLLMService) ChatStream(
	_ context.Context, messages []driven.ChatMessage, opts driven.ChatOptions,
) (driven.ChatStream, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, messages)
	m.options = append(m.options, opts)
	if m.streamErr != nil {
		return nil, m.streamErr
	}
	return m.stream, nil
}

func (m *mockLLMService) generationRequest() []driven.ChatMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return nil
	}
	return m.requests[0]
}

func (m *mockLLMService) ModelName() string {
	return "mock-llm"
}

func (m *mockLLMService) Ping(_ context.Context) error {
	return nil
}

func (m *mockLLMService) Close() error {
	return nil
}

// mockContextRetriever implements ContextRetriever for testing.
type mockContextRetriever struct {
	mu      sync.Mutex
	context string
	err     error
	corpora []string
	queries []string
}

func (m *mockContextRetriever) FetchContext(_ context.Context, corpusID, query string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.corpora = append(m.corpora, corpusID)
	m.queries = append(m.queries, query)
	if m.err != nil {
		return "", m.err
	}
	return m.context, nil
}

// mockPromptStore implements driven.PromptStore for testing.
type mockPromptStore struct {
	prompts map[string]string
}

func (m *mockPromptStore) Load(name string) (string, error) {
	p, ok := m.prompts[name]
	if !ok {
		return "", domain.ErrNotFound
	}
	return p, nil
}

func (m *mockPromptStore) Reload() {}

// failingFactStore wraps a FactStore and fails inserts.
type failingFactStore struct {
	driven.FactStore
	insertErr error
	listErr   error
}

func (f *failingFactStore) InsertFact(ctx context.Context, fact domain.Fact) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	return f.FactStore.InsertFact(ctx, fact)
}

func (f *failingFactStore) ListFacts(ctx context.Context, sessionID, roleID string) ([]domain.Fact, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.FactStore.ListFacts(ctx, sessionID, roleID)
}

// failingSessionStore wraps a SessionStore and fails appends.
type failingSessionStore struct {
	driven.SessionStore
	appendErr error
}

func (f *failingSessionStore) AppendTurns(ctx context.Context, sessionID string, turns []domain.Turn) error {
	if f.appendErr != nil {
		return f.appendErr
	}
	return f.SessionStore.AppendTurns(ctx, sessionID, turns)
}

// chunk builds a test chunk.
func chunk(id, content string) domain.Chunk {
	return domain.Chunk{ID: id, Content: content}
}
