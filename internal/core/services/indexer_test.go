package services

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/papersoul/internal/core/domain"
)

// mockNormaliser turns raw bytes into a document.
type mockNormaliser struct{}

func (mockNormaliser) SupportedMIMETypes() []string { return []string{"text/plain"} }

func (mockNormaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*domain.Document, error) {
	return &domain.Document{
		ID:       filepath.Base(raw.URI),
		CorpusID: raw.CorpusID,
		URI:      raw.URI,
		Content:  string(raw.Content),
	}, nil
}

// recordingNormaliser accepts several MIME types and records what it was given.
type recordingNormaliser struct {
	mimeTypes []string
	seen      map[string]string
}

func (n *recordingNormaliser) SupportedMIMETypes() []string { return n.mimeTypes }

func (n *recordingNormaliser) Normalise(ctx context.Context, raw *domain.RawDocument) (*domain.Document, error) {
	n.seen[filepath.Base(raw.URI)] = raw.MIMEType
	return mockNormaliser{}.Normalise(ctx, raw)
}

// lineChunker emits one chunk per non-empty line.
type lineChunker struct{}

func (lineChunker) Process(_ context.Context, doc *domain.Document) ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	for _, line := range strings.Split(doc.Content, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		chunks = append(chunks, domain.Chunk{
			ID:         doc.ID + "#" + line,
			DocumentID: doc.ID,
			Content:    line,
			Position:   len(chunks),
		})
	}
	return chunks, nil
}

// mockIndexWriter records published chunks.
type mockIndexWriter struct {
	mu       sync.Mutex
	corpusID string
	chunks   []domain.Chunk
	err      error
}

func (m *mockIndexWriter) Write(_ context.Context, corpusID string, chunks []domain.Chunk) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	m.corpusID = corpusID
	m.chunks = chunks
	return "/indexes/" + corpusID, nil
}

func writeCorpus(t *testing.T, files map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for name, content := range files {
		path := filepath.Join(root, "book", name)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}
	return root
}

func newIndexFixture(root string, embedder *mockEmbeddingService, writer *mockIndexWriter) *IndexService {
	return NewIndexService(root, mockNormaliser{}, lineChunker{}, embedder, writer,
		&mockIndexOpener{}, domain.IndexSettings{
			BatchSize:         2,
			RequestsPerSecond: 1000,
			Workers:           3,
			MaxRetries:        3,
		})
}

func TestIndexService_Build(t *testing.T) {
	root := writeCorpus(t, map[string]string{
		"002.txt":       "third\nfourth",
		"001.txt":       "first\n\nsecond",
		"notes.md":      "ignored",
		"part2/003.TXT": "fifth",
	})
	embedder := &mockEmbeddingService{}
	writer := &mockIndexWriter{}
	svc := newIndexFixture(root, embedder, writer)

	var built string
	svc.OnBuilt(func(id string) { built = id })

	stats, err := svc.Build(context.Background(), "book")
	require.NoError(t, err)

	assert.Equal(t, "book", stats.CorpusID)
	assert.Equal(t, 3, stats.Documents)
	assert.Equal(t, 5, stats.Chunks)
	assert.Equal(t, 3, stats.Dimensions)
	assert.Equal(t, "/indexes/book", stats.Path)
	assert.Equal(t, "book", built)

	require.Len(t, writer.chunks, 5)
	assert.Equal(t, []string{"first", "second", "third", "fourth", "fifth"}, contents(writer.chunks))
	for _, c := range writer.chunks {
		assert.Equal(t, "book", c.CorpusID)
		assert.Len(t, c.Embedding, 3)
	}

	// Health check plus three batches of at most two.
	assert.Equal(t, 4, embedder.calls)
	assert.Contains(t, embedder.texts, "health check")
}

func TestIndexService_Build_SelectsFilesByMIMEType(t *testing.T) {
	root := writeCorpus(t, map[string]string{
		"001.txt":   "a",
		"002.md":    "b",
		"003.HTML":  "c",
		"cover.png": "d",
	})
	normaliser := &recordingNormaliser{
		mimeTypes: []string{"text/plain", "text/markdown", "text/html"},
		seen:      make(map[string]string),
	}
	svc := NewIndexService(root, normaliser, lineChunker{}, &mockEmbeddingService{}, &mockIndexWriter{},
		&mockIndexOpener{}, domain.IndexSettings{RequestsPerSecond: 1000})

	stats, err := svc.Build(context.Background(), "book")
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Documents)
	assert.Equal(t, map[string]string{
		"001.txt":  "text/plain",
		"002.md":   "text/markdown",
		"003.HTML": "text/html",
	}, normaliser.seen)
}

func TestIndexService_Build_RetriesTransientFailures(t *testing.T) {
	root := writeCorpus(t, map[string]string{"001.txt": "a\nb"})
	embedder := &flakyAfterProbe{}
	writer := &mockIndexWriter{}
	svc := NewIndexService(root, mockNormaliser{}, lineChunker{}, embedder, writer,
		&mockIndexOpener{}, domain.IndexSettings{BatchSize: 2, RequestsPerSecond: 1000, Workers: 1, MaxRetries: 3})

	stats, err := svc.Build(context.Background(), "book")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Chunks)
	assert.Equal(t, 3, embedder.calls, "probe, failed batch, retried batch")
}

func TestIndexService_Build_FailedHealthCheck(t *testing.T) {
	root := writeCorpus(t, map[string]string{"001.txt": "a"})
	embedder := &mockEmbeddingService{failures: 1}
	writer := &mockIndexWriter{}
	svc := newIndexFixture(root, embedder, writer)

	_, err := svc.Build(context.Background(), "book")
	assert.ErrorIs(t, err, domain.ErrSetup)
	assert.Equal(t, 1, embedder.calls)
	assert.Nil(t, writer.chunks)
}

// flakyAfterProbe fails the first batch after the health check once.
type flakyAfterProbe struct {
	mockEmbeddingService
}

func (f *flakyAfterProbe) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls == 2 {
		return nil, errors.New("429 too many requests")
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = []float32{1, 0}
	}
	return out, nil
}

func TestIndexService_Build_GivesUpAfterMaxRetries(t *testing.T) {
	root := writeCorpus(t, map[string]string{"001.txt": "a"})
	embedder := &failAfterProbe{}
	svc := NewIndexService(root, mockNormaliser{}, lineChunker{}, embedder, &mockIndexWriter{},
		&mockIndexOpener{}, domain.IndexSettings{BatchSize: 1, RequestsPerSecond: 1000, Workers: 1, MaxRetries: 2})

	_, err := svc.Build(context.Background(), "book")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 attempts")
	assert.Equal(t, 3, embedder.calls)
}

// failAfterProbe accepts the health check and fails every later batch.
type failAfterProbe struct {
	mockEmbeddingService
}

func (f *failAfterProbe) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.calls == 1 {
		return [][]float32{{1}}, nil
	}
	return nil, errors.New("quota exceeded")
}

func TestIndexService_Build_Errors(t *testing.T) {
	root := writeCorpus(t, map[string]string{"001.txt": "a"})
	ctx := context.Background()

	svc := newIndexFixture(root, &mockEmbeddingService{}, &mockIndexWriter{})
	_, err := svc.Build(ctx, "../etc")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = svc.Build(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	svc = newIndexFixture(root, &mockEmbeddingService{}, &mockIndexWriter{err: errors.New("disk full")})
	_, err = svc.Build(ctx, "book")
	assert.ErrorContains(t, err, "write index")

	svc = NewIndexService(root, mockNormaliser{}, lineChunker{}, nil, &mockIndexWriter{},
		&mockIndexOpener{}, domain.IndexSettings{})
	_, err = svc.Build(ctx, "book")
	assert.ErrorIs(t, err, domain.ErrEmbeddingUnavailable)
}

func TestIndexService_Missing(t *testing.T) {
	opener := &mockIndexOpener{missing: []string{"lexical.db"}}
	svc := NewIndexService(t.TempDir(), mockNormaliser{}, lineChunker{}, &mockEmbeddingService{},
		&mockIndexWriter{}, opener, domain.IndexSettings{})
	assert.Equal(t, []string{"lexical.db"}, svc.Missing("book"))
}
