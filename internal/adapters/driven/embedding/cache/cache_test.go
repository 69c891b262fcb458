package cache

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingEmbedder returns a vector derived from the text length.
type countingEmbedder struct {
	calls   int
	batches [][]string
	err     error
}

func (e *countingEmbedder) vector(text string) []float32 {
	return []float32{float32(len(text)), 1}
}

func (e *countingEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	e.calls++
	if e.err != nil {
		return nil, e.err
	}
	return e.vector(text), nil
}

func (e *countingEmbedder) EmbedBatch(_ context.Context, texts []string) ([][]float32, error) {
	e.calls++
	e.batches = append(e.batches, texts)
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = e.vector(text)
	}
	return out, nil
}

func (e *countingEmbedder) Dimensions() int { return 2 }
func (e *countingEmbedder) ModelName() string { return "test-embed" }
func (e *countingEmbedder) Ping(context.Context) error { return nil }
func (e *countingEmbedder) Close() error { return nil }

func newTestCache(t *testing.T, inner *countingEmbedder) *EmbeddingService {
	t.Helper()
	svc, err := New(inner, 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func TestEmbed_CachesByText(t *testing.T) {
	inner := &countingEmbedder{}
	svc := newTestCache(t, inner)
	ctx := context.Background()

	first, err := svc.Embed(ctx, "when did we sail?")
	require.NoError(t, err)
	second, err := svc.Embed(ctx, "when did we sail?")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, inner.calls)

	_, err = svc.Embed(ctx, "who is the captain?")
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestEmbed_ReturnsCopies(t *testing.T) {
	svc := newTestCache(t, &countingEmbedder{})
	ctx := context.Background()

	first, err := svc.Embed(ctx, "dawn")
	require.NoError(t, err)
	first[0] = 99

	second, err := svc.Embed(ctx, "dawn")
	require.NoError(t, err)
	assert.Equal(t, float32(4), second[0])
}

func TestEmbed_ErrorsAreNotCached(t *testing.T) {
	inner := &countingEmbedder{err: errors.New("rate limited")}
	svc := newTestCache(t, inner)

	_, err := svc.Embed(context.Background(), "dawn")
	require.Error(t, err)

	inner.err = nil
	_, err = svc.Embed(context.Background(), "dawn")
	require.NoError(t, err)
	assert.Equal(t, 2, inner.calls)
}

func TestEmbedBatch_OnlySendsMisses(t *testing.T) {
	inner := &countingEmbedder{}
	svc := newTestCache(t, inner)
	ctx := context.Background()

	_, err := svc.Embed(ctx, "b")
	require.NoError(t, err)

	embeddings, err := svc.EmbedBatch(ctx, []string{"a", "b", "ccc"})
	require.NoError(t, err)

	assert.Equal(t, [][]float32{{1, 1}, {1, 1}, {3, 1}}, embeddings)
	require.Len(t, inner.batches, 1)
	assert.Equal(t, []string{"a", "ccc"}, inner.batches[0])

	_, err = svc.EmbedBatch(ctx, []string{"a", "ccc"})
	require.NoError(t, err)
	assert.Len(t, inner.batches, 1, "fully cached batch must not reach the provider")
}

func TestDelegates(t *testing.T) {
	svc := newTestCache(t, &countingEmbedder{})
	assert.Equal(t, 2, svc.Dimensions())
	assert.Equal(t, "test-embed", svc.ModelName())
	assert.NoError(t, svc.Ping(context.Background()))
}
