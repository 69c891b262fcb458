// Package cache memoises embeddings in front of any EmbeddingService.
//
// Chat turns embed a history-aware query on every request and users often
// retry or rephrase, so repeated queries are served from a ristretto cache.
package cache

import (
	"context"
	"fmt"
	"slices"

	"github.com/dgraph-io/ristretto"

	"github.com/custodia-labs/papersoul/internal/core/ports/driven"
	"github.com/custodia-labs/papersoul/internal/logger"
)

// Ensure EmbeddingService implements the interface.
var _ driven.EmbeddingService = (*EmbeddingService)(nil)

// DefaultMaxBytes bounds the memory held by cached vectors.
const DefaultMaxBytes = 32 << 20

// EmbeddingService wraps another EmbeddingService with a cache keyed by
// model and text.
type EmbeddingService struct {
	inner driven.EmbeddingService
	cache *ristretto.Cache
}

// New wraps inner. maxBytes <= 0 uses DefaultMaxBytes.
func New(inner driven.EmbeddingService, maxBytes int64) (*EmbeddingService, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}

	c, err := ristretto.NewCache(&ristretto.Config{
		// About ten counters per expected entry of a 1k-dimension vector.
		NumCounters: maxBytes / 4096 * 10,
		MaxCost:     maxBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create embedding cache: %w", err)
	}

	return &EmbeddingService{inner: inner, cache: c}, nil
}

func (s *EmbeddingService) key(text string) string {
	return s.inner.ModelName() + "\x00" + text
}

func (s *EmbeddingService) lookup(text string) ([]float32, bool) {
	v, ok := s.cache.Get(s.key(text))
	if !ok {
		return nil, false
	}
	return slices.Clone(v.([]float32)), true
}

func (s *EmbeddingService) store(text string, embedding []float32) {
	s.cache.Set(s.key(text), slices.Clone(embedding), int64(len(embedding)*4))
}

// Embed returns the cached vector for text or computes and caches it.
func (s *EmbeddingService) Embed(ctx context.Context, text string) ([]float32, error) {
	if embedding, ok := s.lookup(text); ok {
		logger.Debug("embedding cache hit (%d chars)", len([]rune(text)))
		return embedding, nil
	}

	embedding, err := s.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	s.store(text, embedding)
	s.cache.Wait()
	return embedding, nil
}

// EmbedBatch only sends the texts that are not cached yet.
func (s *EmbeddingService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	result := make([][]float32, len(texts))
	var (
		missing []string
		slots   []int
	)
	for i, text := range texts {
		if embedding, ok := s.lookup(text); ok {
			result[i] = embedding
			continue
		}
		missing = append(missing, text)
		slots = append(slots, i)
	}
	if len(missing) == 0 {
		return result, nil
	}

	embeddings, err := s.inner.EmbedBatch(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(embeddings) != len(missing) {
		return nil, fmt.Errorf("expected %d embeddings, got %d", len(missing), len(embeddings))
	}
	for j, embedding := range embeddings {
		result[slots[j]] = embedding
		s.store(missing[j], embedding)
	}
	s.cache.Wait()
	return result, nil
}

// Dimensions returns the wrapped service's vector size.
func (s *EmbeddingService) Dimensions() int {
	return s.inner.Dimensions()
}

// ModelName returns the wrapped service's model name.
func (s *EmbeddingService) ModelName() string {
	return s.inner.ModelName()
}

// Ping checks the wrapped service.
func (s *EmbeddingService) Ping(ctx context.Context) error {
	return s.inner.Ping(ctx)
}

// Close stops the cache and closes the wrapped service.
func (s *EmbeddingService) Close() error {
	s.cache.Close()
	return s.inner.Close()
}
