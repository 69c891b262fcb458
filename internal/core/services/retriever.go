package services

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/papersoul/internal/core/domain"
	"github.com/custodia-labs/papersoul/internal/core/ports/driven"
	"github.com/custodia-labs/papersoul/internal/core/ports/driving"
	"github.com/custodia-labs/papersoul/internal/logger"
)

// Ensure RetrieverRegistry implements the interfaces.
var (
	_ driving.RetrievalService = (*RetrieverRegistry)(nil)
	_ ContextRetriever         = (*RetrieverRegistry)(nil)
)

// ContextSeparator joins retrieved chunks into one grounding context blob.
const ContextSeparator = "\n\n"

// ContextRetriever produces the grounding context for a corpus.
type ContextRetriever interface {
	// FetchContext returns the fused top chunks for query, joined by ContextSeparator.
	FetchContext(ctx context.Context, corpusID, query string) (string, error)
}

// FusionOptions holds the per-source damping offsets of reciprocal rank fusion.
type FusionOptions struct {
	VectorOffset  float64
	LexicalOffset float64
}

// fusedChunk holds a chunk and its accumulated fusion score.
type fusedChunk struct {
	chunk domain.Chunk
	score float64
}

// FuseRankings merges a vector ranking and a lexical ranking with reciprocal
// rank fusion and returns at most k chunks.
//
// Each list contributes 1/(offset+rank) per chunk with 0-based rank. Scores are
// summed per chunk key; the first occurrence (vector list first) supplies the
// payload. The sort is stable, so equal scores keep first-seen order. Chunks
// with blank or repeated text are dropped and returned texts are trimmed.
func FuseRankings(vector, lexical []domain.Chunk, k int, opts FusionOptions) []domain.Chunk {
	if k <= 0 {
		return []domain.Chunk{}
	}

	index := make(map[string]int)
	fused := make([]fusedChunk, 0, len(vector)+len(lexical))

	accumulate := func(list []domain.Chunk, offset float64) {
		for rank, c := range list {
			score := 1.0 / (offset + float64(rank))
			key := c.Key()
			if i, ok := index[key]; ok {
				fused[i].score += score
				continue
			}
			index[key] = len(fused)
			fused = append(fused, fusedChunk{chunk: c, score: score})
		}
	}
	accumulate(vector, opts.VectorOffset)
	accumulate(lexical, opts.LexicalOffset)

	sort.SliceStable(fused, func(i, j int) bool {
		return fused[i].score > fused[j].score
	})

	out := make([]domain.Chunk, 0, min(k, len(fused)))
	seenText := make(map[string]bool, len(fused))
	for _, f := range fused {
		if len(out) == k {
			break
		}
		text := strings.TrimSpace(f.chunk.Content)
		if text == "" || seenText[text] {
			continue
		}
		seenText[text] = true
		c := f.chunk
		c.Content = text
		out = append(out, c)
	}
	return out
}

// JoinChunks concatenates chunk texts into a single context blob.
func JoinChunks(chunks []domain.Chunk) string {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = strings.TrimSpace(c.Content)
	}
	return strings.Join(texts, ContextSeparator)
}

// HybridRetriever fuses lexical and vector rankings over one corpus.
type HybridRetriever struct {
	corpusID string
	lexical  driven.LexicalIndex
	vector   driven.VectorIndex
	embedder driven.EmbeddingService
	settings domain.RetrievalSettings
}

// NewHybridRetriever creates a retriever over an opened corpus index.
// Both rankers and the embedder are required; there is no single-ranker mode.
func NewHybridRetriever(
	index *driven.CorpusIndex,
	embedder driven.EmbeddingService,
	settings domain.RetrievalSettings,
) (*HybridRetriever, error) {
	if index == nil || index.Lexical == nil || index.Vector == nil {
		return nil, fmt.Errorf("%w: corpus index incomplete", domain.ErrSetup)
	}
	if embedder == nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrSetup, domain.ErrEmbeddingUnavailable)
	}
	if settings.TopK <= 0 {
		settings.TopK = domain.DefaultTopK
	}
	if settings.VectorOffset <= 0 {
		settings.VectorOffset = domain.DefaultVectorOffset
	}
	if settings.LexicalOffset <= 0 {
		settings.LexicalOffset = domain.DefaultLexicalOffset
	}
	return &HybridRetriever{
		corpusID: index.CorpusID,
		lexical:  index.Lexical,
		vector:   index.Vector,
		embedder: embedder,
		settings: settings,
	}, nil
}

// Fetch returns up to k fused chunks for the query.
// A failure of either ranker fails the whole call.
func (r *HybridRetriever) Fetch(ctx context.Context, query string, k int) ([]domain.Chunk, error) {
	logger.Section("Hybrid Retrieval")
	logger.Debug("Corpus: %s, query: %q, k: %d", r.corpusID, query, k)

	query = strings.TrimSpace(query)
	if query == "" || k <= 0 {
		logger.Debug("Empty query, returning no chunks")
		return []domain.Chunk{}, nil
	}

	limit := max(r.settings.Candidates, k)

	var vectorHits, lexicalHits []domain.Chunk
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		hits, err := r.lexical.Search(gctx, query, limit)
		if err != nil {
			return fmt.Errorf("lexical search: %w", err)
		}
		lexicalHits = hits
		return nil
	})

	g.Go(func() error {
		embedding, err := r.embedder.Embed(gctx, query)
		if err != nil {
			return fmt.Errorf("embed query: %w", err)
		}
		hits, err := r.vector.Search(gctx, embedding, limit)
		if err != nil {
			return fmt.Errorf("vector search: %w", err)
		}
		vectorHits = hits
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Warn("Hybrid retrieval failed: %v", err)
		return nil, fmt.Errorf("%w: %w", domain.ErrRetrieval, err)
	}

	logger.Debug("Merging %d vector + %d lexical hits with RRF (offsets %.0f/%.0f)",
		len(vectorHits), len(lexicalHits), r.settings.VectorOffset, r.settings.LexicalOffset)

	fused := FuseRankings(vectorHits, lexicalHits, k, FusionOptions{
		VectorOffset:  r.settings.VectorOffset,
		LexicalOffset: r.settings.LexicalOffset,
	})
	logger.Debug("Fused to %d chunks", len(fused))

	return fused, nil
}

// FetchContext returns the configured top-k chunks joined into one blob.
func (r *HybridRetriever) FetchContext(ctx context.Context, query string) (string, error) {
	chunks, err := r.Fetch(ctx, query, r.settings.TopK)
	if err != nil {
		return "", err
	}
	return JoinChunks(chunks), nil
}

// Close releases both indexes.
func (r *HybridRetriever) Close() error {
	idx := driven.CorpusIndex{Lexical: r.lexical, Vector: r.vector}
	return idx.Close()
}

// RetrieverRegistry opens and caches one HybridRetriever per corpus.
type RetrieverRegistry struct {
	opener   driven.IndexOpener
	embedder driven.EmbeddingService
	settings domain.RetrievalSettings

	mu         sync.Mutex
	retrievers map[string]*openRetriever
}

// openRetriever is a cached retriever and the index version it was opened at.
type openRetriever struct {
	retriever *HybridRetriever
	version   string
}

// NewRetrieverRegistry creates a registry that opens indexes lazily.
func NewRetrieverRegistry(
	opener driven.IndexOpener,
	embedder driven.EmbeddingService,
	settings domain.RetrievalSettings,
) *RetrieverRegistry {
	return &RetrieverRegistry{
		opener:     opener,
		embedder:   embedder,
		settings:   settings,
		retrievers: make(map[string]*openRetriever),
	}
}

// ForCorpus returns the retriever for a corpus, opening its indexes on first use.
// A cached retriever is reopened when the published index has changed since it
// was opened, which covers rebuilds run by another process.
// Missing artifacts fail with domain.ErrSetup and a rebuild instruction.
func (r *RetrieverRegistry) ForCorpus(ctx context.Context, corpusID string) (*HybridRetriever, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cached, ok := r.retrievers[corpusID]; ok {
		version, err := r.opener.Version(corpusID)
		if err != nil || version == cached.version {
			// An unreadable version means a swap is in flight; keep serving.
			return cached.retriever, nil
		}
		logger.Info("Index for corpus %s was rebuilt, reopening", corpusID)
		r.closeLocked(corpusID)
	}

	if missing := r.opener.Missing(corpusID); len(missing) > 0 {
		return nil, domain.IndexNotFoundError(corpusID, missing)
	}

	version, err := r.opener.Version(corpusID)
	if err != nil {
		return nil, fmt.Errorf("%w: read index version %s: %w", domain.ErrSetup, corpusID, err)
	}

	index, err := r.opener.Open(ctx, corpusID)
	if err != nil {
		return nil, fmt.Errorf("%w: open index %s: %w", domain.ErrSetup, corpusID, err)
	}

	hr, err := NewHybridRetriever(index, r.embedder, r.settings)
	if err != nil {
		_ = index.Close()
		return nil, err
	}

	logger.Info("Opened index for corpus %s (%d vectors)", corpusID, index.Vector.Count())
	r.retrievers[corpusID] = &openRetriever{retriever: hr, version: version}
	return hr, nil
}

// Retrieve returns the fused top-k chunks for a query against a corpus.
func (r *RetrieverRegistry) Retrieve(ctx context.Context, corpusID, query string, k int) ([]domain.Chunk, error) {
	hr, err := r.ForCorpus(ctx, corpusID)
	if err != nil {
		return nil, err
	}
	if k <= 0 {
		k = r.settings.TopK
	}
	return hr.Fetch(ctx, query, k)
}

// FetchContext returns the grounding context blob for a corpus.
func (r *RetrieverRegistry) FetchContext(ctx context.Context, corpusID, query string) (string, error) {
	hr, err := r.ForCorpus(ctx, corpusID)
	if err != nil {
		return "", err
	}
	return hr.FetchContext(ctx, query)
}

// Invalidate closes and forgets the cached retriever of a corpus so the next
// request reopens the freshly built index.
func (r *RetrieverRegistry) Invalidate(corpusID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closeLocked(corpusID)
}

func (r *RetrieverRegistry) closeLocked(corpusID string) {
	cached, ok := r.retrievers[corpusID]
	if !ok {
		return
	}
	if err := cached.retriever.Close(); err != nil {
		logger.Warn("Close retriever %s: %v", corpusID, err)
	}
	delete(r.retrievers, corpusID)
}

// Close releases every open index.
func (r *RetrieverRegistry) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for id, cached := range r.retrievers {
		if err := cached.retriever.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(r.retrievers, id)
	}
	return firstErr
}
