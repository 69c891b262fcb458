package postprocessors

import (
	"fmt"

	"github.com/spf13/cast"

	"github.com/custodia-labs/papersoul/internal/core/domain"
	"github.com/custodia-labs/papersoul/internal/core/ports/driven"
	"github.com/custodia-labs/papersoul/internal/postprocessors/chunker"
	"github.com/custodia-labs/papersoul/internal/postprocessors/trim"
)

// RegisterDefaults registers all built-in processors with the registry.
// Call this during application initialisation to enable standard processors.
func RegisterDefaults(r *Registry) {
	r.Register("chunker", buildChunker)
	r.Register("trim", func(map[string]any) (driven.PostProcessor, error) {
		return trim.New(), nil
	})
}

// DefaultPipeline builds the corpus pipeline: chunk, then trim.
func DefaultPipeline(r *Registry, settings domain.IndexSettings) (*Pipeline, error) {
	chunk, err := r.Build("chunker", map[string]any{
		"chunk_size": settings.ChunkSize,
		"overlap":    settings.ChunkOverlap,
	})
	if err != nil {
		return nil, err
	}
	clean, err := r.Build("trim", nil)
	if err != nil {
		return nil, err
	}
	return NewPipeline(chunk, clean), nil
}

// buildChunker creates a chunker processor from generic config.
// Supported config keys:
//   - chunk_size (int): Characters per chunk (default: 600)
//   - overlap (int): Overlapping characters between chunks (default: 120)
func buildChunker(cfg map[string]any) (driven.PostProcessor, error) {
	var opts []chunker.Option

	size, err := configInt(cfg, "chunk_size")
	if err != nil {
		return nil, err
	}
	if size > 0 {
		opts = append(opts, chunker.WithChunkSize(size))
	}
	if _, ok := cfg["overlap"]; ok {
		overlap, err := configInt(cfg, "overlap")
		if err != nil {
			return nil, err
		}
		opts = append(opts, chunker.WithOverlap(overlap))
	}

	return chunker.New(opts...), nil
}

// configInt reads an int from a generic config map. Values decoded from
// TOML, JSON or the environment arrive as int64, float64 or string.
// A missing key yields zero.
func configInt(cfg map[string]any, key string) (int, error) {
	n, err := cast.ToIntE(cfg[key])
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %w", domain.ErrInvalidInput, key, err)
	}
	return n, nil
}
