// Package index stores the per-corpus lexical and vector index artifacts
// under <dataDir>/indexes/<corpus>/.
//
// Builds are written to a staging directory next to the live one and
// swapped in with a rename, so readers never see a half-written index.
package index

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/custodia-labs/papersoul/internal/adapters/driven/index/lexical"
	"github.com/custodia-labs/papersoul/internal/adapters/driven/index/vector"
	"github.com/custodia-labs/papersoul/internal/core/domain"
	"github.com/custodia-labs/papersoul/internal/core/ports/driven"
	"github.com/custodia-labs/papersoul/internal/logger"
)

// Verify interface compliance.
var (
	_ driven.IndexOpener = (*Store)(nil)
	_ driven.IndexWriter = (*Store)(nil)
)

// Store opens and writes corpus indexes.
type Store struct {
	root string
}

// NewStore creates a store rooted at <dataDir>/indexes.
func NewStore(dataDir string) *Store {
	return &Store{root: filepath.Join(dataDir, "indexes")}
}

// Dir returns the live index directory of a corpus.
func (s *Store) Dir(corpusID string) string {
	return filepath.Join(s.root, corpusID)
}

// Missing returns the paths of absent artifacts.
func (s *Store) Missing(corpusID string) []string {
	var missing []string
	for _, name := range []string{lexical.FileName, vector.FileName} {
		path := filepath.Join(s.Dir(corpusID), name)
		if _, err := os.Stat(path); err != nil {
			missing = append(missing, path)
		}
	}
	return missing
}

// Version stamps the live artifacts of a corpus with their modification
// times and sizes. Every published build writes fresh files, so the stamp
// changes after a rebuild.
func (s *Store) Version(corpusID string) (string, error) {
	var b strings.Builder
	for _, name := range []string{lexical.FileName, vector.FileName} {
		info, err := os.Stat(filepath.Join(s.Dir(corpusID), name))
		if err != nil {
			return "", fmt.Errorf("stat %s: %w", name, err)
		}
		fmt.Fprintf(&b, "%s:%d:%d;", name, info.ModTime().UnixNano(), info.Size())
	}
	return b.String(), nil
}

// Open loads both indexes of a corpus.
func (s *Store) Open(_ context.Context, corpusID string) (*driven.CorpusIndex, error) {
	if missing := s.Missing(corpusID); len(missing) > 0 {
		return nil, domain.IndexNotFoundError(corpusID, missing)
	}

	dir := s.Dir(corpusID)
	lex, err := lexical.Open(filepath.Join(dir, lexical.FileName))
	if err != nil {
		return nil, err
	}
	vec, err := vector.Open(filepath.Join(dir, vector.FileName))
	if err != nil {
		_ = lex.Close()
		return nil, err
	}

	logger.Debug("opened index %s (%d vectors)", dir, vec.Count())
	return &driven.CorpusIndex{CorpusID: corpusID, Lexical: lex, Vector: vec}, nil
}

// Write builds both artifacts in a staging directory and publishes them.
// It returns the live index directory.
func (s *Store) Write(ctx context.Context, corpusID string, chunks []domain.Chunk) (string, error) {
	if err := os.MkdirAll(s.root, 0o700); err != nil {
		return "", fmt.Errorf("create index root: %w", err)
	}

	staging, err := os.MkdirTemp(s.root, "."+corpusID+"-build-")
	if err != nil {
		return "", fmt.Errorf("create staging dir: %w", err)
	}
	published := false
	defer func() {
		if !published {
			_ = os.RemoveAll(staging)
		}
	}()

	if err := lexical.Build(ctx, filepath.Join(staging, lexical.FileName), chunks); err != nil {
		return "", err
	}
	if err := vector.Build(ctx, filepath.Join(staging, vector.FileName), chunks); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	live := s.Dir(corpusID)
	if err := swap(staging, live); err != nil {
		return "", err
	}
	published = true

	logger.Info("published index %s (%d chunks)", live, len(chunks))
	return live, nil
}

// swap replaces live with staging. The previous index is moved aside first
// and removed only after the new one is in place.
func swap(staging, live string) error {
	old := ""
	if _, err := os.Stat(live); err == nil {
		old = staging + ".old"
		if err := os.Rename(live, old); err != nil {
			return fmt.Errorf("retire previous index: %w", err)
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	if err := os.Rename(staging, live); err != nil {
		if old != "" {
			_ = os.Rename(old, live)
		}
		return fmt.Errorf("publish index: %w", err)
	}

	if old != "" {
		if err := os.RemoveAll(old); err != nil {
			logger.Warn("failed to remove previous index %s: %v", old, err)
		}
	}
	return nil
}
