package services

import (
	"context"
	"fmt"
	"io/fs"
	"math/rand/v2"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"golang.org/x/time/rate"

	"github.com/custodia-labs/papersoul/internal/core/domain"
	"github.com/custodia-labs/papersoul/internal/core/ports/driven"
	"github.com/custodia-labs/papersoul/internal/core/ports/driving"
	"github.com/custodia-labs/papersoul/internal/logger"
)

// Ensure IndexService implements the interface.
var _ driving.IndexService = (*IndexService)(nil)

// backoffBase is the first retry delay of a failed embedding batch.
const backoffBase = 500 * time.Millisecond

// corpusMIMETypes maps corpus file extensions to MIME types.
var corpusMIMETypes = map[string]string{
	".txt":      "text/plain",
	".md":       "text/markdown",
	".markdown": "text/markdown",
	".html":     "text/html",
	".htm":      "text/html",
	".xhtml":    "application/xhtml+xml",
}

// corpusFile is a corpus file selected for indexing.
type corpusFile struct {
	path     string
	mimeType string
}

// IndexService builds the lexical and vector indexes of a corpus offline.
type IndexService struct {
	corporaDir string
	normaliser driven.Normaliser
	pipeline   driven.PostProcessorPipeline
	embedder   driven.EmbeddingService
	writer     driven.IndexWriter
	opener     driven.IndexOpener
	settings   domain.IndexSettings

	onBuilt func(corpusID string)
}

// NewIndexService creates an index builder reading text files from
// corporaDir/<corpus>/.
func NewIndexService(
	corporaDir string,
	normaliser driven.Normaliser,
	pipeline driven.PostProcessorPipeline,
	embedder driven.EmbeddingService,
	writer driven.IndexWriter,
	opener driven.IndexOpener,
	settings domain.IndexSettings,
) *IndexService {
	defaults := domain.DefaultIndexSettings()
	if settings.BatchSize <= 0 {
		settings.BatchSize = defaults.BatchSize
	}
	if settings.Workers <= 0 {
		settings.Workers = defaults.Workers
	}
	if settings.RequestsPerSecond <= 0 {
		settings.RequestsPerSecond = defaults.RequestsPerSecond
	}
	if settings.MaxRetries <= 0 {
		settings.MaxRetries = defaults.MaxRetries
	}
	return &IndexService{
		corporaDir: corporaDir,
		normaliser: normaliser,
		pipeline:   pipeline,
		embedder:   embedder,
		writer:     writer,
		opener:     opener,
		settings:   settings,
	}
}

// OnBuilt registers a callback run after an index is published.
// Serving processes use it to drop cached retrievers.
func (s *IndexService) OnBuilt(fn func(corpusID string)) {
	s.onBuilt = fn
}

// Missing returns the absent artifact paths of a corpus index.
func (s *IndexService) Missing(corpusID string) []string {
	return s.opener.Missing(corpusID)
}

// Build chunks, embeds and indexes every supported file of the corpus.
func (s *IndexService) Build(ctx context.Context, corpusID string) (*domain.IndexStats, error) {
	logger.Section("Index Build")

	if corpusID == "" || strings.ContainsAny(corpusID, `/\`) {
		return nil, fmt.Errorf("%w: invalid corpus id %q", domain.ErrInvalidInput, corpusID)
	}
	if s.embedder == nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrSetup, domain.ErrEmbeddingUnavailable)
	}

	files, err := s.corpusFiles(corpusID)
	if err != nil {
		return nil, err
	}
	logger.Info("Corpus %s: %d files", corpusID, len(files))

	chunks, err := s.chunkFiles(ctx, corpusID, files)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: corpus %s has no text", domain.ErrInvalidInput, corpusID)
	}
	logger.Info("Corpus %s: %d chunks", corpusID, len(chunks))

	// A small probe fails fast before the long embedding run.
	if _, err := s.embedder.EmbedBatch(ctx, []string{"health check"}); err != nil {
		return nil, fmt.Errorf("%w: embedding health check: %w", domain.ErrSetup, err)
	}

	if err := s.embedChunks(ctx, chunks); err != nil {
		return nil, err
	}

	path, err := s.writer.Write(ctx, corpusID, chunks)
	if err != nil {
		return nil, fmt.Errorf("write index: %w", err)
	}
	logger.Info("Index for %s published at %s", corpusID, path)

	if s.onBuilt != nil {
		s.onBuilt(corpusID)
	}

	return &domain.IndexStats{
		CorpusID:   corpusID,
		Documents:  len(files),
		Chunks:     len(chunks),
		Dimensions: len(chunks[0].Embedding),
		Path:       path,
	}, nil
}

// corpusFiles lists the files below the corpus directory that the
// normaliser can handle, in path order.
func (s *IndexService) corpusFiles(corpusID string) ([]corpusFile, error) {
	root := filepath.Join(s.corporaDir, corpusID)
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: corpus directory %s", domain.ErrNotFound, root)
	}

	supported := make(map[string]bool)
	for _, mime := range s.normaliser.SupportedMIMETypes() {
		supported[mime] = true
	}

	var files []corpusFile
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		mime := corpusMIMETypes[strings.ToLower(filepath.Ext(path))]
		if mime == "" || !supported[mime] {
			logger.Debug("Skipping %s", path)
			return nil
		}
		files = append(files, corpusFile{path: path, mimeType: mime})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk corpus %s: %w", corpusID, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w: no text files in %s", domain.ErrNotFound, root)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].path < files[j].path })
	return files, nil
}

// chunkFiles normalises and chunks each file.
func (s *IndexService) chunkFiles(ctx context.Context, corpusID string, files []corpusFile) ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	for _, file := range files {
		path := file.path
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}

		doc, err := s.normaliser.Normalise(ctx, &domain.RawDocument{
			CorpusID: corpusID,
			URI:      path,
			MIMEType: file.mimeType,
			Content:  content,
		})
		if err != nil {
			return nil, fmt.Errorf("normalise %s: %w", path, err)
		}

		docChunks, err := s.pipeline.Process(ctx, doc)
		if err != nil {
			return nil, fmt.Errorf("chunk %s: %w", path, err)
		}
		for i := range docChunks {
			docChunks[i].CorpusID = corpusID
		}
		logger.Debug("%s: %d chunks", filepath.Base(path), len(docChunks))
		chunks = append(chunks, docChunks...)
	}
	return chunks, nil
}

// embedChunks fills in chunk embeddings in throttled, concurrent batches.
func (s *IndexService) embedChunks(ctx context.Context, chunks []domain.Chunk) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	pool, err := ants.NewPool(s.settings.Workers, ants.WithPanicHandler(func(p any) {
		logger.Error("Embedding worker panic: %v", p)
	}))
	if err != nil {
		return fmt.Errorf("create embedding pool: %w", err)
	}
	defer pool.Release()

	limiter := rate.NewLimiter(rate.Limit(s.settings.RequestsPerSecond), s.settings.Workers)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
		done     int
	)
	fail := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		if firstErr == nil {
			firstErr = err
			cancel()
		}
	}

	for start := 0; start < len(chunks); start += s.settings.BatchSize {
		end := min(start+s.settings.BatchSize, len(chunks))
		batch := chunks[start:end]

		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()

			texts := make([]string, len(batch))
			for i, c := range batch {
				texts[i] = c.Content
			}
			vectors, err := s.embedWithRetry(ctx, limiter, texts)
			if err != nil {
				fail(err)
				return
			}
			for i := range batch {
				batch[i].Embedding = vectors[i]
			}

			mu.Lock()
			done += len(batch)
			logger.Debug("Embedded %d/%d chunks", done, len(chunks))
			mu.Unlock()
		})
		if submitErr != nil {
			wg.Done()
			fail(fmt.Errorf("submit embedding batch: %w", submitErr))
			break
		}
	}

	wg.Wait()
	return firstErr
}

// embedWithRetry embeds one batch, retrying with exponential backoff and jitter.
func (s *IndexService) embedWithRetry(
	ctx context.Context, limiter *rate.Limiter, texts []string,
) ([][]float32, error) {
	var lastErr error
	for attempt := 0; attempt < s.settings.MaxRetries; attempt++ {
		if err := limiter.Wait(ctx); err != nil {
			return nil, err
		}

		vectors, err := s.embedder.EmbedBatch(ctx, texts)
		if err == nil && len(vectors) == len(texts) {
			return vectors, nil
		}
		if err == nil {
			err = fmt.Errorf("got %d embeddings for %d texts", len(vectors), len(texts))
		}
		lastErr = err
		logger.Warn("Embedding batch failed (attempt %d/%d): %v", attempt+1, s.settings.MaxRetries, err)
		if attempt == s.settings.MaxRetries-1 {
			break
		}

		delay := backoffBase<<attempt + time.Duration(rand.Int64N(int64(200*time.Millisecond)))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
	return nil, fmt.Errorf("embed batch after %d attempts: %w", s.settings.MaxRetries, lastErr)
}
