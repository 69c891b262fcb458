package vector

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/papersoul/internal/core/domain"
)

func testChunks() []domain.Chunk {
	return []domain.Chunk{
		{ID: "c1", DocumentID: "001.txt", CorpusID: "salt-road", Position: 0, Content: "dawn", Embedding: []float32{1, 0, 0}},
		{ID: "c2", DocumentID: "001.txt", CorpusID: "salt-road", Position: 1, Content: "salt", Embedding: []float32{0, 1, 0}},
		{ID: "c3", DocumentID: "002.txt", CorpusID: "salt-road", Position: 4, Content: "storm", Embedding: []float32{0.7, 0.7, 0}},
	}
}

func buildTestIndex(t *testing.T) *Index {
	t.Helper()
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, Build(context.Background(), path, testChunks()))

	idx, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = idx.Close() })
	return idx
}

func TestSearch_NearestFirst(t *testing.T) {
	idx := buildTestIndex(t)

	chunks, err := idx.Search(context.Background(), []float32{0.9, 0.1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "c1", chunks[0].ID)
	assert.Equal(t, "c3", chunks[1].ID)
	assert.Equal(t, "dawn", chunks[0].Content)
	assert.Equal(t, "salt-road", chunks[0].CorpusID)
	assert.Equal(t, 4, chunks[1].Position)
	assert.Equal(t, "002.txt", chunks[1].DocumentID)
}

func TestSearch_ClampsLimit(t *testing.T) {
	idx := buildTestIndex(t)

	chunks, err := idx.Search(context.Background(), []float32{0, 1, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, chunks, 3)
	assert.Equal(t, "c2", chunks[0].ID)
}

func TestSearch_EmptyQuery(t *testing.T) {
	idx := buildTestIndex(t)

	chunks, err := idx.Search(context.Background(), nil, 3)
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestCount(t *testing.T) {
	assert.Equal(t, 3, buildTestIndex(t).Count())
}

func TestBuild_MissingEmbedding(t *testing.T) {
	chunks := testChunks()
	chunks[1].Embedding = nil

	err := Build(context.Background(), filepath.Join(t.TempDir(), FileName), chunks)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestBuild_RefusesExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), FileName)
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	err := Build(context.Background(), path, testChunks())
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)
}

func TestOpen_Missing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), FileName))
	assert.ErrorIs(t, err, domain.ErrIndexNotFound)
}
