package domain

import "strings"

// Document is one source text file of a corpus after normalisation.
// Documents only exist while an index is being built.
type Document struct {
	// ID is the unique identifier for the document.
	ID string

	// CorpusID names the corpus the document belongs to.
	CorpusID string

	// URI is the original location on disk.
	URI string

	// Title is the human-readable title.
	Title string

	// Content is the full text content after normalisation.
	Content string
}

// Chunk is an immutable unit of retrievable corpus text.
type Chunk struct {
	// ID is the synthetic chunk identifier assigned at index build time.
	// Both index artifacts of a corpus share the same IDs.
	ID string

	// DocumentID links to the source Document.
	DocumentID string

	// CorpusID names the corpus the chunk belongs to.
	CorpusID string

	// Content is the text content of this chunk.
	Content string

	// Position is the ordinal position within the document.
	Position int

	// Embedding is the vector representation, only set during index builds.
	Embedding []float32
}

// Key returns the identity used for fusion and deduplication.
// The synthetic ID is preferred; the trimmed text is the fallback.
func (c Chunk) Key() string {
	if c.ID != "" {
		return "id:" + c.ID
	}
	return "text:" + strings.TrimSpace(c.Content)
}

// IndexStats summarises an index build.
type IndexStats struct {
	CorpusID   string
	Documents  int
	Chunks     int
	Dimensions int
	Path       string
}
