package domain

// RawDocument represents the bytes of one corpus file before normalisation.
type RawDocument struct {
	// CorpusID names the corpus the file belongs to.
	CorpusID string

	// URI is the file path.
	URI string

	// MIMEType is the content type (e.g., "text/plain").
	MIMEType string

	// Content is the raw bytes.
	Content []byte
}
