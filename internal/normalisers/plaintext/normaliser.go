// Package plaintext normalises corpus text files.
package plaintext

import (
	"context"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/simplifiedchinese"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/custodia-labs/papersoul/internal/core/domain"
	"github.com/custodia-labs/papersoul/internal/core/ports/driven"
)

// Ensure Normaliser implements the interface.
var _ driven.Normaliser = (*Normaliser)(nil)

// Normaliser handles plain text corpus files.
//
// Files are expected to be UTF-8, optionally with a byte order mark or in
// UTF-16. Files that are not valid UTF-8 are decoded as GB18030, which is
// how most legacy Chinese novels are distributed.
type Normaliser struct{}

// New creates a new plain text normaliser.
func New() *Normaliser {
	return &Normaliser{}
}

// SupportedMIMETypes returns the MIME types this normaliser handles.
func (n *Normaliser) SupportedMIMETypes() []string {
	return []string{"text/plain"}
}

// Normalise converts a raw file to a document.
// Chunking is handled by the PostProcessor pipeline.
func (n *Normaliser) Normalise(_ context.Context, raw *domain.RawDocument) (*domain.Document, error) {
	if raw == nil {
		return nil, domain.ErrInvalidInput
	}

	content, err := Decode(raw.Content)
	if err != nil {
		return nil, err
	}

	return &domain.Document{
		ID:       filepath.Base(raw.URI),
		CorpusID: raw.CorpusID,
		URI:      raw.URI,
		Title:    TitleFromPath(raw.URI),
		Content:  NormaliseNewlines(content),
	}, nil
}

// Decode returns the file content as UTF-8.
func Decode(data []byte) (string, error) {
	// BOMOverride switches to UTF-16 when a matching BOM is present and
	// strips a UTF-8 BOM.
	utf, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), data)
	if err == nil && utf8.Valid(utf) {
		return string(utf), nil
	}

	gb, _, err := transform.Bytes(simplifiedchinese.GB18030.NewDecoder(), data)
	if err != nil {
		return "", err
	}
	return strings.ToValidUTF8(string(gb), "�"), nil
}

// NormaliseNewlines converts CRLF and CR line endings to LF.
func NormaliseNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

// TitleFromPath derives a human-readable title from a file name.
func TitleFromPath(uri string) string {
	filename := filepath.Base(uri)
	filename = strings.TrimSuffix(filename, filepath.Ext(filename))
	filename = strings.ReplaceAll(filename, "_", " ")
	return strings.ReplaceAll(filename, "-", " ")
}
