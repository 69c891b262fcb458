// Package lexical implements the keyword index of a corpus on SQLite FTS5.
//
// The index is a single lexical.db file holding the chunk texts and an FTS5
// table over their pre-tokenised terms. Results are ranked with bm25.
package lexical

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"

	_ "modernc.org/sqlite" // Pure Go SQLite driver with FTS5

	"github.com/custodia-labs/papersoul/internal/core/domain"
	"github.com/custodia-labs/papersoul/internal/core/ports/driven"
	"github.com/custodia-labs/papersoul/internal/logger"
)

// FileName is the artifact name inside a corpus index directory.
const FileName = "lexical.db"

// Ensure Index implements the interface.
var _ driven.LexicalIndex = (*Index)(nil)

const schema = `
CREATE TABLE chunks (
    rowid       INTEGER PRIMARY KEY,
    id          TEXT NOT NULL UNIQUE,
    document_id TEXT NOT NULL,
    corpus_id   TEXT NOT NULL,
    position    INTEGER NOT NULL,
    content     TEXT NOT NULL
);
CREATE VIRTUAL TABLE chunks_fts USING fts5(terms, tokenize = 'unicode61');
`

// Index is a read-only lexical index.
type Index struct {
	db *sql.DB
}

// Build writes a new lexical index for chunks at path.
// The file must not exist yet.
func Build(ctx context.Context, path string, chunks []domain.Chunk) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%w: %s", domain.ErrAlreadyExists, path)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(DELETE)&_pragma=synchronous(OFF)")
	if err != nil {
		return fmt.Errorf("open lexical index: %w", err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create lexical schema: %w", err)
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	insertChunk, err := tx.PrepareContext(ctx,
		`INSERT INTO chunks (rowid, id, document_id, corpus_id, position, content) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer insertChunk.Close()

	insertTerms, err := tx.PrepareContext(ctx, `INSERT INTO chunks_fts (rowid, terms) VALUES (?, ?)`)
	if err != nil {
		return err
	}
	defer insertTerms.Close()

	for i, c := range chunks {
		rowid := i + 1
		if _, err := insertChunk.ExecContext(ctx, rowid, c.ID, c.DocumentID, c.CorpusID, c.Position, c.Content); err != nil {
			return fmt.Errorf("insert chunk %s: %w", c.ID, err)
		}
		if _, err := insertTerms.ExecContext(ctx, rowid, strings.Join(Tokenize(c.Content), " ")); err != nil {
			return fmt.Errorf("index chunk %s: %w", c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit lexical index: %w", err)
	}

	logger.Debug("lexical index: %d chunks written to %s", len(chunks), path)
	return nil
}

// Open opens an existing lexical index.
func Open(path string) (*Index, error) {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", domain.ErrIndexNotFound, path)
		}
		return nil, err
	}

	db, err := sql.Open("sqlite", path+"?_pragma=query_only(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open lexical index: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("open lexical index: %w", err)
	}

	return &Index{db: db}, nil
}

// Search returns up to limit chunks ranked by bm25, best first.
// A query without any index terms returns no results.
func (i *Index) Search(ctx context.Context, query string, limit int) ([]domain.Chunk, error) {
	match := matchQuery(query)
	if match == "" || limit <= 0 {
		return nil, nil
	}

	rows, err := i.db.QueryContext(ctx, `
		SELECT c.id, c.document_id, c.corpus_id, c.position, c.content
		FROM chunks_fts
		JOIN chunks c ON c.rowid = chunks_fts.rowid
		WHERE chunks_fts MATCH ?
		ORDER BY bm25(chunks_fts), c.rowid
		LIMIT ?`, match, limit)
	if err != nil {
		return nil, fmt.Errorf("lexical search: %w", err)
	}
	defer rows.Close()

	var chunks []domain.Chunk
	for rows.Next() {
		var c domain.Chunk
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.CorpusID, &c.Position, &c.Content); err != nil {
			return nil, fmt.Errorf("scan chunk: %w", err)
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// Count returns the number of indexed chunks.
func (i *Index) Count(ctx context.Context) (int, error) {
	var n int
	err := i.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&n)
	return n, err
}

// Close releases the database handle.
func (i *Index) Close() error {
	return i.db.Close()
}
