package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/papersoul/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/papersoul/internal/core/domain"
	"github.com/custodia-labs/papersoul/internal/core/ports/driven"
)

// DatabaseFile is the database file name inside the data directory.
const DatabaseFile = "papersoul.db"

// Store is a unified SQLite-based storage that provides access to
// the session and fact stores through wrapper types.
type Store struct {
	db   *sql.DB
	path string

	// writeMu serialises turn appends so index assignment never races.
	writeMu sync.Mutex
}

// NewStore creates a new SQLite store at the specified data directory.
// If dataDir is empty, defaults to ~/.papersoul/data/papersoul.db.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("getting home directory: %w", err)
		}
		dataDir = filepath.Join(home, ".papersoul", "data")
	}

	// Ensure directory exists
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}

	dbPath := filepath.Join(dataDir, DatabaseFile)

	// WAL for concurrent readers; foreign keys on every pooled connection.
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{
		db:   db,
		path: dbPath,
	}

	// Run migrations
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// SessionStore returns a SessionStore interface backed by this store.
func (s *Store) SessionStore() driven.SessionStore {
	return &sessionStore{store: s}
}

// FactStore returns a FactStore interface backed by this store.
func (s *Store) FactStore() driven.FactStore {
	return &factStore{store: s}
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys fs.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// Extract version number (e.g., "001_initial.up.sql" -> 1)
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue // Skip files that don't match pattern
		}

		if version <= currentVersion {
			continue // Already applied
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}

		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
	}

	return nil
}

func toUnix(t time.Time) int64 {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().UnixNano()
}

func fromUnix(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

// ==================== Session Store ====================

// sessionStore implements driven.SessionStore.
type sessionStore struct {
	store *Store
}

var _ driven.SessionStore = (*sessionStore)(nil)

// CreateSession stores a new session.
func (s *sessionStore) CreateSession(ctx context.Context, session domain.Session) error {
	if session.ID == "" || session.RoleID == "" {
		return fmt.Errorf("%w: session id and role are required", domain.ErrInvalidInput)
	}

	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO sessions (id, name, role_id, corpus_id, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, session.ID, session.Name, session.RoleID, session.CorpusID, toUnix(session.CreatedAt))
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return fmt.Errorf("%w: session %s", domain.ErrAlreadyExists, session.ID)
		}
		return fmt.Errorf("creating session: %w", err)
	}
	return nil
}

// GetSession retrieves a session by ID.
func (s *sessionStore) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT id, name, role_id, corpus_id, created_at
		FROM sessions WHERE id = ?
	`, id)

	var session domain.Session
	var createdAt int64
	if err := row.Scan(&session.ID, &session.Name, &session.RoleID, &session.CorpusID, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: session %s", domain.ErrNotFound, id)
		}
		return nil, fmt.Errorf("scanning session: %w", err)
	}
	session.CreatedAt = fromUnix(createdAt)
	return &session, nil
}

// ListSessions returns all sessions, newest first.
func (s *sessionStore) ListSessions(ctx context.Context) ([]domain.Session, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT id, name, role_id, corpus_id, created_at
		FROM sessions
		ORDER BY created_at DESC, id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	sessions := []domain.Session{}
	for rows.Next() {
		var session domain.Session
		var createdAt int64
		if err := rows.Scan(&session.ID, &session.Name, &session.RoleID, &session.CorpusID, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning session: %w", err)
		}
		session.CreatedAt = fromUnix(createdAt)
		sessions = append(sessions, session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sessions: %w", err)
	}
	return sessions, nil
}

// AppendTurns appends turns after the session's current maximum index in a
// single transaction.
func (s *sessionStore) AppendTurns(ctx context.Context, sessionID string, turns []domain.Turn) error {
	if len(turns) == 0 {
		return nil
	}
	for _, t := range turns {
		if !t.Speaker.IsValid() {
			return fmt.Errorf("%w: speaker %q", domain.ErrInvalidInput, t.Speaker)
		}
	}

	s.store.writeMu.Lock()
	defer s.store.writeMu.Unlock()

	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var exists int
	err = tx.QueryRowContext(ctx, "SELECT COUNT(*) FROM sessions WHERE id = ?", sessionID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("checking session: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("%w: session %s", domain.ErrNotFound, sessionID)
	}

	var maxIdx int
	err = tx.QueryRowContext(ctx,
		"SELECT COALESCE(MAX(idx), -1) FROM messages WHERE session_id = ?", sessionID).Scan(&maxIdx)
	if err != nil {
		return fmt.Errorf("reading message index: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO messages (session_id, idx, role, content, created_at)
		VALUES (?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for i, t := range turns {
		_, err := stmt.ExecContext(ctx, sessionID, maxIdx+1+i, t.Speaker.Role(), t.Content, toUnix(t.CreatedAt))
		if err != nil {
			return fmt.Errorf("inserting message: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing turns: %w", err)
	}
	return nil
}

// LoadHistory returns all turns of a session in index order.
func (s *sessionStore) LoadHistory(ctx context.Context, sessionID string) ([]domain.Turn, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT idx, role, content, created_at
		FROM messages WHERE session_id = ?
		ORDER BY idx ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("querying messages: %w", err)
	}
	defer rows.Close()

	turns := []domain.Turn{}
	for rows.Next() {
		var turn domain.Turn
		var role string
		var createdAt int64
		if err := rows.Scan(&turn.Index, &role, &turn.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning message: %w", err)
		}
		speaker, ok := domain.SpeakerFromRole(role)
		if !ok {
			return nil, fmt.Errorf("unknown message role %q", role)
		}
		turn.SessionID = sessionID
		turn.Speaker = speaker
		turn.CreatedAt = fromUnix(createdAt)
		turns = append(turns, turn)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating messages: %w", err)
	}
	return turns, nil
}

// ClearHistory removes all turns of a session.
func (s *sessionStore) ClearHistory(ctx context.Context, sessionID string) error {
	_, err := s.store.db.ExecContext(ctx, "DELETE FROM messages WHERE session_id = ?", sessionID)
	if err != nil {
		return fmt.Errorf("clearing messages: %w", err)
	}
	return nil
}

// DeleteSession removes the session, its turns and its facts.
func (s *sessionStore) DeleteSession(ctx context.Context, sessionID string) error {
	tx, err := s.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, q := range []string{
		"DELETE FROM messages WHERE session_id = ?",
		"DELETE FROM ltm WHERE session_id = ?",
	} {
		if _, err := tx.ExecContext(ctx, q, sessionID); err != nil {
			return fmt.Errorf("deleting session data: %w", err)
		}
	}

	res, err := tx.ExecContext(ctx, "DELETE FROM sessions WHERE id = ?", sessionID)
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: session %s", domain.ErrNotFound, sessionID)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing delete: %w", err)
	}
	return nil
}

// ==================== Fact Store ====================

// factStore implements driven.FactStore.
type factStore struct {
	store *Store
}

var _ driven.FactStore = (*factStore)(nil)

// InsertFact stores a fact.
func (s *factStore) InsertFact(ctx context.Context, fact domain.Fact) error {
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO ltm (session_id, role_id, fact, created_at)
		VALUES (?, ?, ?, ?)
	`, fact.SessionID, fact.RoleID, fact.Text, toUnix(fact.CreatedAt))
	if err != nil {
		if strings.Contains(err.Error(), "FOREIGN KEY constraint failed") {
			return fmt.Errorf("%w: session %s", domain.ErrNotFound, fact.SessionID)
		}
		return fmt.Errorf("inserting fact: %w", err)
	}
	return nil
}

// ListFacts returns the facts owned by (session, role), newest first.
func (s *factStore) ListFacts(ctx context.Context, sessionID, roleID string) ([]domain.Fact, error) {
	return s.query(ctx, `
		SELECT id, session_id, role_id, fact, created_at
		FROM ltm WHERE session_id = ? AND role_id = ?
		ORDER BY created_at DESC, id DESC
	`, sessionID, roleID)
}

// ListSessionFacts returns every fact of a session, newest first.
func (s *factStore) ListSessionFacts(ctx context.Context, sessionID string) ([]domain.Fact, error) {
	return s.query(ctx, `
		SELECT id, session_id, role_id, fact, created_at
		FROM ltm WHERE session_id = ?
		ORDER BY created_at DESC, id DESC
	`, sessionID)
}

func (s *factStore) query(ctx context.Context, query string, args ...any) ([]domain.Fact, error) {
	rows, err := s.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying facts: %w", err)
	}
	defer rows.Close()

	facts := []domain.Fact{}
	for rows.Next() {
		var fact domain.Fact
		var createdAt int64
		if err := rows.Scan(&fact.ID, &fact.SessionID, &fact.RoleID, &fact.Text, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning fact: %w", err)
		}
		fact.CreatedAt = fromUnix(createdAt)
		facts = append(facts, fact)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating facts: %w", err)
	}
	return facts, nil
}
