package driven

import (
	"context"

	"github.com/custodia-labs/papersoul/internal/core/domain"
)

// SessionStore persists sessions and their ordered turn logs.
type SessionStore interface {
	// CreateSession stores a new session.
	CreateSession(ctx context.Context, session domain.Session) error

	// GetSession retrieves a session by ID. Returns domain.ErrNotFound if absent.
	GetSession(ctx context.Context, id string) (*domain.Session, error)

	// ListSessions returns all sessions, newest first.
	ListSessions(ctx context.Context) ([]domain.Session, error)

	// AppendTurns appends turns in order, assigning indexes after the current
	// maximum for the session. All turns are written or none are.
	AppendTurns(ctx context.Context, sessionID string, turns []domain.Turn) error

	// LoadHistory returns all turns of a session in index order.
	LoadHistory(ctx context.Context, sessionID string) ([]domain.Turn, error)

	// ClearHistory removes all turns of a session, keeping the session itself.
	ClearHistory(ctx context.Context, sessionID string) error

	// DeleteSession removes the session, its turns and its facts.
	DeleteSession(ctx context.Context, sessionID string) error
}

// FactStore persists long-term memory facts.
type FactStore interface {
	// InsertFact stores a fact.
	InsertFact(ctx context.Context, fact domain.Fact) error

	// ListFacts returns the facts owned by (session, role), newest first.
	ListFacts(ctx context.Context, sessionID, roleID string) ([]domain.Fact, error)

	// ListSessionFacts returns every fact of a session, newest first.
	ListSessionFacts(ctx context.Context, sessionID string) ([]domain.Fact, error)
}

// ProfileStore provides character profiles.
type ProfileStore interface {
	// Get returns the profile with the given ID. Returns domain.ErrNotFound if absent.
	Get(ctx context.Context, id string) (*domain.Profile, error)

	// List returns all profiles sorted by ID.
	List(ctx context.Context) ([]domain.Profile, error)
}
