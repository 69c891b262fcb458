package driving

import (
	"context"

	"github.com/custodia-labs/papersoul/internal/core/domain"
)

// SessionService manages conversation sessions.
type SessionService interface {
	// Create starts a new session for a character. An empty name is generated.
	Create(ctx context.Context, name, roleID string) (*domain.Session, error)

	// Get retrieves a session by ID.
	Get(ctx context.Context, id string) (*domain.Session, error)

	// List returns all sessions, newest first.
	List(ctx context.Context) ([]domain.Session, error)

	// History returns the turns of a session in order.
	History(ctx context.Context, id string) ([]domain.Turn, error)

	// Clear removes all turns of a session.
	Clear(ctx context.Context, id string) error

	// Delete removes a session with its turns and facts.
	Delete(ctx context.Context, id string) error

	// Export writes the session, its turns and its facts to a JSON document
	// and returns the file path.
	Export(ctx context.Context, id string) (string, error)
}

// ProfileService lists the available characters.
type ProfileService interface {
	// Get returns a character profile.
	Get(ctx context.Context, id string) (*domain.Profile, error)

	// List returns all character profiles.
	List(ctx context.Context) ([]domain.Profile, error)
}
