package services

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/papersoul/internal/core/domain"
	"github.com/custodia-labs/papersoul/internal/core/ports/driven"
	"github.com/custodia-labs/papersoul/internal/core/ports/driving"
)

// Ensure services implement the interfaces.
var (
	_ driving.SessionService = (*SessionService)(nil)
	_ driving.ProfileService = (*ProfileService)(nil)
)

// SessionService manages conversation sessions.
type SessionService struct {
	sessions  driven.SessionStore
	facts     driven.FactStore
	profiles  driven.ProfileStore
	exportDir string
	now       func() time.Time
}

// NewSessionService creates a session service. Exports are written to exportDir.
func NewSessionService(
	sessions driven.SessionStore,
	facts driven.FactStore,
	profiles driven.ProfileStore,
	exportDir string,
) *SessionService {
	return &SessionService{
		sessions:  sessions,
		facts:     facts,
		profiles:  profiles,
		exportDir: exportDir,
		now:       time.Now,
	}
}

// Create starts a new session bound to a character and its corpus.
func (s *SessionService) Create(ctx context.Context, name, roleID string) (*domain.Session, error) {
	if roleID == "" {
		return nil, fmt.Errorf("%w: role is required", domain.ErrInvalidInput)
	}

	profile, err := s.profiles.Get(ctx, roleID)
	if err != nil {
		return nil, fmt.Errorf("load profile %s: %w", roleID, err)
	}

	now := s.now()
	name = strings.TrimSpace(name)
	if name == "" {
		name = fmt.Sprintf("%s %s", profile.Name(), now.Format("2006-01-02 15:04"))
	}

	session := domain.Session{
		ID:        uuid.New().String(),
		Name:      name,
		RoleID:    profile.ID,
		CorpusID:  profile.CorpusID,
		CreatedAt: now,
	}
	if err := s.sessions.CreateSession(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return &session, nil
}

// Get retrieves a session by ID.
func (s *SessionService) Get(ctx context.Context, id string) (*domain.Session, error) {
	return s.sessions.GetSession(ctx, id)
}

// List returns all sessions, newest first.
func (s *SessionService) List(ctx context.Context) ([]domain.Session, error) {
	return s.sessions.ListSessions(ctx)
}

// History returns the turns of a session in order.
func (s *SessionService) History(ctx context.Context, id string) ([]domain.Turn, error) {
	if _, err := s.sessions.GetSession(ctx, id); err != nil {
		return nil, err
	}
	return s.sessions.LoadHistory(ctx, id)
}

// Clear removes all turns of a session. Facts are kept.
func (s *SessionService) Clear(ctx context.Context, id string) error {
	if _, err := s.sessions.GetSession(ctx, id); err != nil {
		return err
	}
	return s.sessions.ClearHistory(ctx, id)
}

// Delete removes a session together with its turns and facts.
func (s *SessionService) Delete(ctx context.Context, id string) error {
	return s.sessions.DeleteSession(ctx, id)
}

// Export writes the session, its turns and its facts to exportDir as JSON.
func (s *SessionService) Export(ctx context.Context, id string) (string, error) {
	session, err := s.sessions.GetSession(ctx, id)
	if err != nil {
		return "", err
	}
	turns, err := s.sessions.LoadHistory(ctx, id)
	if err != nil {
		return "", fmt.Errorf("load history: %w", err)
	}
	facts, err := s.facts.ListSessionFacts(ctx, id)
	if err != nil {
		return "", fmt.Errorf("list facts: %w", err)
	}

	data, err := json.MarshalIndent(domain.SessionExport{
		Session:  *session,
		Messages: turns,
		Facts:    facts,
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal export: %w", err)
	}

	if err := os.MkdirAll(s.exportDir, 0700); err != nil {
		return "", fmt.Errorf("create export directory: %w", err)
	}
	path := filepath.Join(s.exportDir, fmt.Sprintf("session_%s.json", id))
	if err := os.WriteFile(path, data, 0600); err != nil {
		return "", fmt.Errorf("write export: %w", err)
	}
	return path, nil
}

// ProfileService lists the available characters.
type ProfileService struct {
	profiles driven.ProfileStore
}

// NewProfileService creates a profile service.
func NewProfileService(profiles driven.ProfileStore) *ProfileService {
	return &ProfileService{profiles: profiles}
}

// Get returns a character profile.
func (s *ProfileService) Get(ctx context.Context, id string) (*domain.Profile, error) {
	return s.profiles.Get(ctx, id)
}

// List returns all character profiles.
func (s *ProfileService) List(ctx context.Context) ([]domain.Profile, error) {
	return s.profiles.List(ctx)
}
