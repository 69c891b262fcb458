package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/custodia-labs/papersoul/internal/core/domain"
	"github.com/custodia-labs/papersoul/internal/core/ports/driven"
)

// Ensure the stores implement the interfaces.
var (
	_ driven.SessionStore = (*SessionStore)(nil)
	_ driven.FactStore    = (*SessionStore)(nil)
)

// SessionStore is an in-memory implementation of driven.SessionStore and
// driven.FactStore. Deleting a session drops its facts, as the SQLite store does.
type SessionStore struct {
	mu       sync.RWMutex
	sessions map[string]domain.Session
	turns    map[string][]domain.Turn
	facts    []domain.Fact
	nextFact int64
}

// NewSessionStore creates a new in-memory session and fact store.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]domain.Session),
		turns:    make(map[string][]domain.Turn),
	}
}

// CreateSession stores a new session.
func (s *SessionStore) CreateSession(_ context.Context, session domain.Session) error {
	if session.ID == "" || session.RoleID == "" {
		return fmt.Errorf("%w: session id and role are required", domain.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[session.ID]; ok {
		return fmt.Errorf("%w: session %s", domain.ErrAlreadyExists, session.ID)
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now()
	}
	s.sessions[session.ID] = session
	return nil
}

// GetSession retrieves a session by ID.
func (s *SessionStore) GetSession(_ context.Context, id string) (*domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, fmt.Errorf("%w: session %s", domain.ErrNotFound, id)
	}
	return &session, nil
}

// ListSessions returns all sessions, newest first.
func (s *SessionStore) ListSessions(_ context.Context) ([]domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]domain.Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		result = append(result, session)
	}
	sort.Slice(result, func(i, j int) bool {
		if !result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].CreatedAt.After(result[j].CreatedAt)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// AppendTurns appends turns after the session's current maximum index.
func (s *SessionStore) AppendTurns(_ context.Context, sessionID string, turns []domain.Turn) error {
	for _, t := range turns {
		if !t.Speaker.IsValid() {
			return fmt.Errorf("%w: speaker %q", domain.ErrInvalidInput, t.Speaker)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return fmt.Errorf("%w: session %s", domain.ErrNotFound, sessionID)
	}

	log := s.turns[sessionID]
	next := 0
	if len(log) > 0 {
		next = log[len(log)-1].Index + 1
	}
	now := time.Now()
	for i, t := range turns {
		t.SessionID = sessionID
		t.Index = next + i
		if t.CreatedAt.IsZero() {
			t.CreatedAt = now
		}
		log = append(log, t)
	}
	s.turns[sessionID] = log
	return nil
}

// LoadHistory returns all turns of a session in index order.
func (s *SessionStore) LoadHistory(_ context.Context, sessionID string) ([]domain.Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	log := s.turns[sessionID]
	out := make([]domain.Turn, len(log))
	copy(out, log)
	return out, nil
}

// ClearHistory removes all turns of a session.
func (s *SessionStore) ClearHistory(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.turns, sessionID)
	return nil
}

// DeleteSession removes the session, its turns and its facts.
func (s *SessionStore) DeleteSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[sessionID]; !ok {
		return fmt.Errorf("%w: session %s", domain.ErrNotFound, sessionID)
	}
	delete(s.sessions, sessionID)
	delete(s.turns, sessionID)

	kept := s.facts[:0]
	for _, f := range s.facts {
		if f.SessionID != sessionID {
			kept = append(kept, f)
		}
	}
	s.facts = kept
	return nil
}

// InsertFact stores a fact.
func (s *SessionStore) InsertFact(_ context.Context, fact domain.Fact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[fact.SessionID]; !ok {
		return fmt.Errorf("%w: session %s", domain.ErrNotFound, fact.SessionID)
	}
	s.nextFact++
	fact.ID = s.nextFact
	if fact.CreatedAt.IsZero() {
		fact.CreatedAt = time.Now()
	}
	s.facts = append(s.facts, fact)
	return nil
}

// ListFacts returns the facts owned by (session, role), newest first.
func (s *SessionStore) ListFacts(_ context.Context, sessionID, roleID string) ([]domain.Fact, error) {
	return s.filterFacts(func(f domain.Fact) bool {
		return f.SessionID == sessionID && f.RoleID == roleID
	}), nil
}

// ListSessionFacts returns every fact of a session, newest first.
func (s *SessionStore) ListSessionFacts(_ context.Context, sessionID string) ([]domain.Fact, error) {
	return s.filterFacts(func(f domain.Fact) bool {
		return f.SessionID == sessionID
	}), nil
}

func (s *SessionStore) filterFacts(keep func(domain.Fact) bool) []domain.Fact {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []domain.Fact{}
	for _, f := range s.facts {
		if keep(f) {
			out = append(out, f)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out
}
