package http

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/custodia-labs/papersoul/internal/core/domain"
	"github.com/custodia-labs/papersoul/internal/core/ports/driving"
)

// mockSessionService is an in-memory driving.SessionService.
type mockSessionService struct {
	mu       sync.Mutex
	sessions []domain.Session
	turns    map[string][]domain.Turn
	err      error
}

func newMockSessions() *mockSessionService {
	return &mockSessionService{
		sessions: []domain.Session{{ID: "s1", Name: "Garden", RoleID: "lin", CorpusID: "hongloumeng"}},
		turns: map[string][]domain.Turn{
			"s1": {{SessionID: "s1", Index: 0, Speaker: domain.SpeakerUser, Content: "Hello"}},
		},
	}
}

func (m *mockSessionService) Create(_ context.Context, name, roleID string) (*domain.Session, error) {
	if m.err != nil {
		return nil, m.err
	}
	if roleID != "lin" {
		return nil, fmt.Errorf("load profile %s: %w", roleID, domain.ErrNotFound)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s := domain.Session{ID: "s2", Name: name, RoleID: roleID, CorpusID: "hongloumeng"}
	m.sessions = append(m.sessions, s)
	return &s, nil
}

func (m *mockSessionService) Get(_ context.Context, id string) (*domain.Session, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.sessions {
		if s.ID == id {
			return &s, nil
		}
	}
	return nil, fmt.Errorf("%w: session %s", domain.ErrNotFound, id)
}

func (m *mockSessionService) List(_ context.Context) ([]domain.Session, error) {
	return m.sessions, m.err
}

func (m *mockSessionService) History(ctx context.Context, id string) ([]domain.Turn, error) {
	if _, err := m.Get(ctx, id); err != nil {
		return nil, err
	}
	return m.turns[id], nil
}

func (m *mockSessionService) Clear(ctx context.Context, id string) error {
	if _, err := m.Get(ctx, id); err != nil {
		return err
	}
	delete(m.turns, id)
	return nil
}

func (m *mockSessionService) Delete(_ context.Context, _ string) error { return m.err }

func (m *mockSessionService) Export(ctx context.Context, id string) (string, error) {
	if _, err := m.Get(ctx, id); err != nil {
		return "", err
	}
	return "/exports/session_" + id + ".json", nil
}

// mockProfileService is a static driving.ProfileService.
type mockProfileService struct {
	profiles []domain.Profile
	err      error
}

func (m *mockProfileService) Get(_ context.Context, id string) (*domain.Profile, error) {
	for _, p := range m.profiles {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *mockProfileService) List(_ context.Context) ([]domain.Profile, error) {
	return m.profiles, m.err
}

// mockChatService records the last request and replays a canned reply.
type mockChatService struct {
	reply     string
	err       error
	fragments []string
	streamErr error

	got    domain.ChatRequest
	stream *mockStream
}

func (m *mockChatService) Respond(_ context.Context, req domain.ChatRequest) (string, error) {
	m.got = req
	return m.reply, m.err
}

func (m *mockChatService) RespondStream(_ context.Context, req domain.ChatRequest) (driving.ReplyStream, error) {
	m.got = req
	if m.err != nil {
		return nil, m.err
	}
	m.stream = &mockStream{fragments: m.fragments, failAt: m.streamErr}
	return m.stream, nil
}

// mockStream yields fragments then io.EOF, or failAt once fragments run out.
type mockStream struct {
	fragments []string
	failAt    error
	pos       int
	reply     string

	finalized bool
	closed    bool
}

func (s *mockStream) Next() (string, error) {
	if s.pos >= len(s.fragments) {
		if s.failAt != nil {
			return "", s.failAt
		}
		return "", io.EOF
	}
	piece := s.fragments[s.pos]
	s.pos++
	s.reply += piece
	return piece, nil
}

func (s *mockStream) Finalize(_ context.Context) (string, error) {
	if s.closed {
		return "", domain.ErrStreamClosed
	}
	s.finalized = true
	return s.reply, nil
}

func (s *mockStream) Close() error {
	s.closed = true
	return nil
}

func (s *mockStream) Stage() domain.Stage {
	if s.finalized {
		return domain.StageDone
	}
	return domain.StageGenerating
}
