package mcp

import (
	"context"
	"fmt"

	"github.com/custodia-labs/papersoul/internal/core/domain"
	"github.com/custodia-labs/papersoul/internal/core/ports/driving"
)

// mockRetrievalService is a mock implementation of driving.RetrievalService.
type mockRetrievalService struct {
	chunks []domain.Chunk
	err    error

	gotCorpus string
	gotQuery  string
	gotK      int
}

func (m *mockRetrievalService) Retrieve(_ context.Context, corpusID, query string, k int) ([]domain.Chunk, error) {
	m.gotCorpus, m.gotQuery, m.gotK = corpusID, query, k
	return m.chunks, m.err
}

// mockProfileService is a mock implementation of driving.ProfileService.
type mockProfileService struct {
	profiles []domain.Profile
	err      error
}

func (m *mockProfileService) Get(_ context.Context, id string) (*domain.Profile, error) {
	if m.err != nil {
		return nil, m.err
	}
	for i := range m.profiles {
		if m.profiles[i].ID == id {
			p := m.profiles[i]
			return &p, nil
		}
	}
	return nil, fmt.Errorf("%w: profile %s", domain.ErrNotFound, id)
}

func (m *mockProfileService) List(_ context.Context) ([]domain.Profile, error) {
	return m.profiles, m.err
}

// mockSessionService is a mock implementation of driving.SessionService.
type mockSessionService struct {
	sessions []domain.Session
	turns    map[string][]domain.Turn
	err      error
}

func (m *mockSessionService) Create(_ context.Context, name, roleID string) (*domain.Session, error) {
	return &domain.Session{ID: "new", Name: name, RoleID: roleID}, m.err
}

func (m *mockSessionService) Get(_ context.Context, id string) (*domain.Session, error) {
	if m.err != nil {
		return nil, m.err
	}
	for i := range m.sessions {
		if m.sessions[i].ID == id {
			s := m.sessions[i]
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

func (m *mockSessionService) Clear(_ context.Context, _ string) error  { return m.err }
func (m *mockSessionService) Delete(_ context.Context, _ string) error { return m.err }

func (m *mockSessionService) Export(_ context.Context, id string) (string, error) {
	return "/tmp/session_" + id + ".json", m.err
}

// mockChatService is a mock implementation of driving.ChatService.
type mockChatService struct {
	reply string
	err   error

	got domain.ChatRequest
}

func (m *mockChatService) Respond(_ context.Context, req domain.ChatRequest) (string, error) {
	m.got = req
	return m.reply, m.err
}

func (m *mockChatService) RespondStream(_ context.Context, req domain.ChatRequest) (driving.ReplyStream, error) {
	m.got = req
	return nil, m.err
}

// mockMemoryService is a mock implementation of driving.MemoryService.
type mockMemoryService struct {
	facts []string
	err   error

	gotSession string
	gotRole    string
	gotK       int
}

func (m *mockMemoryService) Retrieve(_ context.Context, sessionID, roleID, _ string, k int) ([]string, error) {
	m.gotSession, m.gotRole, m.gotK = sessionID, roleID, k
	return m.facts, m.err
}

func (m *mockMemoryService) Count(_ context.Context, _, _ string) (int, error) {
	return len(m.facts), m.err
}

func testProfiles() *mockProfileService {
	return &mockProfileService{profiles: []domain.Profile{
		{ID: "lin", DisplayName: "Lin Daiyu", BookTitle: "Dream of the Red Chamber", CorpusID: "hongloumeng"},
		{ID: "holmes", DisplayName: "Sherlock Holmes", CorpusID: "holmes"},
	}}
}

func testSessions() *mockSessionService {
	return &mockSessionService{
		sessions: []domain.Session{
			{ID: "s1", Name: "Garden", RoleID: "lin", CorpusID: "hongloumeng"},
		},
		turns: map[string][]domain.Turn{
			"s1": {
				{SessionID: "s1", Index: 0, Speaker: domain.SpeakerUser, Content: "Hello"},
				{SessionID: "s1", Index: 1, Speaker: domain.SpeakerAgent, Content: "Good day."},
			},
		},
	}
}
