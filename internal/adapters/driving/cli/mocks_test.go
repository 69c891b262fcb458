package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/custodia-labs/papersoul/internal/core/domain"
	"github.com/custodia-labs/papersoul/internal/core/ports/driving"
)

var testTime = time.Date(2026, 3, 1, 20, 30, 0, 0, time.UTC)

type mockSessionService struct {
	sessions []domain.Session
	turns    map[string][]domain.Turn
	err      error

	cleared  []string
	deleted  []string
	exported []string
}

func (m *mockSessionService) Create(_ context.Context, name, roleID string) (*domain.Session, error) {
	if m.err != nil {
		return nil, m.err
	}
	if roleID != "lin" {
		return nil, fmt.Errorf("load profile %s: %w", roleID, domain.ErrNotFound)
	}
	if name == "" {
		name = "Lin Daiyu " + testTime.Format("2006-01-02 15:04")
	}
	s := domain.Session{ID: "s-new", Name: name, RoleID: roleID, CorpusID: "hongloumeng", CreatedAt: testTime}
	m.sessions = append(m.sessions, s)
	return &s, nil
}

func (m *mockSessionService) Get(_ context.Context, id string) (*domain.Session, error) {
	if m.err != nil {
		return nil, m.err
	}
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
	m.cleared = append(m.cleared, id)
	return nil
}

func (m *mockSessionService) Delete(_ context.Context, id string) error {
	m.deleted = append(m.deleted, id)
	return m.err
}

func (m *mockSessionService) Export(ctx context.Context, id string) (string, error) {
	if _, err := m.Get(ctx, id); err != nil {
		return "", err
	}
	m.exported = append(m.exported, id)
	return "/data/exports/session_" + id + ".json", nil
}

type mockProfileService struct {
	profiles []domain.Profile
}

func (m *mockProfileService) Get(_ context.Context, id string) (*domain.Profile, error) {
	for _, p := range m.profiles {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, fmt.Errorf("%w: no character profile %q", domain.ErrNotFound, id)
}

func (m *mockProfileService) List(_ context.Context) ([]domain.Profile, error) {
	return m.profiles, nil
}

type mockChatService struct {
	fragments []string
	finalErr  error
	err       error

	requests []domain.ChatRequest
}

func (m *mockChatService) Respond(_ context.Context, req domain.ChatRequest) (string, error) {
	m.requests = append(m.requests, req)
	if m.err != nil {
		return "", m.err
	}
	out := ""
	for _, f := range m.fragments {
		out += f
	}
	return out, nil
}

func (m *mockChatService) RespondStream(_ context.Context, req domain.ChatRequest) (driving.ReplyStream, error) {
	m.requests = append(m.requests, req)
	if m.err != nil {
		return nil, m.err
	}
	return &mockStream{fragments: m.fragments, finalErr: m.finalErr}, nil
}

type mockStream struct {
	fragments []string
	finalErr  error
	pos       int
	reply     string
}

func (s *mockStream) Next() (string, error) {
	if s.pos >= len(s.fragments) {
		return "", io.EOF
	}
	piece := s.fragments[s.pos]
	s.pos++
	s.reply += piece
	return piece, nil
}

func (s *mockStream) Finalize(_ context.Context) (string, error) {
	if s.finalErr != nil {
		return s.reply, &domain.PersistenceError{Reply: s.reply, Err: s.finalErr}
	}
	return s.reply, nil
}

func (s *mockStream) Close() error        { return nil }
func (s *mockStream) Stage() domain.Stage { return domain.StageDone }

type mockRetrievalService struct {
	chunks []domain.Chunk
	err    error

	gotCorpus string
	gotK      int
}

func (m *mockRetrievalService) Retrieve(_ context.Context, corpusID, _ string, k int) ([]domain.Chunk, error) {
	m.gotCorpus, m.gotK = corpusID, k
	return m.chunks, m.err
}

type mockIndexService struct {
	stats   *domain.IndexStats
	missing []string
	err     error
}

func (m *mockIndexService) Build(_ context.Context, corpusID string) (*domain.IndexStats, error) {
	if m.err != nil {
		return nil, m.err
	}
	stats := *m.stats
	stats.CorpusID = corpusID
	return &stats, nil
}

func (m *mockIndexService) Missing(_ string) []string {
	return m.missing
}

type mockSettingsService struct {
	settings domain.AppSettings
	values   map[string]string
	setErr   error
}

func (m *mockSettingsService) Get() (*domain.AppSettings, error) {
	s := m.settings
	return &s, nil
}

func (m *mockSettingsService) Save(settings *domain.AppSettings) error {
	m.settings = *settings
	return nil
}

func (m *mockSettingsService) Keys() []string {
	return []string{"chat.temperature", "retrieval.top_k"}
}

func (m *mockSettingsService) SetValue(key, raw string) error {
	if m.setErr != nil {
		return m.setErr
	}
	if m.values == nil {
		m.values = map[string]string{}
	}
	m.values[key] = raw
	return nil
}

func (m *mockSettingsService) SetEmbeddingProvider(provider domain.AIProvider, model, apiKey string) error {
	m.settings.Embedding = domain.EmbeddingSettings{Provider: provider, Model: model, APIKey: apiKey}
	return nil
}

func (m *mockSettingsService) SetLLMProvider(provider domain.AIProvider, model, apiKey string) error {
	m.settings.LLM = domain.LLMSettings{Provider: provider, Model: model, APIKey: apiKey}
	return nil
}

func (m *mockSettingsService) Validate() error {
	if !m.settings.LLM.IsConfigured() {
		return domain.ErrLLMUnavailable
	}
	return nil
}

func (m *mockSettingsService) GetDefaults() domain.AppSettings { return domain.DefaultAppSettings() }
func (m *mockSettingsService) ValidateEmbeddingConfig() error  { return nil }
func (m *mockSettingsService) ValidateLLMConfig() error        { return nil }

type testServices struct {
	chat      *mockChatService
	sessions  *mockSessionService
	profiles  *mockProfileService
	retrieval *mockRetrievalService
	index     *mockIndexService
	settings  *mockSettingsService
}

// setupTestServices installs mocks and returns a cleanup that restores
// services and command flags.
func setupTestServices() (*testServices, func()) {
	ts := &testServices{
		chat: &mockChatService{fragments: []string{"The flowers ", "are falling."}},
		sessions: &mockSessionService{
			sessions: []domain.Session{
				{ID: "s1", Name: "Garden", RoleID: "lin", CorpusID: "hongloumeng", CreatedAt: testTime},
			},
			turns: map[string][]domain.Turn{
				"s1": {
					{SessionID: "s1", Index: 0, Speaker: domain.SpeakerUser, Content: "Hello"},
					{SessionID: "s1", Index: 1, Speaker: domain.SpeakerAgent, Content: "Good evening."},
				},
			},
		},
		profiles: &mockProfileService{profiles: []domain.Profile{
			{ID: "lin", DisplayName: "Lin Daiyu", BookTitle: "Dream of the Red Chamber", CorpusID: "hongloumeng"},
		}},
		retrieval: &mockRetrievalService{chunks: []domain.Chunk{
			{ID: "c7", Position: 7, Content: "Blossoms fly across the sky."},
		}},
		index: &mockIndexService{
			stats: &domain.IndexStats{Documents: 2, Chunks: 40, Dimensions: 768, Path: "/data/indexes/hongloumeng"},
		},
		settings: &mockSettingsService{settings: domain.DefaultAppSettings()},
	}

	SetServices(Services{
		Chat:      ts.chat,
		Sessions:  ts.sessions,
		Profiles:  ts.profiles,
		Retrieval: ts.retrieval,
		Index:     ts.index,
		Settings:  ts.settings,
	})

	return ts, func() {
		SetServices(Services{})
		SetSetupError(nil)
		chatRole, chatName, chatMemory, chatPlain = "", "", true, false
		sessionName, sessionRole, sessionJSON = "", "", false
		retrieveRole, retrieveCorpus, retrieveK, retrieveJSON = "", "", domain.DefaultTopK, false
		rolesJSON = false
		indexCorpus = ""
		rootCmd.SetArgs(nil)
		rootCmd.SetIn(nil)
	}
}
