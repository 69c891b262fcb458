package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/papersoul/internal/core/domain"
)

func newTestServer(t *testing.T, chat *mockChatService, sessions *mockSessionService) *Server {
	t.Helper()
	if chat == nil {
		chat = &mockChatService{}
	}
	if sessions == nil {
		sessions = newMockSessions()
	}
	server, err := NewServer(&Ports{
		Chat:     chat,
		Sessions: sessions,
		Profiles: &mockProfileService{profiles: []domain.Profile{
			{ID: "lin", DisplayName: "Lin Daiyu", BookTitle: "Dream of the Red Chamber", CorpusID: "hongloumeng"},
		}},
	})
	require.NoError(t, err)
	return server
}

func do(t *testing.T, s *Server, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestNewServer(t *testing.T) {
	t.Run("missing chat", func(t *testing.T) {
		_, err := NewServer(&Ports{})
		assert.ErrorIs(t, err, ErrMissingChatService)
	})

	t.Run("missing sessions", func(t *testing.T) {
		_, err := NewServer(&Ports{Chat: &mockChatService{}})
		assert.ErrorIs(t, err, ErrMissingSessionService)
	})

	t.Run("missing profiles", func(t *testing.T) {
		_, err := NewServer(&Ports{Chat: &mockChatService{}, Sessions: newMockSessions()})
		assert.ErrorIs(t, err, ErrMissingProfileService)
	})
}

func TestHealthz(t *testing.T) {
	w := do(t, newTestServer(t, nil, nil), http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRoles(t *testing.T) {
	w := do(t, newTestServer(t, nil, nil), http.MethodGet, "/api/roles", "")

	require.Equal(t, http.StatusOK, w.Code)
	var roles []RoleResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &roles))
	assert.Equal(t, []RoleResponse{
		{ID: "lin", DisplayName: "Lin Daiyu", BookTitle: "Dream of the Red Chamber", CorpusID: "hongloumeng"},
	}, roles)
}

func TestSessions(t *testing.T) {
	t.Run("list", func(t *testing.T) {
		w := do(t, newTestServer(t, nil, nil), http.MethodGet, "/api/sessions", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"id":"s1"`)
	})

	t.Run("empty list is an array", func(t *testing.T) {
		w := do(t, newTestServer(t, nil, &mockSessionService{}), http.MethodGet, "/api/sessions", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "[]", w.Body.String())
	})

	t.Run("create", func(t *testing.T) {
		w := do(t, newTestServer(t, nil, nil), http.MethodPost, "/api/sessions", `{"name":"Night","role_id":"lin"}`)
		require.Equal(t, http.StatusCreated, w.Code)
		var s domain.Session
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &s))
		assert.Equal(t, "Night", s.Name)
		assert.Equal(t, "lin", s.RoleID)
	})

	t.Run("create without role", func(t *testing.T) {
		w := do(t, newTestServer(t, nil, nil), http.MethodPost, "/api/sessions", `{"name":"Night"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("create with unknown role", func(t *testing.T) {
		w := do(t, newTestServer(t, nil, nil), http.MethodPost, "/api/sessions", `{"role_id":"nobody"}`)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("get unknown", func(t *testing.T) {
		w := do(t, newTestServer(t, nil, nil), http.MethodGet, "/api/sessions/zzz", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Contains(t, w.Body.String(), "not found")
	})

	t.Run("history", func(t *testing.T) {
		w := do(t, newTestServer(t, nil, nil), http.MethodGet, "/api/sessions/s1/history", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `[{"role":"user","content":"Hello"}]`, w.Body.String())
	})

	t.Run("clear", func(t *testing.T) {
		sessions := newMockSessions()
		w := do(t, newTestServer(t, nil, sessions), http.MethodPost, "/api/sessions/s1/clear", "")
		assert.Equal(t, http.StatusNoContent, w.Code)
		assert.Empty(t, sessions.turns["s1"])
	})

	t.Run("delete", func(t *testing.T) {
		w := do(t, newTestServer(t, nil, nil), http.MethodDelete, "/api/sessions/s1", "")
		assert.Equal(t, http.StatusNoContent, w.Code)
	})

	t.Run("export", func(t *testing.T) {
		w := do(t, newTestServer(t, nil, nil), http.MethodPost, "/api/sessions/s1/export", "")
		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"path":"/exports/session_s1.json"}`, w.Body.String())
	})

	t.Run("storage failure is 500", func(t *testing.T) {
		sessions := newMockSessions()
		sessions.err = errors.New("db locked")
		w := do(t, newTestServer(t, nil, sessions), http.MethodGet, "/api/sessions", "")
		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}

func TestChat(t *testing.T) {
	t.Run("replies with history", func(t *testing.T) {
		chat := &mockChatService{reply: "Good evening."}
		w := do(t, newTestServer(t, chat, nil), http.MethodPost, "/api/sessions/s1/chat",
			`{"message":"Hi","use_memory":true}`)

		require.Equal(t, http.StatusOK, w.Code)
		assert.JSONEq(t, `{"reply":"Good evening."}`, w.Body.String())
		assert.Equal(t, "lin", chat.got.RoleID)
		assert.Equal(t, "Hi", chat.got.UserText)
		assert.True(t, chat.got.UseMemory)
		assert.Equal(t, []domain.Message{{Role: "user", Content: "Hello"}}, chat.got.History)
	})

	t.Run("missing message", func(t *testing.T) {
		w := do(t, newTestServer(t, nil, nil), http.MethodPost, "/api/sessions/s1/chat", `{}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("unknown session", func(t *testing.T) {
		w := do(t, newTestServer(t, nil, nil), http.MethodPost, "/api/sessions/nope/chat", `{"message":"Hi"}`)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})

	t.Run("persistence failure keeps reply", func(t *testing.T) {
		chat := &mockChatService{err: &domain.PersistenceError{Reply: "Kept", Err: errors.New("disk full")}}
		w := do(t, newTestServer(t, chat, nil), http.MethodPost, "/api/sessions/s1/chat", `{"message":"Hi"}`)

		require.Equal(t, http.StatusOK, w.Code)
		var resp ChatResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "Kept", resp.Reply)
		assert.Contains(t, resp.Warning, "disk full")
	})

	t.Run("generation failure is 502", func(t *testing.T) {
		chat := &mockChatService{err: domain.ErrGeneration}
		w := do(t, newTestServer(t, chat, nil), http.MethodPost, "/api/sessions/s1/chat", `{"message":"Hi"}`)
		assert.Equal(t, http.StatusBadGateway, w.Code)
	})

	t.Run("missing index is 503", func(t *testing.T) {
		chat := &mockChatService{err: domain.IndexNotFoundError("hongloumeng", []string{"lexical.db"})}
		w := do(t, newTestServer(t, chat, nil), http.MethodPost, "/api/sessions/s1/chat", `{"message":"Hi"}`)
		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	})
}

func TestChatStream(t *testing.T) {
	t.Run("relays fragments then finalizes", func(t *testing.T) {
		chat := &mockChatService{fragments: []string{"Flowers ", "fall."}}
		w := do(t, newTestServer(t, chat, nil), http.MethodPost, "/api/sessions/s1/chat/stream", `{"message":"Hi"}`)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
		body := w.Body.String()
		assert.Contains(t, body, "event:fragment")
		assert.Contains(t, body, `"text":"Flowers "`)
		assert.Contains(t, body, "event:done")
		assert.Contains(t, body, `"reply":"Flowers fall."`)
		assert.True(t, chat.stream.finalized)
		assert.True(t, chat.stream.closed)
	})

	t.Run("stream failure emits error and persists nothing", func(t *testing.T) {
		chat := &mockChatService{fragments: []string{"Half"}, streamErr: domain.ErrGeneration}
		w := do(t, newTestServer(t, chat, nil), http.MethodPost, "/api/sessions/s1/chat/stream", `{"message":"Hi"}`)

		body := w.Body.String()
		assert.Contains(t, body, "event:error")
		assert.NotContains(t, body, "event:done")
		assert.False(t, chat.stream.finalized)
		assert.True(t, chat.stream.closed)
	})

	t.Run("client disconnect persists nothing", func(t *testing.T) {
		chat := &mockChatService{fragments: []string{"One ", "two ", "three"}}
		server := newTestServer(t, chat, nil)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		req := httptest.NewRequest(http.MethodPost, "/api/sessions/s1/chat/stream",
			strings.NewReader(`{"message":"Hi"}`)).WithContext(ctx)
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		server.Handler().ServeHTTP(w, req)

		assert.NotContains(t, w.Body.String(), "event:done")
		assert.False(t, chat.stream.finalized)
		assert.True(t, chat.stream.closed)
	})

	t.Run("start failure is a plain error", func(t *testing.T) {
		chat := &mockChatService{err: domain.ErrRetrieval}
		w := do(t, newTestServer(t, chat, nil), http.MethodPost, "/api/sessions/s1/chat/stream", `{"message":"Hi"}`)
		assert.Equal(t, http.StatusBadGateway, w.Code)
	})
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrNotFound, http.StatusNotFound},
		{domain.ErrInvalidInput, http.StatusBadRequest},
		{domain.ErrSetup, http.StatusServiceUnavailable},
		{domain.ErrRetrieval, http.StatusBadGateway},
		{domain.ErrGeneration, http.StatusBadGateway},
		{errors.New("other"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.err))
		})
	}
}
