package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/custodia-labs/papersoul/internal/core/domain"
)

// CreateSessionRequest is the body of POST /api/sessions.
type CreateSessionRequest struct {
	Name   string `json:"name"`
	RoleID string `json:"role_id" binding:"required"`
}

// ChatRequest is the body of the chat endpoints.
type ChatRequest struct {
	Message   string `json:"message" binding:"required"`
	UseMemory bool   `json:"use_memory"`
}

// ChatResponse is the reply of POST /api/sessions/:id/chat.
type ChatResponse struct {
	Reply   string `json:"reply"`
	Warning string `json:"warning,omitempty"`
}

// RoleResponse is one entry of GET /api/roles.
type RoleResponse struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	BookTitle   string `json:"book_title,omitempty"`
	CorpusID    string `json:"corpus_id"`
}

func (s *Server) listRoles(c *gin.Context) {
	profiles, err := s.ports.Profiles.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	roles := make([]RoleResponse, len(profiles))
	for i, p := range profiles {
		roles[i] = RoleResponse{ID: p.ID, DisplayName: p.Name(), BookTitle: p.BookTitle, CorpusID: p.CorpusID}
	}
	c.JSON(http.StatusOK, roles)
}

func (s *Server) listSessions(c *gin.Context) {
	sessions, err := s.ports.Sessions.List(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	if sessions == nil {
		sessions = []domain.Session{}
	}
	c.JSON(http.StatusOK, sessions)
}

func (s *Server) createSession(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	session, err := s.ports.Sessions.Create(c.Request.Context(), req.Name, req.RoleID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

func (s *Server) getSession(c *gin.Context) {
	session, err := s.ports.Sessions.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (s *Server) deleteSession(c *gin.Context) {
	if err := s.ports.Sessions.Delete(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) sessionHistory(c *gin.Context) {
	turns, err := s.ports.Sessions.History(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, domain.Messages(turns))
}

func (s *Server) clearSession(c *gin.Context) {
	if err := s.ports.Sessions.Clear(c.Request.Context(), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) exportSession(c *gin.Context) {
	path, err := s.ports.Sessions.Export(c.Request.Context(), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"path": path})
}

func (s *Server) chat(c *gin.Context) {
	req, ok := s.bindChat(c)
	if !ok {
		return
	}

	reply, err := s.ports.Chat.Respond(c.Request.Context(), req)
	var perr *domain.PersistenceError
	switch {
	case errors.As(err, &perr):
		c.JSON(http.StatusOK, ChatResponse{Reply: perr.Reply, Warning: perr.Error()})
	case err != nil:
		writeError(c, err)
	default:
		c.JSON(http.StatusOK, ChatResponse{Reply: reply})
	}
}

// bindChat decodes the body and loads the session history into a chat request.
// It writes the error response itself and reports whether the caller may go on.
func (s *Server) bindChat(c *gin.Context) (domain.ChatRequest, bool) {
	var body ChatRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return domain.ChatRequest{}, false
	}

	ctx := c.Request.Context()
	session, err := s.ports.Sessions.Get(ctx, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return domain.ChatRequest{}, false
	}
	turns, err := s.ports.Sessions.History(ctx, session.ID)
	if err != nil {
		writeError(c, err)
		return domain.ChatRequest{}, false
	}

	return domain.ChatRequest{
		SessionID: session.ID,
		RoleID:    session.RoleID,
		History:   domain.Messages(turns),
		UserText:  body.Message,
		UseMemory: body.UseMemory,
	}, true
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrSetup):
		return http.StatusServiceUnavailable
	case errors.Is(err, domain.ErrRetrieval), errors.Is(err, domain.ErrGeneration):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}
