package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/papersoul/internal/core/domain"
)

const uriScheme = "papersoul://"

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "roles",
		Name:        "roles",
		Description: "Characters available to talk to",
		MIMEType:    "application/json",
	}, s.handleRolesResource)

	if s.ports.Sessions == nil {
		return
	}

	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "sessions",
		Name:        "sessions",
		Description: "Conversation sessions, newest first",
		MIMEType:    "application/json",
	}, s.handleSessionsResource)

	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "sessions/{sessionId}/history",
		Name:        "session-history",
		Description: "Ordered messages of a session",
		MIMEType:    "application/json",
	}, s.handleHistoryResource)
}

func (s *Server) handleRolesResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	profiles, err := s.ports.Profiles.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing roles: %w", err)
	}

	type roleInfo struct {
		ID        string `json:"id"`
		Name      string `json:"display_name"`
		BookTitle string `json:"book_title,omitempty"`
		CorpusID  string `json:"corpus_id"`
	}
	infos := make([]roleInfo, len(profiles))
	for i, p := range profiles {
		infos[i] = roleInfo{ID: p.ID, Name: p.Name(), BookTitle: p.BookTitle, CorpusID: p.CorpusID}
	}
	return jsonResult(req.Params.URI, infos)
}

func (s *Server) handleSessionsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	sessions, err := s.ports.Sessions.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	if sessions == nil {
		sessions = []domain.Session{}
	}
	return jsonResult(req.Params.URI, sessions)
}

func (s *Server) handleHistoryResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	sessionID := extractSessionID(req.Params.URI)
	if sessionID == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	turns, err := s.ports.Sessions.History(ctx, sessionID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}
	return jsonResult(req.Params.URI, domain.Messages(turns))
}

func jsonResult(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling %s: %w", uri, err)
	}
	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// extractSessionID extracts the ID from papersoul://sessions/{sessionId}/history.
func extractSessionID(uri string) string {
	const prefix = uriScheme + "sessions/"
	const suffix = "/history"

	if !strings.HasPrefix(uri, prefix) || !strings.HasSuffix(uri, suffix) {
		return ""
	}
	id := strings.TrimSuffix(strings.TrimPrefix(uri, prefix), suffix)
	if strings.Contains(id, "/") {
		return ""
	}
	return id
}
