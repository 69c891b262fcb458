package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/papersoul/internal/core/domain"
)

// Default result sizes when the caller leaves k unset.
const (
	defaultContextK = domain.DefaultTopK
	defaultMemoryK  = domain.DefaultMemoryTopK
)

// ChatInput is the input schema for the chat tool.
type ChatInput struct {
	SessionID string `json:"session_id" jsonschema:"the session to continue (see papersoul://sessions)"`
	Message   string `json:"message" jsonschema:"what the user says to the character"`
	UseMemory bool   `json:"use_memory,omitempty" jsonschema:"recall and record long-term facts for this session"`
}

// ChatOutput is the output schema for the chat tool.
type ChatOutput struct {
	SessionID string `json:"session_id"`
	Character string `json:"character"`
	Reply     string `json:"reply"`
	Warning   string `json:"warning,omitempty"`
}

// RetrieveInput is the input schema for the retrieve_context tool.
type RetrieveInput struct {
	Query    string `json:"query" jsonschema:"text to find passages for"`
	RoleID   string `json:"role_id,omitempty" jsonschema:"character whose corpus is searched"`
	CorpusID string `json:"corpus_id,omitempty" jsonschema:"corpus to search when no role_id is given"`
	K        int    `json:"k,omitempty" jsonschema:"number of passages to return (default 5)"`
}

// RetrieveOutput is the output schema for the retrieve_context tool.
type RetrieveOutput struct {
	CorpusID string          `json:"corpus_id"`
	Passages []PassageOutput `json:"passages"`
	Count    int             `json:"count"`
}

// PassageOutput is one fused passage.
type PassageOutput struct {
	ID       string `json:"id,omitempty"`
	Position int    `json:"position"`
	Content  string `json:"content"`
}

// RecallInput is the input schema for the recall_memory tool.
type RecallInput struct {
	SessionID string `json:"session_id" jsonschema:"the session whose memory is read"`
	Query     string `json:"query" jsonschema:"text the facts should relate to"`
	K         int    `json:"k,omitempty" jsonschema:"number of facts to return (default 3)"`
}

// RecallOutput is the output schema for the recall_memory tool.
type RecallOutput struct {
	Facts []string `json:"facts"`
	Count int      `json:"count"`
}

// registerTools registers the tool handlers the configured ports support.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "retrieve_context",
		Description: "Find the passages of a novel most relevant to a query, using keyword and semantic search",
	}, s.handleRetrieve)
	s.tools = append(s.tools, "retrieve_context")

	if s.ports.Chat != nil && s.ports.Sessions != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "chat",
			Description: "Say something to the character of a session and get an in-character reply. The exchange is saved.",
		}, s.handleChat)
		s.tools = append(s.tools, "chat")
	}

	if s.ports.Memory != nil && s.ports.Sessions != nil {
		mcp.AddTool(s.server, &mcp.Tool{
			Name:        "recall_memory",
			Description: "Read the long-term facts a character remembers about a session",
		}, s.handleRecall)
		s.tools = append(s.tools, "recall_memory")
	}
}

func (s *Server) handleRetrieve(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input RetrieveInput,
) (*mcp.CallToolResult, RetrieveOutput, error) {
	if input.Query == "" {
		return nil, RetrieveOutput{}, fmt.Errorf("%w: query is required", domain.ErrInvalidInput)
	}

	corpusID := input.CorpusID
	if input.RoleID != "" {
		profile, err := s.ports.Profiles.Get(ctx, input.RoleID)
		if err != nil {
			return nil, RetrieveOutput{}, err
		}
		corpusID = profile.CorpusID
	}
	if corpusID == "" {
		return nil, RetrieveOutput{}, fmt.Errorf("%w: role_id or corpus_id is required", domain.ErrInvalidInput)
	}

	k := input.K
	if k <= 0 {
		k = defaultContextK
	}

	chunks, err := s.ports.Retrieval.Retrieve(ctx, corpusID, input.Query, k)
	if err != nil {
		return nil, RetrieveOutput{}, err
	}

	output := RetrieveOutput{
		CorpusID: corpusID,
		Passages: make([]PassageOutput, len(chunks)),
		Count:    len(chunks),
	}
	for i, c := range chunks {
		output.Passages[i] = PassageOutput{ID: c.ID, Position: c.Position, Content: c.Content}
	}
	return nil, output, nil
}

func (s *Server) handleChat(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ChatInput,
) (*mcp.CallToolResult, ChatOutput, error) {
	if input.Message == "" {
		return nil, ChatOutput{}, fmt.Errorf("%w: message is required", domain.ErrInvalidInput)
	}

	session, err := s.ports.Sessions.Get(ctx, input.SessionID)
	if err != nil {
		return nil, ChatOutput{}, err
	}
	turns, err := s.ports.Sessions.History(ctx, session.ID)
	if err != nil {
		return nil, ChatOutput{}, err
	}

	output := ChatOutput{SessionID: session.ID, Character: session.RoleID}
	if profile, err := s.ports.Profiles.Get(ctx, session.RoleID); err == nil {
		output.Character = profile.Name()
	}

	reply, err := s.ports.Chat.Respond(ctx, domain.ChatRequest{
		SessionID: session.ID,
		RoleID:    session.RoleID,
		History:   domain.Messages(turns),
		UserText:  input.Message,
		UseMemory: input.UseMemory,
	})
	var perr *domain.PersistenceError
	switch {
	case errors.As(err, &perr):
		output.Reply = perr.Reply
		output.Warning = perr.Error()
	case err != nil:
		return nil, ChatOutput{}, err
	default:
		output.Reply = reply
	}
	return nil, output, nil
}

func (s *Server) handleRecall(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input RecallInput,
) (*mcp.CallToolResult, RecallOutput, error) {
	session, err := s.ports.Sessions.Get(ctx, input.SessionID)
	if err != nil {
		return nil, RecallOutput{}, err
	}

	k := input.K
	if k <= 0 {
		k = defaultMemoryK
	}

	facts, err := s.ports.Memory.Retrieve(ctx, session.ID, session.RoleID, input.Query, k)
	if err != nil {
		return nil, RecallOutput{}, err
	}
	if facts == nil {
		facts = []string{}
	}
	return nil, RecallOutput{Facts: facts, Count: len(facts)}, nil
}
