package domain

// ChatRequest is one user turn addressed to a session.
type ChatRequest struct {
	// SessionID is the session the turn belongs to.
	SessionID string

	// RoleID is the character profile to answer as.
	RoleID string

	// History holds the prior turns, oldest first.
	History []Message

	// UserText is the current user input.
	UserText string

	// UseMemory enables long-term memory retrieval and fact extraction.
	UseMemory bool
}
