package domain

import "time"

// Speaker identifies who produced a Turn.
type Speaker string

// Speakers.
const (
	SpeakerUser  Speaker = "user"
	SpeakerAgent Speaker = "agent"
)

// Role returns the chat role string used by generation services and storage.
func (s Speaker) Role() string {
	if s == SpeakerAgent {
		return RoleAssistant
	}
	return RoleUser
}

// IsValid returns true if the speaker is recognised.
func (s Speaker) IsValid() bool {
	return s == SpeakerUser || s == SpeakerAgent
}

// SpeakerFromRole maps a chat role back to a Speaker.
func SpeakerFromRole(role string) (Speaker, bool) {
	switch role {
	case RoleUser:
		return SpeakerUser, true
	case RoleAssistant:
		return SpeakerAgent, true
	default:
		return "", false
	}
}

// Chat roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Session is an ordered, append-only conversation between the user and one
// character. It is bound to a single (role, corpus) pair for its lifetime.
type Session struct {
	// ID is the opaque session identifier.
	ID string `json:"id"`

	// Name is the human-readable label shown in session lists.
	Name string `json:"name"`

	// RoleID identifies the character profile.
	RoleID string `json:"role_id"`

	// CorpusID identifies the corpus the character is grounded in.
	CorpusID string `json:"corpus_id"`

	// CreatedAt is when the session was created.
	CreatedAt time.Time `json:"created_at"`
}

// Turn is one immutable persisted message of a Session.
type Turn struct {
	SessionID string    `json:"session_id"`
	Index     int       `json:"idx"`
	Speaker   Speaker   `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Message is a role-tagged history entry as supplied by callers.
type Message struct {
	// Role is "user" or "assistant".
	Role string `json:"role"`

	// Content is the message text.
	Content string `json:"content"`
}

// Messages converts persisted turns into history messages.
func Messages(turns []Turn) []Message {
	out := make([]Message, 0, len(turns))
	for _, t := range turns {
		out = append(out, Message{Role: t.Speaker.Role(), Content: t.Content})
	}
	return out
}

// SessionExport is the document written when a session is exported.
type SessionExport struct {
	Session  Session `json:"session"`
	Messages []Turn  `json:"messages"`
	Facts    []Fact  `json:"ltm"`
}
