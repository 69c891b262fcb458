package domain

import "time"

// Fact is a compact long-term memory extracted from a completed turn.
// Facts are never mutated and are only removed with their session.
type Fact struct {
	ID        int64     `json:"id"`
	SessionID string    `json:"session_id"`
	RoleID    string    `json:"role_id"`
	Text      string    `json:"fact"`
	CreatedAt time.Time `json:"created_at"`
}
