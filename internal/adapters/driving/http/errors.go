// Package http exposes sessions and chat over a JSON API with SSE streaming.
package http

import "errors"

// Sentinel errors for server construction.
var (
	// ErrMissingChatService indicates the chat service port is nil.
	ErrMissingChatService = errors.New("chat service is required")

	// ErrMissingSessionService indicates the session service port is nil.
	ErrMissingSessionService = errors.New("session service is required")

	// ErrMissingProfileService indicates the profile service port is nil.
	ErrMissingProfileService = errors.New("profile service is required")
)
