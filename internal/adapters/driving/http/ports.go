package http

import "github.com/custodia-labs/papersoul/internal/core/ports/driving"

// Ports aggregates the driving ports used by the HTTP API. All are required.
type Ports struct {
	Chat     driving.ChatService
	Sessions driving.SessionService
	Profiles driving.ProfileService
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Chat == nil {
		return ErrMissingChatService
	}
	if p.Sessions == nil {
		return ErrMissingSessionService
	}
	if p.Profiles == nil {
		return ErrMissingProfileService
	}
	return nil
}
