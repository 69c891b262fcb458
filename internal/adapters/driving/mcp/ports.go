package mcp

import (
	"github.com/custodia-labs/papersoul/internal/core/ports/driving"
)

// Ports aggregates the driving ports used by the MCP server.
// Retrieval and Profiles are required. The chat tool is registered only
// with Chat and Sessions, recall_memory only with Memory and Sessions.
type Ports struct {
	Retrieval driving.RetrievalService
	Profiles  driving.ProfileService

	Chat     driving.ChatService
	Sessions driving.SessionService
	Memory   driving.MemoryService
}

// Validate ensures all required ports are set.
func (p *Ports) Validate() error {
	if p.Retrieval == nil {
		return ErrMissingRetrievalService
	}
	if p.Profiles == nil {
		return ErrMissingProfileService
	}
	return nil
}
