// Package mcp provides an MCP (Model Context Protocol) server adapter for papersoul.
// It lets AI assistants talk to characters, pull grounding passages and read
// a session's long-term memory.
package mcp

import "errors"

// ErrMissingRetrievalService is returned when the retrieval service is not provided.
var ErrMissingRetrievalService = errors.New("mcp: retrieval service is required")

// ErrMissingProfileService is returned when the profile service is not provided.
var ErrMissingProfileService = errors.New("mcp: profile service is required")
