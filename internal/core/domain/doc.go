// Package domain defines the core business entities for papersoul.
//
// This package is part of the hexagonal architecture's innermost layer.
// It has NO external dependencies and defines the fundamental types:
//
//   - Chunk: A retrievable unit of corpus text
//   - Session: A conversation between the user and one character
//   - Turn: One persisted message within a Session
//   - Fact: A compact long-term memory owned by a (session, role) pair
//   - Profile: The character card that shapes the system instruction
//
// # Architectural Position
//
// Domain is at the centre of the hexagon. It may only import
// the Go standard library. All other packages depend on domain,
// never the reverse.
//
// # Import Rules
//
//   - Can Import: Standard library only
//   - Cannot Import: Any internal/ package, any external dependency
package domain
