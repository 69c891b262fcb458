// Package driven defines the interfaces that core calls OUT to infrastructure.
//
// These are the "driven" or "secondary" ports in hexagonal architecture.
// Core services depend on these interfaces, and infrastructure adapters
// implement them.
//
// # Request-time Interfaces
//
//   - LexicalIndex: Term-overlap ranking over corpus chunks (SQLite FTS5)
//   - VectorIndex: Embedding-similarity ranking over corpus chunks (chromem-go)
//   - IndexOpener: Opens both indexes of a corpus, failing fast when missing
//   - EmbeddingService: Embeds queries for the vector index
//   - LLMService: Batch and streaming chat generation
//   - SessionStore: Durable, ordered session logs
//   - FactStore: Long-term memory facts per (session, role)
//   - ProfileStore: Character profiles
//   - ConfigStore: Application configuration
//   - PromptStore: Editable prompt templates
//
// # Offline Interfaces
//
//   - IndexWriter: Writes index artifacts during a build
//   - Normaliser: Transforms raw corpus files into documents
//   - PostProcessor: Splits documents into chunks
//
// # Import Rules
//
//   - Can Import: domain package only
//   - Cannot Import: Any adapter or normaliser package
package driven
