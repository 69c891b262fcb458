// Package services implements the driving port interfaces.
// Services contain the core business logic and orchestrate
// calls to driven ports (adapters).
//
// The chat pipeline is split across a few collaborators:
//
//   - RetrieverRegistry fuses lexical and vector rankings per corpus
//   - MemoryService stores and ranks long-term facts per (session, role)
//   - FactExtractor derives facts from finished exchanges
//   - ChatService assembles context, generates and persists replies
//
// IndexService builds the corpus indexes offline. SessionService,
// ProfileService and SettingsService back the management commands.
//
// Services never import adapters; they only see driven ports.
package services
