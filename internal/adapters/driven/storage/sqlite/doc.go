// Package sqlite provides the SQLite-based implementation of the session and
// fact stores.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. It implements both store interfaces
// through a single database connection:
//
//   - SessionStore: sessions and their ordered message logs
//   - FactStore: long-term memory facts per (session, role)
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
//
// # Data Location
//
// The database is stored at <data_dir>/papersoul.db, where data_dir defaults
// to ~/.papersoul.
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking provided
// by SQLite in WAL mode. Appending a turn pair runs in one transaction.
package sqlite
