// Package sqlite provides a unified SQLite-based implementation of driven port interfaces.
//
// This adapter uses modernc.org/sqlite, a pure Go SQLite implementation that requires
// no CGO, enabling easy cross-compilation. It implements multiple store interfaces
// through a single database connection:
//
//   - DocumentStore: Document persistence
//   - ChunkStore: Chunk persistence, embedding state and worker claims
//   - VectorSearcher: Cosine ranking over embedded chunks, computed in Go
//   - ChatStore: The exchange log
//   - TaskStore: Task persistence
//   - SchedulerStore: Scheduled job state and history
//
// # Schema
//
// The database schema is managed through versioned migrations stored in the
// migrations/ directory. Each migration is a pair of .up.sql and .down.sql files.
//
// # Data Location
//
// By default, the database is stored at ~/.verity/data/verity.db
//
// # Thread Safety
//
// All operations are thread-safe. The store uses database-level locking provided
// by SQLite in WAL mode. Chunk claims are a single UPDATE ... RETURNING statement,
// so concurrent workers never claim the same chunk.
package sqlite
