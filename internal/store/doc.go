// Package store provides persistent storage for coven-contactcenter using SQLite.
//
// # Data Models
//
//   - AllocationEvent: append-only history of agent allocations per session
//   - Presence: last known sign-in state of each agent
//
// Allocation state itself is never persisted; it lives in memory on the
// agents. The history is for audit and reporting, and presence lets a
// restarted process restore who was signed in.
//
// # SQLite Configuration
//
// The store uses modernc.org/sqlite with WAL mode for concurrent reads:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA busy_timeout=5000;
//
// Timestamps are stored as fixed-width RFC3339 UTC text with nanoseconds, so
// string comparison in SQL orders them correctly.
//
// # Testing
//
// Use NewMockStore() for unit tests. Its Err field forces write failures.
// Use NewSQLiteStore with a path under t.TempDir() for integration tests.
package store
