// Package store provides the SQLite capture log for band input.
//
// The store is an append-only log with:
//   - Sessions: one row per play run, keyed by a UUIDv7
//   - Events: every drained input event, in drain order
//
// Only input is captured. Round outcomes are derived, not stored: replaying
// a session's events reproduces them.
//
// # Ordering
//
//   - Events are ordered by a per-session seq, NEVER by device timestamp
//   - All event queries use ORDER BY seq ASC
//   - Sessions list by started_at, then id
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
package store
