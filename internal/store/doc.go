// Package store provides SQLite-backed durable storage for the archive.
//
// The store holds four record kinds:
//   - Users: post authors, keyed by ID, looked up secondarily by handle
//   - Conversations: existence records keyed by root post ID, with a completeness flag
//   - Posts: immutable post records keyed by ID
//   - Post references: directed edges (source post, kind, referenced post)
//
// # Write Semantics
//
// Every insert is INSERT ... ON CONFLICT DO NOTHING. Inserting a record whose
// key already exists is a silent no-op that reports inserted=false; a stored
// record is never overwritten. Concurrent resolutions of the same post rely
// on this to avoid duplicates without any locking in the caller.
//
// Reference rows carry foreign keys to both posts, so an edge can only be
// written once its target has been committed.
//
// # Ordering
//
//   - Author listings and search: created_at DESC, id DESC
//   - Conversation listings: created_at ASC, id ASC
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Identifiers are uint64 upstream and are stored bit-for-bit in SQLite's
// signed INTEGER columns.
package store
