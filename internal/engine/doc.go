// Package engine implements the archive's synchronization engine.
//
// The engine is the only component a presentation layer talks to. Every
// read is answered from the local store when possible and filled from the
// origin on a miss; whatever is fetched is archived through the resolver
// before being read back from the store, so a caller always receives
// stored, fully resolved records.
//
// CACHE-FILL POLICIES:
//
// Timeline:
// 1. Resolve the handle (store, else origin)
// 2. No stored posts: fetch the whole timeline
// 3. Stored posts: ask the origin whether the user has posted since the
// newest stored post; fetch only what is newer if so
// 4. Return newest first
//
// Conversation:
// A conversation is answered from the store when at least two of its posts
// are stored, or when a previous full fetch marked it complete. Otherwise
// the whole thread is fetched. Returned oldest first.
//
// Post, User:
// Store lookup, fetched on a miss. Absence upstream is an ordinary result
// (ok == false), not an error.
//
// Search:
// Local only. The origin offers no search.
//
// FAILURES:
//
// Transient and malformed origin failures are returned to the caller
// wrapped with the operation and its argument. The origin client has
// already retried transient failures once; the engine never retries.
//
// CONCURRENCY:
//
// An Engine is safe for concurrent use. Concurrent calls may archive the
// same posts; the store's insert-if-absent writes keep one copy of each.
package engine
