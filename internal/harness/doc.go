// Package harness runs YAML scenarios against the synchronization engine.
//
// A scenario describes what the origin serves, a sequence of engine
// operations with their expected outcomes, and assertions on the final
// archive. Each run uses a fresh in-memory store, a fake origin that
// records every call, and a fixed pass ID, so the origin-call trace of a
// scenario is deterministic and can be compared against a golden file.
//
// Scenario steps:
//
//	timeline, conversation, post, user, user_by_handle, search, seed
//	    engine operations
//	publish   add users and posts to the origin
//	retract   remove posts from the origin
//	fail      make matching origin calls fail
//
// Assertions:
//
//	origin_calls            number of flow calls to one origin operation
//	stored_posts            exact set of stored post IDs
//	stats                   store record counts
//	references              stored edges of one post
//	conversation_complete   whether a conversation is marked complete
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
package harness
