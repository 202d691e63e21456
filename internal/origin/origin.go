// Package origin talks to the remote service that is authoritative for
// posts, users and conversations.
//
// The Origin interface is the only view the rest of the archive has of the
// remote service. Client implements it over HTTP with JSON bodies; Instrument
// wraps any Origin with Prometheus metrics.
//
// # Error Taxonomy
//
// Every failure is an *Error carrying one of three codes:
//
//   - NOT_FOUND: the origin has no such record (deleted or never existed)
//   - TRANSIENT_IO: transport failure, timeout, or a retryable status; the
//     Client retries once after a fixed cooldown before surfacing it
//   - MALFORMED_DATA: the response did not decode into the expected shape;
//     never retried
package origin

import (
	"context"
	"time"

	"github.com/roach88/archivist/internal/model"
)

// Origin is the set of read queries the archive issues against the remote
// service. Implementations must be safe for concurrent use.
type Origin interface {
	// FetchUser returns the user with the given ID.
	FetchUser(ctx context.Context, id uint64) (model.User, error)

	// FetchUserByHandle returns the user currently holding handle.
	FetchUserByHandle(ctx context.Context, handle string) (model.User, error)

	// FetchPost returns a single post.
	FetchPost(ctx context.Context, id uint64) (model.Post, error)

	// FetchTimeline returns every post authored by handle.
	FetchTimeline(ctx context.Context, handle string) ([]model.Post, error)

	// FetchConversation returns every post in the conversation rooted at rootID.
	FetchConversation(ctx context.Context, rootID uint64) ([]model.Post, error)

	// FetchPostsSince returns the posts authored by handle strictly after since.
	FetchPostsSince(ctx context.Context, handle string, since time.Time) ([]model.Post, error)

	// HasPostedSince reports whether handle has authored anything strictly
	// after since.
	HasPostedSince(ctx context.Context, handle string, since time.Time) (bool, error)
}

// Operation names used in errors, logs and metrics labels.
const (
	OpFetchUser         = "fetch_user"
	OpFetchUserByHandle = "fetch_user_by_handle"
	OpFetchPost         = "fetch_post"
	OpFetchTimeline     = "fetch_timeline"
	OpFetchConversation = "fetch_conversation"
	OpFetchPostsSince   = "fetch_posts_since"
	OpHasPostedSince    = "has_posted_since"
)
