package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/archivist/internal/metrics"
	"github.com/roach88/archivist/internal/model"
	"github.com/roach88/archivist/internal/origin"
	"github.com/roach88/archivist/internal/resolver"
	"github.com/roach88/archivist/internal/store"
	"github.com/roach88/archivist/internal/usercache"
)

// Operation names used for metrics labels and log lines.
const (
	OpTimeline     = "timeline"
	OpConversation = "conversation"
	OpPost         = "post"
	OpUser         = "user"
	OpUserByHandle = "user_by_handle"
	OpSearch       = "search"
)

// DefaultSeedConcurrency is the default number of posts Seed resolves at once.
const DefaultSeedConcurrency = 4

// conversationHitThreshold is the number of stored posts at which a
// conversation not marked complete is answered from the store.
const conversationHitThreshold = 2

// Engine answers reads from the store, filling it from the origin on a miss.
type Engine struct {
	store    *store.Store
	origin   origin.Origin
	resolver *resolver.Resolver
	logger   *slog.Logger
	metrics  *metrics.Metrics

	seedConcurrency int
	resolverOpts    []resolver.Option
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger for the engine and its resolver.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithMetrics records cache hits and misses, origin calls, archived posts
// and integrity gaps.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) {
		e.metrics = m
	}
}

// WithUserCache sets the in-memory user cache.
func WithUserCache(c *usercache.Cache) Option {
	return func(e *Engine) {
		e.resolverOpts = append(e.resolverOpts, resolver.WithUserCache(c))
	}
}

// WithPassIDs sets the generator for resolution pass IDs.
//
// Default: resolver.UUIDv7Generator
func WithPassIDs(g resolver.PassIDGenerator) Option {
	return func(e *Engine) {
		e.resolverOpts = append(e.resolverOpts, resolver.WithPassIDs(g))
	}
}

// WithMaxSteps sets the maximum origin fetches per resolution pass.
//
// Default: 1000 steps (resolver.DefaultMaxSteps)
// Use WithMaxSteps(10) for testing quota enforcement.
func WithMaxSteps(maxSteps int) Option {
	return func(e *Engine) {
		e.resolverOpts = append(e.resolverOpts, resolver.WithMaxSteps(maxSteps))
	}
}

// WithSeedConcurrency sets how many posts Seed resolves at once.
//
// Default: 4 (DefaultSeedConcurrency)
func WithSeedConcurrency(n int) Option {
	return func(e *Engine) {
		e.seedConcurrency = n
	}
}

// New creates an Engine over a store and an origin.
func New(s *store.Store, o origin.Origin, opts ...Option) *Engine {
	e := &Engine{
		store:           s,
		logger:          slog.Default(),
		seedConcurrency: DefaultSeedConcurrency,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.seedConcurrency < 1 {
		e.seedConcurrency = 1
	}

	e.origin = origin.Instrument(o, e.metrics)
	e.resolver = resolver.New(s, e.origin, append([]resolver.Option{
		resolver.WithLogger(e.logger),
		resolver.WithMetrics(e.metrics),
	}, e.resolverOpts...)...)

	return e
}

// Timeline returns every stored post by handle, newest first, after
// bringing the store up to date with the origin.
//
// An unknown handle yields an empty result.
func (e *Engine) Timeline(ctx context.Context, handle string) ([]model.Entry, error) {
	user, ok, err := e.UserByHandle(ctx, handle)
	if err != nil {
		return nil, fmt.Errorf("timeline @%s: %w", handle, err)
	}
	if !ok {
		return []model.Entry{}, nil
	}

	stored, err := e.store.PostsByAuthor(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("timeline @%s: %w", handle, err)
	}

	if len(stored) == 0 {
		e.metrics.CacheLookup(OpTimeline, false)
		posts, err := e.origin.FetchTimeline(ctx, handle)
		if err != nil && !origin.IsNotFound(err) {
			return nil, fmt.Errorf("timeline @%s: %w", handle, err)
		}
		return e.archiveAndList(ctx, handle, user.ID, posts)
	}

	latest, _, err := e.store.LatestPostTime(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("timeline @%s: %w", handle, err)
	}

	posted, err := e.origin.HasPostedSince(ctx, handle, latest)
	if err != nil && !origin.IsNotFound(err) {
		return nil, fmt.Errorf("timeline @%s: %w", handle, err)
	}
	if !posted {
		e.metrics.CacheLookup(OpTimeline, true)
		e.logger.Debug("timeline up to date", "handle", handle, "user_id", user.ID, "since", latest)
		return stored, nil
	}

	e.metrics.CacheLookup(OpTimeline, false)
	posts, err := e.origin.FetchPostsSince(ctx, handle, latest)
	if err != nil && !origin.IsNotFound(err) {
		return nil, fmt.Errorf("timeline @%s: %w", handle, err)
	}
	return e.archiveAndList(ctx, handle, user.ID, posts)
}

func (e *Engine) archiveAndList(ctx context.Context, handle string, authorID uint64, posts []model.Post) ([]model.Entry, error) {
	if err := e.archiveAll(ctx, posts); err != nil {
		return nil, fmt.Errorf("timeline @%s: %w", handle, err)
	}
	e.logger.Debug("timeline filled", "handle", handle, "user_id", authorID, "fetched", len(posts))

	entries, err := e.store.PostsByAuthor(ctx, authorID)
	if err != nil {
		return nil, fmt.Errorf("timeline @%s: %w", handle, err)
	}
	return entries, nil
}

// Conversation returns the stored posts of a conversation, oldest first,
// fetching the thread from the origin unless the store already answers it.
func (e *Engine) Conversation(ctx context.Context, rootID uint64) ([]model.Entry, error) {
	stored, err := e.store.ConversationPosts(ctx, rootID)
	if err != nil {
		return nil, fmt.Errorf("conversation %d: %w", rootID, err)
	}

	complete, err := e.store.ConversationComplete(ctx, rootID)
	if err != nil {
		return nil, fmt.Errorf("conversation %d: %w", rootID, err)
	}

	if complete || len(stored) >= conversationHitThreshold {
		e.metrics.CacheLookup(OpConversation, true)
		return stored, nil
	}
	e.metrics.CacheLookup(OpConversation, false)

	posts, err := e.origin.FetchConversation(ctx, rootID)
	if err != nil && !origin.IsNotFound(err) {
		return nil, fmt.Errorf("conversation %d: %w", rootID, err)
	}
	if err := e.archiveAll(ctx, posts); err != nil {
		return nil, fmt.Errorf("conversation %d: %w", rootID, err)
	}

	// Only a thread the origin actually returned is known to be whole.
	if len(posts) > 0 {
		if err := e.store.MarkConversationComplete(ctx, rootID); err != nil {
			return nil, fmt.Errorf("conversation %d: %w", rootID, err)
		}
	}
	e.logger.Debug("conversation filled", "conversation_id", rootID, "fetched", len(posts))

	entries, err := e.store.ConversationPosts(ctx, rootID)
	if err != nil {
		return nil, fmt.Errorf("conversation %d: %w", rootID, err)
	}
	return entries, nil
}

// Post returns a post and its author. ok is false when neither the store
// nor the origin has it.
func (e *Engine) Post(ctx context.Context, id uint64) (entry model.Entry, ok bool, err error) {
	p, err := e.store.Post(ctx, id)
	switch {
	case err == nil:
		e.metrics.CacheLookup(OpPost, true)
	case errors.Is(err, store.ErrNotFound):
		e.metrics.CacheLookup(OpPost, false)
		p, err = e.resolver.ResolvePost(ctx, e.resolver.NewPass(), id)
		if origin.IsNotFound(err) {
			e.logger.Debug("post not found", "post_id", id)
			return model.Entry{}, false, nil
		}
		if err != nil {
			return model.Entry{}, false, fmt.Errorf("post %d: %w", id, err)
		}
	default:
		return model.Entry{}, false, fmt.Errorf("post %d: %w", id, err)
	}

	author, err := e.store.User(ctx, p.AuthorID)
	switch {
	case err == nil:
		return model.Entry{Post: p, Author: &author}, true, nil
	case errors.Is(err, store.ErrNotFound):
		return model.Entry{Post: p}, true, nil
	default:
		return model.Entry{}, false, fmt.Errorf("post %d: %w", id, err)
	}
}

// User returns a user by ID. ok is false when the origin has no such user.
func (e *Engine) User(ctx context.Context, id uint64) (u model.User, ok bool, err error) {
	stored, err := e.store.HasUser(ctx, id)
	if err != nil {
		return model.User{}, false, fmt.Errorf("user %d: %w", id, err)
	}
	e.metrics.CacheLookup(OpUser, stored)

	u, err = e.resolver.EnsureUser(ctx, id)
	if origin.IsNotFound(err) {
		return model.User{}, false, nil
	}
	if err != nil {
		return model.User{}, false, fmt.Errorf("user %d: %w", id, err)
	}
	return u, true, nil
}

// UserByHandle returns the user holding handle. Handles are compared
// case-sensitively. ok is false when the origin has no such user.
func (e *Engine) UserByHandle(ctx context.Context, handle string) (u model.User, ok bool, err error) {
	u, err = e.store.UserByHandle(ctx, handle)
	if err == nil {
		e.metrics.CacheLookup(OpUserByHandle, true)
		return u, true, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return model.User{}, false, fmt.Errorf("user @%s: %w", handle, err)
	}
	e.metrics.CacheLookup(OpUserByHandle, false)

	u, err = e.origin.FetchUserByHandle(ctx, handle)
	if origin.IsNotFound(err) {
		return model.User{}, false, nil
	}
	if err != nil {
		return model.User{}, false, fmt.Errorf("user @%s: %w", handle, err)
	}
	if err := e.resolver.SaveUser(ctx, u); err != nil {
		return model.User{}, false, fmt.Errorf("user @%s: %w", handle, err)
	}
	return u, true, nil
}

// Search returns stored posts containing query, newest first. It never
// contacts the origin. limit <= 0 means no limit.
func (e *Engine) Search(ctx context.Context, query string, limit int) ([]model.Entry, error) {
	entries, err := e.store.Search(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}
	return entries, nil
}

// Stats returns store record counts.
func (e *Engine) Stats(ctx context.Context) (model.Stats, error) {
	return e.store.Stats(ctx)
}

// archiveAll archives each post in its own resolution pass.
func (e *Engine) archiveAll(ctx context.Context, posts []model.Post) error {
	for _, p := range posts {
		pass := e.resolver.NewPass()
		if err := e.resolver.Archive(ctx, pass, p); err != nil {
			return err
		}
	}
	return nil
}
