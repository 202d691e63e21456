package resolver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/archivist/internal/metrics"
	"github.com/roach88/archivist/internal/model"
	"github.com/roach88/archivist/internal/origin"
	"github.com/roach88/archivist/internal/store"
	"github.com/roach88/archivist/internal/usercache"
)

// Resolver archives posts and their dependencies. It holds no per-request
// state and is safe for concurrent use; per-request state lives in Pass.
type Resolver struct {
	store    *store.Store
	origin   origin.Origin
	users    *usercache.Cache
	passIDs  PassIDGenerator
	maxSteps int
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithUserCache sets the in-memory user cache consulted before the store.
func WithUserCache(c *usercache.Cache) Option {
	return func(r *Resolver) {
		r.users = c
	}
}

// WithPassIDs sets the pass ID generator.
//
// Default: UUIDv7Generator
func WithPassIDs(g PassIDGenerator) Option {
	return func(r *Resolver) {
		r.passIDs = g
	}
}

// WithMaxSteps sets the maximum origin fetches per pass.
//
// Default: 1000 steps (DefaultMaxSteps)
func WithMaxSteps(maxSteps int) Option {
	return func(r *Resolver) {
		r.maxSteps = maxSteps
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		r.logger = l
	}
}

// WithMetrics records archived posts and integrity gaps.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Resolver) {
		r.metrics = m
	}
}

// New creates a Resolver over a store and an origin.
func New(s *store.Store, o origin.Origin, opts ...Option) *Resolver {
	r := &Resolver{
		store:    s,
		origin:   o,
		passIDs:  UUIDv7Generator{},
		maxSteps: DefaultMaxSteps,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// NewPass starts a resolution pass.
func (r *Resolver) NewPass() *Pass {
	return newPass(r.passIDs.Generate(), r.maxSteps)
}

// Archive stores p and everything it depends on. Posts already archived or
// in progress in this pass are skipped.
//
// Returns an error only for store failures and non-NotFound origin failures.
func (r *Resolver) Archive(ctx context.Context, pass *Pass, p model.Post) error {
	switch pass.state(p.ID) {
	case stateInProgress, stateArchived:
		return nil
	}
	pass.mark(p.ID, stateInProgress)

	if err := r.ensureAuthor(ctx, pass, p); err != nil {
		return err
	}

	if _, err := r.store.InsertConversation(ctx, p.ConversationID); err != nil {
		return err
	}

	inserted, err := r.store.InsertPost(ctx, p)
	if err != nil {
		return err
	}
	if inserted {
		r.metrics.PostArchived()
		r.logger.Debug("archived post",
			"pass", pass.ID,
			"post_id", p.ID,
			"user_id", p.AuthorID,
			"conversation_id", p.ConversationID,
		)
	}

	for _, ref := range p.References {
		if err := r.resolveReference(ctx, pass, p.ID, ref); err != nil {
			return err
		}
	}

	pass.mark(p.ID, stateArchived)
	return nil
}

// ResolvePost returns a stored post, fetching and archiving it first if
// needed. An origin NOT_FOUND is returned as-is (see origin.IsNotFound) and
// the ID is remembered as absent for the rest of the pass.
func (r *Resolver) ResolvePost(ctx context.Context, pass *Pass, id uint64) (model.Post, error) {
	p, err := r.store.Post(ctx, id)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return model.Post{}, err
	}

	if pass.state(id) == stateAbsent {
		return model.Post{}, origin.NotFound(origin.OpFetchPost, fmt.Sprint(id))
	}
	if err := pass.step(); err != nil {
		return model.Post{}, err
	}

	fetched, err := r.origin.FetchPost(ctx, id)
	if err != nil {
		if origin.IsNotFound(err) {
			pass.mark(id, stateAbsent)
		}
		return model.Post{}, err
	}

	if err := r.Archive(ctx, pass, fetched); err != nil {
		return model.Post{}, err
	}
	return r.store.Post(ctx, id)
}

// EnsureUser returns a user from the cache or store, fetching and storing
// it if needed. An origin NOT_FOUND is returned as-is.
func (r *Resolver) EnsureUser(ctx context.Context, id uint64) (model.User, error) {
	if u, ok, err := r.lookupUser(ctx, id); err != nil || ok {
		return u, err
	}

	u, err := r.origin.FetchUser(ctx, id)
	if err != nil {
		return model.User{}, err
	}
	if err := r.SaveUser(ctx, u); err != nil {
		return model.User{}, err
	}
	return u, nil
}

// SaveUser stores a user fetched from the origin. A user already stored
// under the same ID is kept as-is.
func (r *Resolver) SaveUser(ctx context.Context, u model.User) error {
	if _, err := r.store.InsertUser(ctx, u); err != nil {
		return err
	}
	r.users.Put(u)
	return nil
}

// lookupUser checks the cache, then the store.
func (r *Resolver) lookupUser(ctx context.Context, id uint64) (model.User, bool, error) {
	if u, ok := r.users.Get(id); ok {
		return u, true, nil
	}
	u, err := r.store.User(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return model.User{}, false, nil
	}
	if err != nil {
		return model.User{}, false, err
	}
	r.users.Put(u)
	return u, true, nil
}

// ensureAuthor stores the author of p. A missing author is an integrity gap.
func (r *Resolver) ensureAuthor(ctx context.Context, pass *Pass, p model.Post) error {
	if _, ok, err := r.lookupUser(ctx, p.AuthorID); err != nil || ok {
		return err
	}
	if pass.absentUsers[p.AuthorID] {
		return nil
	}

	if err := pass.step(); err != nil {
		r.gap(pass, IntegrityGap{Kind: GapAuthor, SourceID: p.ID, TargetID: p.AuthorID, Reason: err})
		return nil
	}

	u, err := r.origin.FetchUser(ctx, p.AuthorID)
	if origin.IsNotFound(err) {
		pass.absentUsers[p.AuthorID] = true
		r.gap(pass, IntegrityGap{Kind: GapAuthor, SourceID: p.ID, TargetID: p.AuthorID, Reason: err})
		return nil
	}
	if err != nil {
		return fmt.Errorf("resolve author of post %d: %w", p.ID, err)
	}

	return r.SaveUser(ctx, u)
}

// resolveReference makes sure the target of ref is stored, then writes the
// edge. Targets that cannot be fetched drop the edge.
func (r *Resolver) resolveReference(ctx context.Context, pass *Pass, sourceID uint64, ref model.Reference) error {
	edge := model.Edge{SourceID: sourceID, Kind: ref.Kind, TargetID: ref.ID}

	// Store membership is checked immediately before recursing. This also
	// covers cycles: a post still in progress has its row committed already.
	stored, err := r.store.HasPost(ctx, ref.ID)
	if err != nil {
		return err
	}
	if stored {
		_, err := r.store.InsertReference(ctx, edge)
		return err
	}

	switch pass.state(ref.ID) {
	case stateAbsent:
		// Found missing earlier in this pass; drop this edge too.
		r.gap(pass, IntegrityGap{
			Kind: GapReference, SourceID: sourceID, TargetID: ref.ID, RefKind: ref.Kind,
			Reason: origin.NotFound(origin.OpFetchPost, fmt.Sprint(ref.ID)),
		})
		return nil
	case stateInProgress, stateArchived:
		// Unreachable while rows are written before references; never re-enter.
		return nil
	}

	if err := pass.step(); err != nil {
		r.gap(pass, IntegrityGap{Kind: GapReference, SourceID: sourceID, TargetID: ref.ID, RefKind: ref.Kind, Reason: err})
		return nil
	}

	target, err := r.origin.FetchPost(ctx, ref.ID)
	if origin.IsNotFound(err) {
		pass.mark(ref.ID, stateAbsent)
		r.gap(pass, IntegrityGap{Kind: GapReference, SourceID: sourceID, TargetID: ref.ID, RefKind: ref.Kind, Reason: err})
		return nil
	}
	if err != nil {
		return fmt.Errorf("resolve %s reference %d -> %d: %w", ref.Kind, sourceID, ref.ID, err)
	}

	if err := r.Archive(ctx, pass, target); err != nil {
		return err
	}

	_, err = r.store.InsertReference(ctx, edge)
	return err
}

// gap logs, counts and records an integrity gap.
func (r *Resolver) gap(pass *Pass, g IntegrityGap) {
	g.Pass = pass.ID
	pass.gaps = append(pass.gaps, g)
	r.metrics.IntegrityGap(string(g.Kind))

	attrs := []any{
		"pass", pass.ID,
		"kind", g.Kind,
		"post_id", g.SourceID,
		"target", g.TargetID,
		"error", g.Reason,
	}
	if g.Kind == GapReference {
		attrs = append(attrs, "ref_kind", g.RefKind)
	}
	r.logger.Warn("integrity gap", attrs...)
}
