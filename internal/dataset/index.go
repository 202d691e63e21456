package dataset

import (
	"slices"
	"time"

	"github.com/roach88/archivist/internal/model"
)

// Index answers origin-style queries over a dataset in memory.
// It is immutable after construction and safe for concurrent use.
type Index struct {
	users        map[uint64]model.User
	handles      map[string]uint64
	posts        map[uint64]model.Post
	byAuthor     map[uint64][]model.Post // newest first
	conversation map[uint64][]model.Post // oldest first
}

// NewIndex builds an Index. When two users share a handle the one with the
// highest ID owns it.
func NewIndex(ds *Dataset) *Index {
	idx := &Index{
		users:        make(map[uint64]model.User, len(ds.Users)),
		handles:      make(map[string]uint64, len(ds.Users)),
		posts:        make(map[uint64]model.Post, len(ds.Posts)),
		byAuthor:     make(map[uint64][]model.Post),
		conversation: make(map[uint64][]model.Post),
	}

	for _, u := range ds.Users {
		idx.users[u.ID] = u
		if cur, ok := idx.handles[u.Handle]; !ok || u.ID > cur {
			idx.handles[u.Handle] = u.ID
		}
	}

	for _, p := range ds.Posts {
		p.References = slices.Clone(p.References)
		idx.posts[p.ID] = p
		idx.byAuthor[p.AuthorID] = append(idx.byAuthor[p.AuthorID], p)
		idx.conversation[p.ConversationID] = append(idx.conversation[p.ConversationID], p)
	}
	for _, posts := range idx.byAuthor {
		model.SortNewestFirst(posts)
	}
	for _, posts := range idx.conversation {
		model.SortOldestFirst(posts)
	}

	return idx
}

// User returns the user with the given ID.
func (idx *Index) User(id uint64) (model.User, bool) {
	u, ok := idx.users[id]
	return u, ok
}

// UserByHandle returns the user holding handle. Case-sensitive.
func (idx *Index) UserByHandle(handle string) (model.User, bool) {
	id, ok := idx.handles[handle]
	if !ok {
		return model.User{}, false
	}
	return idx.users[id], true
}

// Post returns a single post.
func (idx *Index) Post(id uint64) (model.Post, bool) {
	p, ok := idx.posts[id]
	return p, ok
}

// Timeline returns every post by handle, newest first. ok is false when the
// handle is unknown.
func (idx *Index) Timeline(handle string) (posts []model.Post, ok bool) {
	u, ok := idx.UserByHandle(handle)
	if !ok {
		return nil, false
	}
	posts = slices.Clone(idx.byAuthor[u.ID])
	if posts == nil {
		posts = []model.Post{}
	}
	return posts, true
}

// Conversation returns every post in the conversation, oldest first.
// Unknown conversations yield an empty slice.
func (idx *Index) Conversation(rootID uint64) []model.Post {
	posts := slices.Clone(idx.conversation[rootID])
	if posts == nil {
		return []model.Post{}
	}
	return posts
}

// PostsSince returns posts by handle created strictly after since, newest
// first. ok is false when the handle is unknown.
func (idx *Index) PostsSince(handle string, since time.Time) (posts []model.Post, ok bool) {
	all, ok := idx.Timeline(handle)
	if !ok {
		return nil, false
	}
	posts = []model.Post{}
	for _, p := range all {
		if p.CreatedAt.After(since) {
			posts = append(posts, p)
		}
	}
	return posts, true
}

// HasPostedSince reports whether handle has a post created strictly after
// since. ok is false when the handle is unknown.
func (idx *Index) HasPostedSince(handle string, since time.Time) (posted, ok bool) {
	posts, ok := idx.PostsSince(handle, since)
	return len(posts) > 0, ok
}

// Len returns the number of users and posts indexed.
func (idx *Index) Len() (users, posts int) {
	return len(idx.users), len(idx.posts)
}
