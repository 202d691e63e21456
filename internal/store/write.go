package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/archivist/internal/model"
)

// InsertUser inserts a user record into the store.
// Uses ON CONFLICT(id) DO NOTHING - an existing user with the same ID is kept
// as-is even if the handle has since changed upstream.
//
// Returns inserted=false when the user was already stored.
func (s *Store) InsertUser(ctx context.Context, u model.User) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, handle, description)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		dbID(u.ID),
		u.Name,
		u.Handle,
		u.Description,
	)
	if err != nil {
		return false, fmt.Errorf("insert user %d: %w", u.ID, err)
	}
	return affected(res, "insert user")
}

// InsertConversation records that a conversation exists.
// A conversation is discovered the first time any of its posts is seen;
// its root post does not need to be stored.
func (s *Store) InsertConversation(ctx context.Context, id uint64) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (id)
		VALUES (?)
		ON CONFLICT(id) DO NOTHING
	`, dbID(id))
	if err != nil {
		return false, fmt.Errorf("insert conversation %d: %w", id, err)
	}
	return affected(res, "insert conversation")
}

// MarkConversationComplete records that the whole thread has been fetched
// from the origin. Creates the conversation record if needed.
func (s *Store) MarkConversationComplete(ctx context.Context, id uint64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO conversations (id, complete)
		VALUES (?, 1)
		ON CONFLICT(id) DO UPDATE SET complete = 1
	`, dbID(id))
	if err != nil {
		return fmt.Errorf("mark conversation %d complete: %w", id, err)
	}
	return nil
}

// InsertPost inserts a post record into the store.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - duplicate IDs are silently
// ignored and the stored copy is never overwritten.
//
// The post's conversation must already exist (foreign key constraint).
// References carried on the post are NOT written here; edges are written
// separately once each target has been committed.
func (s *Store) InsertPost(ctx context.Context, p model.Post) (bool, error) {
	sec, offset := marshalTime(p.CreatedAt)

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO posts
		(id, author_id, conversation_id, text, search_text, created_at, utc_offset)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		dbID(p.ID),
		dbID(p.AuthorID),
		dbID(p.ConversationID),
		p.Text,
		model.NormalizeText(p.Text),
		sec,
		offset,
	)
	if err != nil {
		return false, fmt.Errorf("insert post %d: %w", p.ID, err)
	}
	return affected(res, "insert post")
}

// InsertReference inserts a reference edge.
// Both the source and the target post must already exist (foreign key
// constraints). Duplicate edges are silently ignored.
func (s *Store) InsertReference(ctx context.Context, e model.Edge) (bool, error) {
	if !e.Kind.Valid() {
		return false, fmt.Errorf("insert reference %d->%d: unknown kind %q", e.SourceID, e.TargetID, e.Kind)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO post_references (source_id, kind, target_id)
		VALUES (?, ?, ?)
		ON CONFLICT DO NOTHING
	`,
		dbID(e.SourceID),
		string(e.Kind),
		dbID(e.TargetID),
	)
	if err != nil {
		return false, fmt.Errorf("insert reference %d->%d: %w", e.SourceID, e.TargetID, err)
	}
	return affected(res, "insert reference")
}

// affected reports whether an ON CONFLICT DO NOTHING insert wrote a row.
func affected(res sql.Result, op string) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: rows affected: %w", op, err)
	}
	return n > 0, nil
}
