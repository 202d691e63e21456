package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/archivist/internal/model"
)

// Dump is a full snapshot of the archive, in the shape the dataset format
// and the mirror origin consume.
type Dump struct {
	Users []model.User
	Posts []model.Post
}

// ReadAll returns every stored user and post ordered by ID. Posts carry
// their stored references.
//
// The snapshot is read inside a single transaction so users, posts and
// references agree with each other.
func (s *Store) ReadAll(ctx context.Context) (Dump, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Dump{}, fmt.Errorf("read all: begin: %w", err)
	}
	defer tx.Rollback()

	users, err := readAllUsers(ctx, tx)
	if err != nil {
		return Dump{}, fmt.Errorf("read all: %w", err)
	}

	posts, err := readAllPosts(ctx, tx)
	if err != nil {
		return Dump{}, fmt.Errorf("read all: %w", err)
	}

	return Dump{Users: users, Posts: posts}, nil
}

func readAllUsers(ctx context.Context, tx *sql.Tx) ([]model.User, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, name, handle, description
		FROM users
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query users: %w", err)
	}
	defer rows.Close()

	users := []model.User{}
	for rows.Next() {
		var (
			u  model.User
			id int64
		)
		if err := rows.Scan(&id, &u.Name, &u.Handle, &u.Description); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		u.ID = fromDBID(id)
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}

func readAllPosts(ctx context.Context, tx *sql.Tx) ([]model.Post, error) {
	refs, err := readAllReferences(ctx, tx)
	if err != nil {
		return nil, err
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT id, author_id, conversation_id, text, created_at, utc_offset
		FROM posts
		ORDER BY id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query posts: %w", err)
	}
	defer rows.Close()

	posts := []model.Post{}
	for rows.Next() {
		var (
			p                      model.Post
			pid, author, conv, sec int64
			offset                 int
		)
		if err := rows.Scan(&pid, &author, &conv, &p.Text, &sec, &offset); err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		p.ID = fromDBID(pid)
		p.AuthorID = fromDBID(author)
		p.ConversationID = fromDBID(conv)
		p.CreatedAt = unmarshalTime(sec, offset)
		p.References = refs[p.ID]
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate posts: %w", err)
	}
	return posts, nil
}

func readAllReferences(ctx context.Context, tx *sql.Tx) (map[uint64][]model.Reference, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT source_id, kind, target_id
		FROM post_references
		ORDER BY source_id ASC, kind ASC, target_id ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query references: %w", err)
	}
	defer rows.Close()

	refs := make(map[uint64][]model.Reference)
	for rows.Next() {
		e, err := scanEdge(rows)
		if err != nil {
			return nil, err
		}
		refs[e.SourceID] = append(refs[e.SourceID], model.Reference{Kind: e.Kind, ID: e.TargetID})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate references: %w", err)
	}
	return refs, nil
}
