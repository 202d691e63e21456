package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/archivist/internal/model"
)

// entryColumns selects a post joined with its (possibly missing) author.
const entryColumns = `
	p.id, p.author_id, p.conversation_id, p.text, p.created_at, p.utc_offset,
	u.id, u.name, u.handle, u.description
	FROM posts p
	LEFT JOIN users u ON u.id = p.author_id`

// Post retrieves a single post by ID, including its stored reference edges.
// Returns ErrNotFound if the post is not stored.
func (s *Store) Post(ctx context.Context, id uint64) (model.Post, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, author_id, conversation_id, text, created_at, utc_offset
		FROM posts
		WHERE id = ?
	`, dbID(id))

	var (
		p                      model.Post
		pid, author, conv, sec int64
		offset                 int
	)
	if err := row.Scan(&pid, &author, &conv, &p.Text, &sec, &offset); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Post{}, ErrNotFound
		}
		return model.Post{}, fmt.Errorf("read post %d: %w", id, err)
	}
	p.ID = fromDBID(pid)
	p.AuthorID = fromDBID(author)
	p.ConversationID = fromDBID(conv)
	p.CreatedAt = unmarshalTime(sec, offset)

	refs, err := s.postReferences(ctx, []uint64{p.ID})
	if err != nil {
		return model.Post{}, err
	}
	p.References = refs[p.ID]
	return p, nil
}

// User retrieves a user by ID.
// Returns ErrNotFound if the user is not stored.
func (s *Store) User(ctx context.Context, id uint64) (model.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, handle, description
		FROM users
		WHERE id = ?
	`, dbID(id))
	u, err := scanUser(row)
	if err != nil {
		return model.User{}, fmt.Errorf("read user %d: %w", id, err)
	}
	return u, nil
}

// UserByHandle retrieves a user by handle. Handles compare case-sensitively.
// If two stored users share a handle (a handle changed hands upstream), the
// one with the highest ID wins.
// Returns ErrNotFound if no user has that handle.
func (s *Store) UserByHandle(ctx context.Context, handle string) (model.User, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, handle, description
		FROM users
		WHERE handle = ?
		ORDER BY id DESC
		LIMIT 1
	`, handle)
	u, err := scanUser(row)
	if err != nil {
		return model.User{}, fmt.Errorf("read user @%s: %w", handle, err)
	}
	return u, nil
}

// HasPost reports whether a post is stored.
func (s *Store) HasPost(ctx context.Context, id uint64) (bool, error) {
	return s.exists(ctx, "posts", id)
}

// HasUser reports whether a user is stored.
func (s *Store) HasUser(ctx context.Context, id uint64) (bool, error) {
	return s.exists(ctx, "users", id)
}

// HasConversation reports whether a conversation existence record is stored.
func (s *Store) HasConversation(ctx context.Context, id uint64) (bool, error) {
	return s.exists(ctx, "conversations", id)
}

// exists checks for a row by primary key. table is never caller-supplied.
func (s *Store) exists(ctx context.Context, table string, id uint64) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		"SELECT 1 FROM "+table+" WHERE id = ?", dbID(id),
	).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check %s %d: %w", table, id, err)
	}
	return true, nil
}

// ConversationComplete reports whether the conversation has been fully
// fetched from the origin. Unknown conversations are not complete.
func (s *Store) ConversationComplete(ctx context.Context, id uint64) (bool, error) {
	var complete bool
	err := s.db.QueryRowContext(ctx,
		"SELECT complete FROM conversations WHERE id = ?", dbID(id),
	).Scan(&complete)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check conversation %d: %w", id, err)
	}
	return complete, nil
}

// PostsByAuthor returns every stored post by an author, newest first.
// Returns an empty slice (not nil) if the author has no stored posts.
func (s *Store) PostsByAuthor(ctx context.Context, authorID uint64) ([]model.Entry, error) {
	return s.queryEntries(ctx, "posts by author", `
		SELECT `+entryColumns+`
		WHERE p.author_id = ?
		ORDER BY p.created_at DESC, p.id DESC
	`, dbID(authorID))
}

// LatestPostTime returns the creation time of the author's most recent
// stored post. ok is false when the author has no stored posts.
func (s *Store) LatestPostTime(ctx context.Context, authorID uint64) (t time.Time, ok bool, err error) {
	var (
		sec    int64
		offset int
	)
	err = s.db.QueryRowContext(ctx, `
		SELECT created_at, utc_offset
		FROM posts
		WHERE author_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, dbID(authorID)).Scan(&sec, &offset)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("latest post time for %d: %w", authorID, err)
	}
	return unmarshalTime(sec, offset), true, nil
}

// ConversationPosts returns every stored post in a conversation in reading
// order (oldest first). Returns an empty slice (not nil) if none are stored.
func (s *Store) ConversationPosts(ctx context.Context, conversationID uint64) ([]model.Entry, error) {
	return s.queryEntries(ctx, "conversation posts", `
		SELECT `+entryColumns+`
		WHERE p.conversation_id = ?
		ORDER BY p.created_at ASC, p.id ASC
	`, dbID(conversationID))
}

// Search returns posts whose text contains query, newest first. Matching is
// a substring test over normalized text (see model.NormalizeText).
// A blank query matches nothing. limit <= 0 means no limit.
func (s *Store) Search(ctx context.Context, query string, limit int) ([]model.Entry, error) {
	needle := model.NormalizeText(strings.TrimSpace(query))
	if needle == "" {
		return []model.Entry{}, nil
	}
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}

	return s.queryEntries(ctx, "search", `
		SELECT `+entryColumns+`
		WHERE p.search_text LIKE '%' || ? || '%' ESCAPE '\'
		ORDER BY p.created_at DESC, p.id DESC
		LIMIT ?
	`, escapeLike(needle), limit)
}

// References returns the stored outgoing edges of a post.
// Returns an empty slice (not nil) if the post has none.
func (s *Store) References(ctx context.Context, sourceID uint64) ([]model.Edge, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT source_id, kind, target_id
		FROM post_references
		WHERE source_id = ?
		ORDER BY kind ASC, target_id ASC
	`, dbID(sourceID))
	if err != nil {
		return nil, fmt.Errorf("query references: %w", err)
	}
	defer rows.Close()

	edges := []model.Edge{}
	for rows.Next() {
		e, err := scanEdge(rows)
		if err != nil {
			return nil, err
		}
		edges = append(edges, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate references: %w", err)
	}
	return edges, nil
}

// Stats counts stored records of each kind.
func (s *Store) Stats(ctx context.Context) (model.Stats, error) {
	var st model.Stats
	err := s.db.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM users),
			(SELECT COUNT(*) FROM posts),
			(SELECT COUNT(*) FROM conversations),
			(SELECT COUNT(*) FROM post_references)
	`).Scan(&st.Users, &st.Posts, &st.Conversations, &st.References)
	if err != nil {
		return model.Stats{}, fmt.Errorf("stats: %w", err)
	}
	return st, nil
}

// queryEntries runs a query selecting entryColumns and attaches references.
func (s *Store) queryEntries(ctx context.Context, op, query string, args ...any) ([]model.Entry, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", op, err)
	}
	defer rows.Close()

	entries := []model.Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", op, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", op, err)
	}
	rows.Close()

	if len(entries) == 0 {
		return entries, nil
	}

	ids := make([]uint64, len(entries))
	for i, e := range entries {
		ids[i] = e.Post.ID
	}
	refs, err := s.postReferences(ctx, ids)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		entries[i].Post.References = refs[entries[i].Post.ID]
	}
	return entries, nil
}

// postReferences loads outgoing references for a set of posts, keyed by source.
func (s *Store) postReferences(ctx context.Context, ids []uint64) (map[uint64][]model.Reference, error) {
	out := make(map[uint64][]model.Reference, len(ids))

	// Stay well under SQLite's bound-parameter limit.
	const chunk = 500
	for start := 0; start < len(ids); start += chunk {
		end := min(start+chunk, len(ids))
		batch := ids[start:end]

		args := make([]any, len(batch))
		for i, id := range batch {
			args[i] = dbID(id)
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(batch)), ",")

		rows, err := s.db.QueryContext(ctx, `
			SELECT source_id, kind, target_id
			FROM post_references
			WHERE source_id IN (`+placeholders+`)
			ORDER BY source_id ASC, kind ASC, target_id ASC
		`, args...)
		if err != nil {
			return nil, fmt.Errorf("query post references: %w", err)
		}

		for rows.Next() {
			e, err := scanEdge(rows)
			if err != nil {
				rows.Close()
				return nil, err
			}
			out[e.SourceID] = append(out[e.SourceID], model.Reference{Kind: e.Kind, ID: e.TargetID})
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, fmt.Errorf("iterate post references: %w", err)
		}
		rows.Close()
	}

	return out, nil
}

// scanUser scans a single user row, mapping sql.ErrNoRows to ErrNotFound.
func scanUser(row *sql.Row) (model.User, error) {
	var (
		u  model.User
		id int64
	)
	if err := row.Scan(&id, &u.Name, &u.Handle, &u.Description); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, ErrNotFound
		}
		return model.User{}, err
	}
	u.ID = fromDBID(id)
	return u, nil
}

// scanEntry scans a row selected with entryColumns.
func scanEntry(rows *sql.Rows) (model.Entry, error) {
	var (
		p                            model.Post
		pid, author, conv, sec       int64
		offset                       int
		uid                          sql.NullInt64
		uname, uhandle, udescription sql.NullString
	)
	if err := rows.Scan(
		&pid, &author, &conv, &p.Text, &sec, &offset,
		&uid, &uname, &uhandle, &udescription,
	); err != nil {
		return model.Entry{}, err
	}
	p.ID = fromDBID(pid)
	p.AuthorID = fromDBID(author)
	p.ConversationID = fromDBID(conv)
	p.CreatedAt = unmarshalTime(sec, offset)

	return model.Entry{
		Post:   p,
		Author: nullableUser(uid, uname, uhandle, udescription),
	}, nil
}

// scanEdge scans a (source_id, kind, target_id) row.
func scanEdge(rows *sql.Rows) (model.Edge, error) {
	var (
		source, target int64
		kind           string
	)
	if err := rows.Scan(&source, &kind, &target); err != nil {
		return model.Edge{}, fmt.Errorf("scan reference: %w", err)
	}
	k, err := model.ParseReferenceKind(kind)
	if err != nil {
		return model.Edge{}, fmt.Errorf("scan reference: %w", err)
	}
	return model.Edge{SourceID: fromDBID(source), Kind: k, TargetID: fromDBID(target)}, nil
}
