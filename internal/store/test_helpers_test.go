package store

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/roach88/archivist/internal/model"
)

// createTestStore creates a new file-backed store in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// baseTime is an arbitrary fixed instant used to build ordered posts.
var baseTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// testUser builds a user with a handle derived from its ID.
func testUser(id uint64, handle string) model.User {
	return model.User{
		ID:     id,
		Name:   "User " + handle,
		Handle: handle,
	}
}

// testPost builds a post created minutesAfter baseTime.
func testPost(id, author, conversation uint64, minutesAfter int, text string) model.Post {
	return model.Post{
		ID:             id,
		AuthorID:       author,
		ConversationID: conversation,
		Text:           text,
		CreatedAt:      baseTime.Add(time.Duration(minutesAfter) * time.Minute),
	}
}

// mustInsertUser inserts a user or fails the test.
func mustInsertUser(t *testing.T, s *Store, u model.User) {
	t.Helper()
	if _, err := s.InsertUser(context.Background(), u); err != nil {
		t.Fatalf("InsertUser(%d) failed: %v", u.ID, err)
	}
}

// mustInsertPost inserts a post and its conversation or fails the test.
// References on the post are ignored; use mustInsertEdge.
func mustInsertPost(t *testing.T, s *Store, p model.Post) {
	t.Helper()
	ctx := context.Background()
	if _, err := s.InsertConversation(ctx, p.ConversationID); err != nil {
		t.Fatalf("InsertConversation(%d) failed: %v", p.ConversationID, err)
	}
	if _, err := s.InsertPost(ctx, p); err != nil {
		t.Fatalf("InsertPost(%d) failed: %v", p.ID, err)
	}
}

// mustInsertEdge inserts a reference edge or fails the test.
func mustInsertEdge(t *testing.T, s *Store, source uint64, kind model.ReferenceKind, target uint64) {
	t.Helper()
	e := model.Edge{SourceID: source, Kind: kind, TargetID: target}
	if _, err := s.InsertReference(context.Background(), e); err != nil {
		t.Fatalf("InsertReference(%d->%d) failed: %v", source, target, err)
	}
}

// getTableColumns returns column names for a table.
func getTableColumns(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()
	rows, err := db.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		t.Fatalf("table_info(%s) failed: %v", table, err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var (
			cid       int
			name      string
			ctype     string
			notnull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			t.Fatalf("scan column info failed: %v", err)
		}
		columns = append(columns, name)
	}
	return columns
}

// getTableIndexes returns index names for a table.
func getTableIndexes(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()
	rows, err := db.Query(
		"SELECT name FROM sqlite_master WHERE type='index' AND tbl_name=? AND name NOT LIKE 'sqlite_%'",
		table,
	)
	if err != nil {
		t.Fatalf("query indexes for %s failed: %v", table, err)
	}
	defer rows.Close()

	var indexes []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("scan index name failed: %v", err)
		}
		indexes = append(indexes, name)
	}
	return indexes
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
