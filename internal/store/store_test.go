package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_InMemory(t *testing.T) {
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	defer s.Close()

	if _, err := s.InsertConversation(context.Background(), 1); err != nil {
		t.Fatalf("InsertConversation() failed: %v", err)
	}
	ok, err := s.HasConversation(context.Background(), 1)
	if err != nil {
		t.Fatalf("HasConversation() failed: %v", err)
	}
	if !ok {
		t.Error("conversation written to :memory: store not visible")
	}
}

func TestOpen_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")
	ctx := context.Background()

	s1, err := Open(path)
	if err != nil {
		t.Fatalf("first Open() failed: %v", err)
	}
	if _, err := s1.InsertUser(ctx, testUser(7, "alice")); err != nil {
		t.Fatalf("InsertUser() failed: %v", err)
	}
	s1.Close()

	s2, err := Open(path)
	if err != nil {
		t.Fatalf("second Open() failed: %v", err)
	}
	defer s2.Close()

	u, err := s2.User(ctx, 7)
	if err != nil {
		t.Fatalf("User() after reopen failed: %v", err)
	}
	if u.Handle != "alice" {
		t.Errorf("Handle = %q, want alice", u.Handle)
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("final Open() failed: %v", err)
	}
	defer s.Close()

	tables := []string{"users", "conversations", "posts", "post_references"}
	for _, table := range tables {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found after idempotent opens: %v", table, err)
		}
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open("/nonexistent/dir/test.db")
	if err == nil {
		t.Error("expected error for invalid path, got nil")
	}
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{db: nil}
	if err := s.Close(); err != nil {
		t.Errorf("Close() on nil db should not error: %v", err)
	}
}

// Pragma tests

func TestPragmas(t *testing.T) {
	s := createTestStore(t)

	tests := []struct {
		name string
		want string
	}{
		{"journal_mode", "wal"},
		{"synchronous", "1"}, // NORMAL
		{"busy_timeout", "5000"},
		{"foreign_keys", "1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := s.verifyPragma(tt.name, tt.want); err != nil {
				t.Error(err)
			}
		})
	}
}

func TestSchemaVersion(t *testing.T) {
	s := createTestStore(t)

	if err := s.verifyPragma("user_version", "1"); err != nil {
		t.Error(err)
	}
}

// Schema tests

func TestSchema_Columns(t *testing.T) {
	s := createTestStore(t)

	tests := map[string][]string{
		"users":           {"id", "name", "handle", "description"},
		"conversations":   {"id", "complete"},
		"posts":           {"id", "author_id", "conversation_id", "text", "search_text", "created_at", "utc_offset"},
		"post_references": {"source_id", "kind", "target_id"},
	}

	for table, expected := range tests {
		columns := getTableColumns(t, s.db, table)
		for _, col := range expected {
			if !contains(columns, col) {
				t.Errorf("%s table missing column %q", table, col)
			}
		}
	}
}

func TestSchema_Indexes(t *testing.T) {
	s := createTestStore(t)

	tests := map[string][]string{
		"users":           {"idx_users_handle"},
		"posts":           {"idx_posts_author_created", "idx_posts_conversation_created"},
		"post_references": {"idx_post_references_target"},
	}

	for table, expected := range tests {
		indexes := getTableIndexes(t, s.db, table)
		for _, idx := range expected {
			if !contains(indexes, idx) {
				t.Errorf("%s table missing index %q", table, idx)
			}
		}
	}
}

// Constraint tests

func TestConstraint_PostRequiresConversation(t *testing.T) {
	s := createTestStore(t)

	_, err := s.InsertPost(context.Background(), testPost(1, 10, 99, 0, "orphan"))
	if err == nil {
		t.Error("expected foreign key violation for missing conversation")
	}
}

func TestConstraint_ReferenceRequiresBothPosts(t *testing.T) {
	s := createTestStore(t)
	mustInsertPost(t, s, testPost(1, 10, 1, 0, "source"))

	_, err := s.db.Exec(
		"INSERT INTO post_references (source_id, kind, target_id) VALUES (1, 'quoted', 2)",
	)
	if err == nil {
		t.Error("expected foreign key violation for missing target post")
	}
}

func TestConstraint_ReferenceKindChecked(t *testing.T) {
	s := createTestStore(t)
	mustInsertPost(t, s, testPost(1, 10, 1, 0, "a"))
	mustInsertPost(t, s, testPost(2, 10, 1, 1, "b"))

	_, err := s.db.Exec(
		"INSERT INTO post_references (source_id, kind, target_id) VALUES (1, 'liked', 2)",
	)
	if err == nil {
		t.Error("expected CHECK constraint failure for unknown kind")
	}
}
