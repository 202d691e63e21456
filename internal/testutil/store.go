package testutil

import (
	"testing"

	"github.com/roach88/archivist/internal/store"
)

// OpenStore opens an in-memory store that is closed when the test ends.
func OpenStore(t testing.TB) *store.Store {
	t.Helper()
	s, err := store.Open(":memory:")
	if err != nil {
		t.Fatalf("store.Open(:memory:) failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}
