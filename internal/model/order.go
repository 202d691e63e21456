package model

import (
	"cmp"
	"slices"
)

// SortNewestFirst orders posts by creation time descending, ties by ID descending.
func SortNewestFirst(posts []Post) {
	slices.SortStableFunc(posts, func(a, b Post) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(b.ID, a.ID)
	})
}

// SortOldestFirst orders posts by creation time ascending, ties by ID ascending.
func SortOldestFirst(posts []Post) {
	slices.SortStableFunc(posts, func(a, b Post) int {
		if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

// PostIDs returns the IDs of entries in order.
func PostIDs(entries []Entry) []uint64 {
	ids := make([]uint64, len(entries))
	for i, e := range entries {
		ids[i] = e.Post.ID
	}
	return ids
}
