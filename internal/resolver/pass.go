package resolver

import (
	"fmt"

	"github.com/roach88/archivist/internal/model"
)

// postState is a post's position in the guard set of a pass.
type postState int

const (
	stateUnseen postState = iota
	stateInProgress
	stateArchived
	stateAbsent
)

// GapKind names the dependency that could not be archived.
type GapKind string

const (
	// GapAuthor: the post was stored without its author.
	GapAuthor GapKind = "author"

	// GapReference: the reference edge was dropped.
	GapReference GapKind = "reference"
)

// IntegrityGap records a dependency that could not be archived.
type IntegrityGap struct {
	Pass     string
	Kind     GapKind
	SourceID uint64              // post that needed the dependency
	TargetID uint64              // missing user or post
	RefKind  model.ReferenceKind // set for GapReference
	Reason   error
}

// String renders the gap for logs and reports.
func (g IntegrityGap) String() string {
	if g.Kind == GapReference {
		return fmt.Sprintf("post %d %s %d dropped: %v", g.SourceID, g.RefKind, g.TargetID, g.Reason)
	}
	return fmt.Sprintf("post %d author %d missing: %v", g.SourceID, g.TargetID, g.Reason)
}

// Pass is one resolution pass. It is not safe for concurrent use; concurrent
// top-level requests each get their own Pass.
type Pass struct {
	// ID correlates log lines from this pass.
	ID string

	posts       map[uint64]postState
	absentUsers map[uint64]bool
	quota       quota
	gaps        []IntegrityGap
}

func newPass(id string, maxSteps int) *Pass {
	return &Pass{
		ID:          id,
		posts:       make(map[uint64]postState),
		absentUsers: make(map[uint64]bool),
		quota:       quota{maxSteps: maxSteps},
	}
}

// Gaps returns the integrity gaps recorded so far.
func (p *Pass) Gaps() []IntegrityGap {
	return append([]IntegrityGap(nil), p.gaps...)
}

// Steps returns the number of origin fetches made so far.
func (p *Pass) Steps() int {
	return p.quota.current
}

// Visited returns the number of posts in the guard set.
func (p *Pass) Visited() int {
	return len(p.posts)
}

func (p *Pass) state(id uint64) postState {
	return p.posts[id]
}

func (p *Pass) mark(id uint64, s postState) {
	p.posts[id] = s
}

func (p *Pass) step() error {
	return p.quota.check(p.ID)
}
