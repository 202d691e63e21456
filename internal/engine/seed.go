package engine

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/archivist/internal/origin"
)

// SeedOutcome is the result of seeding one post ID.
type SeedOutcome string

const (
	SeedArchived      SeedOutcome = "archived"
	SeedAlreadyStored SeedOutcome = "already_stored"
	SeedMissing       SeedOutcome = "missing"
	SeedFailed        SeedOutcome = "failed"
)

// SeedResult describes what happened to one seeded ID.
type SeedResult struct {
	ID      uint64      `json:"id"`
	Outcome SeedOutcome `json:"outcome"`
	Gaps    int         `json:"gaps,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// SeedReport summarizes a Seed run. Results are in input order.
type SeedReport struct {
	Results       []SeedResult `json:"results"`
	Archived      int          `json:"archived"`
	AlreadyStored int          `json:"already_stored"`
	Missing       int          `json:"missing"`
	Failed        int          `json:"failed"`
	Gaps          int          `json:"gaps"`
}

// Seed archives each post in ids together with everything it references.
// Each ID runs in its own resolution pass. A failure is recorded in the
// report and does not stop the other IDs; only context cancellation is
// returned as an error.
func (e *Engine) Seed(ctx context.Context, ids []uint64) (SeedReport, error) {
	results := make([]SeedResult, len(ids))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.seedConcurrency)

	for i, id := range ids {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = e.seedOne(gctx, id)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return SeedReport{}, fmt.Errorf("seed: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return SeedReport{}, fmt.Errorf("seed: %w", err)
	}

	report := SeedReport{Results: results}
	for _, r := range results {
		switch r.Outcome {
		case SeedArchived:
			report.Archived++
		case SeedAlreadyStored:
			report.AlreadyStored++
		case SeedMissing:
			report.Missing++
		case SeedFailed:
			report.Failed++
		}
		report.Gaps += r.Gaps
	}

	e.logger.Info("seed complete",
		"ids", len(ids),
		"archived", report.Archived,
		"already_stored", report.AlreadyStored,
		"missing", report.Missing,
		"failed", report.Failed,
		"gaps", report.Gaps,
	)
	return report, nil
}

func (e *Engine) seedOne(ctx context.Context, id uint64) SeedResult {
	stored, err := e.store.HasPost(ctx, id)
	if err != nil {
		return SeedResult{ID: id, Outcome: SeedFailed, Error: err.Error()}
	}
	if stored {
		return SeedResult{ID: id, Outcome: SeedAlreadyStored}
	}

	pass := e.resolver.NewPass()
	_, err = e.resolver.ResolvePost(ctx, pass, id)
	gaps := len(pass.Gaps())
	switch {
	case err == nil:
		return SeedResult{ID: id, Outcome: SeedArchived, Gaps: gaps}
	case origin.IsNotFound(err):
		e.logger.Warn("seed post not found", "post_id", id, "pass", pass.ID)
		return SeedResult{ID: id, Outcome: SeedMissing}
	default:
		e.logger.Error("seed post failed", "post_id", id, "pass", pass.ID, "error", err)
		return SeedResult{ID: id, Outcome: SeedFailed, Gaps: gaps, Error: err.Error()}
	}
}
