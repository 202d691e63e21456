package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/roach88/archivist/internal/dataset"
	"github.com/roach88/archivist/internal/engine"
	"github.com/roach88/archivist/internal/model"
	"github.com/roach88/archivist/internal/origin"
	"github.com/roach88/archivist/internal/store"
	"github.com/roach88/archivist/internal/testutil"
)

// Harness executes scenario steps against one engine.
type Harness struct {
	store  *store.Store
	engine *engine.Engine
	origin *testutil.FakeOrigin
	data   dataset.Dataset
}

// stepResult is what an engine step returned.
type stepResult struct {
	ids    []uint64
	found  *bool
	handle string
	seed   *engine.SeedReport
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
// Execution flow:
// 1. Create fresh in-memory database and fake origin
// 2. Execute setup steps, then forget their origin calls
// 3. Execute flow steps, recording origin calls and checking expectations
// 4. Evaluate assertions against the final archive
//
// The returned error reports a broken run (store failure, failing setup);
// unmet expectations are recorded in Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		store: st,
		data:  cloneDataset(scenario.Origin),
	}
	h.origin = testutil.NewFakeOrigin(&h.data)

	opts := []engine.Option{
		engine.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))), // Suppress logs in tests
		engine.WithPassIDs(testutil.NewFixedPassIDGenerator(scenario.PassID)),
		engine.WithSeedConcurrency(1),
	}
	if scenario.MaxSteps > 0 {
		opts = append(opts, engine.WithMaxSteps(scenario.MaxSteps))
	}
	h.engine = engine.New(st, h.origin, opts...)

	ctx := context.Background()

	for i, step := range scenario.Setup {
		if _, _, err := h.execute(ctx, step); err != nil {
			return nil, fmt.Errorf("setup[%d] %s: %w", i, step.Op, err)
		}
	}
	h.origin.Reset()

	result := NewResult()
	for i, step := range scenario.Flow {
		before := len(h.origin.Calls())
		desc, res, err := h.execute(ctx, step)

		result.Trace = append(result.Trace, TraceEvent{
			Index:   i,
			Step:    desc,
			Calls:   h.origin.Calls()[before:],
			Outcome: outcome(step, res, err),
		})

		for _, msg := range checkExpect(step, res, err) {
			result.AddError(fmt.Sprintf("flow[%d] %s: %s", i, step.Op, msg))
		}
	}

	actx := &AssertionContext{Store: st, Ctx: ctx}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}

	return result, nil
}

// execute runs one step and returns its trace description.
func (h *Harness) execute(ctx context.Context, step Step) (string, stepResult, error) {
	var res stepResult

	switch step.Op {
	case OpTimeline:
		entries, err := h.engine.Timeline(ctx, step.Handle)
		res.ids = model.PostIDs(entries)
		return "timeline @" + step.Handle, res, err

	case OpConversation:
		entries, err := h.engine.Conversation(ctx, step.ID)
		res.ids = model.PostIDs(entries)
		return fmt.Sprintf("conversation %d", step.ID), res, err

	case OpPost:
		e, found, err := h.engine.Post(ctx, step.ID)
		res.found = &found
		if found {
			res.ids = []uint64{e.Post.ID}
		}
		return fmt.Sprintf("post %d", step.ID), res, err

	case OpUser:
		u, found, err := h.engine.User(ctx, step.ID)
		res.found = &found
		res.handle = u.Handle
		return fmt.Sprintf("user %d", step.ID), res, err

	case OpUserByHandle:
		u, found, err := h.engine.UserByHandle(ctx, step.Handle)
		res.found = &found
		res.handle = u.Handle
		return "user_by_handle @" + step.Handle, res, err

	case OpSearch:
		entries, err := h.engine.Search(ctx, step.Query, step.Limit)
		res.ids = model.PostIDs(entries)
		desc := fmt.Sprintf("search %q", step.Query)
		if step.Limit > 0 {
			desc += fmt.Sprintf(" limit %d", step.Limit)
		}
		return desc, res, err

	case OpSeed:
		report, err := h.engine.Seed(ctx, step.IDs)
		res.seed = &report
		return fmt.Sprintf("seed %v", step.IDs), res, err

	case OpPublish:
		h.data.Users = append(h.data.Users, step.Users...)
		h.data.Posts = append(h.data.Posts, step.Posts...)
		if err := h.data.Validate(); err != nil {
			return "publish", res, err
		}
		h.origin.SetDataset(&h.data)
		return fmt.Sprintf("publish %d users, %d posts", len(step.Users), len(step.Posts)), res, nil

	case OpRetract:
		h.data.Posts = slices.DeleteFunc(h.data.Posts, func(p model.Post) bool {
			return slices.Contains(step.IDs, p.ID)
		})
		h.origin.SetDataset(&h.data)
		return fmt.Sprintf("retract %v", step.IDs), res, nil

	case OpFail:
		f := *step.Fail
		err, ferr := failureError(f)
		if ferr != nil {
			return "fail", res, ferr
		}
		if f.Times > 0 {
			h.origin.FailTimes(f.Call, f.Target, f.Times, err)
		} else {
			h.origin.Fail(f.Call, f.Target, err)
		}
		return describeFailure(f), res, nil

	default:
		return step.Op, res, fmt.Errorf("unknown op %q", step.Op)
	}
}

// failureError builds the origin error a fail step injects. err reports
// an unknown code.
func failureError(f Failure) (injected error, err error) {
	cause := errors.New("injected failure")
	switch f.Code {
	case "transient":
		return origin.Transient(f.Call, f.Target, cause), nil
	case "malformed":
		return origin.Malformed(f.Call, f.Target, cause), nil
	case "not_found":
		return origin.NotFound(f.Call, f.Target), nil
	default:
		return nil, fmt.Errorf("fail: unknown code %q (want transient, malformed or not_found)", f.Code)
	}
}

func describeFailure(f Failure) string {
	target := f.Target
	if target == "" {
		target = "*"
	}
	times := "always"
	if f.Times > 0 {
		times = fmt.Sprintf("x%d", f.Times)
	}
	return fmt.Sprintf("fail %s %s %s %s", f.Call, target, f.Code, times)
}

// outcome renders a step result for the trace.
func outcome(step Step, res stepResult, err error) string {
	if err != nil {
		var oe *origin.Error
		if errors.As(err, &oe) {
			return "error " + string(oe.Code)
		}
		return "error: " + err.Error()
	}

	switch step.Op {
	case OpTimeline, OpConversation, OpSearch:
		return fmt.Sprint(nonNil(res.ids))
	case OpPost:
		if !*res.found {
			return "absent"
		}
		return fmt.Sprint(res.ids[0])
	case OpUser, OpUserByHandle:
		if !*res.found {
			return "absent"
		}
		return "@" + res.handle
	case OpSeed:
		r := res.seed
		return fmt.Sprintf("archived=%d already_stored=%d missing=%d failed=%d gaps=%d",
			r.Archived, r.AlreadyStored, r.Missing, r.Failed, r.Gaps)
	default:
		return "ok"
	}
}

// checkExpect compares a step result with its expectation.
func checkExpect(step Step, res stepResult, err error) []string {
	exp := step.Expect
	if exp == nil {
		if err != nil {
			return []string{fmt.Sprintf("unexpected error: %v", err)}
		}
		return nil
	}

	if exp.Error != "" {
		var oe *origin.Error
		switch {
		case err == nil:
			return []string{fmt.Sprintf("expected error %s, got success", exp.Error)}
		case !errors.As(err, &oe):
			return []string{fmt.Sprintf("expected error %s, got %v", exp.Error, err)}
		case string(oe.Code) != exp.Error:
			return []string{fmt.Sprintf("expected error %s, got %s", exp.Error, oe.Code)}
		}
		return nil
	}
	if err != nil {
		return []string{fmt.Sprintf("unexpected error: %v", err)}
	}

	var errs []string
	if exp.Posts != nil && !slices.Equal(exp.Posts, res.ids) {
		errs = append(errs, fmt.Sprintf("expected posts %v, got %v", exp.Posts, nonNil(res.ids)))
	}
	if exp.Empty && len(res.ids) > 0 {
		errs = append(errs, fmt.Sprintf("expected no posts, got %v", res.ids))
	}
	if exp.Found != nil {
		if res.found == nil {
			errs = append(errs, "found does not apply to "+step.Op)
		} else if *exp.Found != *res.found {
			errs = append(errs, fmt.Sprintf("expected found=%t, got %t", *exp.Found, *res.found))
		}
	}
	if exp.Handle != "" && exp.Handle != res.handle {
		errs = append(errs, fmt.Sprintf("expected handle %q, got %q", exp.Handle, res.handle))
	}
	if exp.Seed != nil {
		if res.seed == nil {
			errs = append(errs, "seed does not apply to "+step.Op)
		} else {
			got := SeedCounts{
				Archived:      res.seed.Archived,
				AlreadyStored: res.seed.AlreadyStored,
				Missing:       res.seed.Missing,
				Failed:        res.seed.Failed,
				Gaps:          res.seed.Gaps,
			}
			if got != *exp.Seed {
				errs = append(errs, fmt.Sprintf("expected seed %+v, got %+v", *exp.Seed, got))
			}
		}
	}
	return errs
}

func cloneDataset(ds dataset.Dataset) dataset.Dataset {
	return dataset.Dataset{
		Users: slices.Clone(ds.Users),
		Posts: slices.Clone(ds.Posts),
	}
}

func nonNil(ids []uint64) []uint64 {
	if ids == nil {
		return []uint64{}
	}
	return ids
}
