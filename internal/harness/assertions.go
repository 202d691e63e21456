package harness

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/archivist/internal/store"
)

// AssertionContext provides what assertions need to inspect the archive.
type AssertionContext struct {
	Store *store.Store
	Ctx   context.Context
}

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
	Trace    []TraceEvent
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nOrigin calls:\n")
		for _, ev := range e.Trace {
			for _, c := range ev.Calls {
				fmt.Fprintf(&buf, "  [%d] %s (flow[%d])\n", c.Seq, c, ev.Index)
			}
		}
	}

	return buf.String()
}

// EvaluateAssertions checks every assertion and returns one message per
// failure.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		if err := evaluate(result, a, actx); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %v", i, err))
		}
	}
	return errs
}

func evaluate(result *Result, a Assertion, actx *AssertionContext) error {
	switch a.Type {
	case AssertOriginCalls:
		return assertOriginCalls(result, a)
	case AssertStoredPosts:
		return assertStoredPosts(actx, a)
	case AssertStats:
		return assertStats(actx, a)
	case AssertReferences:
		return assertReferences(actx, a)
	case AssertConversationComplete:
		return assertConversationComplete(actx, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

// assertOriginCalls checks how often the flow called one origin operation.
func assertOriginCalls(result *Result, a Assertion) error {
	n := 0
	for _, c := range result.Calls() {
		if c.Op == a.Call {
			n++
		}
	}
	if n == a.Count {
		return nil
	}
	return &AssertionError{
		Type:     AssertOriginCalls,
		Expected: fmt.Sprintf("%d %s calls", a.Count, a.Call),
		Actual:   fmt.Sprintf("%d calls", n),
		Trace:    result.Trace,
	}
}

// assertStoredPosts checks the exact set of stored post IDs.
func assertStoredPosts(actx *AssertionContext, a Assertion) error {
	dump, err := actx.Store.ReadAll(actx.Ctx)
	if err != nil {
		return err
	}

	got := make([]uint64, len(dump.Posts))
	for i, p := range dump.Posts {
		got[i] = p.ID
	}
	want := slices.Sorted(slices.Values(a.IDs))
	if want == nil {
		want = []uint64{}
	}
	if slices.Equal(got, want) {
		return nil
	}
	return &AssertionError{
		Type:     AssertStoredPosts,
		Expected: fmt.Sprint(want),
		Actual:   fmt.Sprint(got),
	}
}

// assertStats checks store record counts.
func assertStats(actx *AssertionContext, a Assertion) error {
	got, err := actx.Store.Stats(actx.Ctx)
	if err != nil {
		return err
	}
	if got == *a.Stats {
		return nil
	}
	return &AssertionError{
		Type:     AssertStats,
		Expected: fmt.Sprintf("%+v", *a.Stats),
		Actual:   fmt.Sprintf("%+v", got),
	}
}

// assertReferences checks the stored outgoing edges of one post, ignoring
// order.
func assertReferences(actx *AssertionContext, a Assertion) error {
	edges, err := actx.Store.References(actx.Ctx, a.Source)
	if err != nil {
		return err
	}

	got := make([]string, len(edges))
	for i, e := range edges {
		got[i] = fmt.Sprintf("%s %d", e.Kind, e.TargetID)
	}
	want := make([]string, len(a.Edges))
	for i, r := range a.Edges {
		want[i] = fmt.Sprintf("%s %d", r.Kind, r.ID)
	}
	slices.Sort(got)
	slices.Sort(want)

	if slices.Equal(got, want) {
		return nil
	}
	return &AssertionError{
		Type:     AssertReferences,
		Expected: fmt.Sprintf("post %d -> %v", a.Source, want),
		Actual:   fmt.Sprintf("post %d -> %v", a.Source, got),
	}
}

// assertConversationComplete checks the conversation completeness marker.
func assertConversationComplete(actx *AssertionContext, a Assertion) error {
	got, err := actx.Store.ConversationComplete(actx.Ctx, a.Conversation)
	if err != nil {
		return err
	}
	if got == a.Complete {
		return nil
	}
	return &AssertionError{
		Type:     AssertConversationComplete,
		Expected: fmt.Sprintf("conversation %d complete=%t", a.Conversation, a.Complete),
		Actual:   fmt.Sprintf("complete=%t", got),
	}
}

