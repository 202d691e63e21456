package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/archivist/internal/testutil"
)

// TraceEvent is one flow step: what was asked, which origin calls it made
// and what came back.
type TraceEvent struct {
	Index   int
	Step    string
	Calls   []testutil.Call
	Outcome string
}

// Result is the outcome of a scenario execution.
type Result struct {
	// Pass is true if every expectation and assertion held.
	Pass bool

	// Trace has one event per flow step, in order.
	Trace []TraceEvent

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Calls returns every origin call made during the flow.
func (r *Result) Calls() []testutil.Call {
	var calls []testutil.Call
	for _, ev := range r.Trace {
		calls = append(calls, ev.Calls...)
	}
	return calls
}

// Render formats the trace as the text stored in golden files.
func (r *Result) Render(name string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "scenario: %s\n", name)
	for _, ev := range r.Trace {
		fmt.Fprintf(&b, "\nflow[%d] %s\n", ev.Index, ev.Step)
		for _, c := range ev.Calls {
			fmt.Fprintf(&b, "  %d %s\n", c.Seq, c)
		}
		fmt.Fprintf(&b, "  => %s\n", ev.Outcome)
	}
	return b.String()
}
