package resolver

import (
	"errors"
	"fmt"
)

// DefaultMaxSteps is the default maximum number of origin fetches per pass.
// It bounds the work a single post can trigger when the origin returns a
// long chain of references.
const DefaultMaxSteps = 1000

// quota counts origin fetches within a pass.
type quota struct {
	maxSteps int
	current  int
}

// check increments the step counter and validates against the limit.
// Once exceeded, every later check fails too.
func (q *quota) check(pass string) error {
	q.current++
	if q.current > q.maxSteps {
		return &StepsExceededError{
			Pass:  pass,
			Steps: q.current,
			Limit: q.maxSteps,
		}
	}
	return nil
}

// StepsExceededError is the reason recorded on an IntegrityGap when a pass
// runs out of origin fetches.
type StepsExceededError struct {
	Pass  string // The pass that exceeded the quota
	Steps int    // Number of steps attempted
	Limit int    // Maximum allowed steps
}

// Error implements the error interface.
func (e *StepsExceededError) Error() string {
	return fmt.Sprintf("pass %s exceeded max steps quota: %d steps > %d limit",
		e.Pass, e.Steps, e.Limit)
}

// IsStepsExceededError returns true if the error is a StepsExceededError.
// Uses errors.As to handle wrapped errors.
func IsStepsExceededError(err error) bool {
	var se *StepsExceededError
	return errors.As(err, &se)
}
