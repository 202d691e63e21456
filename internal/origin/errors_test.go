package origin

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorHelpers(t *testing.T) {
	cause := errors.New("connection reset")

	tests := []struct {
		name    string
		err     error
		outcome string
	}{
		{"nil", nil, "ok"},
		{"not found", NotFound(OpFetchPost, "1"), "not_found"},
		{"transient", Transient(OpFetchPost, "1", cause), "transient"},
		{"malformed", Malformed(OpFetchPost, "1", cause), "malformed"},
		{"wrapped", fmt.Errorf("resolve: %w", NotFound(OpFetchUser, "2")), "not_found"},
		{"foreign", cause, "error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.outcome, Outcome(tt.err))
		})
	}
}

func TestError_Message(t *testing.T) {
	err := Transient(OpFetchTimeline, "@alice", errors.New("timeout"))
	assert.Equal(t, "TRANSIENT_IO: fetch_timeline @alice: timeout", err.Error())
	assert.Equal(t, "NOT_FOUND: fetch_post 7", NotFound(OpFetchPost, "7").Error())
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("boom")
	err := fmt.Errorf("outer: %w", Malformed(OpFetchPost, "1", cause))
	assert.ErrorIs(t, err, cause)
	assert.True(t, IsMalformed(err))
	assert.False(t, IsTransient(err))
}
