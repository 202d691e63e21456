package origin

import (
	"context"
	"time"

	"github.com/roach88/archivist/internal/metrics"
	"github.com/roach88/archivist/internal/model"
)

// instrumented wraps an Origin, recording request counts by outcome and
// latency for every call.
type instrumented struct {
	next Origin
	m    *metrics.Metrics
}

// Instrument returns an Origin that records every call to m before
// delegating to next. A nil m returns next unchanged.
func Instrument(next Origin, m *metrics.Metrics) Origin {
	if m == nil {
		return next
	}
	return &instrumented{next: next, m: m}
}

func (o *instrumented) observe(op string, start time.Time, err error) {
	o.m.ObserveOrigin(op, Outcome(err), start)
}

func (o *instrumented) FetchUser(ctx context.Context, id uint64) (u model.User, err error) {
	defer func(start time.Time) { o.observe(OpFetchUser, start, err) }(time.Now())
	return o.next.FetchUser(ctx, id)
}

func (o *instrumented) FetchUserByHandle(ctx context.Context, handle string) (u model.User, err error) {
	defer func(start time.Time) { o.observe(OpFetchUserByHandle, start, err) }(time.Now())
	return o.next.FetchUserByHandle(ctx, handle)
}

func (o *instrumented) FetchPost(ctx context.Context, id uint64) (p model.Post, err error) {
	defer func(start time.Time) { o.observe(OpFetchPost, start, err) }(time.Now())
	return o.next.FetchPost(ctx, id)
}

func (o *instrumented) FetchTimeline(ctx context.Context, handle string) (posts []model.Post, err error) {
	defer func(start time.Time) { o.observe(OpFetchTimeline, start, err) }(time.Now())
	return o.next.FetchTimeline(ctx, handle)
}

func (o *instrumented) FetchConversation(ctx context.Context, rootID uint64) (posts []model.Post, err error) {
	defer func(start time.Time) { o.observe(OpFetchConversation, start, err) }(time.Now())
	return o.next.FetchConversation(ctx, rootID)
}

func (o *instrumented) FetchPostsSince(ctx context.Context, handle string, since time.Time) (posts []model.Post, err error) {
	defer func(start time.Time) { o.observe(OpFetchPostsSince, start, err) }(time.Now())
	return o.next.FetchPostsSince(ctx, handle, since)
}

func (o *instrumented) HasPostedSince(ctx context.Context, handle string, since time.Time) (posted bool, err error) {
	defer func(start time.Time) { o.observe(OpHasPostedSince, start, err) }(time.Now())
	return o.next.HasPostedSince(ctx, handle, since)
}
