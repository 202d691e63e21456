// Package testutil provides fakes and helpers shared by tests.
package testutil

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/roach88/archivist/internal/dataset"
	"github.com/roach88/archivist/internal/model"
	"github.com/roach88/archivist/internal/origin"
)

// Call is one recorded origin call.
type Call struct {
	Seq    int64  // 1-based, in call order
	Op     string // one of the origin.Op* constants
	Target string // same rendering the HTTP client uses in errors
}

// String renders the call as "<op> <target>".
func (c Call) String() string {
	return c.Op + " " + c.Target
}

// FakeOrigin is an in-memory origin.Origin backed by a dataset.Index.
//
// It records every call, so tests can assert exactly which remote queries an
// operation issued, and it can be told to fail specific calls.
//
// Thread-safety: all methods are safe for concurrent use.
type FakeOrigin struct {
	mu       sync.Mutex
	idx      *dataset.Index
	seq      int64
	calls    []Call
	failures map[string]*failure
}

type failure struct {
	err       error
	remaining int // < 0 means forever
}

// NewFakeOrigin creates a fake serving ds. A nil ds serves nothing.
func NewFakeOrigin(ds *dataset.Dataset) *FakeOrigin {
	if ds == nil {
		ds = &dataset.Dataset{}
	}
	return &FakeOrigin{
		idx:      dataset.NewIndex(ds),
		failures: make(map[string]*failure),
	}
}

// SetDataset replaces the served data, e.g. to simulate new posts upstream.
func (f *FakeOrigin) SetDataset(ds *dataset.Dataset) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.idx = dataset.NewIndex(ds)
}

// Fail makes every call matching op and target return err.
// An empty target matches every call to op.
func (f *FakeOrigin) Fail(op, target string, err error) {
	f.FailTimes(op, target, -1, err)
}

// FailTimes makes the next n calls matching op and target return err.
func (f *FakeOrigin) FailTimes(op, target string, n int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failures[op+" "+target] = &failure{err: err, remaining: n}
}

// Calls returns the recorded calls in order.
func (f *FakeOrigin) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Call(nil), f.calls...)
}

// CallCount returns how many calls were made to op.
func (f *FakeOrigin) CallCount(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c.Op == op {
			n++
		}
	}
	return n
}

// Trace renders the recorded calls one per line.
func (f *FakeOrigin) Trace() string {
	var b strings.Builder
	for _, c := range f.Calls() {
		b.WriteString(c.String())
		b.WriteByte('\n')
	}
	return b.String()
}

// Reset forgets recorded calls and restarts call numbering. Injected
// failures are kept.
func (f *FakeOrigin) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
	f.seq = 0
}

// record logs a call and returns the index to answer from, or an injected
// failure.
func (f *FakeOrigin) record(op, target string) (*dataset.Index, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.seq++
	f.calls = append(f.calls, Call{Seq: f.seq, Op: op, Target: target})

	for _, key := range []string{op + " " + target, op + " "} {
		fl, ok := f.failures[key]
		if !ok || fl.remaining == 0 {
			continue
		}
		if fl.remaining > 0 {
			fl.remaining--
		}
		return nil, fl.err
	}
	return f.idx, nil
}

// FetchUser implements origin.Origin.
func (f *FakeOrigin) FetchUser(_ context.Context, id uint64) (model.User, error) {
	target := formatID(id)
	idx, err := f.record(origin.OpFetchUser, target)
	if err != nil {
		return model.User{}, err
	}
	u, ok := idx.User(id)
	if !ok {
		return model.User{}, origin.NotFound(origin.OpFetchUser, target)
	}
	return u, nil
}

// FetchUserByHandle implements origin.Origin.
func (f *FakeOrigin) FetchUserByHandle(_ context.Context, handle string) (model.User, error) {
	target := "@" + handle
	idx, err := f.record(origin.OpFetchUserByHandle, target)
	if err != nil {
		return model.User{}, err
	}
	u, ok := idx.UserByHandle(handle)
	if !ok {
		return model.User{}, origin.NotFound(origin.OpFetchUserByHandle, target)
	}
	return u, nil
}

// FetchPost implements origin.Origin.
func (f *FakeOrigin) FetchPost(_ context.Context, id uint64) (model.Post, error) {
	target := formatID(id)
	idx, err := f.record(origin.OpFetchPost, target)
	if err != nil {
		return model.Post{}, err
	}
	p, ok := idx.Post(id)
	if !ok {
		return model.Post{}, origin.NotFound(origin.OpFetchPost, target)
	}
	return p, nil
}

// FetchTimeline implements origin.Origin.
func (f *FakeOrigin) FetchTimeline(_ context.Context, handle string) ([]model.Post, error) {
	target := "@" + handle
	idx, err := f.record(origin.OpFetchTimeline, target)
	if err != nil {
		return nil, err
	}
	posts, ok := idx.Timeline(handle)
	if !ok {
		return nil, origin.NotFound(origin.OpFetchTimeline, target)
	}
	return posts, nil
}

// FetchConversation implements origin.Origin.
func (f *FakeOrigin) FetchConversation(_ context.Context, rootID uint64) ([]model.Post, error) {
	idx, err := f.record(origin.OpFetchConversation, formatID(rootID))
	if err != nil {
		return nil, err
	}
	return idx.Conversation(rootID), nil
}

// FetchPostsSince implements origin.Origin.
func (f *FakeOrigin) FetchPostsSince(_ context.Context, handle string, since time.Time) ([]model.Post, error) {
	target := sinceTarget(handle, since)
	idx, err := f.record(origin.OpFetchPostsSince, target)
	if err != nil {
		return nil, err
	}
	posts, ok := idx.PostsSince(handle, since.Truncate(time.Second))
	if !ok {
		return nil, origin.NotFound(origin.OpFetchPostsSince, target)
	}
	return posts, nil
}

// HasPostedSince implements origin.Origin.
func (f *FakeOrigin) HasPostedSince(_ context.Context, handle string, since time.Time) (bool, error) {
	target := sinceTarget(handle, since)
	idx, err := f.record(origin.OpHasPostedSince, target)
	if err != nil {
		return false, err
	}
	posted, ok := idx.HasPostedSince(handle, since.Truncate(time.Second))
	if !ok {
		return false, origin.NotFound(origin.OpHasPostedSince, target)
	}
	return posted, nil
}

func formatID(id uint64) string {
	return strconv.FormatUint(id, 10)
}

func sinceTarget(handle string, since time.Time) string {
	return fmt.Sprintf("@%s since %s", handle, model.FormatTimestamp(since))
}

var _ origin.Origin = (*FakeOrigin)(nil)
