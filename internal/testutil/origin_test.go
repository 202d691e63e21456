package testutil

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/archivist/internal/dataset"
	"github.com/roach88/archivist/internal/model"
	"github.com/roach88/archivist/internal/origin"
)

func fakeData() *dataset.Dataset {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return &dataset.Dataset{
		Users: []model.User{{ID: 1, Name: "Alice", Handle: "alice"}},
		Posts: []model.Post{
			{ID: 10, AuthorID: 1, ConversationID: 10, Text: "a", CreatedAt: t0},
			{ID: 11, AuthorID: 1, ConversationID: 10, Text: "b", CreatedAt: t0.Add(time.Minute)},
		},
	}
}

func TestFakeOrigin_RecordsCalls(t *testing.T) {
	f := NewFakeOrigin(fakeData())
	ctx := context.Background()

	_, err := f.FetchUserByHandle(ctx, "alice")
	require.NoError(t, err)
	_, err = f.FetchPost(ctx, 10)
	require.NoError(t, err)
	_, err = f.HasPostedSince(ctx, "alice", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	calls := f.Calls()
	require.Len(t, calls, 3)
	assert.Equal(t, int64(1), calls[0].Seq)
	assert.Equal(t, int64(3), calls[2].Seq)
	assert.Equal(t, "fetch_user_by_handle @alice\nfetch_post 10\nhas_posted_since @alice since 2024-01-01T00:00:00+00:00\n", f.Trace())
	assert.Equal(t, 1, f.CallCount(origin.OpFetchPost))

	f.Reset()
	assert.Empty(t, f.Calls())
	_, _ = f.FetchPost(ctx, 10)
	assert.Equal(t, int64(1), f.Calls()[0].Seq)
}

func TestFakeOrigin_NotFound(t *testing.T) {
	f := NewFakeOrigin(fakeData())
	ctx := context.Background()

	_, err := f.FetchPost(ctx, 99)
	assert.True(t, origin.IsNotFound(err))

	_, err = f.FetchUser(ctx, 2)
	assert.True(t, origin.IsNotFound(err))

	_, err = f.FetchTimeline(ctx, "bob")
	assert.True(t, origin.IsNotFound(err))

	posts, err := f.FetchConversation(ctx, 99)
	require.NoError(t, err)
	assert.Empty(t, posts)
}

func TestFakeOrigin_InjectedFailures(t *testing.T) {
	f := NewFakeOrigin(fakeData())
	ctx := context.Background()
	boom := origin.Transient(origin.OpFetchPost, "10", errors.New("boom"))

	f.FailTimes(origin.OpFetchPost, "10", 1, boom)

	_, err := f.FetchPost(ctx, 10)
	assert.True(t, origin.IsTransient(err))
	_, err = f.FetchPost(ctx, 10)
	assert.NoError(t, err, "failure should be consumed after one call")

	f.Fail(origin.OpFetchUser, "", boom)
	_, err = f.FetchUser(ctx, 1)
	assert.Error(t, err)
	_, err = f.FetchUser(ctx, 1)
	assert.Error(t, err)
}

func TestFakeOrigin_SetDataset(t *testing.T) {
	f := NewFakeOrigin(nil)
	ctx := context.Background()

	_, err := f.FetchPost(ctx, 10)
	assert.True(t, origin.IsNotFound(err))

	f.SetDataset(fakeData())
	_, err = f.FetchPost(ctx, 10)
	assert.NoError(t, err)
}

func TestOpenStore(t *testing.T) {
	s := OpenStore(t)
	ok, err := s.HasPost(context.Background(), 1)
	require.NoError(t, err)
	assert.False(t, ok)
}
