package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/archivist/internal/dataset"
	"github.com/roach88/archivist/internal/engine"
	"github.com/roach88/archivist/internal/metrics"
	"github.com/roach88/archivist/internal/model"
	"github.com/roach88/archivist/internal/origin"
	"github.com/roach88/archivist/internal/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testDataset() *dataset.Dataset {
	t0 := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	return &dataset.Dataset{
		Users: []model.User{
			{ID: 1, Name: "Alice", Handle: "alice"},
			{ID: 2, Name: "Bob", Handle: "bob"},
		},
		Posts: []model.Post{
			{ID: 10, AuthorID: 1, ConversationID: 10, Text: "hello world", CreatedAt: t0},
			{ID: 11, AuthorID: 2, ConversationID: 10, Text: "hello alice", CreatedAt: t0.Add(time.Minute),
				References: []model.Reference{{Kind: model.ReplyTo, ID: 10}}},
		},
	}
}

func setup(t *testing.T) (*gin.Engine, *testutil.FakeOrigin) {
	t.Helper()
	o := testutil.NewFakeOrigin(testDataset())
	e := engine.New(testutil.OpenStore(t), o, engine.WithPassIDs(testutil.NewFixedPassIDGenerator("")))
	return NewRouter(e), o
}

func get(t *testing.T, r http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	return v
}

func TestHealthz(t *testing.T) {
	r, _ := setup(t)
	assert.Equal(t, http.StatusOK, get(t, r, "/healthz").Code)
}

func TestTimeline(t *testing.T) {
	r, _ := setup(t)

	rec := get(t, r, "/v1/users/alice/timeline")
	require.Equal(t, http.StatusOK, rec.Code)
	entries := decode[[]model.Entry](t, rec)
	assert.Equal(t, []uint64{10}, model.PostIDs(entries))
	require.NotNil(t, entries[0].Author)
	assert.Equal(t, "alice", entries[0].Author.Handle)

	rec = get(t, r, "/v1/users/nobody/timeline")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestConversation(t *testing.T) {
	r, _ := setup(t)

	rec := get(t, r, "/v1/conversations/10")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []uint64{10, 11}, model.PostIDs(decode[[]model.Entry](t, rec)))

	assert.Equal(t, http.StatusBadRequest, get(t, r, "/v1/conversations/ten").Code)
}

func TestPost(t *testing.T) {
	r, _ := setup(t)

	rec := get(t, r, "/v1/posts/11")
	require.Equal(t, http.StatusOK, rec.Code)
	entry := decode[model.Entry](t, rec)
	assert.Equal(t, uint64(11), entry.Post.ID)
	assert.Equal(t, []model.Reference{{Kind: model.ReplyTo, ID: 10}}, entry.Post.References)

	rec = get(t, r, "/v1/posts/404")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Body.String(), `"not_found"`)
}

func TestUsers(t *testing.T) {
	r, _ := setup(t)

	rec := get(t, r, "/v1/users/bob")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, uint64(2), decode[model.User](t, rec).ID)

	rec = get(t, r, "/v1/users/id/1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice", decode[model.User](t, rec).Handle)

	assert.Equal(t, http.StatusNotFound, get(t, r, "/v1/users/nobody").Code)
	assert.Equal(t, http.StatusNotFound, get(t, r, "/v1/users/id/99").Code)
}

func TestSearch(t *testing.T) {
	r, _ := setup(t)
	require.Equal(t, http.StatusOK, get(t, r, "/v1/conversations/10").Code)

	rec := get(t, r, "/v1/search?q=HELLO")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []uint64{11, 10}, model.PostIDs(decode[[]model.Entry](t, rec)))

	rec = get(t, r, "/v1/search?q=hello&limit=1")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]model.Entry](t, rec), 1)

	assert.Equal(t, http.StatusBadRequest, get(t, r, "/v1/search?q=hello&limit=0").Code)
}

func TestStats(t *testing.T) {
	r, _ := setup(t)
	require.Equal(t, http.StatusOK, get(t, r, "/v1/posts/11").Code)

	rec := get(t, r, "/v1/stats")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.Stats{Users: 2, Posts: 2, Conversations: 1, References: 1}, decode[model.Stats](t, rec))
}

func TestOriginFailureIsBadGateway(t *testing.T) {
	r, o := setup(t)
	o.Fail(origin.OpFetchPost, "10", origin.Transient(origin.OpFetchPost, "10", errors.New("connection refused")))

	rec := get(t, r, "/v1/posts/10")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), string(origin.ErrCodeTransientIO))
}

func TestMetricsEndpoint(t *testing.T) {
	m := metrics.New()
	o := testutil.NewFakeOrigin(testDataset())
	e := engine.New(testutil.OpenStore(t), o, engine.WithMetrics(m))
	r := NewRouter(e, WithMetrics(m))

	require.Equal(t, http.StatusOK, get(t, r, "/v1/posts/10").Code)

	rec := get(t, r, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "archivist_http_requests_total")
	assert.Contains(t, rec.Body.String(), "archivist_cache_lookups_total")
}
