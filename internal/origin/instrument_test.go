package origin_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/archivist/internal/dataset"
	"github.com/roach88/archivist/internal/metrics"
	"github.com/roach88/archivist/internal/model"
	"github.com/roach88/archivist/internal/origin"
	"github.com/roach88/archivist/internal/testutil"
)

func TestInstrument_RecordsOutcomes(t *testing.T) {
	fake := testutil.NewFakeOrigin(&dataset.Dataset{
		Users: []model.User{{ID: 1, Name: "Alice", Handle: "alice"}},
	})
	m := metrics.New()
	o := origin.Instrument(fake, m)
	ctx := context.Background()

	_, err := o.FetchUser(ctx, 1)
	require.NoError(t, err)
	_, err = o.FetchUser(ctx, 2)
	require.True(t, origin.IsNotFound(err))
	_, err = o.FetchTimeline(ctx, "alice")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()

	assert.Contains(t, body, `archivist_origin_requests_total{op="fetch_user",outcome="ok"} 1`)
	assert.Contains(t, body, `archivist_origin_requests_total{op="fetch_user",outcome="not_found"} 1`)
	assert.Contains(t, body, `archivist_origin_requests_total{op="fetch_timeline",outcome="ok"} 1`)

	// Calls pass straight through.
	assert.Equal(t, 3, len(fake.Calls()))
}

func TestInstrument_NilMetrics(t *testing.T) {
	fake := testutil.NewFakeOrigin(nil)
	assert.Same(t, fake, origin.Instrument(fake, nil))
}
