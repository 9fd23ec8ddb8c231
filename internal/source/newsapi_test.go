package source

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const activityResponse = `{
	"recentActivityArticles": {
		"activity": [
			{
				"title": "Protests swell downtown",
				"body": "Thousands gathered in the city center.",
				"url": "https://example.com/protests",
				"image": "https://example.com/protests.jpg",
				"dateTimePub": "2026-03-14T10:30:00Z",
				"location": {"label": {"eng": "Paris, France"}},
				"source": {"title": "Example Wire", "ranking": {"importanceRank": 10}}
			},
			{
				"title": "Transit fares frozen",
				"body": "",
				"url": "https://example.com/fares",
				"location": {"label": {"eng": "Paris"}},
				"source": {"title": "Example Wire"}
			}
		]
	}
}`

func TestNewsAPIFetch(t *testing.T) {
	var gotQuery url.Values
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.Query()
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, activityResponse)
	}))
	defer srv.Close()

	c := NewNewsAPIClient(srv.URL, "test-key", 5*time.Second, discardLogger())

	since := time.Now().Add(-2 * time.Hour)
	raws, err := c.Fetch(context.Background(), "Paris", since)
	require.NoError(t, err)
	require.Len(t, raws, 2)

	assert.Equal(t, "test-key", gotQuery.Get("apiKey"))
	assert.Contains(t, gotQuery.Get("query"), "http://en.wikipedia.org/wiki/Paris")
	assert.NotEmpty(t, gotQuery.Get("recentActivityArticlesUpdatesAfterMinsAgo"))

	first := raws[0]
	assert.Equal(t, "Protests swell downtown", first.Title)
	assert.Equal(t, "Paris, France", first.Location)
	assert.Equal(t, "https://example.com/protests", first.URL)
	assert.Equal(t, time.Date(2026, time.March, 14, 10, 30, 0, 0, time.UTC), first.PublishedAt)
	assert.Equal(t, 3.0, first.SourceWeight, "rank 10 source counts triple")

	second := raws[1]
	assert.True(t, second.PublishedAt.IsZero(), "missing timestamps stay zero for ingestion-time default")
	assert.Equal(t, 1.0, second.SourceWeight, "unranked source falls back to weight 1")
}

func TestNewsAPIFetch_QueryCityURI(t *testing.T) {
	var query string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query().Get("query")
		io.WriteString(w, `{"recentActivityArticles":{"activity":[]}}`)
	}))
	defer srv.Close()

	c := NewNewsAPIClient(srv.URL, "k", time.Second, discardLogger())
	_, err := c.Fetch(context.Background(), "New York City", time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Contains(t, query, "http://en.wikipedia.org/wiki/New_York_City")
}

func TestNewsAPIFetch_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		wantErr error
	}{
		{name: "throttled", status: http.StatusTooManyRequests, wantErr: ErrRateLimited},
		{name: "server error", status: http.StatusInternalServerError, wantErr: ErrSourceUnavailable},
		{name: "auth failure", status: http.StatusUnauthorized, wantErr: ErrSourceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			c := NewNewsAPIClient(srv.URL, "k", time.Second, discardLogger())
			_, err := c.Fetch(context.Background(), "Paris", time.Now().Add(-time.Hour))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestNewsAPIFetch_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused

	c := NewNewsAPIClient(srv.URL, "k", time.Second, discardLogger())
	_, err := c.Fetch(context.Background(), "Paris", time.Now().Add(-time.Hour))
	assert.ErrorIs(t, err, ErrSourceUnavailable)
}

func TestRankWeight(t *testing.T) {
	assert.Equal(t, 1.0, rankWeight(0))
	assert.Equal(t, 1.0, rankWeight(-5))
	assert.Equal(t, 3.0, rankWeight(1))
	assert.Equal(t, 3.0, rankWeight(10))
	assert.InDelta(t, 2.0, rankWeight(100), 0.01)
	assert.Equal(t, 1.0, rankWeight(1_000_000))
}
