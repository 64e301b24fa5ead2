package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greyotoc/tickerwatch/internal/store"
	"github.com/greyotoc/tickerwatch/pkg/source"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	db, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	seed := []struct {
		item    source.Item
		tickers []string
	}{
		{source.Item{PostID: "p1", Subreddit: "stocks", CreatedAt: 100}, []string{"GME", "AAPL"}},
		{source.Item{PostID: "p1", CommentID: "c1", Subreddit: "stocks", CreatedAt: 200}, []string{"GME"}},
	}
	for _, s := range seed {
		_, err := db.RecordMentions(ctx, s.item, s.tickers)
		require.NoError(t, err)
	}

	srv := httptest.NewServer(New(db, 0).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, url string, out any) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	return resp
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)

	var body map[string]string
	resp := getJSON(t, srv.URL+"/health", &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}

func TestRanked(t *testing.T) {
	srv := newTestServer(t)

	var body struct {
		Data  []store.TickerCount `json:"data"`
		Count int                 `json:"count"`
	}
	resp := getJSON(t, srv.URL+"/api/v1/ranked", &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.Equal(t, 2, body.Count)
	assert.Equal(t, store.TickerCount{Ticker: "GME", Count: 2}, body.Data[0])
	assert.Equal(t, store.TickerCount{Ticker: "AAPL", Count: 1}, body.Data[1])
}

func TestRanked_SinceFilters(t *testing.T) {
	srv := newTestServer(t)

	var body struct {
		Data []store.TickerCount `json:"data"`
	}
	getJSON(t, srv.URL+"/api/v1/ranked?since=100", &body)

	// Only the t=200 comment mention survives since=100.
	require.Len(t, body.Data, 1)
	assert.Equal(t, store.TickerCount{Ticker: "GME", Count: 1}, body.Data[0])
}

func TestRanked_Limit(t *testing.T) {
	srv := newTestServer(t)

	var body struct {
		Data []store.TickerCount `json:"data"`
	}
	getJSON(t, srv.URL+"/api/v1/ranked?limit=1", &body)
	require.Len(t, body.Data, 1)
	assert.Equal(t, "GME", body.Data[0].Ticker)
}

func TestRanked_BadSince(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/ranked?since=yesterday")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMentions(t *testing.T) {
	srv := newTestServer(t)

	var body struct {
		Data  []store.Mention `json:"data"`
		Count int             `json:"count"`
	}
	resp := getJSON(t, srv.URL+"/api/v1/mentions?ticker=GME", &body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	require.Equal(t, 2, body.Count)
	// Newest first.
	assert.Equal(t, "c1", body.Data[0].CommentID)
	assert.Equal(t, int64(200), body.Data[0].MentionedAt)
	assert.Equal(t, "", body.Data[1].CommentID)
}

func TestMentions_RequiresTicker(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/api/v1/mentions")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/api/v1/ranked", "application/json", nil)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
