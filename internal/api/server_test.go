package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lmcheong/eventtide/internal/config"
	"github.com/lmcheong/eventtide/internal/coordinator"
	"github.com/lmcheong/eventtide/internal/pipeline"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type stubRunner struct {
	outcome coordinator.Outcome
	gotIDs  []string
}

func (r *stubRunner) RunAll(_ context.Context, sources []pipeline.SourceConfig) coordinator.Outcome {
	r.gotIDs = nil
	for _, s := range sources {
		r.gotIDs = append(r.gotIDs, s.ID)
	}
	return r.outcome
}

func testConfig() config.Config {
	return config.Config{
		Server: config.ServerConfig{Port: 8080},
		Sources: []pipeline.SourceConfig{
			{ID: "mgto", URL: "http://a", Active: true},
			{ID: "galaxy", URL: "http://b", Active: true},
			{ID: "dormant", URL: "http://c", Active: false},
		},
	}
}

func cleanOutcome(events int) coordinator.Outcome {
	out := coordinator.Outcome{}
	for i := 0; i < events; i++ {
		out.Report.Events = append(out.Report.Events, pipeline.CanonicalEvent{})
	}
	out.Report.SourcesOK = 2
	out.Report.Duration = 1500 * time.Millisecond
	out.Ingest = pipeline.IngestResult{Processed: events, Added: events}
	return out
}

func doScrape(t *testing.T, srv *Server, target string, header http.Header) (*httptest.ResponseRecorder, scrapeResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, target, nil)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	var resp scrapeResponse
	if rec.Code == http.StatusOK || rec.Code == http.StatusMultiStatus || rec.Code == http.StatusInternalServerError {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func TestScrapeCleanRun(t *testing.T) {
	t.Parallel()

	runner := &stubRunner{outcome: cleanOutcome(3)}
	srv := NewServer(runner, fixedClock{now: time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)}, testConfig(), nil)

	rec, resp := doScrape(t, srv, "/v1/scrape", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, resp.Success)
	assert.Equal(t, 3, resp.EventsProcessed)
	assert.Equal(t, 3, resp.EventsAdded)
	assert.Equal(t, "1.5s", resp.ExecutionTime)
	assert.NotNil(t, resp.Errors)
	assert.Empty(t, resp.Errors)
	// Only active sources reach the runner.
	assert.Equal(t, []string{"mgto", "galaxy"}, runner.gotIDs)
}

func TestScrapePartialFailure(t *testing.T) {
	t.Parallel()

	outcome := cleanOutcome(2)
	outcome.Report.SourcesFailed = 1
	outcome.Report.Errors = []pipeline.SourceError{{SourceID: "galaxy", Message: "fetch failed"}}
	srv := NewServer(&stubRunner{outcome: outcome}, fixedClock{}, testConfig(), nil)

	rec, resp := doScrape(t, srv, "/v1/scrape", nil)
	assert.Equal(t, http.StatusMultiStatus, rec.Code)
	assert.True(t, resp.Success)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "galaxy", resp.Errors[0].SourceID)
}

func TestScrapeTotalFailure(t *testing.T) {
	t.Parallel()

	outcome := coordinator.Outcome{}
	outcome.Report.SourcesFailed = 2
	outcome.Report.Errors = []pipeline.SourceError{
		{SourceID: "mgto", Message: "fetch failed"},
		{SourceID: "galaxy", Message: "fetch failed"},
	}
	srv := NewServer(&stubRunner{outcome: outcome}, fixedClock{}, testConfig(), nil)

	rec, resp := doScrape(t, srv, "/v1/scrape", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.False(t, resp.Success)
	assert.Len(t, resp.Errors, 2)
}

func TestScrapeSourceFilter(t *testing.T) {
	t.Parallel()

	runner := &stubRunner{outcome: cleanOutcome(1)}
	srv := NewServer(runner, fixedClock{}, testConfig(), nil)

	rec, _ := doScrape(t, srv, "/v1/scrape?sources=galaxy", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"galaxy"}, runner.gotIDs)

	// An inactive or unknown id leaves nothing to run.
	rec, _ = doScrape(t, srv, "/v1/scrape?sources=dormant", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestScrapeBearerAuth(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.Auth = config.AuthConfig{Enabled: true, BearerToken: "sekrit"}
	srv := NewServer(&stubRunner{outcome: cleanOutcome(1)}, fixedClock{}, cfg, nil)

	rec, _ := doScrape(t, srv, "/v1/scrape", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = doScrape(t, srv, "/v1/scrape", http.Header{"Authorization": {"Bearer wrong"}})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = doScrape(t, srv, "/v1/scrape", http.Header{"Authorization": {"Bearer sekrit"}})
	assert.Equal(t, http.StatusOK, rec.Code)

	// Health probes stay open.
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	open := httptest.NewRecorder()
	srv.Handler().ServeHTTP(open, req)
	assert.Equal(t, http.StatusOK, open.Code)
}

func TestHealthAndReady(t *testing.T) {
	t.Parallel()

	srv := NewServer(&stubRunner{}, fixedClock{}, testConfig(), nil)
	for _, path := range []string{"/healthz", "/readyz"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, path)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	}
}

func TestRequestIDHeader(t *testing.T) {
	t.Parallel()

	srv := NewServer(&stubRunner{}, fixedClock{}, testConfig(), nil)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}
