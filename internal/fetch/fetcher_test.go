package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lmcheong/eventtide/internal/pipeline"
)

const eventPage = `<html><body>
<ul>
<li class="event"><h3>Concert A</h3></li>
<li class="event"><h3>Concert B</h3></li>
<li class="event"><h3>Concert C</h3></li>
</ul>
</body></html>`

func fastConfig() Config {
	return Config{
		UserAgent:      "eventtide-test",
		Timeout:        5 * time.Second,
		MaxRetries:     3,
		BackoffInitial: 2 * time.Millisecond,
		BackoffMax:     10 * time.Millisecond,
	}
}

func source(id string, rps float64) pipeline.SourceConfig {
	return pipeline.SourceConfig{ID: id, RequestsPerSecond: rps}
}

func TestFetchSuccess(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(eventPage))
	}))
	defer srv.Close()

	f := New(fastConfig(), nil, nil, nil)
	res, err := f.Fetch(context.Background(), source("s", 100), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, string(res.Body), "Concert A")
	assert.False(t, res.Rendered)
}

func TestFetchRetriesServerErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(eventPage))
	}))
	defer srv.Close()

	f := New(fastConfig(), nil, nil, nil)
	res, err := f.Fetch(context.Background(), source("s", 100), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.Contains(t, string(res.Body), "Concert A")
}

func TestFetchExhaustsRetryBudget(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	cfg := fastConfig()
	cfg.MaxRetries = 2
	f := New(cfg, nil, nil, nil)
	_, err := f.Fetch(context.Background(), source("s", 100), srv.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, pipeline.ErrNetwork)
	// The first attempt plus two retries.
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetchClientErrorFailsFast(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	f := New(fastConfig(), nil, nil, nil)
	_, err := f.Fetch(context.Background(), source("s", 100), srv.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, pipeline.ErrInvalidResponse)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetchTooManyRequestsIsRetryable(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(eventPage))
	}))
	defer srv.Close()

	f := New(fastConfig(), nil, nil, nil)
	_, err := f.Fetch(context.Background(), source("s", 100), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetchEmptyBodyIsInvalid(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	f := New(fastConfig(), nil, nil, nil)
	_, err := f.Fetch(context.Background(), source("s", 100), srv.URL)
	assert.ErrorIs(t, err, pipeline.ErrInvalidResponse)
}

func TestFetchPacesRequestsPerSource(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(eventPage))
	}))
	defer srv.Close()

	f := New(fastConfig(), nil, nil, nil)
	src := source("paced", 20) // 50ms spacing

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := f.Fetch(context.Background(), src, srv.URL)
		require.NoError(t, err)
	}
	// Three requests at 20 rps cannot complete faster than two spacings.
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
}

type stubRenderer struct {
	html string
	err  error
}

func (r stubRenderer) Render(context.Context, string, string) (string, error) {
	return r.html, r.err
}

func TestFetchEscalatesToRenderer(t *testing.T) {
	t.Parallel()

	// A shell page with an SPA marker and no discoverable content.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><body><div id="root"></div><script>boot()</script></body></html>`))
	}))
	defer srv.Close()

	f := New(fastConfig(), NewDetector(2048, 3), stubRenderer{html: eventPage}, nil)
	src := source("spa", 100)
	src.ScriptRendered = true

	res, err := f.Fetch(context.Background(), src, srv.URL)
	require.NoError(t, err)
	assert.True(t, res.Rendered)
	assert.Contains(t, string(res.Body), "Concert A")
}

func TestFetchKeepsStaticBodyWhenRenderFails(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><body><div id="root"></div></body></html>`))
	}))
	defer srv.Close()

	f := New(fastConfig(), NewDetector(2048, 3), stubRenderer{err: pipeline.ErrNetwork}, nil)
	src := source("spa", 100)
	src.ScriptRendered = true

	res, err := f.Fetch(context.Background(), src, srv.URL)
	require.NoError(t, err)
	assert.False(t, res.Rendered)
	assert.Contains(t, string(res.Body), "root")
}

func TestFetchSkipsRendererWhenStaticSufficient(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(eventPage))
	}))
	defer srv.Close()

	f := New(fastConfig(), NewDetector(10, 3), stubRenderer{html: "<html>rendered</html>"}, nil)
	src := source("spa", 100)
	src.ScriptRendered = true

	res, err := f.Fetch(context.Background(), src, srv.URL)
	require.NoError(t, err)
	assert.False(t, res.Rendered)
}
