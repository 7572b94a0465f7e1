// Package fetch implements the rate-limited, retrying page fetcher.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/lmcheong/eventtide/internal/metrics"
	"github.com/lmcheong/eventtide/internal/pipeline"
)

// Config controls fetcher behavior.
type Config struct {
	UserAgent      string
	Timeout        time.Duration
	MaxRetries     int
	BackoffInitial time.Duration
	BackoffMax     time.Duration
}

// Fetcher implements pipeline.Fetcher using a Colly collector per request,
// per-source request pacing, bounded retry, and optional headless escalation.
type Fetcher struct {
	cfg           Config
	limiter       *limiter
	retry         *retryPolicy
	detector      *Detector
	renderer      pipeline.Renderer
	baseCollector *colly.Collector
	logger        *zap.Logger
}

// New builds a Fetcher. renderer may be nil when headless escalation is
// disabled; detector may be nil to accept any body.
func New(cfg Config, detector *Detector, renderer pipeline.Renderer, logger *zap.Logger) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := colly.NewCollector(colly.Async(false))
	c.WithTransport(newHTTPTransport())

	return &Fetcher{
		cfg:           cfg,
		limiter:       newLimiter(),
		retry:         newRetryPolicy(cfg.BackoffInitial, cfg.BackoffMax),
		detector:      detector,
		renderer:      renderer,
		baseCollector: c,
		logger:        logger,
	}
}

// Fetch retrieves url for the given source. Requests from one source pass
// through the pacing bucket in FIFO order; retryable failures back off
// exponentially up to the source's retry budget.
func (f *Fetcher) Fetch(ctx context.Context, source pipeline.SourceConfig, url string) (pipeline.FetchResult, error) {
	maxRetries := source.MaxRetries
	if maxRetries <= 0 {
		maxRetries = f.cfg.MaxRetries
	}

	var (
		result pipeline.FetchResult
		err    error
	)
	for attempt := 0; ; attempt++ {
		if waitErr := f.limiter.wait(ctx, source); waitErr != nil {
			return pipeline.FetchResult{}, fmt.Errorf("%w: %v", pipeline.ErrTimeout, waitErr)
		}
		result, err = f.fetchOnce(ctx, url)
		if err == nil {
			metrics.ObserveFetch(source.ID, "ok", result.Duration)
			break
		}
		metrics.ObserveFetch(source.ID, "error", result.Duration)
		if !f.retry.shouldRetry(err) || attempt >= maxRetries {
			return pipeline.FetchResult{}, err
		}
		delay := f.retry.backoff(attempt)
		f.logger.Warn("fetch retry",
			zap.String("source", source.ID),
			zap.String("url", url),
			zap.Int("attempt", attempt+1),
			zap.Duration("backoff", delay),
			zap.Error(err))
		if sleepErr := sleep(ctx, delay); sleepErr != nil {
			return pipeline.FetchResult{}, fmt.Errorf("%w: %v", pipeline.ErrTimeout, sleepErr)
		}
	}

	return f.maybeEscalate(ctx, source, url, result), nil
}

// maybeEscalate re-fetches through the headless renderer when the static
// body fails the content-sufficiency check and the source is flagged
// script-rendered. Render failures keep the static body.
func (f *Fetcher) maybeEscalate(
	ctx context.Context,
	source pipeline.SourceConfig,
	url string,
	result pipeline.FetchResult,
) pipeline.FetchResult {
	if f.renderer == nil || !source.ScriptRendered {
		return result
	}
	if f.detector != nil && f.detector.Sufficient(result.Body) {
		return result
	}
	start := time.Now()
	html, err := f.renderer.Render(ctx, url, source.WaitSelector)
	if err != nil {
		f.logger.Warn("headless render failed, keeping static body",
			zap.String("source", source.ID),
			zap.String("url", url),
			zap.Error(err))
		return result
	}
	result.Body = []byte(html)
	result.Rendered = true
	result.Duration += time.Since(start)
	return result
}

func (f *Fetcher) fetchOnce(ctx context.Context, url string) (pipeline.FetchResult, error) {
	collector := f.baseCollector.Clone()
	if f.cfg.UserAgent != "" {
		collector.UserAgent = f.cfg.UserAgent
	}
	collector.IgnoreRobotsTxt = true
	collector.SetRequestTimeout(f.cfg.Timeout)

	var (
		result   pipeline.FetchResult
		fetchErr error
	)
	start := time.Now()
	collector.OnResponse(func(r *colly.Response) {
		result = pipeline.FetchResult{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
	})
	collector.OnError(func(r *colly.Response, err error) {
		status := 0
		if r != nil {
			status = r.StatusCode
		}
		fetchErr = classify(status, err)
		result.Duration = time.Since(start)
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()
	select {
	case <-ctx.Done():
		return result, fmt.Errorf("%w: fetch canceled: %v", pipeline.ErrTimeout, ctx.Err())
	case visitErr := <-done:
		if fetchErr != nil {
			return result, fetchErr
		}
		if visitErr != nil {
			return result, classify(0, visitErr)
		}
	}
	if len(result.Body) == 0 {
		return result, fmt.Errorf("%w: empty body from %s", pipeline.ErrInvalidResponse, url)
	}
	return result, nil
}

// classify maps an HTTP status and transport error onto the error taxonomy.
func classify(status int, err error) error {
	switch {
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: status %d", pipeline.ErrRateLimited, status)
	case status >= 500:
		return fmt.Errorf("%w: status %d", pipeline.ErrNetwork, status)
	case status >= 400:
		return fmt.Errorf("%w: status %d", pipeline.ErrInvalidResponse, status)
	}
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", pipeline.ErrTimeout, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", pipeline.ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", pipeline.ErrNetwork, err)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
