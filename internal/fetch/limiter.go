package fetch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/lmcheong/eventtide/internal/metrics"
	"github.com/lmcheong/eventtide/internal/pipeline"
)

// defaultRPS applies when a source does not set requests_per_second.
const defaultRPS = 1.0

// limiter serializes requests per source. Burst is fixed at 1 so requests
// from one source are spaced at 1/rps seconds; different sources are
// unthrottled relative to each other.
type limiter struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

func newLimiter() *limiter {
	return &limiter{buckets: make(map[string]*rate.Limiter)}
}

func (l *limiter) wait(ctx context.Context, source pipeline.SourceConfig) error {
	rps := source.RequestsPerSecond
	if rps <= 0 {
		rps = defaultRPS
	}
	l.mu.Lock()
	bucket, exists := l.buckets[source.ID]
	if !exists {
		bucket = rate.NewLimiter(rate.Limit(rps), 1)
		l.buckets[source.ID] = bucket
	}
	l.mu.Unlock()

	start := time.Now()
	if err := bucket.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait: %w", err)
	}
	if waited := time.Since(start); waited > time.Millisecond {
		metrics.ObserveRateLimitDelay(source.ID, waited)
	}
	return nil
}
