package fetch

import (
	"crypto/rand"
	"errors"
	"math"
	"math/big"
	"time"

	"github.com/lmcheong/eventtide/internal/pipeline"
)

// retryPolicy implements jittered exponential backoff over the pipeline
// error taxonomy. 5xx, timeouts, network failures and 429s retry;
// 4xx/malformed responses fail immediately.
type retryPolicy struct {
	baseDelay time.Duration
	maxDelay  time.Duration
}

func newRetryPolicy(base, maxDelay time.Duration) *retryPolicy {
	if base <= 0 {
		base = 250 * time.Millisecond
	}
	if maxDelay <= 0 {
		maxDelay = 5 * time.Second
	}
	return &retryPolicy{baseDelay: base, maxDelay: maxDelay}
}

func (p *retryPolicy) shouldRetry(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, pipeline.ErrNetwork) ||
		errors.Is(err, pipeline.ErrTimeout) ||
		errors.Is(err, pipeline.ErrRateLimited)
}

func (p *retryPolicy) backoff(attempt int) time.Duration {
	delay := float64(p.baseDelay) * math.Pow(2, float64(attempt))
	if delay > float64(p.maxDelay) {
		delay = float64(p.maxDelay)
	}
	jitter := randomJitter(time.Duration(delay) / 2)
	return time.Duration(delay/2) + jitter
}

func randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	n, err := rand.Int(rand.Reader, big.NewInt(int64(limit)))
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}
