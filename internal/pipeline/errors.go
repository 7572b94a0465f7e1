package pipeline

import "errors"

// Error kinds shared across the pipeline. Callers classify with errors.Is.
var (
	// ErrNetwork covers connection and transport failures.
	ErrNetwork = errors.New("network error")
	// ErrTimeout covers deadline and navigation timeouts; retryable.
	ErrTimeout = errors.New("timeout")
	// ErrInvalidResponse covers 4xx statuses and malformed bodies; not retryable.
	ErrInvalidResponse = errors.New("invalid response")
	// ErrRateLimited is returned on HTTP 429; retryable after backoff.
	ErrRateLimited = errors.New("rate limit exceeded")
	// ErrParse means no extraction strategy understood the page.
	ErrParse = errors.New("no extraction strategy matched")
	// ErrAIExtraction covers failures of the optional AI capability.
	ErrAIExtraction = errors.New("ai extraction failed")
	// ErrConfiguration marks a missing optional capability credential.
	ErrConfiguration = errors.New("capability not configured")
	// ErrUniqueViolation is an idempotent no-op at the storage level.
	ErrUniqueViolation = errors.New("unique constraint violation")
	// ErrNotFound is returned by store lookups that match nothing.
	ErrNotFound = errors.New("not found")
)
