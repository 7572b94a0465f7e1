package pipeline

import (
	"context"
	"time"
)

// Fetcher retrieves the HTML for a source page, applying rate limiting,
// retry, and optional headless escalation.
type Fetcher interface {
	Fetch(ctx context.Context, source SourceConfig, url string) (FetchResult, error)
}

// Renderer loads a page in a headless browser and returns the rendered DOM.
type Renderer interface {
	Render(ctx context.Context, url string, waitSelector string) (string, error)
}

// Extractor turns fetched HTML into raw events for one source.
type Extractor interface {
	Extract(ctx context.Context, html string, source SourceConfig) ([]RawEvent, error)
}

// AIExtractor is an optional structured-extraction capability. Implementations
// are untrusted and best-effort; results are validated at the boundary.
type AIExtractor interface {
	Available() bool
	Extract(ctx context.Context, pageText string, source SourceConfig) ([]RawEvent, error)
}

// EventStore persists canonical events keyed by (source, sourceID).
type EventStore interface {
	FindByKey(ctx context.Context, source, sourceID string) (*CanonicalEvent, error)
	Insert(ctx context.Context, event CanonicalEvent) error
	Update(ctx context.Context, event CanonicalEvent) error
	DeleteStale(ctx context.Context, cutoff time.Time) (int64, error)
	Close()
}

// IngestLogStore appends operational log entries for source runs.
type IngestLogStore interface {
	Append(ctx context.Context, entry IngestLogEntry) error
}

// BlobStore archives raw page snapshots and returns a URI.
type BlobStore interface {
	Put(ctx context.Context, key string, contentType string, data []byte) (string, error)
}

// Publisher pushes run-completion summaries to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}
