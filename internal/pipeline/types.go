// Package pipeline defines core types shared across subsystems.
package pipeline

import (
	"time"
)

// RawEvent is the unnormalized, source-specific record produced by an
// extraction stage. It lives only for the duration of one fetch cycle.
type RawEvent struct {
	SourceID    string
	Title       string
	Description string
	DateText    string
	Start       time.Time
	End         time.Time
	Venue       string
	City        string
	DetailURL   string
	TicketURL   string
	ImageURL    string
	Price       string
	Categories  []string

	// LowConfidence marks events produced by the minimal-fallback stage,
	// whose dates are synthetic placeholders. The normalizer refuses to
	// persist a dated event from a low-confidence raw.
	LowConfidence bool
}

// Interval is a UTC event interval resolved from free-form date text.
// A zero Start means the text was unparseable; that is a definitive
// non-result, never a guess.
type Interval struct {
	Start time.Time
	End   time.Time
}

// Valid reports whether the interval carries a usable start instant.
func (iv Interval) Valid() bool {
	return !iv.Start.IsZero()
}

// CanonicalEvent is the persisted, cross-source event schema.
// (Source, SourceID) is the upsert key.
type CanonicalEvent struct {
	ID              string    `json:"id"`
	Source          string    `json:"source"`
	SourceID        string    `json:"source_id"`
	Title           string    `json:"title"`
	Description     string    `json:"description"`
	LongDescription string    `json:"long_description"`
	StartTimeUTC    time.Time `json:"start_time_utc"`
	EndTimeUTC      time.Time `json:"end_time_utc"`
	Timezone        string    `json:"timezone"`
	VenueName       string    `json:"venue_name"`
	City            string    `json:"city"`
	Country         string    `json:"country"`
	Lat             float64   `json:"lat"`
	Lng             float64   `json:"lng"`
	Categories      []string  `json:"categories"`
	Tags            []string  `json:"tags"`
	ImageURL        string    `json:"image_url"`
	OrganizerName   string    `json:"organizer_name"`
	ExternalURL     string    `json:"external_url"`
	LastSeenAt      time.Time `json:"last_seen_at"`
}

// SourceConfig describes one external listing and how to scrape it.
// It is read-only input to the coordinator.
type SourceConfig struct {
	ID                   string   `mapstructure:"id"`
	Name                 string   `mapstructure:"name"`
	URL                  string   `mapstructure:"url"`
	Active               bool     `mapstructure:"active"`
	RequestsPerSecond    float64  `mapstructure:"requests_per_second"`
	MaxRetries           int      `mapstructure:"max_retries"`
	ScriptRendered       bool     `mapstructure:"script_rendered"`
	WaitSelector         string   `mapstructure:"wait_selector"`
	Timezone             string   `mapstructure:"timezone"`
	Country              string   `mapstructure:"country"`
	City                 string   `mapstructure:"city"`
	DefaultVenue         string   `mapstructure:"default_venue"`
	Organizer            string   `mapstructure:"organizer"`
	ContainerSelectors   []string `mapstructure:"container_selectors"`
	TitleSelectors       []string `mapstructure:"title_selectors"`
	DateSelectors        []string `mapstructure:"date_selectors"`
	DescriptionSelectors []string `mapstructure:"description_selectors"`
	VenueSelectors       []string `mapstructure:"venue_selectors"`
	ImageSelectors       []string `mapstructure:"image_selectors"`
	TicketSelectors      []string `mapstructure:"ticket_selectors"`
	Tags                 []string `mapstructure:"tags"`
	FetchDetails         bool     `mapstructure:"fetch_details"`
	AIPrompt             string   `mapstructure:"ai_prompt"`
}

// IngestStatus is the lifecycle state recorded in the ingestion log.
type IngestStatus string

// Ingestion log status values.
const (
	IngestStarted IngestStatus = "started"
	IngestSuccess IngestStatus = "success"
	IngestFailed  IngestStatus = "failed"
)

// IngestLogEntry is an append-only operational record of one source run.
// It is never consulted for correctness.
type IngestLogEntry struct {
	SourceID string       `json:"source_id"`
	Status   IngestStatus `json:"status"`
	Message  string       `json:"message"`
	At       time.Time    `json:"at"`
}

// SourceError records one failed source pipeline without failing the run.
type SourceError struct {
	SourceID string `json:"source_id"`
	Message  string `json:"message"`
}

// RunReport aggregates the outcome of one coordinator run.
type RunReport struct {
	RunID         string           `json:"run_id"`
	StartedAt     time.Time        `json:"started_at"`
	Duration      time.Duration    `json:"duration"`
	Events        []CanonicalEvent `json:"-"`
	Errors        []SourceError    `json:"errors"`
	SourcesOK     int              `json:"sources_ok"`
	SourcesFailed int              `json:"sources_failed"`
	TotalFound    int              `json:"total_found"`
}

// Success reports whether the run counts as successful: at least one source
// produced events, or no source errored at all.
func (r RunReport) Success() bool {
	return len(r.Events) > 0 || len(r.Errors) == 0
}

// IngestResult summarizes one IngestionEngine pass.
type IngestResult struct {
	Processed int      `json:"processed"`
	Added     int      `json:"added"`
	Updated   int      `json:"updated"`
	Errors    []string `json:"errors"`
}

// FetchResult is the outcome of a single page fetch.
type FetchResult struct {
	URL        string
	StatusCode int
	Body       []byte
	Rendered   bool
	Duration   time.Duration
}
