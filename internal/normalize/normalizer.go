// Package normalize maps raw extracted events onto the canonical schema.
package normalize

import (
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lmcheong/eventtide/internal/dateparse"
	"github.com/lmcheong/eventtide/internal/hash/stableid"
	"github.com/lmcheong/eventtide/internal/pipeline"
)

// defaultDuration applies when an event carries a start but no end.
const defaultDuration = 2 * time.Hour

// Normalizer turns RawEvents into CanonicalEvents, or drops them.
type Normalizer struct {
	clock  pipeline.Clock
	logger *zap.Logger
}

// New builds a Normalizer.
func New(clock pipeline.Clock, logger *zap.Logger) *Normalizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Normalizer{clock: clock, logger: logger}
}

// Normalize returns nil when the raw event cannot become a complete
// canonical event: missing title or source-local id, unparseable date, or a
// fabricated (low-confidence) start. Never a partial CanonicalEvent.
func (n *Normalizer) Normalize(raw pipeline.RawEvent, source pipeline.SourceConfig) *pipeline.CanonicalEvent {
	if strings.TrimSpace(raw.Title) == "" || strings.TrimSpace(raw.SourceID) == "" {
		return nil
	}

	interval := n.interval(raw, source)
	if !interval.Valid() {
		n.logger.Debug("dropping event without start",
			zap.String("source", source.ID), zap.String("title", raw.Title))
		return nil
	}
	if raw.LowConfidence {
		// A fallback-stage placeholder must never be persisted as a real
		// start time.
		n.logger.Debug("dropping low-confidence dated event",
			zap.String("source", source.ID), zap.String("title", raw.Title))
		return nil
	}

	venue := raw.Venue
	if venue == "" {
		venue = source.DefaultVenue
	}
	lat, lng := coordinates(source.ID, venue)
	categories := raw.Categories
	if len(categories) == 0 {
		categories = deriveCategories(raw.Title, raw.Description)
	}

	city := raw.City
	if city == "" {
		city = source.City
	}
	externalURL := raw.DetailURL
	if externalURL == "" {
		externalURL = source.URL
	}
	tz := source.Timezone
	if tz == "" {
		tz = "UTC"
	}

	return &pipeline.CanonicalEvent{
		ID:              stableid.EventID(raw.Title, interval.Start, venue, domain(source.URL)),
		Source:          source.ID,
		SourceID:        raw.SourceID,
		Title:           strings.TrimSpace(raw.Title),
		Description:     strings.TrimSpace(raw.Description),
		LongDescription: longDescription(raw),
		StartTimeUTC:    interval.Start,
		EndTimeUTC:      interval.End,
		Timezone:        tz,
		VenueName:       venue,
		City:            city,
		Country:         source.Country,
		Lat:             lat,
		Lng:             lng,
		Categories:      categories,
		Tags:            mergeTags(source.Tags, categories),
		ImageURL:        raw.ImageURL,
		OrganizerName:   source.Organizer,
		ExternalURL:     externalURL,
		LastSeenAt:      n.clock.Now(),
	}
}

// interval resolves the event interval: pre-parsed instants win, then the
// date text is parsed in the source timezone.
func (n *Normalizer) interval(raw pipeline.RawEvent, source pipeline.SourceConfig) pipeline.Interval {
	if !raw.Start.IsZero() {
		end := raw.End
		if end.IsZero() {
			end = raw.Start.Add(defaultDuration)
		}
		return pipeline.Interval{Start: raw.Start.UTC(), End: end.UTC()}
	}
	tz := source.Timezone
	if tz == "" {
		tz = "UTC"
	}
	return dateparse.ParseIn(raw.DateText, tz, n.clock.Now())
}

// longDescription folds the ticket URL into the long-form text; it is not a
// distinct persisted field.
func longDescription(raw pipeline.RawEvent) string {
	desc := strings.TrimSpace(raw.Description)
	if raw.Price != "" {
		if desc != "" {
			desc += "\n"
		}
		desc += "Price: " + raw.Price
	}
	if raw.TicketURL != "" {
		if desc != "" {
			desc += "\n"
		}
		desc += "Tickets: " + raw.TicketURL
	}
	return desc
}

func domain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return rawURL
	}
	return u.Hostname()
}
