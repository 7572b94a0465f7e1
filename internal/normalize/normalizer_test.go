package normalize

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lmcheong/eventtide/internal/pipeline"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func testSource() pipeline.SourceConfig {
	return pipeline.SourceConfig{
		ID:           "mgto",
		Name:         "Macao Government Tourism Office",
		URL:          "https://www.mgto.gov.mo/en/events",
		Timezone:     "Asia/Macau",
		Country:      "Macau",
		City:         "Macau",
		DefaultVenue: "Macau",
		Organizer:    "MGTO",
		Tags:         []string{"macau"},
	}
}

func TestNormalizeCompleteEvent(t *testing.T) {
	t.Parallel()

	clk := fixedClock{now: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)}
	n := New(clk, nil)

	raw := pipeline.RawEvent{
		SourceID:    "events/123",
		Title:       "International Fireworks Display Contest",
		Description: "Annual fireworks contest over Macau Tower.",
		DateText:    "27-28 September 2025",
		Venue:       "Macau Tower",
		TicketURL:   "https://tickets.example.com/fw",
		Price:       "MOP 150",
	}
	ev := n.Normalize(raw, testSource())
	require.NotNil(t, ev)

	macau, err := time.LoadLocation("Asia/Macau")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 9, 27, 0, 0, 0, 0, macau).UTC(), ev.StartTimeUTC)
	assert.Equal(t, time.Date(2025, 9, 29, 0, 0, 0, 0, macau).UTC(), ev.EndTimeUTC)
	assert.Equal(t, "mgto", ev.Source)
	assert.Equal(t, "events/123", ev.SourceID)
	assert.Equal(t, "Asia/Macau", ev.Timezone)
	assert.Equal(t, "Macau Tower", ev.VenueName)
	assert.Equal(t, clk.now, ev.LastSeenAt)
	assert.Contains(t, ev.LongDescription, "Price: MOP 150")
	assert.Contains(t, ev.LongDescription, "Tickets: https://tickets.example.com/fw")
	assert.NotEmpty(t, ev.ID)
}

func TestNormalizeDropsIncomplete(t *testing.T) {
	t.Parallel()

	n := New(fixedClock{now: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)}, nil)
	src := testSource()

	// Missing title.
	assert.Nil(t, n.Normalize(pipeline.RawEvent{SourceID: "x", DateText: "15 March 2026"}, src))
	// Missing source-local id.
	assert.Nil(t, n.Normalize(pipeline.RawEvent{Title: "Show", DateText: "15 March 2026"}, src))
	// Unparseable date.
	assert.Nil(t, n.Normalize(pipeline.RawEvent{SourceID: "x", Title: "Show", DateText: "every weekend"}, src))
}

func TestNormalizeDropsLowConfidence(t *testing.T) {
	t.Parallel()

	n := New(fixedClock{now: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)}, nil)
	raw := pipeline.RawEvent{
		SourceID:      "x",
		Title:         "Something happening soon",
		Start:         time.Date(2025, 6, 2, 0, 0, 0, 0, time.UTC),
		LowConfidence: true,
	}
	assert.Nil(t, n.Normalize(raw, testSource()))
}

func TestNormalizePreParsedInstantWins(t *testing.T) {
	t.Parallel()

	n := New(fixedClock{now: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)}, nil)
	start := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
	raw := pipeline.RawEvent{
		SourceID: "x",
		Title:    "Concert",
		DateText: "15 March 2026", // ignored in favor of the parsed instant
		Start:    start,
	}
	ev := n.Normalize(raw, testSource())
	require.NotNil(t, ev)
	assert.Equal(t, start, ev.StartTimeUTC)
	assert.Equal(t, start.Add(2*time.Hour), ev.EndTimeUTC)
}

func TestNormalizeDefaultsFromSource(t *testing.T) {
	t.Parallel()

	n := New(fixedClock{now: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)}, nil)
	src := testSource()
	raw := pipeline.RawEvent{
		SourceID: "x",
		Title:    "Concert in the Park",
		DateText: "15 March 2026",
	}
	ev := n.Normalize(raw, src)
	require.NotNil(t, ev)
	assert.Equal(t, src.DefaultVenue, ev.VenueName)
	assert.Equal(t, src.City, ev.City)
	assert.Equal(t, src.Country, ev.Country)
	assert.Equal(t, src.Organizer, ev.OrganizerName)
	assert.Equal(t, src.URL, ev.ExternalURL)
	assert.Contains(t, ev.Categories, "music")
	assert.Contains(t, ev.Tags, "macau")
}

func TestNormalizeDistinctIDsPerDomain(t *testing.T) {
	t.Parallel()

	n := New(fixedClock{now: time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)}, nil)
	raw := pipeline.RawEvent{
		SourceID: "x",
		Title:    "Jacky Cheung Live",
		DateText: "15 March 2026",
		Venue:    "Galaxy Arena",
	}

	a := testSource()
	b := testSource()
	b.ID = "galaxy"
	b.URL = "https://www.galaxymacau.com/events"

	evA := n.Normalize(raw, a)
	evB := n.Normalize(raw, b)
	require.NotNil(t, evA)
	require.NotNil(t, evB)
	assert.NotEqual(t, evA.ID, evB.ID)
}
