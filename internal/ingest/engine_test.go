package ingest

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lmcheong/eventtide/internal/pipeline"
	"github.com/lmcheong/eventtide/internal/storage/memory"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func event(sourceID, title string) pipeline.CanonicalEvent {
	return pipeline.CanonicalEvent{
		ID:           "v1-" + sourceID,
		Source:       "mgto",
		SourceID:     sourceID,
		Title:        title,
		StartTimeUTC: time.Date(2025, 9, 27, 16, 0, 0, 0, time.UTC),
		EndTimeUTC:   time.Date(2025, 9, 27, 18, 0, 0, 0, time.UTC),
		Categories:   []string{"music"},
	}
}

func TestIngestAddsThenUpdates(t *testing.T) {
	t.Parallel()

	store := memory.NewEventStore()
	now := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
	e := New(store, memory.NewIngestLog(), fixedClock{now: now}, 10, nil)

	events := []pipeline.CanonicalEvent{event("e1", "Concert"), event("e2", "Exhibition")}

	first := e.Ingest(context.Background(), events)
	assert.Equal(t, 2, first.Processed)
	assert.Equal(t, 2, first.Added)
	assert.Equal(t, 0, first.Updated)
	assert.Empty(t, first.Errors)

	// Re-ingesting the same events must be idempotent: every row updates.
	second := e.Ingest(context.Background(), events)
	assert.Equal(t, 2, second.Processed)
	assert.Equal(t, 0, second.Added)
	assert.Equal(t, 2, second.Updated)
	assert.Equal(t, 2, store.Len())
}

func TestIngestPreservesIDOnUpdate(t *testing.T) {
	t.Parallel()

	store := memory.NewEventStore()
	e := New(store, nil, fixedClock{now: time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)}, 10, nil)

	original := event("e1", "Concert")
	e.Ingest(context.Background(), []pipeline.CanonicalEvent{original})

	changed := original
	changed.ID = "v1-different"
	changed.Description = "new description"
	e.Ingest(context.Background(), []pipeline.CanonicalEvent{changed})

	got, err := store.FindByKey(context.Background(), "mgto", "e1")
	require.NoError(t, err)
	assert.Equal(t, original.ID, got.ID)
	assert.Equal(t, "new description", got.Description)
}

func TestIngestRefreshesLastSeen(t *testing.T) {
	t.Parallel()

	store := memory.NewEventStore()
	now := time.Date(2025, 10, 1, 12, 0, 0, 0, time.UTC)
	e := New(store, nil, fixedClock{now: now}, 10, nil)

	ev := event("e1", "Concert")
	ev.LastSeenAt = now.AddDate(0, 0, -40)
	e.Ingest(context.Background(), []pipeline.CanonicalEvent{ev})

	got, err := store.FindByKey(context.Background(), "mgto", "e1")
	require.NoError(t, err)
	assert.Equal(t, now, got.LastSeenAt)
}

func TestIngestBatchesLargeInput(t *testing.T) {
	t.Parallel()

	store := memory.NewEventStore()
	e := New(store, nil, fixedClock{now: time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)}, 3, nil)

	var events []pipeline.CanonicalEvent
	for i := 0; i < 10; i++ {
		events = append(events, event(string(rune('a'+i)), "Event"))
	}
	result := e.Ingest(context.Background(), events)
	assert.Equal(t, 10, result.Processed)
	assert.Equal(t, 10, result.Added)
	assert.Equal(t, 10, store.Len())
}

func TestEvictStaleBoundary(t *testing.T) {
	t.Parallel()

	store := memory.NewEventStore()
	now := time.Date(2025, 10, 31, 0, 0, 0, 0, time.UTC)
	e := New(store, nil, fixedClock{now: now}, 10, nil)

	old := event("old", "Gone")
	old.LastSeenAt = now.AddDate(0, 0, -31)
	recent := event("recent", "Kept")
	recent.LastSeenAt = now.AddDate(0, 0, -29)
	require.NoError(t, store.Insert(context.Background(), old))
	require.NoError(t, store.Insert(context.Background(), recent))

	deleted, err := e.EvictStale(context.Background(), 30)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, err = store.FindByKey(context.Background(), "mgto", "old")
	assert.ErrorIs(t, err, pipeline.ErrNotFound)
	_, err = store.FindByKey(context.Background(), "mgto", "recent")
	assert.NoError(t, err)
}

func TestMarkStartedAndFinished(t *testing.T) {
	t.Parallel()

	log := memory.NewIngestLog()
	e := New(memory.NewEventStore(), log, fixedClock{now: time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)}, 10, nil)

	ctx := context.Background()
	e.MarkStarted(ctx, "mgto")
	e.MarkFinished(ctx, "mgto", 5, nil)
	e.MarkStarted(ctx, "galaxy")
	e.MarkFinished(ctx, "galaxy", 0, assert.AnError)

	entries := log.Entries()
	require.Len(t, entries, 4)
	assert.Equal(t, pipeline.IngestStarted, entries[0].Status)
	assert.Equal(t, pipeline.IngestSuccess, entries[1].Status)
	assert.Contains(t, entries[1].Message, "5 events")
	assert.Equal(t, pipeline.IngestFailed, entries[3].Status)
}
