// Package memory provides in-memory store implementations for tests and
// local development.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/lmcheong/eventtide/internal/pipeline"
)

// EventStore implements pipeline.EventStore in memory.
type EventStore struct {
	mu     sync.RWMutex
	events map[string]pipeline.CanonicalEvent // keyed by source + "\x00" + sourceID
}

// NewEventStore creates an empty store.
func NewEventStore() *EventStore {
	return &EventStore{events: make(map[string]pipeline.CanonicalEvent)}
}

func key(source, sourceID string) string {
	return source + "\x00" + sourceID
}

// FindByKey returns the event for (source, sourceID) or ErrNotFound.
func (s *EventStore) FindByKey(_ context.Context, source, sourceID string) (*pipeline.CanonicalEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ev, ok := s.events[key(source, sourceID)]
	if !ok {
		return nil, pipeline.ErrNotFound
	}
	out := ev
	return &out, nil
}

// Insert stores a new event; duplicates of the upsert key fail with
// ErrUniqueViolation.
func (s *EventStore) Insert(_ context.Context, event pipeline.CanonicalEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(event.Source, event.SourceID)
	if _, exists := s.events[k]; exists {
		return fmt.Errorf("%w: (%s, %s)", pipeline.ErrUniqueViolation, event.Source, event.SourceID)
	}
	s.events[k] = event
	return nil
}

// Update overwrites the stored event for its upsert key.
func (s *EventStore) Update(_ context.Context, event pipeline.CanonicalEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := key(event.Source, event.SourceID)
	if _, exists := s.events[k]; !exists {
		return fmt.Errorf("%w: (%s, %s)", pipeline.ErrNotFound, event.Source, event.SourceID)
	}
	s.events[k] = event
	return nil
}

// DeleteStale removes events last seen before cutoff and returns the count.
func (s *EventStore) DeleteStale(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var deleted int64
	for k, ev := range s.events {
		if ev.LastSeenAt.Before(cutoff) {
			delete(s.events, k)
			deleted++
		}
	}
	return deleted, nil
}

// Close is a no-op.
func (s *EventStore) Close() {}

// Len reports the number of stored events (test helper).
func (s *EventStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.events)
}

// IngestLog implements pipeline.IngestLogStore in memory.
type IngestLog struct {
	mu      sync.Mutex
	entries []pipeline.IngestLogEntry
}

// NewIngestLog creates an empty log.
func NewIngestLog() *IngestLog {
	return &IngestLog{}
}

// Append records an entry.
func (l *IngestLog) Append(_ context.Context, entry pipeline.IngestLogEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, entry)
	return nil
}

// Entries returns a copy of the recorded entries (test helper).
func (l *IngestLog) Entries() []pipeline.IngestLogEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]pipeline.IngestLogEntry(nil), l.entries...)
}
