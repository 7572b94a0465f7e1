// Package ingest upserts normalized events into the store and evicts stale
// records.
package ingest

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/lmcheong/eventtide/internal/metrics"
	"github.com/lmcheong/eventtide/internal/pipeline"
)

// defaultBatchSize bounds storage load per round trip burst.
const defaultBatchSize = 10

// Engine implements the ingestion pass over normalized events.
type Engine struct {
	store     pipeline.EventStore
	log       pipeline.IngestLogStore
	clock     pipeline.Clock
	batchSize int
	logger    *zap.Logger
}

// New builds an Engine.
func New(store pipeline.EventStore, log pipeline.IngestLogStore, clock pipeline.Clock, batchSize int, logger *zap.Logger) *Engine {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{store: store, log: log, clock: clock, batchSize: batchSize, logger: logger}
}

// Ingest processes events in fixed-size batches. Per event: update when the
// (source, sourceID) key exists, insert otherwise. An insert racing another
// writer into a unique violation counts as an update, not an error. Per-event
// failures are recorded and never abort the remaining batch.
func (e *Engine) Ingest(ctx context.Context, events []pipeline.CanonicalEvent) pipeline.IngestResult {
	var result pipeline.IngestResult
	for batchStart := 0; batchStart < len(events); batchStart += e.batchSize {
		batchEnd := batchStart + e.batchSize
		if batchEnd > len(events) {
			batchEnd = len(events)
		}
		for _, event := range events[batchStart:batchEnd] {
			result.Processed++
			outcome, err := e.upsert(ctx, event)
			if err != nil {
				result.Errors = append(result.Errors,
					fmt.Sprintf("%s/%s: %v", event.Source, event.SourceID, err))
				metrics.ObserveIngest("error", 1)
				continue
			}
			switch outcome {
			case outcomeAdded:
				result.Added++
				metrics.ObserveIngest("added", 1)
			case outcomeUpdated:
				result.Updated++
				metrics.ObserveIngest("updated", 1)
			}
		}
	}
	return result
}

type upsertOutcome int

const (
	outcomeAdded upsertOutcome = iota
	outcomeUpdated
)

func (e *Engine) upsert(ctx context.Context, event pipeline.CanonicalEvent) (upsertOutcome, error) {
	if len(event.Categories) == 0 {
		event.Categories = []string{"general"}
	}
	event.LastSeenAt = e.clock.Now()

	existing, err := e.store.FindByKey(ctx, event.Source, event.SourceID)
	switch {
	case err == nil && existing != nil:
		// Keep the original id so references stay stable across re-ingests.
		event.ID = existing.ID
		if err := e.store.Update(ctx, event); err != nil {
			return 0, err
		}
		return outcomeUpdated, nil
	case errors.Is(err, pipeline.ErrNotFound):
		if err := e.store.Insert(ctx, event); err != nil {
			if errors.Is(err, pipeline.ErrUniqueViolation) {
				// Lost an insert race; the row exists, which is what we wanted.
				return outcomeUpdated, nil
			}
			return 0, err
		}
		return outcomeAdded, nil
	default:
		return 0, err
	}
}

// EvictStale deletes events unseen for longer than the retention window and
// returns the number removed.
func (e *Engine) EvictStale(ctx context.Context, retentionDays int) (int64, error) {
	cutoff := e.clock.Now().AddDate(0, 0, -retentionDays)
	deleted, err := e.store.DeleteStale(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("evict stale events: %w", err)
	}
	metrics.ObserveEviction(deleted)
	if deleted > 0 {
		e.logger.Info("evicted stale events",
			zap.Int64("deleted", deleted),
			zap.Time("cutoff", cutoff))
	}
	return deleted, nil
}

// MarkStarted writes the single "started" log entry for a source run.
func (e *Engine) MarkStarted(ctx context.Context, sourceID string) {
	e.append(ctx, pipeline.IngestLogEntry{
		SourceID: sourceID,
		Status:   pipeline.IngestStarted,
		Message:  "scrape started",
		At:       e.clock.Now(),
	})
}

// MarkFinished writes the single terminal log entry for a source run.
func (e *Engine) MarkFinished(ctx context.Context, sourceID string, eventCount int, runErr error) {
	entry := pipeline.IngestLogEntry{
		SourceID: sourceID,
		Status:   pipeline.IngestSuccess,
		Message:  fmt.Sprintf("scraped %d events", eventCount),
		At:       e.clock.Now(),
	}
	if runErr != nil {
		entry.Status = pipeline.IngestFailed
		entry.Message = runErr.Error()
	}
	e.append(ctx, entry)
}

// append failures are logged and swallowed: the ingestion log is for
// operability only, never consulted for correctness.
func (e *Engine) append(ctx context.Context, entry pipeline.IngestLogEntry) {
	if e.log == nil {
		return
	}
	if err := e.log.Append(ctx, entry); err != nil {
		e.logger.Warn("ingest log append failed",
			zap.String("source", entry.SourceID),
			zap.Error(err))
	}
}
