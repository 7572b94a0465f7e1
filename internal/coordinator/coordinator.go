// Package coordinator fans a scrape run out across sources and aggregates
// the results.
package coordinator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lmcheong/eventtide/internal/ingest"
	"github.com/lmcheong/eventtide/internal/metrics"
	"github.com/lmcheong/eventtide/internal/pipeline"
)

// Normalizer converts one raw event into its canonical form, or nil when the
// raw event cannot be trusted.
type Normalizer interface {
	Normalize(raw pipeline.RawEvent, source pipeline.SourceConfig) *pipeline.CanonicalEvent
}

// Config carries run-level settings.
type Config struct {
	// RunDeadline bounds one whole run. Zero means no deadline.
	RunDeadline time.Duration
	// RetentionDays is the stale-event eviction window.
	RetentionDays int
	// CompletionTopic, when set with a Publisher, receives a summary
	// message after every run.
	CompletionTopic string
}

// Coordinator runs the fetch/extract/normalize pipeline per source
// concurrently, then ingests the combined result.
type Coordinator struct {
	cfg        Config
	fetcher    pipeline.Fetcher
	extractor  pipeline.Extractor
	normalizer Normalizer
	engine     *ingest.Engine
	archive    pipeline.BlobStore
	publisher  pipeline.Publisher
	clock      pipeline.Clock
	ids        pipeline.IDGenerator
	logger     *zap.Logger
}

// New builds a Coordinator. archive and publisher may be nil.
func New(
	cfg Config,
	fetcher pipeline.Fetcher,
	extractor pipeline.Extractor,
	normalizer Normalizer,
	engine *ingest.Engine,
	archive pipeline.BlobStore,
	publisher pipeline.Publisher,
	clock pipeline.Clock,
	ids pipeline.IDGenerator,
	logger *zap.Logger,
) *Coordinator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		cfg:        cfg,
		fetcher:    fetcher,
		extractor:  extractor,
		normalizer: normalizer,
		engine:     engine,
		archive:    archive,
		publisher:  publisher,
		clock:      clock,
		ids:        ids,
		logger:     logger,
	}
}

// Outcome is the full result of one run: the per-source report plus the
// storage-side counters.
type Outcome struct {
	Report       pipeline.RunReport
	Ingest       pipeline.IngestResult
	StaleRemoved int64
}

// sourceResult is what one source goroutine hands back.
type sourceResult struct {
	sourceID string
	events   []pipeline.CanonicalEvent
	found    int
	err      error
}

// RunAll scrapes every given source concurrently, ingests everything that
// survived normalization, and evicts stale events. One source failing never
// affects another; its error lands in the report instead.
func (c *Coordinator) RunAll(ctx context.Context, sources []pipeline.SourceConfig) Outcome {
	started := c.clock.Now()
	runID := c.runID()

	if c.cfg.RunDeadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.RunDeadline)
		defer cancel()
	}

	c.logger.Info("run started",
		zap.String("run_id", runID),
		zap.Int("sources", len(sources)))

	results := make(chan sourceResult, len(sources))
	var wg sync.WaitGroup
	for _, source := range sources {
		wg.Add(1)
		go func(source pipeline.SourceConfig) {
			defer wg.Done()
			results <- c.runSource(ctx, source)
		}(source)
	}
	wg.Wait()
	close(results)

	report := pipeline.RunReport{RunID: runID, StartedAt: started}
	for res := range results {
		report.TotalFound += res.found
		if res.err != nil {
			report.SourcesFailed++
			report.Errors = append(report.Errors, pipeline.SourceError{
				SourceID: res.sourceID,
				Message:  res.err.Error(),
			})
			continue
		}
		report.SourcesOK++
		report.Events = append(report.Events, res.events...)
	}

	outcome := Outcome{Report: report}
	outcome.Ingest = c.engine.Ingest(ctx, report.Events)
	for _, msg := range outcome.Ingest.Errors {
		outcome.Report.Errors = append(outcome.Report.Errors, pipeline.SourceError{
			SourceID: "ingest",
			Message:  msg,
		})
	}

	if removed, err := c.engine.EvictStale(ctx, c.cfg.RetentionDays); err != nil {
		c.logger.Warn("stale eviction failed", zap.Error(err))
	} else {
		outcome.StaleRemoved = removed
	}

	outcome.Report.Duration = c.clock.Now().Sub(started)
	metrics.ObserveRun(outcome.Report.Duration)

	c.publishCompletion(ctx, outcome)

	c.logger.Info("run finished",
		zap.String("run_id", runID),
		zap.Duration("duration", outcome.Report.Duration),
		zap.Int("sources_ok", report.SourcesOK),
		zap.Int("sources_failed", report.SourcesFailed),
		zap.Int("events", len(report.Events)),
		zap.Int("added", outcome.Ingest.Added),
		zap.Int("updated", outcome.Ingest.Updated),
		zap.Int64("stale_removed", outcome.StaleRemoved))
	return outcome
}

// RunOne runs the pipeline for a single source through the same path as a
// full run.
func (c *Coordinator) RunOne(ctx context.Context, source pipeline.SourceConfig) Outcome {
	return c.RunAll(ctx, []pipeline.SourceConfig{source})
}

// runSource executes fetch, extract, and normalize for one source. Panics
// are contained here so a misbehaving source cannot take down the run.
func (c *Coordinator) runSource(ctx context.Context, source pipeline.SourceConfig) (res sourceResult) {
	res.sourceID = source.ID
	defer func() {
		if r := recover(); r != nil {
			res.err = fmt.Errorf("panic: %v", r)
			res.events = nil
		}
		status := "ok"
		if res.err != nil {
			status = "failed"
		}
		metrics.ObserveSourceRun(source.ID, status)
		c.engine.MarkFinished(ctx, source.ID, len(res.events), res.err)
	}()

	c.engine.MarkStarted(ctx, source.ID)
	log := c.logger.With(zap.String("source", source.ID))

	fetched, err := c.fetcher.Fetch(ctx, source, source.URL)
	if err != nil {
		res.err = fmt.Errorf("fetch %s: %w", source.URL, err)
		return res
	}
	c.archiveSnapshot(ctx, source, fetched)

	raws, err := c.extractor.Extract(ctx, string(fetched.Body), source)
	if err != nil {
		res.err = fmt.Errorf("extract: %w", err)
		return res
	}
	res.found = len(raws)

	for _, raw := range raws {
		if event := c.normalizer.Normalize(raw, source); event != nil {
			res.events = append(res.events, *event)
		}
	}
	log.Info("source scraped",
		zap.Int("found", res.found),
		zap.Int("normalized", len(res.events)),
		zap.Bool("rendered", fetched.Rendered))
	return res
}

// archiveSnapshot stores the raw page body when an archive is configured.
// Failures are logged, never fatal.
func (c *Coordinator) archiveSnapshot(ctx context.Context, source pipeline.SourceConfig, fetched pipeline.FetchResult) {
	if c.archive == nil || len(fetched.Body) == 0 {
		return
	}
	key := fmt.Sprintf("%s/%s.html", source.ID, c.clock.Now().Format("20060102T150405Z"))
	uri, err := c.archive.Put(ctx, key, "text/html; charset=utf-8", fetched.Body)
	if err != nil {
		c.logger.Warn("archive snapshot failed",
			zap.String("source", source.ID),
			zap.Error(err))
		return
	}
	c.logger.Debug("archived snapshot",
		zap.String("source", source.ID),
		zap.String("uri", uri))
}

// completionMessage is the payload published after every run.
type completionMessage struct {
	RunID         string    `json:"run_id"`
	Success       bool      `json:"success"`
	Events        int       `json:"events"`
	Added         int       `json:"added"`
	Updated       int       `json:"updated"`
	StaleRemoved  int64     `json:"stale_removed"`
	SourcesOK     int       `json:"sources_ok"`
	SourcesFailed int       `json:"sources_failed"`
	DurationMS    int64     `json:"duration_ms"`
	FinishedAt    time.Time `json:"finished_at"`
}

func (c *Coordinator) publishCompletion(ctx context.Context, outcome Outcome) {
	if c.publisher == nil || c.cfg.CompletionTopic == "" {
		return
	}
	msg := completionMessage{
		RunID:         outcome.Report.RunID,
		Success:       outcome.Report.Success(),
		Events:        len(outcome.Report.Events),
		Added:         outcome.Ingest.Added,
		Updated:       outcome.Ingest.Updated,
		StaleRemoved:  outcome.StaleRemoved,
		SourcesOK:     outcome.Report.SourcesOK,
		SourcesFailed: outcome.Report.SourcesFailed,
		DurationMS:    outcome.Report.Duration.Milliseconds(),
		FinishedAt:    c.clock.Now(),
	}
	id, err := c.publisher.Publish(ctx, c.cfg.CompletionTopic, msg)
	if err != nil {
		c.logger.Warn("completion publish failed", zap.Error(err))
		return
	}
	c.logger.Debug("completion published", zap.String("message_id", id))
}

func (c *Coordinator) runID() string {
	id, err := c.ids.NewID()
	if err != nil {
		return fmt.Sprintf("run-%d", c.clock.Now().UnixNano())
	}
	return id
}
