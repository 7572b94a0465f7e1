// Package extract turns fetched HTML into raw events via a cascading
// strategy chain: structured selectors, heuristic text scan, AI-assisted
// extraction, minimal fallback. The first stage yielding at least one
// plausible event wins.
package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/lmcheong/eventtide/internal/metrics"
	"github.com/lmcheong/eventtide/internal/pipeline"
)

// maxDetailFetches bounds detail-page upgrades per source run.
const maxDetailFetches = 20

// Chain implements pipeline.Extractor.
type Chain struct {
	ai      pipeline.AIExtractor
	fetcher pipeline.Fetcher
	clock   pipeline.Clock
	logger  *zap.Logger
}

// NewChain builds a Chain. ai may be nil (stage skipped); fetcher may be nil
// (detail-page upgrades skipped).
func NewChain(ai pipeline.AIExtractor, fetcher pipeline.Fetcher, clock pipeline.Clock, logger *zap.Logger) *Chain {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Chain{ai: ai, fetcher: fetcher, clock: clock, logger: logger}
}

// Extract runs the strategy cascade over html for the given source.
func (c *Chain) Extract(ctx context.Context, html string, source pipeline.SourceConfig) ([]pipeline.RawEvent, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("%w: parse html: %v", pipeline.ErrInvalidResponse, err)
	}

	events, stage := c.cascade(ctx, doc, html, source)
	if len(events) == 0 {
		return nil, fmt.Errorf("%w: source %s", pipeline.ErrParse, source.ID)
	}
	metrics.ObserveExtracted(source.ID, stage, len(events))
	c.logger.Debug("extraction stage matched",
		zap.String("source", source.ID),
		zap.String("stage", stage),
		zap.Int("events", len(events)))

	if source.FetchDetails && c.fetcher != nil {
		c.upgradeFromDetails(ctx, events, source)
	}
	return events, nil
}

func (c *Chain) cascade(
	ctx context.Context,
	doc *goquery.Document,
	html string,
	source pipeline.SourceConfig,
) ([]pipeline.RawEvent, string) {
	if events := extractStructured(doc, source); len(events) > 0 {
		return events, "structured"
	}
	if events := extractHeuristic(doc, source); len(events) > 0 {
		return events, "heuristic"
	}
	if c.ai != nil && c.ai.Available() {
		events, err := c.ai.Extract(ctx, pageText(doc, html), source)
		if err != nil {
			// Degrade to the fallback stage, never fail the source run here.
			c.logger.Warn("ai extraction failed",
				zap.String("source", source.ID), zap.Error(err))
		} else if len(events) > 0 {
			return events, "ai"
		}
	}
	return extractFallback(doc, source, c.clock.Now()), "fallback"
}

// upgradeFromDetails re-fetches detail pages and overwrites fields where the
// detail page carries a longer or more specific value.
func (c *Chain) upgradeFromDetails(ctx context.Context, events []pipeline.RawEvent, source pipeline.SourceConfig) {
	fetched := 0
	for i := range events {
		if events[i].DetailURL == "" || fetched >= maxDetailFetches {
			continue
		}
		fetched++
		res, err := c.fetcher.Fetch(ctx, source, events[i].DetailURL)
		if err != nil {
			c.logger.Debug("detail fetch failed",
				zap.String("source", source.ID),
				zap.String("url", events[i].DetailURL),
				zap.Error(err))
			continue
		}
		detail, err := goquery.NewDocumentFromReader(strings.NewReader(string(res.Body)))
		if err != nil {
			continue
		}
		mergeDetail(&events[i], detail)
	}
}

// mergeDetail applies best-available-field-wins from a detail document.
func mergeDetail(raw *pipeline.RawEvent, doc *goquery.Document) {
	if desc, ok := doc.Find(`meta[property="og:description"]`).Attr("content"); ok {
		if len(desc) > len(raw.Description) {
			raw.Description = collapseSpace(desc)
		}
	}
	bodyText := collapseSpace(doc.Find("article, .content, main").First().Text())
	if len(bodyText) > len(raw.Description) {
		raw.Description = bodyText
	}
	if img, ok := doc.Find(`meta[property="og:image"]`).Attr("content"); ok && raw.ImageURL == "" {
		raw.ImageURL = strings.TrimSpace(img)
	}
	if raw.DateText == "" {
		if date := dateLike.FindString(bodyText); date != "" {
			raw.DateText = date
		}
	}
}

// pageText flattens the document into the plain text handed to the AI
// capability, bounded to keep request payloads sane.
func pageText(doc *goquery.Document, html string) string {
	text := collapseSpace(doc.Find("body").Text())
	if text == "" {
		text = html
	}
	const maxChars = 20000
	runes := []rune(text)
	if len(runes) > maxChars {
		text = string(runes[:maxChars])
	}
	return text
}
