// Package ai implements the optional structured-extraction capability as a
// JSON-over-HTTP client. Responses are untrusted: each entry is validated
// against the fixed schema at the boundary and malformed entries dropped.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/lmcheong/eventtide/internal/pipeline"
)

// Config holds the extraction-service credentials.
type Config struct {
	Endpoint string
	APIKey   string
	Timeout  time.Duration
}

// Client implements pipeline.AIExtractor.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *zap.Logger
}

// schema is the fixed extraction schema submitted with every request.
var schema = map[string]string{
	"title":     "string",
	"startDate": "string",
	"endDate":   "string",
	"venue":     "string",
	"category":  "string",
	"url":       "string",
	"imageUrl":  "string",
	"tags":      "string[]",
}

// New builds a Client. Returns ErrConfiguration when endpoint or key is
// missing so callers can degrade gracefully.
func New(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.Endpoint == "" || cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: ai extraction endpoint/api key", pipeline.ErrConfiguration)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}, nil
}

// Available reports whether the capability is configured.
func (c *Client) Available() bool {
	return c != nil
}

type extractRequest struct {
	Content string            `json:"content"`
	Schema  map[string]string `json:"schema"`
	Prompt  string            `json:"prompt"`
}

type extractResponse struct {
	Events []extractedEvent `json:"events"`
}

type extractedEvent struct {
	Title     string   `json:"title"`
	StartDate string   `json:"startDate"`
	EndDate   string   `json:"endDate"`
	Venue     string   `json:"venue"`
	Category  string   `json:"category"`
	URL       string   `json:"url"`
	ImageURL  string   `json:"imageUrl"`
	Tags      []string `json:"tags"`
}

// Extract submits page content plus the fixed schema and the source-tailored
// prompt, mapping valid entries 1:1 to RawEvents.
func (c *Client) Extract(ctx context.Context, pageText string, source pipeline.SourceConfig) ([]pipeline.RawEvent, error) {
	prompt := source.AIPrompt
	if prompt == "" {
		prompt = fmt.Sprintf("Extract upcoming public events from this %s page.", source.Name)
	}
	body, err := json.Marshal(extractRequest{Content: pageText, Schema: schema, Prompt: prompt})
	if err != nil {
		return nil, fmt.Errorf("%w: marshal request: %v", pipeline.ErrAIExtraction, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", pipeline.ErrAIExtraction, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pipeline.ErrAIExtraction, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", pipeline.ErrAIExtraction, resp.StatusCode)
	}

	var parsed extractResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", pipeline.ErrAIExtraction, err)
	}

	events := make([]pipeline.RawEvent, 0, len(parsed.Events))
	for _, e := range parsed.Events {
		raw, ok := c.validate(e, source)
		if !ok {
			c.logger.Debug("dropping malformed ai event",
				zap.String("source", source.ID), zap.String("title", e.Title))
			continue
		}
		events = append(events, raw)
	}
	return events, nil
}

// validate rejects entries that do not satisfy the schema; untrusted data
// never reaches the canonical model unchecked.
func (c *Client) validate(e extractedEvent, source pipeline.SourceConfig) (pipeline.RawEvent, bool) {
	title := strings.TrimSpace(e.Title)
	if title == "" {
		return pipeline.RawEvent{}, false
	}
	start, ok := parseInstant(e.StartDate)
	if !ok {
		return pipeline.RawEvent{}, false
	}
	end, _ := parseInstant(e.EndDate)
	if !end.IsZero() && !end.After(start) {
		return pipeline.RawEvent{}, false
	}
	venue := strings.TrimSpace(e.Venue)
	if venue == "" {
		venue = source.DefaultVenue
	}
	raw := pipeline.RawEvent{
		Title:     title,
		Start:     start,
		End:       end,
		Venue:     venue,
		City:      source.City,
		DetailURL: strings.TrimSpace(e.URL),
		ImageURL:  strings.TrimSpace(e.ImageURL),
	}
	if cat := strings.TrimSpace(e.Category); cat != "" {
		raw.Categories = []string{strings.ToLower(cat)}
	}
	for _, tag := range e.Tags {
		if tag = strings.TrimSpace(tag); tag != "" {
			raw.Categories = append(raw.Categories, strings.ToLower(tag))
		}
	}
	raw.SourceID = sourceLocalID(raw)
	return raw, true
}

func parseInstant(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func sourceLocalID(raw pipeline.RawEvent) string {
	if raw.DetailURL != "" {
		return raw.DetailURL
	}
	return strings.ToLower(strings.ReplaceAll(raw.Title, " ", "-")) + "-" + raw.Start.Format("2006-01-02")
}
