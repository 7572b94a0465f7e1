package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/lmcheong/eventtide/internal/pipeline"
)

// Default per-field sub-selector fallback lists, used when a source does not
// configure its own. Order matters: the first selector yielding content wins.
var (
	defaultTitleSelectors       = []string{"h1", "h2", "h3", ".title", "[class*=title]", "a"}
	defaultDateSelectors        = []string{"time", ".date", "[class*=date]", "[class*=time]"}
	defaultDescriptionSelectors = []string{".description", "[class*=desc]", "p"}
	defaultVenueSelectors       = []string{".venue", "[class*=venue]", ".location", "[class*=location]"}
	defaultImageSelectors       = []string{"img"}
	defaultTicketSelectors      = []string{"a[href*=ticket]", "a[href*=book]", ".tickets a"}
	defaultContainerSelectors   = []string{".event", "[class*=event-item]", "[class*=event-card]", "article", "li.event"}
)

// extractStructured is the first chain stage: ordered candidate container
// selectors, first non-empty candidate wins; each field resolved through its
// own ordered sub-selector list.
func extractStructured(doc *goquery.Document, source pipeline.SourceConfig) []pipeline.RawEvent {
	containers := source.ContainerSelectors
	if len(containers) == 0 {
		containers = defaultContainerSelectors
	}
	base, _ := url.Parse(source.URL)

	for _, containerSel := range containers {
		sel := doc.Find(containerSel)
		if sel.Length() == 0 {
			continue
		}
		var events []pipeline.RawEvent
		sel.Each(func(_ int, el *goquery.Selection) {
			raw, ok := eventFromElement(el, source, base)
			if ok {
				events = append(events, raw)
			}
		})
		if len(events) > 0 {
			return dedupe(events)
		}
	}
	return nil
}

func eventFromElement(el *goquery.Selection, source pipeline.SourceConfig, base *url.URL) (pipeline.RawEvent, bool) {
	title := firstText(el, orDefault(source.TitleSelectors, defaultTitleSelectors))
	if !ValidTitle(title) {
		return pipeline.RawEvent{}, false
	}
	raw := pipeline.RawEvent{
		Title:       title,
		DateText:    firstText(el, orDefault(source.DateSelectors, defaultDateSelectors)),
		Description: firstText(el, orDefault(source.DescriptionSelectors, defaultDescriptionSelectors)),
		Venue:       firstText(el, orDefault(source.VenueSelectors, defaultVenueSelectors)),
		City:        source.City,
		DetailURL:   resolveURL(base, firstAttr(el, []string{"a"}, "href")),
		TicketURL:   resolveURL(base, firstAttr(el, orDefault(source.TicketSelectors, defaultTicketSelectors), "href")),
		ImageURL:    resolveURL(base, firstAttr(el, orDefault(source.ImageSelectors, defaultImageSelectors), "src")),
	}
	if raw.Venue == "" {
		raw.Venue = source.DefaultVenue
	}
	raw.SourceID = localID(raw)
	return raw, true
}

// firstText returns the trimmed text of the first selector that matches
// non-empty content.
func firstText(el *goquery.Selection, selectors []string) string {
	for _, s := range selectors {
		if t := strings.TrimSpace(el.Find(s).First().Text()); t != "" {
			return collapseSpace(t)
		}
	}
	return ""
}

// firstAttr returns the named attribute of the first selector that carries it.
func firstAttr(el *goquery.Selection, selectors []string, attr string) string {
	for _, s := range selectors {
		if v, ok := el.Find(s).First().Attr(attr); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func orDefault(configured, fallback []string) []string {
	if len(configured) > 0 {
		return configured
	}
	return fallback
}

func resolveURL(base *url.URL, href string) string {
	if href == "" {
		return ""
	}
	if base == nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}

// localID derives the source-local identifier: the detail URL path when
// present, otherwise a slug of title and date text.
func localID(raw pipeline.RawEvent) string {
	if raw.DetailURL != "" {
		if u, err := url.Parse(raw.DetailURL); err == nil && u.Path != "" && u.Path != "/" {
			return strings.Trim(u.Path, "/")
		}
	}
	return slug(raw.Title + "-" + raw.DateText)
}

func slug(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			b.WriteByte('-')
		}
	}
	return strings.Trim(b.String(), "-")
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// dedupe drops events repeating an earlier source-local id; nested container
// matches often yield the same event twice.
func dedupe(events []pipeline.RawEvent) []pipeline.RawEvent {
	seen := make(map[string]struct{}, len(events))
	out := events[:0]
	for _, ev := range events {
		if _, dup := seen[ev.SourceID]; dup {
			continue
		}
		seen[ev.SourceID] = struct{}{}
		out = append(out, ev)
	}
	return out
}
