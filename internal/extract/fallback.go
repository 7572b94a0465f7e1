package extract

import (
	"strings"
	"time"
	"unicode"

	"github.com/PuerkitoBio/goquery"

	"github.com/lmcheong/eventtide/internal/pipeline"
)

// minFallbackLength is the shortest text block the fallback stage accepts.
const minFallbackLength = 80

// extractFallback is the last chain stage. It treats the longest
// lexically-plausible text block as one low-confidence event with a
// synthetic placeholder start, so the chain never returns empty for a page
// that has any prose at all.
func extractFallback(doc *goquery.Document, source pipeline.SourceConfig, now time.Time) []pipeline.RawEvent {
	var best string
	doc.Find("p, article, section, div").Each(func(_ int, el *goquery.Selection) {
		if el.Children().Length() > 3 {
			return
		}
		text := collapseSpace(el.Text())
		if len(text) < minFallbackLength || len(text) <= len(best) {
			return
		}
		if !lexicallyPlausible(text) {
			return
		}
		best = text
	})
	if best == "" {
		return nil
	}

	title := best
	if idx := strings.IndexAny(title, ".!?"); idx > 10 {
		title = title[:idx]
	}
	runes := []rune(strings.TrimSpace(title))
	if len(runes) > 120 {
		title = strings.TrimSpace(string(runes[:120]))
	}
	if !ValidTitle(title) {
		return nil
	}

	// Placeholder date: next-day midnight. LowConfidence tells the
	// normalizer this start is fabricated.
	placeholder := now.AddDate(0, 0, 1).Truncate(24 * time.Hour)
	raw := pipeline.RawEvent{
		Title:         title,
		Description:   best,
		Start:         placeholder,
		Venue:         source.DefaultVenue,
		City:          source.City,
		LowConfidence: true,
	}
	raw.SourceID = localID(raw)
	return []pipeline.RawEvent{raw}
}

// lexicallyPlausible requires a reasonable share of letters and at least a
// few words; filters out script fragments and CSS blobs.
func lexicallyPlausible(text string) bool {
	letters, total := 0, 0
	for _, r := range text {
		total++
		if unicode.IsLetter(r) || unicode.IsSpace(r) {
			letters++
		}
	}
	if total == 0 || letters*100/total < 70 {
		return false
	}
	return len(strings.Fields(text)) >= 8
}
