package extract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/lmcheong/eventtide/internal/pipeline"
)

// dateLike matches the date spellings the interval parser understands:
// month names with days, numeric dates, and CJK dates.
var dateLike = regexp.MustCompile(`(?i)\b(jan|feb|fev|mar|apr|abr|may|mai|jun|jul|aug|ago|sep|set|oct|out|nov|dec|dez)[a-zç]*\.?\s+\d{1,2}|\d{1,2}\s+(jan|feb|fev|mar|apr|abr|may|mai|jun|jul|aug|ago|sep|set|oct|out|nov|dec|dez)[a-zç]*|\d{4}-\d{2}-\d{2}|\d{1,2}/\d{1,2}/\d{4}|\d{1,2}月\d{1,2}日`)

// eventLexicon marks text as event-like.
var eventLexicon = regexp.MustCompile(`(?i)\b(concert|show|exhibition|festival|performance|gala|fair|carnival|parade|race|tournament|workshop|market)\b|演唱會|音樂會|展覽|嘉年華|concerto|espetáculo|exposição|festival`)

// extractHeuristic is the second chain stage: scan text blocks for date-like
// patterns paired with event-lexical content and treat matches as candidates.
func extractHeuristic(doc *goquery.Document, source pipeline.SourceConfig) []pipeline.RawEvent {
	var events []pipeline.RawEvent
	doc.Find("p, li, td, div, h2, h3").Each(func(_ int, el *goquery.Selection) {
		// Only leaf-ish blocks; containers repeat their children's text.
		if el.Children().Length() > 3 {
			return
		}
		text := collapseSpace(el.Text())
		if text == "" || len(text) > 500 {
			return
		}
		dateText := dateLike.FindString(text)
		if dateText == "" {
			return
		}
		if !eventLexicon.MatchString(text) {
			return
		}
		title := candidateTitle(text, dateText)
		if !ValidTitle(title) {
			return
		}
		raw := pipeline.RawEvent{
			Title:    title,
			DateText: dateText,
			Venue:    source.DefaultVenue,
			City:     source.City,
		}
		raw.SourceID = localID(raw)
		events = append(events, raw)
	})
	return dedupe(events)
}

// candidateTitle trims the date spelling and trailing noise from a matched
// block, keeping a bounded leading fragment as the title.
func candidateTitle(text, dateText string) string {
	title := strings.TrimSpace(strings.Replace(text, dateText, "", 1))
	title = strings.Trim(title, " -–|,.:;")
	if idx := strings.IndexAny(title, ".|"); idx > 10 {
		title = title[:idx]
	}
	runes := []rune(title)
	if len(runes) > 120 {
		title = strings.TrimSpace(string(runes[:120]))
	}
	return title
}
