package fetch

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Detector decides whether static HTML is sufficient or a headless render
// is warranted for a script-heavy page.
type Detector struct {
	MinHTMLBytes int
	MinElements  int
}

// NewDetector creates a detector with the given thresholds.
func NewDetector(minBytes, minElements int) *Detector {
	if minBytes <= 0 {
		minBytes = 2048
	}
	if minElements <= 0 {
		minElements = 3
	}
	return &Detector{MinHTMLBytes: minBytes, MinElements: minElements}
}

var spaMarkers = [][]byte{
	[]byte("__NEXT_DATA__"),
	[]byte("id=\"root\""),
	[]byte("id=\"app\""),
	[]byte("data-reactroot"),
	[]byte("ng-app"),
	[]byte("window.__APOLLO_STATE__"),
}

// discoverableElements are the nodes the extraction chain can anchor on.
const discoverableElements = "article, li, h1, h2, h3, .event, [class*=event]"

// Sufficient reports whether the body likely contains extractable content.
func (d *Detector) Sufficient(body []byte) bool {
	if len(body) == 0 {
		return false
	}
	if len(body) < d.MinHTMLBytes {
		for _, marker := range spaMarkers {
			if bytes.Contains(body, marker) {
				return false
			}
		}
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
	if err != nil {
		return false
	}
	return doc.Find(discoverableElements).Length() >= d.MinElements
}
