// Package stableid derives deterministic event identifiers from content.
//
// The hash input normalization is pinned: lowercase, punctuation stripped,
// whitespace collapsed, fields joined with "|" in a fixed order. Changing any
// of this requires bumping Version, since stored ids would no longer match.
package stableid

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
	"unicode"
)

// Version is the id scheme version prefix.
const Version = "v1"

// noDateSentinel stands in for the start instant of undated events.
const noDateSentinel = "no-date"

// EventID computes the stable upsert id for an event. Identical logical
// events collapse to the same id across runs; any normalized field differing
// yields a different id.
func EventID(title string, start time.Time, venue, domain string) string {
	startKey := noDateSentinel
	if !start.IsZero() {
		startKey = start.UTC().Format(time.RFC3339)
	}
	parts := []string{
		normalize(title),
		startKey,
		normalize(venue),
		strings.ToLower(strings.TrimSpace(domain)),
	}
	sum := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return Version + "-" + hex.EncodeToString(sum[:])[:16]
}

func normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	lastSpace := false
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastSpace = false
		case unicode.IsSpace(r):
			if !lastSpace && b.Len() > 0 {
				b.WriteByte(' ')
			}
			lastSpace = true
		}
		// Punctuation is dropped entirely.
	}
	return strings.TrimRight(b.String(), " ")
}
