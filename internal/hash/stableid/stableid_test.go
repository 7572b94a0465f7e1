package stableid

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEventIDDeterministic(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 9, 27, 16, 0, 0, 0, time.UTC)
	a := EventID("Macau Grand Prix", start, "Guia Circuit", "www.mgto.gov.mo")
	b := EventID("Macau Grand Prix", start, "Guia Circuit", "www.mgto.gov.mo")
	assert.Equal(t, a, b)
	assert.True(t, strings.HasPrefix(a, "v1-"))
	assert.Len(t, a, len("v1-")+16)
}

func TestEventIDIgnoresCaseAndPunctuation(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 9, 27, 16, 0, 0, 0, time.UTC)
	a := EventID("Macau  Grand Prix!", start, "Guia Circuit", "www.mgto.gov.mo")
	b := EventID("macau grand prix", start, "guia circuit", "WWW.MGTO.GOV.MO")
	assert.Equal(t, a, b)
}

func TestEventIDDistinguishesDomains(t *testing.T) {
	t.Parallel()

	// The same concert listed by two sources must not collide.
	start := time.Date(2025, 9, 27, 16, 0, 0, 0, time.UTC)
	a := EventID("Jacky Cheung Live", start, "Galaxy Arena", "www.mgto.gov.mo")
	b := EventID("Jacky Cheung Live", start, "Galaxy Arena", "www.galaxymacau.com")
	assert.NotEqual(t, a, b)
}

func TestEventIDDistinguishesFields(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 9, 27, 16, 0, 0, 0, time.UTC)
	base := EventID("Art Exhibition", start, "Macau Museum", "example.com")
	assert.NotEqual(t, base, EventID("Art Exhibition 2", start, "Macau Museum", "example.com"))
	assert.NotEqual(t, base, EventID("Art Exhibition", start.Add(time.Hour), "Macau Museum", "example.com"))
	assert.NotEqual(t, base, EventID("Art Exhibition", start, "Taipa Houses", "example.com"))
}

func TestEventIDUndated(t *testing.T) {
	t.Parallel()

	a := EventID("Permanent Exhibition", time.Time{}, "Macau Museum", "example.com")
	b := EventID("Permanent Exhibition", time.Time{}, "Macau Museum", "example.com")
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, EventID("Permanent Exhibition", time.Unix(0, 1).UTC(), "Macau Museum", "example.com"))
}
