package normalize

import "strings"

// geo is a coarse venue coordinate, not a geocode.
type geo struct {
	lat, lng float64
}

// venueCoords maps lowercased venue names to approximate coordinates.
// Venue-level precision is all the calendar needs; do not geocode.
var venueCoords = map[string]geo{
	"venetian arena":              {22.1473, 113.5633},
	"cotai arena":                 {22.1473, 113.5633},
	"galaxy arena":                {22.1492, 113.5549},
	"broadway theatre":            {22.1481, 113.5556},
	"londoner arena":              {22.1417, 113.5627},
	"macau cultural centre":       {22.1867, 113.5592},
	"macau tower":                 {22.1797, 113.5382},
	"senado square":               {22.1935, 113.5397},
	"fisherman's wharf":           {22.1975, 113.5531},
	"taipa houses":                {22.1532, 113.5601},
	"mgm theater":                 {22.1861, 113.5477},
	"wynn palace":                 {22.1460, 113.5658},
	"city of dreams":              {22.1481, 113.5648},
	"studio city event center":    {22.1371, 113.5594},
	"kam pek community centre":    {22.1921, 113.5407},
	"old court building":          {22.1903, 113.5404},
	"navy yard no. 1":             {22.1856, 113.5341},
}

// sourceCoords gives a per-source fallback when the venue is unknown.
var sourceCoords = map[string]geo{
	"mgto":       {22.1987, 113.5439},
	"venetian":   {22.1473, 113.5633},
	"galaxy":     {22.1492, 113.5549},
	"londoner":   {22.1417, 113.5627},
	"mgm":        {22.1861, 113.5477},
	"broadway":   {22.1481, 113.5556},
	"macautower": {22.1797, 113.5382},
}

// coordinates resolves coarse lat/lng for an event: venue table first, then
// the source default, else zero (unknown).
func coordinates(sourceID, venue string) (float64, float64) {
	if g, ok := venueCoords[strings.ToLower(strings.TrimSpace(venue))]; ok {
		return g.lat, g.lng
	}
	if g, ok := sourceCoords[sourceID]; ok {
		return g.lat, g.lng
	}
	return 0, 0
}
