package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveCategories(t *testing.T) {
	t.Parallel()

	assert.Contains(t, deriveCategories("Jazz Concert Under the Stars", ""), "music")
	assert.Contains(t, deriveCategories("Contemporary Art Exhibition", ""), "arts")
	assert.Contains(t, deriveCategories("Macau Grand Prix", ""), "sports")
	assert.Contains(t, deriveCategories("Plain Title", "an evening of orchestra music"), "music")
	assert.Empty(t, deriveCategories("Mystery Happening", ""))
}

func TestMergeTags(t *testing.T) {
	t.Parallel()

	tags := mergeTags([]string{"macau", "Free"}, []string{"music", "macau"})
	assert.Equal(t, []string{"free", "macau", "music"}, tags)
}

func TestCoordinates(t *testing.T) {
	t.Parallel()

	lat, lng := coordinates("mgto", "Macau Tower")
	assert.NotZero(t, lat)
	assert.NotZero(t, lng)

	// Unknown venue falls back to the source's home coordinates.
	lat2, lng2 := coordinates("galaxy", "Somewhere New")
	assert.NotZero(t, lat2)
	assert.NotZero(t, lng2)

	// Unknown source and venue yield zero coordinates, not a guess.
	lat3, lng3 := coordinates("nobody", "Nowhere")
	assert.Zero(t, lat3)
	assert.Zero(t, lng3)
}
