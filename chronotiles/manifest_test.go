package chronotiles

import (
	"testing"
	"time"

	"github.com/paulmach/orb/maptile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testManifest() Manifest {
	return Manifest{
		Name:          "precip",
		Interval:      Hourly,
		BufferedStart: time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC),
		BandsPerFrame: 1,
		Cols:          16,
		Rows:          16,
		MinZoom:       0,
		MaxZoom:       8,
	}
}

func TestParseManifest(t *testing.T) {
	m, err := ParseManifest([]byte(`{
		"name": "precip",
		"interval": "hourly",
		"buffered_start": "2023-06-01T00:00:00Z",
		"bands_per_frame": 1,
		"cols": 16,
		"rows": 16,
		"maxzoom": 8
	}`))
	require.NoError(t, err)
	assert.Equal(t, testManifest(), m)
}

func TestParseManifestBadJSON(t *testing.T) {
	_, err := ParseManifest([]byte(`{`))
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestManifestValidate(t *testing.T) {
	m := testManifest()
	assert.NoError(t, m.Validate())

	bad := m
	bad.Interval = "fortnightly"
	assert.ErrorIs(t, bad.Validate(), ErrInvalidConfig)

	bad = m
	bad.BandsPerFrame = 0
	assert.ErrorIs(t, bad.Validate(), ErrInvalidConfig)

	bad = m
	bad.Cols = 0
	assert.ErrorIs(t, bad.Validate(), ErrInvalidConfig)

	bad = m
	bad.BufferedStart = time.Time{}
	assert.ErrorIs(t, bad.Validate(), ErrInvalidConfig)

	bad = m
	bad.MinZoom = 9
	assert.ErrorIs(t, bad.Validate(), ErrInvalidConfig)

	bad = m
	bad.Aggregation = "median"
	assert.ErrorIs(t, bad.Validate(), ErrInvalidConfig)
}

func TestDecodeOptionsForTile(t *testing.T) {
	m := testManifest()
	m.Aggregation = SumAggregation
	rng := &TimeRange{Start: m.BufferedStart, End: m.BufferedStart.Add(24 * time.Hour)}

	opts := m.DecodeOptionsForTile(3, 4, 2, rng, "")
	assert.Equal(t, maptile.New(4, 2, 3).Bound(), opts.Bounds)
	assert.Equal(t, uint32(4), opts.TileX)
	assert.Equal(t, uint32(2), opts.TileY)
	assert.Equal(t, SumAggregation, opts.Aggregation)
	assert.Equal(t, rng, opts.InitialRange)

	opts = m.DecodeOptionsForTile(3, 4, 2, rng, AverageAggregation)
	assert.Equal(t, AverageAggregation, opts.Aggregation, "request aggregation overrides the manifest")
}
