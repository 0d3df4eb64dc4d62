package chronotiles

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/paulmach/orb/maptile"
)

// Manifest is the per-dataset configuration stored next to its tiles
// (metadata.json in a bucket prefix, the metadata table in an archive).
type Manifest struct {
	Name          string      `json:"name,omitempty"`
	Interval      Interval    `json:"interval"`
	BufferedStart time.Time   `json:"buffered_start"`
	BandsPerFrame int         `json:"bands_per_frame"`
	Aggregation   Aggregation `json:"aggregation,omitempty"`
	Scale         float64     `json:"scale,omitempty"`
	Offset        float64     `json:"offset,omitempty"`
	NoData        uint32      `json:"nodata,omitempty"`
	Cols          int         `json:"cols"`
	Rows          int         `json:"rows"`
	MinZoom       uint8       `json:"minzoom"`
	MaxZoom       uint8       `json:"maxzoom"`
}

// ParseManifest decodes and validates manifest JSON.
func ParseManifest(data []byte) (Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("%w: bad manifest json: %v", ErrInvalidConfig, err)
	}
	if err := m.Validate(); err != nil {
		return Manifest{}, err
	}
	return m, nil
}

// Validate checks the manifest against the decode contract.
func (m Manifest) Validate() error {
	if _, err := resolutionFor(m.Interval); err != nil {
		return err
	}
	if m.BandsPerFrame < 1 {
		return fmt.Errorf("%w: manifest bands_per_frame must be >= 1, got %d", ErrInvalidConfig, m.BandsPerFrame)
	}
	if m.Cols < 1 || m.Rows < 1 {
		return fmt.Errorf("%w: manifest grid must be at least 1x1, got %dx%d", ErrInvalidConfig, m.Cols, m.Rows)
	}
	if m.BufferedStart.IsZero() {
		return fmt.Errorf("%w: manifest buffered_start is required", ErrInvalidConfig)
	}
	if m.MaxZoom < m.MinZoom {
		return fmt.Errorf("%w: manifest maxzoom %d below minzoom %d", ErrInvalidConfig, m.MaxZoom, m.MinZoom)
	}
	switch m.Aggregation {
	case "", SumAggregation, AverageAggregation:
	default:
		return fmt.Errorf("%w: unknown aggregation %q", ErrInvalidConfig, m.Aggregation)
	}
	return nil
}

// DecodeOptionsForTile binds the manifest to one tile: the bound comes
// from the Z/X/Y web mercator tile in lon/lat, the aggregation window may
// override the manifest default.
func (m Manifest) DecodeOptionsForTile(z uint8, x uint32, y uint32, rng *TimeRange, agg Aggregation) DecodeOptions {
	if agg == "" {
		agg = m.Aggregation
	}
	return DecodeOptions{
		Interval:      m.Interval,
		BufferedStart: m.BufferedStart,
		BandsPerFrame: m.BandsPerFrame,
		Aggregation:   agg,
		Scale:         m.Scale,
		Offset:        m.Offset,
		NoData:        m.NoData,
		Bounds:        maptile.New(x, y, maptile.Zoom(z)).Bound(),
		Cols:          m.Cols,
		Rows:          m.Rows,
		TileX:         x,
		TileY:         y,
		InitialRange:  rng,
	}
}
