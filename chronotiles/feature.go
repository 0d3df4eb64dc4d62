package chronotiles

import (
	"math"
	"strconv"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// FeatureRecord is one decoded grid cell, keyed by its linear cell index
// within the tile. Per-sublayer maps are populated independently: a
// sublayer that never wrote data for this cell has no entry.
//
// Dense arrays tolerate holes where the payload carried the no-data
// sentinel: a hole is NaN in Values and the zero time.Time in Dates.
type FeatureRecord struct {
	CellIndex int
	Row       int
	Col       int
	Geometry  orb.Polygon
	CellID    uint64

	// Values holds one transformed sample per covered frame, per sublayer.
	Values map[int][]float64
	// Dates holds the frame timestamps aligned with Values.
	Dates map[int][]time.Time
	// StartOffsets is the tile-relative frame each sublayer's span begins at.
	StartOffsets map[int]int64
	// InitialValues holds one aggregated scalar per range key per sublayer.
	InitialValues map[string]map[int]float64
}

// newFeatureRecord materializes the geometry and property skeleton for a
// never-before-seen cell index. The assembler guards it with a presence
// check so geometry and id are computed exactly once per cell.
func newFeatureRecord(cellIndex int, opts DecodeOptions) *FeatureRecord {
	row, col := cellRowCol(cellIndex, opts.Cols)
	return &FeatureRecord{
		CellIndex:     cellIndex,
		Row:           row,
		Col:           col,
		Geometry:      cellGeometry(opts.Bounds, cellIndex, opts.Cols, opts.Rows),
		CellID:        uniqueCellID(opts.TileX, opts.TileY, cellIndex),
		Values:        make(map[int][]float64),
		Dates:         make(map[int][]time.Time),
		StartOffsets:  make(map[int]int64),
		InitialValues: make(map[string]map[int]float64),
	}
}

// FeatureCollection converts decoded records to GeoJSON. Holes and NaN
// aggregates become JSON nulls; cell ids are emitted as strings to stay
// intact in 53-bit JSON number consumers.
func FeatureCollection(records []*FeatureRecord) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, rec := range records {
		f := geojson.NewFeature(rec.Geometry)
		f.ID = rec.CellIndex
		f.Properties["cellIndex"] = rec.CellIndex
		f.Properties["cellId"] = strconv.FormatUint(rec.CellID, 10)
		f.Properties["row"] = rec.Row
		f.Properties["col"] = rec.Col

		values := make(map[string][]interface{}, len(rec.Values))
		for sub, samples := range rec.Values {
			out := make([]interface{}, len(samples))
			for i, v := range samples {
				if math.IsNaN(v) {
					continue
				}
				out[i] = v
			}
			values[strconv.Itoa(sub)] = out
		}
		f.Properties["values"] = values

		dates := make(map[string][]interface{}, len(rec.Dates))
		for sub, stamps := range rec.Dates {
			out := make([]interface{}, len(stamps))
			for i, ts := range stamps {
				if ts.IsZero() {
					continue
				}
				out[i] = ts.Format(time.RFC3339)
			}
			dates[strconv.Itoa(sub)] = out
		}
		f.Properties["dates"] = dates

		startOffsets := make(map[string]int64, len(rec.StartOffsets))
		for sub, offset := range rec.StartOffsets {
			startOffsets[strconv.Itoa(sub)] = offset
		}
		f.Properties["startOffsets"] = startOffsets

		initial := make(map[string]map[string]interface{}, len(rec.InitialValues))
		for key, bySub := range rec.InitialValues {
			agg := make(map[string]interface{}, len(bySub))
			for sub, v := range bySub {
				if math.IsNaN(v) {
					agg[strconv.Itoa(sub)] = nil
				} else {
					agg[strconv.Itoa(sub)] = v
				}
			}
			initial[key] = agg
		}
		f.Properties["initialValues"] = initial

		fc.Append(f)
	}
	return fc
}
