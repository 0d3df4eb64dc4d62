package chronotiles

import (
	"fmt"
	"math"
	"time"

	"github.com/paulmach/orb"
)

// Aggregation selects how in-range samples collapse to one scalar.
type Aggregation string

const (
	SumAggregation     Aggregation = "sum"
	AverageAggregation Aggregation = "avg"
)

// DecodeOptions configures one whole tile decode.
type DecodeOptions struct {
	// Interval selects the frame <-> instant mapping.
	Interval Interval
	// BufferedStart is the instant of the tile's first buffered frame; all
	// absolute frame indices in the payload are rebased against it.
	BufferedStart time.Time
	// BandsPerFrame is the count of stacked scalar samples per frame.
	BandsPerFrame int
	// Aggregation defaults to SumAggregation.
	Aggregation Aggregation
	// Scale and Offset transform each raw sample: v*Scale - Offset.
	// A zero Scale means the default of 1.
	Scale  float64
	Offset float64
	// NoData is the sentinel marking an absent sample. Zero means the
	// default of MaxUint32.
	NoData uint32
	// Bounds is the tile bounding box (west/south min, east/north max).
	Bounds orb.Bound
	// Cols and Rows are the tile grid dimensions.
	Cols int
	Rows int
	// TileX and TileY name the tile for unique cell id derivation.
	TileX uint32
	TileY uint32
	// InitialRange is the aggregation window. A nil range yields no
	// features; there is nothing to aggregate against.
	InitialRange *TimeRange
}

func (opts DecodeOptions) withDefaults() DecodeOptions {
	if opts.Aggregation == "" {
		opts.Aggregation = SumAggregation
	}
	if opts.Scale == 0 {
		opts.Scale = 1
	}
	if opts.NoData == 0 {
		opts.NoData = math.MaxUint32
	}
	return opts
}

func (opts DecodeOptions) validate() error {
	if opts.BandsPerFrame < 1 {
		return fmt.Errorf("%w: bandsPerFrame must be >= 1, got %d", ErrInvalidConfig, opts.BandsPerFrame)
	}
	if opts.Cols < 1 || opts.Rows < 1 {
		return fmt.Errorf("%w: grid must be at least 1x1, got %dx%d", ErrInvalidConfig, opts.Cols, opts.Rows)
	}
	if opts.Aggregation != SumAggregation && opts.Aggregation != AverageAggregation {
		return fmt.Errorf("%w: unknown aggregation %q", ErrInvalidConfig, opts.Aggregation)
	}
	return nil
}

// DecodeTile turns one tile payload into feature records: it splits the
// payload into per-sublayer buffers, decodes each packed varint stream and
// assembles per-cell time series. Records are returned in the order their
// cell index was first seen during sublayer scanning.
//
// An empty lengths list or a nil InitialRange returns no features and no
// error. Malformed payload bytes or record misalignment abort the whole
// decode with ErrMalformedPayload; bad configuration with ErrInvalidConfig.
func DecodeTile(payload []byte, lengths []int, opts DecodeOptions) ([]*FeatureRecord, error) {
	opts = opts.withDefaults()
	if err := opts.validate(); err != nil {
		return nil, err
	}
	res, err := resolutionFor(opts.Interval)
	if err != nil {
		return nil, err
	}
	if len(lengths) == 0 || opts.InitialRange == nil {
		return nil, nil
	}

	streams, err := splitSublayers(payload, lengths)
	if err != nil {
		return nil, err
	}

	tileStart := res.frame(opts.BufferedStart)
	rangeStart := res.frame(opts.InitialRange.Start) - tileStart
	rangeEnd := res.frame(opts.InitialRange.End) - tileStart

	asm := &assembler{
		opts:       opts,
		res:        res,
		tileStart:  tileStart,
		rangeStart: rangeStart,
		rangeEnd:   rangeEnd,
		key:        rangeKey(rangeStart, rangeEnd),
		byCell:     make(map[int]*FeatureRecord),
	}
	for sub, stream := range streams {
		if err := asm.scanSublayer(sub, stream); err != nil {
			return nil, err
		}
	}
	return asm.order, nil
}

// assembler holds the in-progress cell mapping for one decode call. It is
// exclusively owned by that call; the order slice preserves first-seen
// cell order across sublayers.
type assembler struct {
	opts       DecodeOptions
	res        resolution
	tileStart  int64
	rangeStart int64 // tile-relative, inclusive
	rangeEnd   int64 // tile-relative, exclusive
	key        string
	byCell     map[int]*FeatureRecord
	order      []*FeatureRecord
}

// scanSublayer walks one integer stream as a concatenation of variable
// length cell records: [cellIndex, startFrame, endFrame, k values] with
// k = (endFrame-startFrame+1)*bandsPerFrame. The stream must be an exact
// concatenation of whole records.
func (a *assembler) scanSublayer(sub int, stream []uint32) error {
	bands := a.opts.BandsPerFrame
	cursor := 0
	for cursor < len(stream) {
		if len(stream)-cursor < 3 {
			return fmt.Errorf("%w: sublayer %d: truncated record header at position %d", ErrMalformedPayload, sub, cursor)
		}
		cellIndex := int(stream[cursor])
		startFrame := int64(stream[cursor+1]) - a.tileStart
		endFrame := int64(stream[cursor+2]) - a.tileStart
		cursor += 3

		if endFrame < startFrame {
			return fmt.Errorf("%w: sublayer %d: cell %d has endFrame %d before startFrame %d", ErrMalformedPayload, sub, cellIndex, endFrame, startFrame)
		}
		frames := int(endFrame - startFrame + 1)
		remaining := frames * bands
		if len(stream)-cursor < remaining {
			return fmt.Errorf("%w: sublayer %d: cell %d declares %d samples but only %d remain", ErrMalformedPayload, sub, cellIndex, remaining, len(stream)-cursor)
		}

		rec, ok := a.byCell[cellIndex]
		if !ok {
			rec = newFeatureRecord(cellIndex, a.opts)
			a.byCell[cellIndex] = rec
			a.order = append(a.order, rec)
		}
		if err := a.consumeRecord(rec, sub, stream[cursor:cursor+remaining], startFrame, frames); err != nil {
			return err
		}
		cursor += remaining
	}
	return nil
}

// consumeRecord materializes one record's samples into the feature's dense
// per-sublayer arrays and accumulates the initial-range aggregate.
func (a *assembler) consumeRecord(rec *FeatureRecord, sub int, samples []uint32, startFrame int64, frames int) error {
	bands := a.opts.BandsPerFrame
	inRange := 0
	wrote := false

	for j, raw := range samples {
		if raw == a.opts.NoData {
			continue
		}
		v := float64(raw)*a.opts.Scale - a.opts.Offset
		slot := j / bands

		values, ok := rec.Values[sub]
		if !ok {
			values = makeHoles(frames)
			rec.Values[sub] = values
			rec.Dates[sub] = make([]time.Time, frames)
			rec.StartOffsets[sub] = startFrame
			if _, ok := rec.InitialValues[a.key]; !ok {
				rec.InitialValues[a.key] = make(map[int]float64)
			}
			rec.InitialValues[a.key][sub] = 0
		}
		if slot >= len(values) {
			return fmt.Errorf("%w: cell %d sublayer %d: frame slot %d outside span of %d frames", ErrMalformedPayload, rec.CellIndex, sub, slot, len(values))
		}
		values[slot] = v
		// The timestamp frame advances by the raw sample position j, one
		// frame per band step, while the array slot collapses by
		// bandsPerFrame. Upstream payloads encode exactly this relation;
		// keep both indexings as they are.
		rec.Dates[sub][slot] = a.res.time(startFrame + a.tileStart + int64(j))
		wrote = true

		frame := startFrame + int64(slot)
		if frame >= a.rangeStart && frame < a.rangeEnd {
			rec.InitialValues[a.key][sub] += v
			inRange++
		}
	}

	if wrote && a.opts.Aggregation == AverageAggregation {
		// inRange of 0 divides 0 by 0: the aggregate reads NaN, the
		// defined empty-aggregate marker.
		rec.InitialValues[a.key][sub] /= float64(inRange)
	}
	return nil
}

func makeHoles(n int) []float64 {
	holes := make([]float64, n)
	for i := range holes {
		holes[i] = math.NaN()
	}
	return holes
}
