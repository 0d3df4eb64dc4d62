package chronotiles

import (
	"fmt"
	"strings"

	"github.com/RoaringBitmap/roaring/roaring64"
	"github.com/dustin/go-humanize"
)

// SublayerStats summarizes one sublayer's stream without materializing
// features.
type SublayerStats struct {
	Sublayer     int
	EncodedBytes int
	Records      int
	Samples      int
	Cells        *roaring64.Bitmap
	// MinFrame and MaxFrame are absolute (not rebased) frame bounds, valid
	// only when Records > 0.
	MinFrame int64
	MaxFrame int64
}

// PayloadStats summarizes a whole tile payload for inspection.
type PayloadStats struct {
	PayloadBytes int
	Sublayers    []SublayerStats
	// Cells is the union of distinct cell indices across sublayers.
	Cells *roaring64.Bitmap
}

// CollectStats walks every sublayer's record grammar and reports record,
// sample and distinct-cell counts. It validates the same alignment
// invariants as DecodeTile and fails with the same errors.
func CollectStats(payload []byte, lengths []int, bandsPerFrame int) (PayloadStats, error) {
	if bandsPerFrame < 1 {
		return PayloadStats{}, fmt.Errorf("%w: bandsPerFrame must be >= 1, got %d", ErrInvalidConfig, bandsPerFrame)
	}
	streams, err := splitSublayers(payload, lengths)
	if err != nil {
		return PayloadStats{}, err
	}

	stats := PayloadStats{PayloadBytes: len(payload), Cells: roaring64.New()}
	for sub, stream := range streams {
		ss := SublayerStats{Sublayer: sub, Cells: roaring64.New()}
		if sub < len(lengths) {
			ss.EncodedBytes = lengths[sub]
		}
		cursor := 0
		for cursor < len(stream) {
			if len(stream)-cursor < 3 {
				return PayloadStats{}, fmt.Errorf("%w: sublayer %d: truncated record header at position %d", ErrMalformedPayload, sub, cursor)
			}
			cellIndex := uint64(stream[cursor])
			startFrame := int64(stream[cursor+1])
			endFrame := int64(stream[cursor+2])
			cursor += 3
			if endFrame < startFrame {
				return PayloadStats{}, fmt.Errorf("%w: sublayer %d: cell %d has endFrame %d before startFrame %d", ErrMalformedPayload, sub, cellIndex, endFrame, startFrame)
			}
			count := int(endFrame-startFrame+1) * bandsPerFrame
			if len(stream)-cursor < count {
				return PayloadStats{}, fmt.Errorf("%w: sublayer %d: cell %d declares %d samples but only %d remain", ErrMalformedPayload, sub, cellIndex, count, len(stream)-cursor)
			}

			if ss.Records == 0 || startFrame < ss.MinFrame {
				ss.MinFrame = startFrame
			}
			if ss.Records == 0 || endFrame > ss.MaxFrame {
				ss.MaxFrame = endFrame
			}
			ss.Records++
			ss.Samples += count
			ss.Cells.Add(cellIndex)
			cursor += count
		}
		stats.Cells.Or(ss.Cells)
		stats.Sublayers = append(stats.Sublayers, ss)
	}
	return stats, nil
}

func (s PayloadStats) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "payload: %s, %d sublayers, %d distinct cells\n",
		humanize.Bytes(uint64(s.PayloadBytes)), len(s.Sublayers), s.Cells.GetCardinality())
	for _, ss := range s.Sublayers {
		if ss.Records == 0 {
			fmt.Fprintf(&b, "  sublayer %d: empty\n", ss.Sublayer)
			continue
		}
		fmt.Fprintf(&b, "  sublayer %d: %s, %d records, %d samples, %d cells, frames %d-%d\n",
			ss.Sublayer, humanize.Bytes(uint64(ss.EncodedBytes)), ss.Records, ss.Samples,
			ss.Cells.GetCardinality(), ss.MinFrame, ss.MaxFrame)
	}
	return b.String()
}
