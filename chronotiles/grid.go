package chronotiles

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	"github.com/paulmach/orb"
)

// cellRowCol derives the grid position of a linear cell index. Row 0 is
// the northernmost row, column 0 the westernmost column.
func cellRowCol(cellIndex int, cols int) (int, int) {
	return cellIndex / cols, cellIndex % cols
}

// cellGeometry builds the closed rectangular ring of one grid cell inside
// the tile bound, in the bound's coordinate space (west/south/east/north).
func cellGeometry(bound orb.Bound, cellIndex int, cols int, rows int) orb.Polygon {
	row, col := cellRowCol(cellIndex, cols)

	cellWidth := (bound.Max[0] - bound.Min[0]) / float64(cols)
	cellHeight := (bound.Max[1] - bound.Min[1]) / float64(rows)

	west := bound.Min[0] + float64(col)*cellWidth
	north := bound.Max[1] - float64(row)*cellHeight
	east := west + cellWidth
	south := north - cellHeight

	return orb.Polygon{orb.Ring{
		{west, south},
		{east, south},
		{east, north},
		{west, north},
		{west, south},
	}}
}

// uniqueCellID derives a stable globally unique id for a cell from its
// tile coordinates and linear index.
func uniqueCellID(tileX uint32, tileY uint32, cellIndex int) uint64 {
	var b [16]byte
	binary.LittleEndian.PutUint32(b[0:4], tileX)
	binary.LittleEndian.PutUint32(b[4:8], tileY)
	binary.LittleEndian.PutUint64(b[8:16], uint64(cellIndex))
	return xxhash.Sum64(b[:])
}
