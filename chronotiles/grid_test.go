package chronotiles

import (
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
)

func TestCellRowCol(t *testing.T) {
	row, col := cellRowCol(0, 4)
	assert.Equal(t, 0, row)
	assert.Equal(t, 0, col)

	row, col = cellRowCol(5, 4)
	assert.Equal(t, 1, row)
	assert.Equal(t, 1, col)

	row, col = cellRowCol(11, 4)
	assert.Equal(t, 2, row)
	assert.Equal(t, 3, col)
}

func TestCellGeometry(t *testing.T) {
	bound := orb.Bound{Min: orb.Point{0, 0}, Max: orb.Point{4, 2}}

	// cell 0 is the north-west corner
	poly := cellGeometry(bound, 0, 4, 2)
	ring := poly[0]
	assert.Len(t, ring, 5)
	assert.Equal(t, ring[0], ring[4])
	assert.Equal(t, orb.Point{0, 1}, ring[0])
	assert.Equal(t, orb.Point{1, 2}, ring[2])

	// last cell is the south-east corner
	poly = cellGeometry(bound, 7, 4, 2)
	ring = poly[0]
	assert.Equal(t, orb.Point{3, 0}, ring[0])
	assert.Equal(t, orb.Point{4, 1}, ring[2])
}

func TestUniqueCellID(t *testing.T) {
	id := uniqueCellID(3, 7, 42)
	assert.Equal(t, id, uniqueCellID(3, 7, 42))
	assert.NotEqual(t, id, uniqueCellID(3, 7, 43))
	assert.NotEqual(t, id, uniqueCellID(7, 3, 42))
}
