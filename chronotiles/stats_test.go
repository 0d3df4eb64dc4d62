package chronotiles

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollectStats(t *testing.T) {
	payload, lengths := buildPayload(
		[]uint32{0, 10, 11, 1, 2, 3, 10, 12, 4, 5, 6},
		nil,
		[]uint32{0, 20, 20, 7},
	)
	stats, err := CollectStats(payload, lengths, 1)
	require.NoError(t, err)

	assert.Equal(t, len(payload), stats.PayloadBytes)
	require.Len(t, stats.Sublayers, 3)

	assert.Equal(t, 2, stats.Sublayers[0].Records)
	assert.Equal(t, 5, stats.Sublayers[0].Samples)
	assert.Equal(t, uint64(2), stats.Sublayers[0].Cells.GetCardinality())
	assert.Equal(t, int64(10), stats.Sublayers[0].MinFrame)
	assert.Equal(t, int64(12), stats.Sublayers[0].MaxFrame)

	assert.Equal(t, 0, stats.Sublayers[1].Records)

	assert.Equal(t, 1, stats.Sublayers[2].Records)
	assert.Equal(t, int64(20), stats.Sublayers[2].MinFrame)

	assert.Equal(t, uint64(2), stats.Cells.GetCardinality(), "cells 0 and 3 across sublayers")
	assert.NotEmpty(t, stats.String())
}

func TestCollectStatsMalformed(t *testing.T) {
	payload, lengths := buildPayload([]uint32{0, 10, 11, 1})
	_, err := CollectStats(payload, lengths, 1)
	assert.ErrorIs(t, err, ErrMalformedPayload)
}

func TestCollectStatsBadBands(t *testing.T) {
	_, err := CollectStats(nil, nil, 0)
	assert.ErrorIs(t, err, ErrInvalidConfig)
}
