package chronotiles

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// buildPayload concatenates one packed field per sublayer and returns the
// payload plus its length table.
func buildPayload(sublayers ...[]uint32) ([]byte, []int) {
	var payload []byte
	lengths := make([]int, 0, len(sublayers))
	for _, values := range sublayers {
		if len(values) == 0 {
			lengths = append(lengths, 0)
			continue
		}
		encoded := encodePacked(values...)
		payload = append(payload, encoded...)
		lengths = append(lengths, len(encoded))
	}
	return payload, lengths
}

func TestSplitSublayers(t *testing.T) {
	payload, lengths := buildPayload([]uint32{1, 2}, []uint32{3, 4, 5})
	streams, err := splitSublayers(payload, lengths)
	assert.NoError(t, err)
	assert.Len(t, streams, 2)
	assert.Equal(t, []uint32{1, 2}, streams[0])
	assert.Equal(t, []uint32{3, 4, 5}, streams[1])
}

func TestSplitSublayersZeroLength(t *testing.T) {
	payload, lengths := buildPayload([]uint32{1}, nil, []uint32{2})
	streams, err := splitSublayers(payload, lengths)
	assert.NoError(t, err)
	assert.Len(t, streams, 3)
	assert.Equal(t, []uint32{1}, streams[0])
	assert.Nil(t, streams[1])
	assert.Equal(t, []uint32{2}, streams[2])
}

func TestSplitSublayersEmptyLengths(t *testing.T) {
	streams, err := splitSublayers([]byte{1, 2, 3}, nil)
	assert.NoError(t, err)
	assert.Nil(t, streams)
}

func TestSplitSublayersOverrun(t *testing.T) {
	payload, lengths := buildPayload([]uint32{1, 2})
	lengths[0] = len(payload) + 1
	_, err := splitSublayers(payload, lengths)
	assert.ErrorIs(t, err, ErrMalformedPayload)
}

func TestSplitSublayersNegativeLength(t *testing.T) {
	_, err := splitSublayers([]byte{0}, []int{-1})
	assert.ErrorIs(t, err, ErrMalformedPayload)
}
