package chronotiles

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelopeRoundtrip(t *testing.T) {
	payload, lengths := buildPayload([]uint32{1, 10, 10, 5}, nil, []uint32{2, 10, 11, 3, 4})

	for _, compress := range []bool{false, true} {
		data := SerializeEnvelope(payload, lengths, compress)
		gotPayload, gotLengths, err := DeserializeEnvelope(data)
		require.NoError(t, err)
		assert.Equal(t, payload, gotPayload)
		assert.Equal(t, lengths, gotLengths)
	}
}

func TestEnvelopeEmpty(t *testing.T) {
	data := SerializeEnvelope(nil, nil, false)
	payload, lengths, err := DeserializeEnvelope(data)
	require.NoError(t, err)
	assert.Empty(t, payload)
	assert.Empty(t, lengths)
}

func TestEnvelopeBadMagic(t *testing.T) {
	_, _, err := DeserializeEnvelope([]byte("XXXXX\x00\x00"))
	assert.ErrorIs(t, err, ErrMalformedPayload)
}

func TestEnvelopeTooShort(t *testing.T) {
	_, _, err := DeserializeEnvelope([]byte("CT"))
	assert.ErrorIs(t, err, ErrMalformedPayload)
}

func TestEnvelopeTruncatedLengthTable(t *testing.T) {
	payload, lengths := buildPayload([]uint32{1, 10, 10, 5})
	data := SerializeEnvelope(payload, lengths, false)
	_, _, err := DeserializeEnvelope(data[:len(envelopeMagic)+1])
	assert.ErrorIs(t, err, ErrMalformedPayload)
}

func TestEnvelopeBadGzip(t *testing.T) {
	data := SerializeEnvelope([]byte("not gzip"), []int{8}, false)
	data[len(envelopeMagic)] = envelopeFlagGzip
	_, _, err := DeserializeEnvelope(data)
	assert.ErrorIs(t, err, ErrMalformedPayload)
}
