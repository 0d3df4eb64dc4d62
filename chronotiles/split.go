package chronotiles

import "fmt"

// splitSublayers slices one contiguous payload into per-sublayer buffers
// using the declared byte lengths and decodes each through
// decodePackedStream. A zero length yields a nil stream for that sublayer.
// An empty or nil lengths list is the normal empty-tile case and returns
// nil streams with no error.
func splitSublayers(buf []byte, lengths []int) ([][]uint32, error) {
	if len(lengths) == 0 {
		return nil, nil
	}

	total := 0
	for i, length := range lengths {
		if length < 0 {
			return nil, fmt.Errorf("%w: sublayer %d declares negative length %d", ErrMalformedPayload, i, length)
		}
		total += length
	}
	if total > len(buf) {
		return nil, fmt.Errorf("%w: sublayer lengths sum to %d but payload is %d bytes", ErrMalformedPayload, total, len(buf))
	}

	streams := make([][]uint32, len(lengths))
	offset := 0
	for i, length := range lengths {
		if length == 0 {
			continue
		}
		stream, err := decodePackedStream(buf[offset : offset+length])
		if err != nil {
			return nil, fmt.Errorf("sublayer %d: %w", i, err)
		}
		streams[i] = stream
		offset += length
	}
	return streams, nil
}
