package chronotiles

import (
	"fmt"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// decodePackedStream decodes one sublayer's byte buffer into its ordered
// integer sequence. The buffer holds one or more length-delimited packed
// varint fields (protobuf wire convention: field tag, byte length, then
// that many bytes of concatenated varints); values from successive fields
// are appended in encounter order.
func decodePackedStream(buf []byte) ([]uint32, error) {
	values := make([]uint32, 0, len(buf))
	for len(buf) > 0 {
		num, typ, n := protowire.ConsumeTag(buf)
		if n < 0 {
			return nil, fmt.Errorf("%w: bad field tag: %v", ErrMalformedPayload, protowire.ParseError(n))
		}
		if typ != protowire.BytesType {
			return nil, fmt.Errorf("%w: field %d has wire type %d, want length-delimited", ErrMalformedPayload, num, typ)
		}
		buf = buf[n:]

		packed, n := protowire.ConsumeBytes(buf)
		if n < 0 {
			return nil, fmt.Errorf("%w: field %d: truncated packed field: %v", ErrMalformedPayload, num, protowire.ParseError(n))
		}
		buf = buf[n:]

		for len(packed) > 0 {
			v, n := protowire.ConsumeVarint(packed)
			if n < 0 {
				return nil, fmt.Errorf("%w: field %d: truncated varint: %v", ErrMalformedPayload, num, protowire.ParseError(n))
			}
			if v > math.MaxUint32 {
				return nil, fmt.Errorf("%w: field %d: value %d exceeds uint32", ErrMalformedPayload, num, v)
			}
			values = append(values, uint32(v))
			packed = packed[n:]
		}
	}
	return values, nil
}
