package chronotiles

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"encoding/binary"
	"fmt"
	"io"
)

// Stored and transported tiles wrap the raw payload in a small envelope
// carrying the per-sublayer length table, since the decode contract needs
// the lengths alongside the bytes:
//
//	magic "CTSv1" | flags (1 byte) | uvarint count | count uvarint lengths | payload
//
// Flag bit 0 marks a gzip-compressed payload body.

const envelopeMagic = "CTSv1"

const envelopeFlagGzip = 0x1

// SerializeEnvelope wraps a payload and its sublayer length table.
func SerializeEnvelope(payload []byte, lengths []int, compress bool) []byte {
	var b bytes.Buffer
	tmp := make([]byte, binary.MaxVarintLen64)

	b.WriteString(envelopeMagic)
	if compress {
		b.WriteByte(envelopeFlagGzip)
	} else {
		b.WriteByte(0)
	}

	n := binary.PutUvarint(tmp, uint64(len(lengths)))
	b.Write(tmp[:n])
	for _, length := range lengths {
		n = binary.PutUvarint(tmp, uint64(length))
		b.Write(tmp[:n])
	}

	if compress {
		w, _ := gzip.NewWriterLevel(&b, gzip.BestCompression)
		w.Write(payload)
		w.Close()
	} else {
		b.Write(payload)
	}
	return b.Bytes()
}

// DeserializeEnvelope unwraps an envelope into the raw payload and its
// sublayer length table.
func DeserializeEnvelope(data []byte) ([]byte, []int, error) {
	if len(data) < len(envelopeMagic)+1 {
		return nil, nil, fmt.Errorf("%w: envelope too short", ErrMalformedPayload)
	}
	if string(data[:len(envelopeMagic)]) != envelopeMagic {
		return nil, nil, fmt.Errorf("%w: bad envelope magic", ErrMalformedPayload)
	}
	flags := data[len(envelopeMagic)]

	reader := bufio.NewReader(bytes.NewReader(data[len(envelopeMagic)+1:]))
	count, err := binary.ReadUvarint(reader)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: bad sublayer count: %v", ErrMalformedPayload, err)
	}
	if count > uint64(len(data)) {
		return nil, nil, fmt.Errorf("%w: sublayer count %d exceeds envelope size", ErrMalformedPayload, count)
	}

	lengths := make([]int, count)
	for i := range lengths {
		length, err := binary.ReadUvarint(reader)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: bad sublayer length %d: %v", ErrMalformedPayload, i, err)
		}
		lengths[i] = int(length)
	}

	var payload []byte
	if flags&envelopeFlagGzip != 0 {
		gz, err := gzip.NewReader(reader)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: bad gzip payload: %v", ErrMalformedPayload, err)
		}
		defer gz.Close()
		payload, err = io.ReadAll(gz)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: bad gzip payload: %v", ErrMalformedPayload, err)
		}
	} else {
		payload, err = io.ReadAll(reader)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
		}
	}
	return payload, lengths, nil
}
