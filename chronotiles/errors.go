package chronotiles

import "errors"

// ErrMalformedPayload indicates the tile payload bytes violate the wire
// format: bad varint continuation, truncated buffer, sublayer lengths that
// overrun the payload, or record boundaries that do not line up.
var ErrMalformedPayload = errors.New("chronotiles: malformed payload")

// ErrInvalidConfig indicates the caller-supplied decode configuration is
// unusable, e.g. bandsPerFrame < 1 or an unknown time interval.
var ErrInvalidConfig = errors.New("chronotiles: invalid config")

// ErrNotFound indicates a tile or manifest is absent from a source.
var ErrNotFound = errors.New("chronotiles: not found")
