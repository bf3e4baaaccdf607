// Package codec implements the MAX!/Moritz wire format: a bit-exact
// encoder/decoder for the hex-text frames exchanged with a CUL-class
// transceiver and the thermostats paired to it.
package codec

import "errors"

// Sentinel errors identifying the closed set of codec failure kinds.
// Callers classify failures with errors.Is rather than string matching.
var (
	// ErrUnknownMessage is returned when a frame's msg_type tag has no
	// known variant.
	ErrUnknownMessage = errors.New("codec: unknown message type")

	// ErrLengthMismatch is returned when the declared length field
	// disagrees with the actual body byte count.
	ErrLengthMismatch = errors.New("codec: length field mismatch")

	// ErrMissingPayloadParameter is returned when Encode is called
	// without a field a variant's payload requires.
	ErrMissingPayloadParameter = errors.New("codec: missing payload parameter")

	// ErrDecodeFormat is returned for malformed hex or a short payload
	// for the variant being decoded.
	ErrDecodeFormat = errors.New("codec: malformed payload")
)
