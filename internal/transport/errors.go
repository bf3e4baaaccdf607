// Package transport owns the CUL-class serial transceiver: it
// initializes the radio, interleaves outbound MAX!/Moritz frames with
// inbound ones, and tracks the regulatory airtime budget the
// transceiver reports out of band.
package transport

import "errors"

var (
	// ErrBudgetExhausted names the case where the cached airtime
	// budget is too low for the staged frame. Session does not return
	// it: the send loop keeps the frame staged and re-queries the
	// budget instead.
	ErrBudgetExhausted = errors.New("transport: airtime budget exhausted")

	// ErrIO wraps a serial port read/write failure.
	ErrIO = errors.New("transport: serial i/o failure")

	// ErrInit is returned when the transceiver never answers the
	// version handshake during startup.
	ErrInit = errors.New("transport: transceiver did not respond to handshake")
)
