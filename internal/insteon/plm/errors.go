package plm

import "errors"

// Domain-specific errors for modem operations.
// Use errors.Is() to check for these errors in calling code.
var (
	// ErrConnectionFailed is returned when the modem cannot be reached.
	ErrConnectionFailed = errors.New("plm: connection failed")

	// ErrNotConnected is returned when writing while disconnected.
	ErrNotConnected = errors.New("plm: not connected")

	// ErrBadConnection is returned for an unparseable connection URL.
	ErrBadConnection = errors.New("plm: invalid connection string")

	// ErrUnsupportedMessage is returned when asked to transmit a
	// message type the modem cannot send.
	ErrUnsupportedMessage = errors.New("plm: unsupported outbound message")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("plm: connection closed")
)
