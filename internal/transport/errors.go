package transport

import "errors"

var (
	// ErrClosed is returned by every Engine method after Close.
	ErrClosed = errors.New("transport: engine closed")

	// ErrNoRemoteDescription is returned when input is attached before an answer.
	ErrNoRemoteDescription = errors.New("transport: answer not applied")

	// ErrInvalidSignal is returned when an offer or answer cannot be decoded.
	ErrInvalidSignal = errors.New("transport: invalid signal")

	// ErrUnknownPeer is returned by Host for a session it has no connection for.
	ErrUnknownPeer = errors.New("transport: unknown peer")
)
