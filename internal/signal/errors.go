package signal

import "errors"

// Sentinel errors returned by the signaling core. Callers should use
// errors.Is for comparison since errors may be wrapped with context.
var (
	// ErrMalformedMessage indicates inbound bytes that could not be
	// normalized into a canonical envelope.
	ErrMalformedMessage = errors.New("signal: malformed message")

	// ErrUnknownType indicates an envelope type outside the closed set.
	ErrUnknownType = errors.New("signal: unknown message type")

	// ErrPeerUnavailable indicates the addressed identity has no admitted
	// transport. The message is dropped, never queued.
	ErrPeerUnavailable = errors.New("signal: peer unavailable")

	// ErrTransportClosed indicates a send on a transport that has been
	// superseded or shut down.
	ErrTransportClosed = errors.New("signal: transport closed")
)
