// Package signal implements the signaling core: the connection registry
// mapping authenticated identities to live transports, the message router
// that normalizes wire traffic into canonical envelopes and relays them
// between peers, and the reconnection scheduler that announces bounded
// retry attempts after abnormal device disconnects.
//
// The package is transport-agnostic. Anything satisfying the Transport
// interface (in practice a WebSocket connection owned by the api package)
// can be admitted. Routing is closed-world: an envelope addressed to an
// identity with no admitted transport is reported back to the sender as
// a connection-error, never queued for later delivery.
package signal
