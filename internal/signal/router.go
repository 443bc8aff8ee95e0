package signal

import (
	"fmt"

	"github.com/nerrad567/farlink-core/internal/auth"
)

// HeartbeatSink receives device activity notifications. Satisfied by
// *device.Registry: any inbound envelope from a device counts as proof
// of life and advances its lastSeen asynchronously.
type HeartbeatSink interface {
	QueueHeartbeat(deviceID string) bool
}

// Router normalizes inbound wire traffic into canonical envelopes and
// relays them to the addressed peer. One router instance serves all
// connections; per-envelope state lives on the stack so concurrent
// HandleInbound calls never contend except inside the connection registry.
type Router struct {
	conns      *Registry
	heartbeats HeartbeatSink
	logger     Logger
}

// NewRouter creates a router over the given connection registry.
// heartbeats may be nil when device activity tracking is not wanted.
func NewRouter(conns *Registry, heartbeats HeartbeatSink) *Router {
	return &Router{
		conns:      conns,
		heartbeats: heartbeats,
		logger:     noopLogger{},
	}
}

// SetLogger installs a logger. Must be called before concurrent use.
func (rt *Router) SetLogger(l Logger) {
	if l != nil {
		rt.logger = l
	}
}

// HandleInbound processes one raw message from sender. Malformed or
// unknown-type messages are logged and dropped without tearing the
// connection down. Deliverable envelopes are forwarded with From forced
// to the verified sender identity; undeliverable ones produce exactly one
// connection-error back to the sender and are never queued.
func (rt *Router) HandleInbound(sender *Connection, raw []byte) {
	env, err := ParseEnvelope(raw)
	if err != nil {
		rt.logger.Warn("dropping unparseable message",
			"from", sender.Identity.ID, "error", err)
		return
	}

	// The wire value of from is never trusted.
	env.From = sender.Identity.ID

	// Any envelope from a device is evidence the device is alive.
	if sender.Identity.Role == auth.RoleDevice && rt.heartbeats != nil {
		if !rt.heartbeats.QueueHeartbeat(sender.Identity.ID) {
			rt.logger.Warn("heartbeat queue full, activity dropped",
				"device_id", sender.Identity.ID)
		}
	}

	if env.Type == TypeDisconnect {
		sender.MarkGraceful()
		rt.logger.Debug("peer announced disconnect",
			"role", sender.Identity.Role, "id", sender.Identity.ID)
		// A disconnect addressed to a peer is still relayed so the far
		// side can tear down its session state.
		if env.To == "" {
			return
		}
	}

	if env.To == "" {
		rt.logger.Warn("dropping envelope without target",
			"type", env.Type, "from", env.From)
		return
	}

	target, ok := rt.conns.LookupPeer(env.To)
	if !ok {
		rt.logger.Debug("routing failed, peer not connected",
			"type", env.Type, "from", env.From, "to", env.To)
		rt.replyError(sender, fmt.Sprintf("peer %s is not connected", env.To))
		return
	}

	if err := target.Transport.Send(env); err != nil {
		rt.logger.Warn("relay send failed",
			"type", env.Type, "from", env.From, "to", env.To, "error", err)
		rt.replyError(sender, fmt.Sprintf("delivery to %s failed", env.To))
		return
	}

	rt.logger.Debug("envelope relayed",
		"type", env.Type, "from", env.From, "to", env.To)
}

// replyError sends a connection-error event back to the sender. A failed
// reply is only logged; there is nobody left to tell.
func (rt *Router) replyError(sender *Connection, message string) {
	if err := sender.Transport.Send(NewConnectionError(message)); err != nil {
		rt.logger.Debug("connection-error reply failed",
			"id", sender.Identity.ID, "error", err)
	}
}
