package signal

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/nerrad567/farlink-core/internal/auth"
)

// Connection pairs an authenticated identity with its live transport.
// ConnID distinguishes connection instances: when an identity is
// superseded by a fresh transport, removal of the stale instance must not
// evict the replacement.
type Connection struct {
	Identity  auth.Identity
	Transport Transport
	ConnID    string

	graceful atomic.Bool
}

// MarkGraceful records that this connection announced its departure
// (an explicit disconnect envelope). Graceful departures do not trigger
// the reconnection scheduler.
func (c *Connection) MarkGraceful() {
	c.graceful.Store(true)
}

// Graceful reports whether the connection departed on purpose.
func (c *Connection) Graceful() bool {
	return c.graceful.Load()
}

// connKey addresses one registry slot: at most one active transport per
// (role, id) pair.
type connKey struct {
	role auth.Role
	id   string
}

// ReconnectCanceller cancels pending retry state for a device identity.
// Satisfied by *Scheduler.
type ReconnectCanceller interface {
	Reset(deviceID string)
}

// Registry is the in-memory map from peer identity to active transport.
// Admission supersedes any prior entry for the same identity and the
// superseded transport is force-closed, so stale handles never leak.
type Registry struct {
	mu    sync.RWMutex
	conns map[connKey]*Connection

	scheduler ReconnectCanceller // optional
	logger    Logger
}

// NewRegistry creates an empty connection registry. scheduler may be nil
// when no reconnection announcements are wanted (tests, tooling).
func NewRegistry(scheduler ReconnectCanceller) *Registry {
	return &Registry{
		conns:     make(map[connKey]*Connection),
		scheduler: scheduler,
		logger:    noopLogger{},
	}
}

// SetLogger installs a logger. Must be called before concurrent use.
func (r *Registry) SetLogger(l Logger) {
	if l != nil {
		r.logger = l
	}
}

// Admit installs identity's transport, superseding any prior entry for the
// same identity. The superseded transport is closed after the swap so the
// old goroutines unwind without racing the new connection. Admitting a
// device cancels its pending reconnection retries.
func (r *Registry) Admit(identity auth.Identity, transport Transport) *Connection {
	conn := &Connection{
		Identity:  identity,
		Transport: transport,
		ConnID:    uuid.NewString(),
	}

	key := connKey{role: identity.Role, id: identity.ID}

	r.mu.Lock()
	prior := r.conns[key]
	r.conns[key] = conn
	r.mu.Unlock()

	if prior != nil {
		// Closing outside the lock: Close may block on transport teardown.
		if err := prior.Transport.Close(); err != nil {
			r.logger.Debug("superseded transport close failed",
				"role", identity.Role, "id", identity.ID, "error", err)
		}
		r.logger.Info("connection superseded",
			"role", identity.Role, "id", identity.ID)
	}

	if identity.Role == auth.RoleDevice && r.scheduler != nil {
		r.scheduler.Reset(identity.ID)
	}

	r.logger.Debug("connection admitted",
		"role", identity.Role, "id", identity.ID, "conn_id", conn.ConnID)
	return conn
}

// Remove evicts conn from the registry. It only removes the entry if conn
// is still the current instance for its identity; a connection that was
// already superseded leaves the replacement untouched. Returns true if the
// entry was removed.
func (r *Registry) Remove(conn *Connection) bool {
	key := connKey{role: conn.Identity.Role, id: conn.Identity.ID}

	r.mu.Lock()
	current, ok := r.conns[key]
	if ok && current.ConnID == conn.ConnID {
		delete(r.conns, key)
		r.mu.Unlock()
		r.logger.Debug("connection removed",
			"role", conn.Identity.Role, "id", conn.Identity.ID)
		return true
	}
	r.mu.Unlock()
	return false
}

// Lookup returns the active connection for (role, id), if any.
func (r *Registry) Lookup(role auth.Role, id string) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, ok := r.conns[connKey{role: role, id: id}]
	return conn, ok
}

// LookupPeer resolves an envelope target by identity alone, trying the
// device namespace first, then dashboards. Signaling addresses carry no
// role, so both namespaces are consulted.
func (r *Registry) LookupPeer(id string) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if conn, ok := r.conns[connKey{role: auth.RoleDevice, id: id}]; ok {
		return conn, true
	}
	if conn, ok := r.conns[connKey{role: auth.RoleDashboard, id: id}]; ok {
		return conn, true
	}
	return nil, false
}

// ListByRole returns a snapshot of all connections with the given role.
func (r *Registry) ListByRole(role auth.Role) []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Connection, 0, len(r.conns))
	for key, conn := range r.conns {
		if key.role == role {
			out = append(out, conn)
		}
	}
	return out
}

// Count returns the number of admitted connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}

// BroadcastToDashboards sends v to every admitted dashboard transport.
// The connection list is snapshotted under the read lock, then sends
// happen outside it so one slow peer never stalls the registry.
func (r *Registry) BroadcastToDashboards(v any) {
	dashboards := r.ListByRole(auth.RoleDashboard)

	for _, conn := range dashboards {
		if err := conn.Transport.Send(v); err != nil {
			r.logger.Debug("dashboard broadcast send failed",
				"id", conn.Identity.ID, "error", err)
		}
	}
}

// CloseAll evicts every connection and closes its transport. Used on
// shutdown after the listener has stopped accepting.
func (r *Registry) CloseAll() {
	r.mu.Lock()
	conns := make([]*Connection, 0, len(r.conns))
	for key, conn := range r.conns {
		conns = append(conns, conn)
		delete(r.conns, key)
	}
	r.mu.Unlock()

	for _, conn := range conns {
		if err := conn.Transport.Close(); err != nil {
			r.logger.Debug("transport close failed",
				"id", conn.Identity.ID, "error", err)
		}
	}
}
