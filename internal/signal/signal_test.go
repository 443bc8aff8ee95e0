package signal

import (
	"sync"

	"github.com/nerrad567/farlink-core/internal/auth"
)

// mockTransport records sends for assertion and can simulate failures.
type mockTransport struct {
	mu      sync.Mutex
	sent    []any
	sendErr error
	closed  bool
}

func (m *mockTransport) Send(v any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	if m.closed {
		return ErrTransportClosed
	}
	m.sent = append(m.sent, v)
	return nil
}

func (m *mockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockTransport) sentMessages() []any {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]any, len(m.sent))
	copy(out, m.sent)
	return out
}

func (m *mockTransport) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

func deviceIdentity(id string) auth.Identity {
	return auth.Identity{Role: auth.RoleDevice, ID: id}
}

func dashboardIdentity(id string) auth.Identity {
	return auth.Identity{Role: auth.RoleDashboard, ID: id}
}

// mockCanceller records Reset calls from the connection registry.
type mockCanceller struct {
	mu     sync.Mutex
	resets []string
}

func (m *mockCanceller) Reset(deviceID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resets = append(m.resets, deviceID)
}

func (m *mockCanceller) resetCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.resets))
	copy(out, m.resets)
	return out
}

// mockHeartbeatSink records queued heartbeats.
type mockHeartbeatSink struct {
	mu     sync.Mutex
	queued []string
	full   bool
}

func (m *mockHeartbeatSink) QueueHeartbeat(deviceID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.full {
		return false
	}
	m.queued = append(m.queued, deviceID)
	return true
}

func (m *mockHeartbeatSink) heartbeats() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.queued))
	copy(out, m.queued)
	return out
}
