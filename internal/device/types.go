package device

import "time"

// Status is the derived reachability state of a device.
type Status string

// Presence states, derived from heartbeat recency.
const (
	StatusOnline  Status = "online"
	StatusIdle    Status = "idle"
	StatusOffline Status = "offline"
)

// Valid reports whether s is a recognised presence status.
func (s Status) Valid() bool {
	switch s {
	case StatusOnline, StatusIdle, StatusOffline:
		return true
	}
	return false
}

// Device is the durable record for a monitored agent.
//
// Identity is an opaque string, stable across reconnects. Two invariants
// hold for every mutation path:
//   - LastStatusChange updates if and only if Status changes.
//   - LastSeen never decreases.
type Device struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Status Status `json:"status"`

	FirstSeen        time.Time `json:"firstSeen"`
	LastConnection   time.Time `json:"lastConnection"`
	LastStatusChange time.Time `json:"lastStatusChange"`
	LastSeen         time.Time `json:"lastSeen"`

	ConnectionCount int            `json:"connectionCount"`
	Metadata        map[string]any `json:"metadata,omitempty"`
}

// RegisterAttrs carries the caller-supplied attributes for Register.
type RegisterAttrs struct {
	Name     string
	Metadata map[string]any
}

// StatusChange describes a committed presence transition.
type StatusChange struct {
	Old Status
	New Status
	At  time.Time
}

// DeepCopy creates a complete independent copy of the Device.
// The metadata map is cloned so modifications to the copy do not
// affect the original. This is essential for cache isolation.
func (d *Device) DeepCopy() *Device {
	if d == nil {
		return nil
	}

	cpy := *d
	cpy.Metadata = deepCopyMap(d.Metadata)
	return &cpy
}

// deepCopyMap creates a deep copy of a map[string]any.
// Nested maps and slices are recursively copied.
func deepCopyMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	cpy := make(map[string]any, len(m))
	for k, v := range m {
		cpy[k] = deepCopyValue(v)
	}
	return cpy
}

// deepCopyValue copies nested maps and slices; scalars are returned as-is.
func deepCopyValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return deepCopyMap(val)
	case []any:
		cpy := make([]any, len(val))
		for i, item := range val {
			cpy[i] = deepCopyValue(item)
		}
		return cpy
	default:
		return v
	}
}

// mergeMetadata merges incoming metadata into existing, with incoming
// values taking precedence. Neither input map is mutated.
func mergeMetadata(existing, incoming map[string]any) map[string]any {
	if existing == nil && incoming == nil {
		return nil
	}
	merged := deepCopyMap(existing)
	if merged == nil {
		merged = make(map[string]any, len(incoming))
	}
	for k, v := range incoming {
		merged[k] = deepCopyValue(v)
	}
	return merged
}
