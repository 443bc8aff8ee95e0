package signal

import (
	"time"

	"github.com/nerrad567/farlink-core/internal/device"
)

// Broadcast event types pushed to dashboard transports.
const (
	EventDeviceStatusUpdate = "device-status-update"
	EventDeviceList         = "device-list"
	EventReconnectAttempt   = "reconnect-attempt"
	EventConnectionError    = "connection-error"
)

// StatusUpdateEvent announces a single device's status transition.
type StatusUpdateEvent struct {
	Type      string        `json:"type"`
	DeviceID  string        `json:"deviceId"`
	Status    device.Status `json:"status"`
	Timestamp string        `json:"timestamp"`
}

// NewStatusUpdate builds a status-update event for broadcast.
func NewStatusUpdate(deviceID string, status device.Status, at time.Time) StatusUpdateEvent {
	return StatusUpdateEvent{
		Type:      EventDeviceStatusUpdate,
		DeviceID:  deviceID,
		Status:    status,
		Timestamp: at.UTC().Format(time.RFC3339),
	}
}

// DeviceListEvent carries the full device inventory, sent to dashboards
// on admission so they start from a complete picture.
type DeviceListEvent struct {
	Type    string          `json:"type"`
	Devices []device.Device `json:"devices"`
}

// NewDeviceList builds a device-list event for a freshly admitted dashboard.
func NewDeviceList(devices []device.Device) DeviceListEvent {
	if devices == nil {
		devices = []device.Device{}
	}
	return DeviceListEvent{Type: EventDeviceList, Devices: devices}
}

// ReconnectAttemptEvent announces one scheduled reconnection attempt for
// a device that dropped abnormally. The scheduler informs; it never dials.
type ReconnectAttemptEvent struct {
	Type      string `json:"type"`
	DeviceID  string `json:"deviceId"`
	Attempt   int    `json:"attempt"`
	Timestamp string `json:"timestamp"`
}

// NewReconnectAttempt builds a reconnect-attempt event for broadcast.
func NewReconnectAttempt(deviceID string, attempt int, at time.Time) ReconnectAttemptEvent {
	return ReconnectAttemptEvent{
		Type:      EventReconnectAttempt,
		DeviceID:  deviceID,
		Attempt:   attempt,
		Timestamp: at.UTC().Format(time.RFC3339),
	}
}

// ConnectionErrorEvent tells a sender that its envelope could not be
// delivered. Routing fails closed: nothing is silently dropped.
type ConnectionErrorEvent struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// NewConnectionError builds a connection-error event for the sender.
func NewConnectionError(message string) ConnectionErrorEvent {
	return ConnectionErrorEvent{Type: EventConnectionError, Error: message}
}
