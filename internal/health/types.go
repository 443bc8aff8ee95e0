package health

import (
	"time"

	"github.com/nerrad567/farlink-core/internal/device"
)

// Event types recorded in the per-device journal.
const (
	EventStatusChange = "status-change"
	EventRegistered   = "registered"
)

// Event is one journaled liveness observation for a device. Events are
// append-only, partitioned by device and by UTC day.
type Event struct {
	DeviceID  string        `json:"deviceId"`
	EventType string        `json:"eventType"`
	OldStatus device.Status `json:"oldStatus"`
	NewStatus device.Status `json:"newStatus"`
	Timestamp time.Time     `json:"timestamp"`
}

// StatusSummary is a point-in-time census of device statuses, produced
// once per monitor tick and retained in a capped per-day ring buffer.
type StatusSummary struct {
	Timestamp      time.Time `json:"timestamp"`
	TotalDevices   int       `json:"totalDevices"`
	OnlineDevices  int       `json:"onlineDevices"`
	IdleDevices    int       `json:"idleDevices"`
	OfflineDevices int       `json:"offlineDevices"`
}

// Summarize counts devices by status at the given instant.
func Summarize(devices []device.Device, at time.Time) StatusSummary {
	s := StatusSummary{
		Timestamp:    at.UTC(),
		TotalDevices: len(devices),
	}
	for _, d := range devices {
		switch d.Status {
		case device.StatusOnline:
			s.OnlineDevices++
		case device.StatusIdle:
			s.IdleDevices++
		case device.StatusOffline:
			s.OfflineDevices++
		}
	}
	return s
}
