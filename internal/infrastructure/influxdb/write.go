package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/farlink-core/internal/device"
	"github.com/nerrad567/farlink-core/internal/health"
)

// WriteStatusSummary records a fleet-wide presence snapshot.
//
// The health monitor calls this once per sweep. The write is non-blocking;
// points are batched and sent asynchronously. Satisfies the monitor's
// SummaryWriter interface.
func (c *Client) WriteStatusSummary(s health.StatusSummary) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"device_status",
		nil,
		map[string]interface{}{
			"total":   s.TotalDevices,
			"online":  s.OnlineDevices,
			"idle":    s.IdleDevices,
			"offline": s.OfflineDevices,
		},
		s.Timestamp,
	)

	c.writeAPI.WritePoint(point)
}

// WriteStatusTransition records a single device presence transition.
//
// Tags carry the device and both statuses so dashboards can break down
// churn by device or by transition kind.
func (c *Client) WriteStatusTransition(deviceID string, oldStatus, newStatus device.Status, at time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"status_transition",
		map[string]string{
			"device_id":  deviceID,
			"old_status": string(oldStatus),
			"new_status": string(newStatus),
		},
		map[string]interface{}{
			"count": 1,
		},
		at,
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for measurements that don't fit the helper methods.
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// WritePointWithTime writes a custom point with a specific timestamp.
//
// Use this when the timestamp is not "now" (e.g., replayed journal data).
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
