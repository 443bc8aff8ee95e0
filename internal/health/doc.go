// Package health tracks device liveness over time. The Journal is an
// append-only file store of per-device status events plus per-day ring
// buffers of system-wide status summaries; the Monitor is the periodic
// sweep that decays silent devices toward idle and offline, journals every
// transition, and pushes updates to connected dashboards.
package health
