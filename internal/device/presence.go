package device

import "time"

// Default presence thresholds. A device that has been silent for longer
// than the idle threshold is idle; longer than the offline threshold,
// offline. Any observed activity makes it online.
const (
	DefaultIdleThreshold    = 60 * time.Second
	DefaultOfflineThreshold = 300 * time.Second
)

// Thresholds holds the silence durations that drive presence derivation.
type Thresholds struct {
	Idle    time.Duration
	Offline time.Duration
}

// DefaultThresholds returns the standard presence thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Idle:    DefaultIdleThreshold,
		Offline: DefaultOfflineThreshold,
	}
}

// DeriveStatus maps the time since a device was last seen to a target
// presence status. It is a pure function: the same silence always yields
// the same status.
//
// It is applied in two places:
//   - reactively, whenever LastSeen advances (silence is then ~zero, so
//     the result can only move toward online)
//   - proactively, once per monitor tick over every registered device
//     (silence grows, so the result can decay to idle or offline)
func DeriveStatus(silence time.Duration, t Thresholds) Status {
	switch {
	case silence > t.Offline:
		return StatusOffline
	case silence > t.Idle:
		return StatusIdle
	default:
		return StatusOnline
	}
}
