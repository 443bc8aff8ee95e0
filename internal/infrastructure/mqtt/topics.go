package mqtt

import "fmt"

// Topic prefixes for the Farlink presence bridge.
//
// The bridge mirrors device status transitions onto the broker and accepts
// out-of-band heartbeats from devices whose signaling transport is down.
const (
	// TopicPrefix is the base for all Farlink topics.
	TopicPrefix = "farlink"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "farlink/system"
)

// Topics provides builders for Farlink MQTT topics. Using these helpers
// keeps topic naming consistent across the codebase.
type Topics struct{}

// Presence returns the retained presence topic for a device.
//
// Example: farlink/presence/workstation-01
func (Topics) Presence(deviceID string) string {
	return fmt.Sprintf("%s/presence/%s", TopicPrefix, deviceID)
}

// Heartbeat returns the topic a device publishes liveness pings to.
//
// Example: farlink/heartbeat/workstation-01
func (Topics) Heartbeat(deviceID string) string {
	return fmt.Sprintf("%s/heartbeat/%s", TopicPrefix, deviceID)
}

// SystemStatus returns the core's own status topic (also the LWT target).
//
// Example: farlink/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllHeartbeats returns a pattern matching heartbeats from every device.
//
// Pattern: farlink/heartbeat/+
func (Topics) AllHeartbeats() string {
	return fmt.Sprintf("%s/heartbeat/+", TopicPrefix)
}

// AllPresence returns a pattern matching every device's presence topic.
//
// Pattern: farlink/presence/+
func (Topics) AllPresence() string {
	return fmt.Sprintf("%s/presence/+", TopicPrefix)
}

// AllTopics returns a pattern matching all Farlink topics.
// Use with caution - this receives ALL traffic.
//
// Pattern: farlink/#
func (Topics) AllTopics() string {
	return "farlink/#"
}
