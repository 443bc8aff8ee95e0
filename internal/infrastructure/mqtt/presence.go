package mqtt

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/farlink-core/internal/device"
)

// presenceMessage is the retained payload published on a device's
// presence topic.
type presenceMessage struct {
	DeviceID  string        `json:"deviceId"`
	Status    device.Status `json:"status"`
	Timestamp string        `json:"timestamp"`
}

// PublishPresence mirrors a device status transition onto the broker as a
// retained message, so late subscribers see each device's current status.
// Satisfies the health monitor's PresencePublisher interface.
func (c *Client) PublishPresence(deviceID string, status device.Status, at time.Time) error {
	payload, err := json.Marshal(presenceMessage{
		DeviceID:  deviceID,
		Status:    status,
		Timestamp: at.UTC().Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}

	return c.PublishRetained(Topics{}.Presence(deviceID), payload)
}

// HeartbeatHandler receives the device identity from an out-of-band
// heartbeat publication.
type HeartbeatHandler func(deviceID string)

// SubscribeHeartbeats delivers device heartbeats arriving over the broker
// to the handler. Devices without a live signaling transport (NAT-ed
// agents, constrained links) stay visible this way.
func (c *Client) SubscribeHeartbeats(handler HeartbeatHandler) error {
	if handler == nil {
		return fmt.Errorf("%w: handler cannot be nil", ErrSubscribeFailed)
	}

	return c.Subscribe(Topics{}.AllHeartbeats(), byte(c.cfg.QoS),
		func(topic string, _ []byte) error {
			deviceID := deviceIDFromHeartbeatTopic(topic)
			if deviceID == "" {
				return fmt.Errorf("heartbeat on malformed topic %q", topic)
			}
			handler(deviceID)
			return nil
		})
}

// deviceIDFromHeartbeatTopic extracts the device identity from
// farlink/heartbeat/{deviceId}.
func deviceIDFromHeartbeatTopic(topic string) string {
	const prefix = TopicPrefix + "/heartbeat/"
	if !strings.HasPrefix(topic, prefix) {
		return ""
	}
	id := strings.TrimPrefix(topic, prefix)
	if strings.Contains(id, "/") {
		return ""
	}
	return id
}
