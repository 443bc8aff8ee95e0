package mqtt

import (
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/farlink-core/internal/device"
	"github.com/nerrad567/farlink-core/internal/infrastructure/config"
)

// disconnectedClient returns a client that was never connected. Operations
// against it must fail with ErrNotConnected rather than panic.
func disconnectedClient() *Client {
	return &Client{
		cfg: config.MQTTConfig{
			Broker: config.MQTTBrokerConfig{
				Host:     "127.0.0.1",
				Port:     1883,
				ClientID: "farlink-test",
			},
			QoS: 1,
		},
		subscriptions: make(map[string]subscription),
	}
}

func TestTopics(t *testing.T) {
	topics := Topics{}

	tests := []struct {
		name     string
		got      string
		expected string
	}{
		{"presence", topics.Presence("workstation-01"), "farlink/presence/workstation-01"},
		{"heartbeat", topics.Heartbeat("workstation-01"), "farlink/heartbeat/workstation-01"},
		{"system status", topics.SystemStatus(), "farlink/system/status"},
		{"all heartbeats", topics.AllHeartbeats(), "farlink/heartbeat/+"},
		{"all presence", topics.AllPresence(), "farlink/presence/+"},
		{"all topics", topics.AllTopics(), "farlink/#"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.expected {
				t.Errorf("got %q, want %q", tt.got, tt.expected)
			}
		})
	}
}

func TestPublishValidation(t *testing.T) {
	c := disconnectedClient()

	if err := c.Publish("", []byte("x"), 1, false); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("empty topic error = %v, want ErrInvalidTopic", err)
	}
	if err := c.Publish("farlink/test", []byte("x"), 3, false); !errors.Is(err, ErrInvalidQoS) {
		t.Errorf("bad qos error = %v, want ErrInvalidQoS", err)
	}
	if err := c.Publish("farlink/test", []byte("x"), 1, false); !errors.Is(err, ErrNotConnected) {
		t.Errorf("disconnected publish error = %v, want ErrNotConnected", err)
	}
}

func TestSubscribeValidation(t *testing.T) {
	c := disconnectedClient()
	handler := func(string, []byte) error { return nil }

	if err := c.Subscribe("", 1, handler); !errors.Is(err, ErrInvalidTopic) {
		t.Errorf("empty topic error = %v, want ErrInvalidTopic", err)
	}
	if err := c.Subscribe("farlink/test", 1, nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("nil handler error = %v, want ErrSubscribeFailed", err)
	}
	if err := c.Subscribe("farlink/test", 1, handler); !errors.Is(err, ErrNotConnected) {
		t.Errorf("disconnected subscribe error = %v, want ErrNotConnected", err)
	}
}

func TestPublishPresenceRequiresConnection(t *testing.T) {
	c := disconnectedClient()

	err := c.PublishPresence("dev-1", device.StatusOnline, time.Now())
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("error = %v, want ErrNotConnected", err)
	}
}

func TestSubscribeHeartbeatsNilHandler(t *testing.T) {
	c := disconnectedClient()

	if err := c.SubscribeHeartbeats(nil); !errors.Is(err, ErrSubscribeFailed) {
		t.Errorf("error = %v, want ErrSubscribeFailed", err)
	}
}

func TestDeviceIDFromHeartbeatTopic(t *testing.T) {
	tests := []struct {
		topic string
		want  string
	}{
		{"farlink/heartbeat/workstation-01", "workstation-01"},
		{"farlink/heartbeat/", ""},
		{"farlink/presence/workstation-01", ""},
		{"farlink/heartbeat/a/b", ""},
		{"other/heartbeat/x", ""},
	}

	for _, tt := range tests {
		if got := deviceIDFromHeartbeatTopic(tt.topic); got != tt.want {
			t.Errorf("deviceIDFromHeartbeatTopic(%q) = %q, want %q", tt.topic, got, tt.want)
		}
	}
}

func TestSubscriptionTracking(t *testing.T) {
	c := disconnectedClient()

	if c.SubscriptionCount() != 0 {
		t.Errorf("SubscriptionCount() = %d, want 0", c.SubscriptionCount())
	}
	if c.HasSubscription("farlink/heartbeat/+") {
		t.Error("HasSubscription() = true on empty client")
	}
}
