package influxdb_test

import (
	"errors"
	"testing"
	"time"

	"github.com/nerrad567/farlink-core/internal/device"
	"github.com/nerrad567/farlink-core/internal/health"
	"github.com/nerrad567/farlink-core/internal/infrastructure/config"
	"github.com/nerrad567/farlink-core/internal/infrastructure/influxdb"
)

func testConfig() config.InfluxDBConfig {
	return config.InfluxDBConfig{
		Enabled:       true,
		URL:           "http://127.0.0.1:8086",
		Token:         "farlink-dev-token",
		Org:           "farlink",
		Bucket:        "telemetry",
		BatchSize:     100,
		FlushInterval: 1,
	}
}

// skipIfNoInfluxDB skips the test if no local InfluxDB is running.
func skipIfNoInfluxDB(t *testing.T) *influxdb.Client {
	t.Helper()

	client, err := influxdb.Connect(testConfig())
	if err != nil {
		t.Skip("InfluxDB not available, skipping integration test")
	}
	return client
}

func TestConnect_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false

	_, err := influxdb.Connect(cfg)
	if !errors.Is(err, influxdb.ErrDisabled) {
		t.Errorf("Connect() error = %v, want ErrDisabled", err)
	}
}

func TestConnect_Unreachable(t *testing.T) {
	cfg := testConfig()
	cfg.URL = "http://127.0.0.1:59999"

	_, err := influxdb.Connect(cfg)
	if err == nil {
		t.Fatal("Connect() should fail against an unreachable server")
	}
	if !errors.Is(err, influxdb.ErrConnectionFailed) {
		t.Errorf("Connect() error = %v, want ErrConnectionFailed", err)
	}
}

func TestWriteStatusSummary(t *testing.T) {
	client := skipIfNoInfluxDB(t)
	defer client.Close()

	client.WriteStatusSummary(health.StatusSummary{
		Timestamp:      time.Now(),
		TotalDevices:   3,
		OnlineDevices:  2,
		IdleDevices:    1,
		OfflineDevices: 0,
	})
	client.Flush()
}

func TestWriteStatusTransition(t *testing.T) {
	client := skipIfNoInfluxDB(t)
	defer client.Close()

	client.WriteStatusTransition("workstation-01", device.StatusOnline, device.StatusIdle, time.Now())
	client.Flush()
}

func TestHealthCheck_NotConnected(t *testing.T) {
	client := skipIfNoInfluxDB(t)
	client.Close()

	if client.IsConnected() {
		t.Error("IsConnected() = true after Close()")
	}
}
