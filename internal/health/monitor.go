package health

import (
	"context"
	"time"

	"github.com/nerrad567/farlink-core/internal/device"
	"github.com/nerrad567/farlink-core/internal/signal"
)

// Logger is the minimal logging interface this package needs. It is
// satisfied by *logging.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Broadcaster pushes events to every admitted dashboard. Satisfied by
// *signal.Registry.
type Broadcaster interface {
	BroadcastToDashboards(v any)
}

// PresencePublisher mirrors status transitions onto an external bus.
// Satisfied by *mqtt.Client. Optional.
type PresencePublisher interface {
	PublishPresence(deviceID string, status device.Status, at time.Time) error
}

// SummaryWriter records per-tick summaries in a time-series store.
// Satisfied by *influxdb.Client. Optional.
type SummaryWriter interface {
	WriteStatusSummary(s StatusSummary)
}

// Monitor is the periodic liveness sweep. Once per tick it re-derives
// every device's status from its silence interval, persists decays
// through the registry, journals one summary, and broadcasts changes.
//
// Status transitions themselves are journaled and broadcast through
// HandleStatusChange, which the monitor installs as the registry's status
// hook so reactive promotions (heartbeats) and proactive decays (ticks)
// flow through the same path.
type Monitor struct {
	registry  *device.Registry
	journal   *Journal
	broadcast Broadcaster

	presence  PresencePublisher // optional
	telemetry SummaryWriter     // optional

	thresholds device.Thresholds
	interval   time.Duration
	logger     Logger
	now        func() time.Time
}

// NewMonitor creates a monitor sweeping at the given interval and wires
// itself in as the registry's status hook. presence and telemetry may be
// nil when those integrations are not configured.
func NewMonitor(
	registry *device.Registry,
	journal *Journal,
	broadcast Broadcaster,
	thresholds device.Thresholds,
	interval time.Duration,
) *Monitor {
	if interval <= 0 {
		interval = time.Minute
	}
	m := &Monitor{
		registry:   registry,
		journal:    journal,
		broadcast:  broadcast,
		thresholds: thresholds,
		interval:   interval,
		logger:     noopLogger{},
		now:        time.Now,
	}
	registry.SetStatusHook(m.HandleStatusChange)
	return m
}

// SetLogger installs a logger. Must be called before Run.
func (m *Monitor) SetLogger(l Logger) {
	if l != nil {
		m.logger = l
	}
}

// SetPresencePublisher wires an external presence bus. Must be called
// before Run.
func (m *Monitor) SetPresencePublisher(p PresencePublisher) {
	m.presence = p
}

// SetSummaryWriter wires a telemetry sink for tick summaries. Must be
// called before Run.
func (m *Monitor) SetSummaryWriter(w SummaryWriter) {
	m.telemetry = w
}

// HandleStatusChange journals and broadcasts a single device transition.
// It runs inside the registry's mutation path and must not call back into
// the registry.
func (m *Monitor) HandleStatusChange(d device.Device, change device.StatusChange) {
	ev := Event{
		DeviceID:  d.ID,
		EventType: EventStatusChange,
		OldStatus: change.Old,
		NewStatus: change.New,
		Timestamp: change.At.UTC(),
	}
	if err := m.journal.AppendEvent(ev); err != nil {
		m.logger.Error("journal append failed",
			"device_id", d.ID, "error", err)
	}

	m.broadcast.BroadcastToDashboards(
		signal.NewStatusUpdate(d.ID, change.New, change.At))

	if m.presence != nil {
		if err := m.presence.PublishPresence(d.ID, change.New, change.At); err != nil {
			m.logger.Warn("presence publish failed",
				"device_id", d.ID, "error", err)
		}
	}

	m.logger.Info("device status changed",
		"device_id", d.ID, "old", change.Old, "new", change.New)
}

// Run executes the sweep loop until ctx is cancelled. One tick fires
// immediately so a restart does not leave decayed devices unmarked for a
// full interval.
func (m *Monitor) Run(ctx context.Context) {
	m.logger.Info("health monitor started",
		"interval", m.interval,
		"idle_threshold", m.thresholds.Idle,
		"offline_threshold", m.thresholds.Offline)

	m.Tick(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("health monitor stopped")
			return
		case <-ticker.C:
			m.Tick(ctx)
		}
	}
}

// Tick performs one sweep: decay silent devices, then record and publish
// a status census. Exported for deterministic tests and manual triggers.
func (m *Monitor) Tick(ctx context.Context) {
	now := m.now()

	devices, err := m.registry.List(ctx)
	if err != nil {
		m.logger.Error("device list failed during sweep", "error", err)
		return
	}

	changed := 0
	for i := range devices {
		d := &devices[i]
		target := device.DeriveStatus(now.Sub(d.LastSeen), m.thresholds)
		if target == d.Status {
			continue
		}
		updated, err := m.registry.SetStatus(ctx, d.ID, target)
		if err != nil {
			m.logger.Error("status decay failed",
				"device_id", d.ID, "target", target, "error", err)
			continue
		}
		devices[i] = *updated
		changed++
	}

	summary := Summarize(devices, now)
	if err := m.journal.AppendSummary(summary); err != nil {
		m.logger.Error("summary append failed", "error", err)
	}
	if m.telemetry != nil {
		m.telemetry.WriteStatusSummary(summary)
	}

	m.logger.Debug("sweep complete",
		"total", summary.TotalDevices,
		"online", summary.OnlineDevices,
		"idle", summary.IdleDevices,
		"offline", summary.OfflineDevices,
		"transitions", changed)
}

// RunRetention prunes journal files older than the horizon once per day
// until ctx is cancelled. Call in its own goroutine when retention is
// enabled.
func (m *Monitor) RunRetention(ctx context.Context, horizon time.Duration) {
	prune := func() {
		cutoff := m.now().Add(-horizon)
		n, err := m.journal.Prune(cutoff)
		if err != nil {
			m.logger.Error("journal prune failed", "error", err)
			return
		}
		if n > 0 {
			m.logger.Info("journal pruned", "files_removed", n)
		}
	}

	prune()

	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			prune()
		}
	}
}
