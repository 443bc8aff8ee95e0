package health

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/farlink-core/internal/device"
	"github.com/nerrad567/farlink-core/internal/signal"
)

// memStore is an in-memory device.Store for monitor tests.
type memStore struct {
	mu      sync.Mutex
	devices map[string]device.Device
}

func newMemStore() *memStore {
	return &memStore{devices: make(map[string]device.Device)}
}

func (s *memStore) GetByID(_ context.Context, id string) (*device.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.devices[id]
	if !ok {
		return nil, device.ErrNotFound
	}
	return d.DeepCopy(), nil
}

func (s *memStore) List(_ context.Context) ([]device.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]device.Device, 0, len(s.devices))
	for _, d := range s.devices {
		out = append(out, *d.DeepCopy())
	}
	return out, nil
}

func (s *memStore) ListByStatus(_ context.Context, status device.Status) ([]device.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []device.Device{}
	for _, d := range s.devices {
		if d.Status == status {
			out = append(out, *d.DeepCopy())
		}
	}
	return out, nil
}

func (s *memStore) Save(_ context.Context, d *device.Device) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.devices[d.ID] = *d.DeepCopy()
	return nil
}

func (s *memStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.devices[id]; !ok {
		return device.ErrNotFound
	}
	delete(s.devices, id)
	return nil
}

// recordingBroadcaster captures dashboard broadcasts.
type recordingBroadcaster struct {
	mu     sync.Mutex
	events []any
}

func (b *recordingBroadcaster) BroadcastToDashboards(v any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, v)
}

func (b *recordingBroadcaster) statusUpdates() []signal.StatusUpdateEvent {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []signal.StatusUpdateEvent
	for _, v := range b.events {
		if ev, ok := v.(signal.StatusUpdateEvent); ok {
			out = append(out, ev)
		}
	}
	return out
}

type monitorFixture struct {
	registry  *device.Registry
	journal   *Journal
	broadcast *recordingBroadcaster
	monitor   *Monitor
	offset    time.Duration // added to real time for the monitor's clock
	mu        sync.Mutex
}

func newMonitorFixture(t *testing.T) *monitorFixture {
	t.Helper()
	f := &monitorFixture{
		registry:  device.NewRegistry(newMemStore()),
		broadcast: &recordingBroadcaster{},
	}

	j, err := NewJournal(t.TempDir(), 0)
	if err != nil {
		t.Fatalf("NewJournal() error = %v", err)
	}
	f.journal = j

	f.monitor = NewMonitor(f.registry, j, f.broadcast,
		device.DefaultThresholds(), time.Minute)
	f.monitor.now = func() time.Time {
		f.mu.Lock()
		defer f.mu.Unlock()
		return time.Now().Add(f.offset)
	}
	return f
}

func (f *monitorFixture) advance(d time.Duration) {
	f.mu.Lock()
	f.offset = d
	f.mu.Unlock()
}

func TestMonitor_SilenceDecaysThroughIdleToOffline(t *testing.T) {
	f := newMonitorFixture(t)
	ctx := context.Background()

	if _, err := f.registry.Register(ctx, "d1", device.RegisterAttrs{Name: "Desk"}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	// Within the idle threshold: nothing changes.
	f.advance(30 * time.Second)
	f.monitor.Tick(ctx)
	d, err := f.registry.Get(ctx, "d1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if d.Status != device.StatusOnline {
		t.Fatalf("status after 30s = %s, want online", d.Status)
	}

	// Past the idle threshold.
	f.advance(61 * time.Second)
	f.monitor.Tick(ctx)
	d, _ = f.registry.Get(ctx, "d1")
	if d.Status != device.StatusIdle {
		t.Fatalf("status after 61s = %s, want idle", d.Status)
	}

	// Past the offline threshold.
	f.advance(301 * time.Second)
	f.monitor.Tick(ctx)
	d, _ = f.registry.Get(ctx, "d1")
	if d.Status != device.StatusOffline {
		t.Fatalf("status after 301s = %s, want offline", d.Status)
	}

	// A heartbeat restores online immediately, without waiting for a tick.
	if _, err := f.registry.TouchLastSeen(ctx, "d1"); err != nil {
		t.Fatalf("TouchLastSeen() error = %v", err)
	}
	d, _ = f.registry.Get(ctx, "d1")
	if d.Status != device.StatusOnline {
		t.Fatalf("status after heartbeat = %s, want online", d.Status)
	}

	// Full transition history in the journal: registration, decay to
	// idle, decay to offline, heartbeat restore.
	events, err := f.journal.EventsForDevice("d1", time.Now())
	if err != nil {
		t.Fatalf("EventsForDevice() error = %v", err)
	}
	wantTransitions := []struct{ old, new device.Status }{
		{device.StatusOffline, device.StatusOnline},
		{device.StatusOnline, device.StatusIdle},
		{device.StatusIdle, device.StatusOffline},
		{device.StatusOffline, device.StatusOnline},
	}
	if len(events) != len(wantTransitions) {
		t.Fatalf("journal has %d events, want %d: %+v", len(events), len(wantTransitions), events)
	}
	for i, want := range wantTransitions {
		if events[i].OldStatus != want.old || events[i].NewStatus != want.new {
			t.Errorf("event[%d] = %s->%s, want %s->%s",
				i, events[i].OldStatus, events[i].NewStatus, want.old, want.new)
		}
	}
}

func TestMonitor_TransitionsBroadcastToDashboards(t *testing.T) {
	f := newMonitorFixture(t)
	ctx := context.Background()

	if _, err := f.registry.Register(ctx, "d1", device.RegisterAttrs{}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	f.advance(61 * time.Second)
	f.monitor.Tick(ctx)

	updates := f.broadcast.statusUpdates()
	if len(updates) != 2 {
		t.Fatalf("broadcast %d status updates, want 2 (registration + idle)", len(updates))
	}
	last := updates[len(updates)-1]
	if last.DeviceID != "d1" || last.Status != device.StatusIdle {
		t.Errorf("last update = %+v, want d1 idle", last)
	}
	if last.Type != signal.EventDeviceStatusUpdate {
		t.Errorf("update type = %q, want %q", last.Type, signal.EventDeviceStatusUpdate)
	}
}

func TestMonitor_TickWritesOneSummary(t *testing.T) {
	f := newMonitorFixture(t)
	ctx := context.Background()

	for _, id := range []string{"d1", "d2", "d3"} {
		if _, err := f.registry.Register(ctx, id, device.RegisterAttrs{}); err != nil {
			t.Fatalf("Register(%s) error = %v", id, err)
		}
	}

	f.monitor.Tick(ctx)
	f.advance(61 * time.Second)
	f.monitor.Tick(ctx)

	summaries, err := f.journal.SummariesForDay(time.Now())
	if err != nil {
		t.Fatalf("SummariesForDay() error = %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("summaries = %d, want one per tick", len(summaries))
	}
	if summaries[0].TotalDevices != 3 || summaries[0].OnlineDevices != 3 {
		t.Errorf("first summary = %+v, want 3 online", summaries[0])
	}
	if summaries[1].IdleDevices != 3 {
		t.Errorf("second summary = %+v, want 3 idle after silence", summaries[1])
	}
}

func TestMonitor_StableDevicesUntouchedByTick(t *testing.T) {
	f := newMonitorFixture(t)
	ctx := context.Background()

	if _, err := f.registry.Register(ctx, "d1", device.RegisterAttrs{}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	before, _ := f.registry.Get(ctx, "d1")

	f.monitor.Tick(ctx)
	f.monitor.Tick(ctx)

	after, err := f.registry.Get(ctx, "d1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if !after.LastStatusChange.Equal(before.LastStatusChange) {
		t.Error("tick with no transition moved LastStatusChange")
	}

	// Only the registration update was broadcast.
	if n := len(f.broadcast.statusUpdates()); n != 1 {
		t.Errorf("status updates = %d, want 1", n)
	}
}

func TestMonitor_PresencePublisherNotified(t *testing.T) {
	f := newMonitorFixture(t)
	ctx := context.Background()

	var mu sync.Mutex
	published := make(map[string]device.Status)
	f.monitor.SetPresencePublisher(presenceFunc(func(id string, st device.Status, _ time.Time) error {
		mu.Lock()
		defer mu.Unlock()
		published[id] = st
		return nil
	}))

	if _, err := f.registry.Register(ctx, "d1", device.RegisterAttrs{}); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	f.advance(61 * time.Second)
	f.monitor.Tick(ctx)

	mu.Lock()
	defer mu.Unlock()
	if published["d1"] != device.StatusIdle {
		t.Errorf("published status = %s, want idle", published["d1"])
	}
}

// presenceFunc adapts a function to the PresencePublisher interface.
type presenceFunc func(deviceID string, status device.Status, at time.Time) error

func (f presenceFunc) PublishPresence(deviceID string, status device.Status, at time.Time) error {
	return f(deviceID, status, at)
}
