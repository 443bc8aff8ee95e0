package device

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Logger defines the logging interface used by the Registry.
// This allows different logging implementations to be used.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Durable-write retry tuning. A transient store failure is retried with
// doubling delays before the mutation is rejected with ErrPersistence.
const (
	persistAttempts  = 3
	persistBaseDelay = 50 * time.Millisecond
)

// heartbeatQueueSize bounds the number of heartbeats waiting for durable
// persistence. The relay hot path never blocks on the store; when the
// queue is full the heartbeat is dropped and the next one catches up.
const heartbeatQueueSize = 1024

// StatusHook is invoked after a presence transition has been durably
// committed. The device is a private copy; the hook may retain it.
// Hooks run on the mutating goroutine with the registry write lock held:
// they must not block for long and must not call back into the registry.
type StatusHook func(d Device, change StatusChange)

// Registry provides device management with caching and thread safety.
// It wraps a Store and adds an in-memory write-through cache.
//
// Consistency rule (hard invariant): every mutation durably persists the
// record before the cache is updated, so the cache never reflects state
// that failed to persist. A cache miss on read falls through to the
// store and populates the cache.
//
// All public methods are thread-safe.
type Registry struct {
	store Store

	cache   map[string]*Device // cached devices by identity
	cacheMu sync.RWMutex       // protects cache

	// writeMu serialises mutations so the persist-then-cache sequence
	// for one identity can never interleave with another mutation of
	// the same identity.
	writeMu sync.Mutex

	heartbeats chan string

	hook   StatusHook
	hookMu sync.RWMutex

	logger Logger
	now    func() time.Time
}

// NewRegistry creates a new device registry.
// The store is used for persistence; the registry adds caching and the
// asynchronous heartbeat queue.
func NewRegistry(store Store) *Registry {
	return &Registry{
		store:      store,
		cache:      make(map[string]*Device),
		heartbeats: make(chan string, heartbeatQueueSize),
		logger:     noopLogger{},
		now:        time.Now,
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// SetStatusHook registers the hook invoked on every committed presence
// transition, from any mutation path (registration, explicit status
// update, heartbeat promotion, monitor sweep).
func (r *Registry) SetStatusHook(hook StatusHook) {
	r.hookMu.Lock()
	r.hook = hook
	r.hookMu.Unlock()
}

// RefreshCache reloads all devices from the store into the cache.
// This should be called on application startup.
func (r *Registry) RefreshCache(ctx context.Context) error {
	devices, err := r.store.List(ctx)
	if err != nil {
		return fmt.Errorf("loading devices: %w", err)
	}

	r.cacheMu.Lock()
	defer r.cacheMu.Unlock()

	r.cache = make(map[string]*Device, len(devices))
	for i := range devices {
		d := devices[i]
		r.cache[d.ID] = d.DeepCopy()
	}

	r.logger.Info("device cache refreshed", "count", len(devices))
	return nil
}

// Register creates or updates the durable record for a device identity.
//
// The upsert is idempotent: FirstSeen is preserved on repeat registration,
// the connection count accumulates, and metadata is merged with new values
// taking precedence. Registration is observed activity, so LastSeen
// advances and the device becomes online.
func (r *Registry) Register(ctx context.Context, id string, attrs RegisterAttrs) (*Device, error) {
	if id == "" {
		return nil, ErrInvalidIdentity
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	now := r.now().UTC()
	current, err := r.loadLocked(ctx, id)
	if err != nil && err != ErrNotFound { //nolint:errorlint // sentinel returned directly by loadLocked
		return nil, err
	}

	var updated *Device
	var change *StatusChange

	if current == nil {
		updated = &Device{
			ID:               id,
			Name:             attrs.Name,
			Status:           StatusOnline,
			FirstSeen:        now,
			LastConnection:   now,
			LastStatusChange: now,
			LastSeen:         now,
			ConnectionCount:  1,
			Metadata:         deepCopyMap(attrs.Metadata),
		}
		// A brand-new identity was unknown, which reads as offline
		// to any observer; surface its appearance as a transition.
		change = &StatusChange{Old: StatusOffline, New: StatusOnline, At: now}
	} else {
		updated = current.DeepCopy()
		updated.ConnectionCount++
		updated.LastConnection = now
		updated.LastSeen = maxTime(updated.LastSeen, now)
		if attrs.Name != "" {
			updated.Name = attrs.Name
		}
		if attrs.Metadata != nil {
			updated.Metadata = mergeMetadata(updated.Metadata, attrs.Metadata)
		}
		if updated.Status != StatusOnline {
			change = &StatusChange{Old: updated.Status, New: StatusOnline, At: now}
			updated.Status = StatusOnline
			updated.LastStatusChange = now
		}
	}

	if err := r.commitLocked(ctx, updated); err != nil {
		return nil, err
	}

	r.logger.Debug("device registered",
		"device_id", id,
		"connections", updated.ConnectionCount,
	)

	r.fireHook(updated, change)
	return updated.DeepCopy(), nil
}

// Get retrieves a device by identity.
// Returns ErrNotFound if the device does not exist.
// The returned device is a deep copy; callers can safely modify it.
func (r *Registry) Get(ctx context.Context, id string) (*Device, error) {
	r.cacheMu.RLock()
	cached, ok := r.cache[id]
	r.cacheMu.RUnlock()

	if ok {
		return cached.DeepCopy(), nil
	}

	// Fall back to the store (might be a record not yet cached)
	d, err := r.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	r.cacheMu.Lock()
	r.cache[id] = d.DeepCopy()
	r.cacheMu.Unlock()

	return d, nil
}

// List retrieves all devices.
// The returned devices are deep copies; callers can safely modify them.
func (r *Registry) List(ctx context.Context) ([]Device, error) {
	r.cacheMu.RLock()
	if len(r.cache) > 0 {
		devices := make([]Device, 0, len(r.cache))
		for _, d := range r.cache {
			devices = append(devices, *d.DeepCopy())
		}
		r.cacheMu.RUnlock()
		return devices, nil
	}
	r.cacheMu.RUnlock()

	return r.store.List(ctx)
}

// ListByStatus retrieves all devices currently in the given status.
func (r *Registry) ListByStatus(ctx context.Context, status Status) ([]Device, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}

	devices, err := r.List(ctx)
	if err != nil {
		return nil, err
	}

	filtered := devices[:0]
	for _, d := range devices {
		if d.Status == status {
			filtered = append(filtered, d)
		}
	}
	return filtered, nil
}

// Count returns the number of known devices.
func (r *Registry) Count() int {
	r.cacheMu.RLock()
	defer r.cacheMu.RUnlock()
	return len(r.cache)
}

// SetStatus applies an explicit presence status to a device.
//
// If the status is unchanged the call is a no-op: the current record is
// returned and LastStatusChange is not touched.
func (r *Registry) SetStatus(ctx context.Context, id string, status Status) (*Device, error) {
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}

	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	current, err := r.loadLocked(ctx, id)
	if err != nil {
		return nil, err
	}

	if current.Status == status {
		return current.DeepCopy(), nil
	}

	now := r.now().UTC()
	updated := current.DeepCopy()
	change := &StatusChange{Old: updated.Status, New: status, At: now}
	updated.Status = status
	updated.LastStatusChange = now

	if err := r.commitLocked(ctx, updated); err != nil {
		return nil, err
	}

	r.logger.Debug("device status changed",
		"device_id", id,
		"old", change.Old,
		"new", change.New,
	)

	r.fireHook(updated, change)
	return updated.DeepCopy(), nil
}

// TouchLastSeen records observed activity for a device.
//
// LastSeen only ever advances: a touch carrying an older wall clock than
// the stored value leaves it in place. Any observed activity implies
// reachability, so an idle or offline device is promoted to online.
func (r *Registry) TouchLastSeen(ctx context.Context, id string) (*Device, error) {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	current, err := r.loadLocked(ctx, id)
	if err != nil {
		return nil, err
	}

	now := r.now().UTC()
	updated := current.DeepCopy()
	updated.LastSeen = maxTime(updated.LastSeen, now)

	var change *StatusChange
	if updated.Status != StatusOnline {
		change = &StatusChange{Old: updated.Status, New: StatusOnline, At: now}
		updated.Status = StatusOnline
		updated.LastStatusChange = now
	}

	if err := r.commitLocked(ctx, updated); err != nil {
		return nil, err
	}

	r.fireHook(updated, change)
	return updated.DeepCopy(), nil
}

// Cleanup removes devices that have not been seen within the horizon.
// It returns the identities that were removed. This is the only path
// that ever deletes a device record.
func (r *Registry) Cleanup(ctx context.Context, horizon time.Duration) ([]string, error) {
	cutoff := r.now().UTC().Add(-horizon)

	devices, err := r.List(ctx)
	if err != nil {
		return nil, err
	}

	var removed []string
	for _, d := range devices {
		if !d.LastSeen.Before(cutoff) {
			continue
		}

		r.writeMu.Lock()
		err := r.store.Delete(ctx, d.ID)
		if err == nil {
			r.cacheMu.Lock()
			delete(r.cache, d.ID)
			r.cacheMu.Unlock()
			removed = append(removed, d.ID)
		}
		r.writeMu.Unlock()

		if err != nil && err != ErrNotFound { //nolint:errorlint // sentinel returned directly by store
			return removed, fmt.Errorf("removing device %s: %w", d.ID, err)
		}
	}

	if len(removed) > 0 {
		r.logger.Info("retention cleanup removed devices",
			"count", len(removed),
			"horizon", horizon.String(),
		)
	}
	return removed, nil
}

// QueueHeartbeat enqueues a heartbeat for asynchronous persistence.
// It never blocks; it reports false when the queue is full and the
// heartbeat was dropped.
func (r *Registry) QueueHeartbeat(id string) bool {
	select {
	case r.heartbeats <- id:
		return true
	default:
		r.logger.Warn("heartbeat queue full, dropping", "device_id", id)
		return false
	}
}

// Run drains the heartbeat queue until the context is cancelled.
// It is the single consumer of heartbeats queued by the relay path.
func (r *Registry) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-r.heartbeats:
			if _, err := r.TouchLastSeen(ctx, id); err != nil {
				if ctx.Err() != nil {
					return
				}
				r.logger.Warn("heartbeat persistence failed",
					"device_id", id,
					"error", err,
				)
			}
		}
	}
}

// loadLocked returns the current record for an identity, preferring the
// cache. Callers must hold writeMu.
func (r *Registry) loadLocked(ctx context.Context, id string) (*Device, error) {
	r.cacheMu.RLock()
	cached, ok := r.cache[id]
	r.cacheMu.RUnlock()

	if ok {
		return cached, nil
	}
	return r.store.GetByID(ctx, id)
}

// commitLocked persists the record and then updates the cache. The store
// write is retried with backoff; if every attempt fails the mutation is
// rejected and the cache is left at the last durably-confirmed state.
// Callers must hold writeMu.
func (r *Registry) commitLocked(ctx context.Context, d *Device) error {
	var lastErr error
	delay := persistBaseDelay

	for attempt := 1; attempt <= persistAttempts; attempt++ {
		lastErr = r.store.Save(ctx, d)
		if lastErr == nil {
			r.cacheMu.Lock()
			r.cache[d.ID] = d.DeepCopy()
			r.cacheMu.Unlock()
			return nil
		}

		if attempt < persistAttempts {
			select {
			case <-ctx.Done():
				return fmt.Errorf("%w: %w", ErrPersistence, ctx.Err())
			case <-time.After(delay):
			}
			delay *= 2
		}
	}

	r.logger.Error("durable write failed, mutation rejected",
		"device_id", d.ID,
		"attempts", persistAttempts,
		"error", lastErr,
	)
	return fmt.Errorf("%w: %w", ErrPersistence, lastErr)
}

// fireHook invokes the status hook for a committed transition, if any.
func (r *Registry) fireHook(d *Device, change *StatusChange) {
	if change == nil {
		return
	}

	r.hookMu.RLock()
	hook := r.hook
	r.hookMu.RUnlock()

	if hook != nil {
		hook(*d.DeepCopy(), *change)
	}
}

// maxTime returns the later of two timestamps.
func maxTime(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}
