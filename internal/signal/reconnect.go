package signal

import (
	"sync"
	"time"
)

// Reconnection defaults. Backoff doubles from the initial delay on every
// attempt: 2s, 4s, 8s, 16s, 32s with the default settings.
const (
	DefaultMaxAttempts  = 5
	DefaultInitialDelay = 2 * time.Second
)

// NotifyFunc is invoked once per fired reconnection attempt, outside the
// scheduler's lock. attempt counts from 1.
type NotifyFunc func(deviceID string, attempt int)

// retryState tracks one device's pending reconnection attempts.
type retryState struct {
	attempts int
	timer    *time.Timer
}

// Scheduler announces bounded reconnection attempts for devices that
// dropped abnormally. It never dials out: each fired attempt only calls
// the notify function, which in practice broadcasts a reconnect-attempt
// event to dashboards. Re-admission of the device resets its state and
// cancels the pending timer.
type Scheduler struct {
	mu      sync.Mutex
	entries map[string]*retryState
	stopped bool

	notify       NotifyFunc
	maxAttempts  int
	initialDelay time.Duration
	logger       Logger
}

// NewScheduler creates a scheduler firing notify for each attempt.
// Non-positive maxAttempts or initialDelay fall back to the defaults.
func NewScheduler(maxAttempts int, initialDelay time.Duration, notify NotifyFunc) *Scheduler {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if initialDelay <= 0 {
		initialDelay = DefaultInitialDelay
	}
	return &Scheduler{
		entries:      make(map[string]*retryState),
		notify:       notify,
		maxAttempts:  maxAttempts,
		initialDelay: initialDelay,
		logger:       noopLogger{},
	}
}

// SetLogger installs a logger. Must be called before concurrent use.
func (s *Scheduler) SetLogger(l Logger) {
	if l != nil {
		s.logger = l
	}
}

// Schedule arms the retry sequence for deviceID. A device that already
// has a pending sequence is left alone; scheduling is not cumulative.
func (s *Scheduler) Schedule(deviceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return
	}
	if _, exists := s.entries[deviceID]; exists {
		return
	}

	state := &retryState{}
	state.timer = time.AfterFunc(s.initialDelay, func() {
		s.fire(deviceID)
	})
	s.entries[deviceID] = state

	s.logger.Debug("reconnection scheduled",
		"device_id", deviceID, "delay", s.initialDelay)
}

// fire handles one elapsed retry timer: bump the attempt counter, notify,
// and re-arm with a doubled delay while under the cap.
func (s *Scheduler) fire(deviceID string) {
	s.mu.Lock()
	state, ok := s.entries[deviceID]
	if !ok || s.stopped {
		s.mu.Unlock()
		return
	}

	state.attempts++
	attempt := state.attempts

	if attempt < s.maxAttempts {
		delay := s.initialDelay << attempt
		state.timer = time.AfterFunc(delay, func() {
			s.fire(deviceID)
		})
	} else {
		delete(s.entries, deviceID)
	}
	s.mu.Unlock()

	s.logger.Info("reconnection attempt",
		"device_id", deviceID, "attempt", attempt, "max", s.maxAttempts)

	if s.notify != nil {
		s.notify(deviceID, attempt)
	}
}

// Reset cancels deviceID's pending sequence and zeroes its attempt
// counter. Called on re-admission; a notify already in flight when the
// timer is stopped may still run, but nothing re-arms afterwards.
func (s *Scheduler) Reset(deviceID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.entries[deviceID]
	if !ok {
		return
	}
	state.timer.Stop()
	delete(s.entries, deviceID)

	s.logger.Debug("reconnection reset", "device_id", deviceID)
}

// Pending reports whether deviceID has a retry sequence in flight.
func (s *Scheduler) Pending(deviceID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[deviceID]
	return ok
}

// Stop cancels all pending timers. The scheduler accepts no further work.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopped = true
	for id, state := range s.entries {
		state.timer.Stop()
		delete(s.entries, id)
	}
}
