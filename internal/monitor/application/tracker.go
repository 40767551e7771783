package application

import (
	"errors"
	"math"
	"sort"
	"sync"
	"time"

	monitor "github.com/tyjch/influx-monitor/internal/monitor/domain"
)

// ErrClockRollback signals that the wall clock moved backward. All duration
// math assumes monotonicity, so this is fatal, not absorbed.
var ErrClockRollback = errors.New("tracker: wall clock moved backward")

// Status is the tracker's view of a sensor after an observation.
type Status struct {
	State      monitor.OperationalState `json:"state"`
	Band       monitor.Band             `json:"band,omitempty"`
	Value      float64                  `json:"value"`
	ObservedAt time.Time                `json:"observed_at"`
	ChangedAt  time.Time                `json:"changed_at"`
}

type sample struct {
	value float64
	at    time.Time
}

type sensorState struct {
	state              monitor.OperationalState
	band               monitor.Band
	enteredAt          time.Time
	history            []sample
	lastReadingAt      time.Time
	lastValue          float64
	firstUnrealisticAt time.Time
	firstSeenAt        time.Time
}

// Tracker derives the operational state of each monitored sensor from its
// stream of readings. One instance owns all per-sensor state; callers see
// atomic transitions only.
type Tracker struct {
	thresholds   monitor.Thresholds
	offlineAfter time.Duration
	clock        Clock

	mu      sync.Mutex
	sensors map[string]*sensorState
	lastNow time.Time
}

// TrackerOption customizes a Tracker.
type TrackerOption func(*Tracker)

// WithTrackerClock overrides the default clock.
func WithTrackerClock(clock Clock) TrackerOption {
	return func(t *Tracker) {
		if clock != nil {
			t.clock = clock
		}
	}
}

// NewTracker constructs a Tracker.
func NewTracker(thresholds monitor.Thresholds, offlineAfter time.Duration, opts ...TrackerOption) (*Tracker, error) {
	if err := thresholds.Validate(); err != nil {
		return nil, err
	}
	if offlineAfter <= 0 {
		return nil, errors.New("tracker: offline threshold must be positive")
	}
	t := &Tracker{
		thresholds:   thresholds,
		offlineAfter: offlineAfter,
		clock:        systemClock{},
		sensors:      make(map[string]*sensorState),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Lookback returns the longest history window the tracker retains.
func (t *Tracker) Lookback() time.Duration {
	return t.thresholds.Lookback()
}

// Seed primes a sensor's history from stored readings, typically after a
// restart. It never transitions state; the first observation does that.
func (t *Tracker) Seed(sensorID string, readings []monitor.Reading) error {
	if t == nil {
		return errors.New("tracker: nil tracker")
	}
	if sensorID == "" {
		return errors.New("tracker: empty sensor id")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	now, err := t.advance()
	if err != nil {
		return err
	}
	s := t.sensor(sensorID, now)

	sorted := make([]monitor.Reading, 0, len(readings))
	for _, r := range readings {
		if !r.IsZero() {
			sorted = append(sorted, r)
		}
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Timestamp.Before(sorted[j].Timestamp) })
	for _, r := range sorted {
		if !r.Timestamp.After(s.lastReadingAt) {
			continue
		}
		calibrated := t.thresholds.Calibrate(r.Value)
		s.history = append(s.history, sample{value: calibrated, at: r.Timestamp})
		s.lastReadingAt = r.Timestamp
		s.lastValue = calibrated
	}
	s.prune(now, t.thresholds.Lookback())
	return nil
}

// Observe feeds one reading for a sensor and returns the resulting status.
// Re-observing the same reading is idempotent: history is not re-appended
// and the outcome is the same. The optional room reading enables the
// room-differential disconnection check.
func (t *Tracker) Observe(sensorID string, reading monitor.Reading, room *monitor.Reading) (Status, error) {
	if t == nil {
		return Status{}, errors.New("tracker: nil tracker")
	}
	if sensorID == "" {
		return Status{}, errors.New("tracker: empty sensor id")
	}
	if reading.IsZero() {
		return t.Tick(sensorID)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	now, err := t.advance()
	if err != nil {
		return Status{}, err
	}
	s := t.sensor(sensorID, now)

	// Same sample as last time: nothing new to classify, but silence still
	// feeds the offline timer.
	if !s.lastReadingAt.IsZero() && !reading.Timestamp.After(s.lastReadingAt) {
		return t.evaluateSilence(s, now), nil
	}

	prevSeenAt := s.lastReadingAt
	calibrated := t.thresholds.Calibrate(reading.Value)
	s.lastReadingAt = reading.Timestamp
	s.lastValue = calibrated

	// A stale sample's temperature must never be classified once its age
	// exceeds the offline threshold.
	if reading.Age(now) > t.offlineAfter {
		t.enterDisconnected(s, now)
		return s.status(), nil
	}

	// A gap since the previous sample invalidates rate-of-change math even
	// when this sample is fresh (e.g. after a feed outage the tracker
	// missed). Pass through disconnected; the next observation recovers
	// into stabilizing.
	if s.state != monitor.StateDisconnected && !prevSeenAt.IsZero() && now.Sub(prevSeenAt) > t.offlineAfter {
		t.enterDisconnected(s, now)
		s.history = append(s.history, sample{value: calibrated, at: reading.Timestamp})
		return s.status(), nil
	}

	s.history = append(s.history, sample{value: calibrated, at: reading.Timestamp})
	s.prune(now, t.thresholds.Lookback())

	// A sensor reading room temperature is worn off the body: functionally
	// disconnected, regardless of the offline timer. This outranks the
	// misposition check.
	if room != nil && !room.IsZero() && room.Age(now) <= t.offlineAfter {
		if math.Abs(calibrated-room.Value) < t.thresholds.RoomDifferential {
			t.enterDisconnected(s, now)
			return s.status(), nil
		}
	}

	band, realistic := t.thresholds.Classify(calibrated)
	if !realistic {
		if s.firstUnrealisticAt.IsZero() {
			s.firstUnrealisticAt = reading.Timestamp
		}
		if now.Sub(s.firstUnrealisticAt) >= t.thresholds.MispositionAfter {
			s.transition(monitor.StateMispositioned, now)
			s.band = monitor.BandUnknown
		} else if s.state == monitor.StateUnknown {
			s.transition(monitor.StateStabilizing, now)
		}
		// Below the window the previous state holds: a single low reading
		// must not flap into mispositioned.
		return s.status(), nil
	}
	s.firstUnrealisticAt = time.Time{}

	rate, defined := s.rateOfChange(now, t.thresholds.MinStabilization)
	switch s.state {
	case monitor.StateUnknown, monitor.StateDisconnected, monitor.StateMispositioned:
		// After any gap the sensor proves stability before it is trusted.
		s.band = monitor.BandUnknown
		s.transition(monitor.StateStabilizing, now)
	case monitor.StateStabilizing:
		if now.Sub(s.enteredAt) >= t.thresholds.MinStabilization && defined && math.Abs(rate) <= t.thresholds.StabilizationRate {
			s.transition(monitor.StateNormal, now)
			s.band = band
		}
	case monitor.StateNormal:
		if defined && math.Abs(rate) > t.thresholds.StabilizationRate {
			// A sudden swing invalidates prior stability.
			s.band = monitor.BandUnknown
			s.transition(monitor.StateStabilizing, now)
		} else {
			s.band = band
		}
	}
	return s.status(), nil
}

// Tick evaluates a sensor when no new sample arrived this cycle. Silence
// beyond the offline threshold transitions to disconnected.
func (t *Tracker) Tick(sensorID string) (Status, error) {
	if t == nil {
		return Status{}, errors.New("tracker: nil tracker")
	}
	if sensorID == "" {
		return Status{}, errors.New("tracker: empty sensor id")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	now, err := t.advance()
	if err != nil {
		return Status{}, err
	}
	s := t.sensor(sensorID, now)
	return t.evaluateSilence(s, now), nil
}

// Status returns the current status of a sensor, if it is known.
func (t *Tracker) Status(sensorID string) (Status, bool) {
	if t == nil {
		return Status{}, false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.sensors[sensorID]
	if !ok {
		return Status{}, false
	}
	return s.status(), true
}

// Snapshot returns the status of every tracked sensor.
func (t *Tracker) Snapshot() map[string]Status {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	snapshot := make(map[string]Status, len(t.sensors))
	for id, s := range t.sensors {
		snapshot[id] = s.status()
	}
	return snapshot
}

func (t *Tracker) advance() (time.Time, error) {
	now := t.clock.Now()
	if now.Before(t.lastNow) {
		return time.Time{}, ErrClockRollback
	}
	t.lastNow = now
	return now, nil
}

func (t *Tracker) sensor(sensorID string, now time.Time) *sensorState {
	s, ok := t.sensors[sensorID]
	if !ok {
		s = &sensorState{
			state:       monitor.StateUnknown,
			enteredAt:   now,
			firstSeenAt: now,
		}
		t.sensors[sensorID] = s
	}
	return s
}

func (t *Tracker) evaluateSilence(s *sensorState, now time.Time) Status {
	anchor := s.lastReadingAt
	if anchor.IsZero() {
		anchor = s.firstSeenAt
	}
	if s.state != monitor.StateDisconnected && now.Sub(anchor) > t.offlineAfter {
		t.enterDisconnected(s, now)
	}
	return s.status()
}

func (t *Tracker) enterDisconnected(s *sensorState, now time.Time) {
	// A reconnect starts fresh: a gap invalidates rate computations, so
	// history does not survive disconnection.
	s.history = nil
	s.firstUnrealisticAt = time.Time{}
	s.band = monitor.BandUnknown
	s.transition(monitor.StateDisconnected, now)
}

func (s *sensorState) transition(state monitor.OperationalState, now time.Time) {
	if s.state == state {
		return
	}
	s.state = state
	s.enteredAt = now
}

func (s *sensorState) prune(now time.Time, lookback time.Duration) {
	cutoff := now.Add(-lookback)
	drop := 0
	for drop < len(s.history) && s.history[drop].at.Before(cutoff) {
		drop++
	}
	if drop > 0 {
		s.history = append(s.history[:0], s.history[drop:]...)
	}
}

// rateOfChange computes degrees per minute over the trailing window. With
// fewer than two samples, or samples spanning less than half the window,
// the rate is undefined and the sensor is conservatively treated as still
// stabilizing.
func (s *sensorState) rateOfChange(now time.Time, window time.Duration) (float64, bool) {
	cutoff := now.Add(-window)
	first := -1
	for i, entry := range s.history {
		if !entry.at.Before(cutoff) {
			first = i
			break
		}
	}
	if first < 0 || len(s.history)-first < 2 {
		return 0, false
	}
	earliest := s.history[first]
	latest := s.history[len(s.history)-1]
	span := latest.at.Sub(earliest.at)
	if span < window/2 || span <= 0 {
		return 0, false
	}
	return (latest.value - earliest.value) / span.Minutes(), true
}

func (s *sensorState) status() Status {
	return Status{
		State:      s.state,
		Band:       s.band,
		Value:      s.lastValue,
		ObservedAt: s.lastReadingAt,
		ChangedAt:  s.enteredAt,
	}
}
