package application

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	monitor "github.com/tyjch/influx-monitor/internal/monitor/domain"
	"github.com/tyjch/influx-monitor/internal/observability/metrics"
)

// SampleSource supplies sensor readings from the metrics store.
type SampleSource interface {
	// Latest returns the most recent reading for a sensor. ok is false
	// when the sensor has no readings at all.
	Latest(ctx context.Context, sensorID string) (monitor.Reading, bool, error)
	// Window returns readings from the trailing lookback period in
	// ascending time order. Used to seed tracker history after a restart.
	Window(ctx context.Context, sensorID string, lookback time.Duration) ([]monitor.Reading, error)
}

// AlertNotifier delivers alerts. Delivery failure is non-fatal and handled
// inside the notifier; the polling loop never blocks on it.
type AlertNotifier interface {
	Notify(ctx context.Context, alert monitor.Alert)
}

// Sensor pairs a monitored body sensor with its optional ambient sensor.
type Sensor struct {
	ID     string
	RoomID string
}

// Poller drives the monitoring loop: every interval it pulls the latest
// sample per sensor, feeds the tracker, asks the decider, and hands any
// alert to a dispatch worker through a bounded queue.
type Poller struct {
	source   SampleSource
	tracker  *Tracker
	decider  *Decider
	notifier AlertNotifier
	sensors  []Sensor
	interval time.Duration
	logger   *log.Logger

	dispatchTimeout time.Duration
	shutdownGrace   time.Duration
	queue           chan monitor.Alert

	mu   sync.Mutex
	last map[string]Status
}

// PollerOption customizes a Poller.
type PollerOption func(*Poller)

// WithDispatchTimeout bounds a single alert delivery.
func WithDispatchTimeout(timeout time.Duration) PollerOption {
	return func(p *Poller) {
		if timeout > 0 {
			p.dispatchTimeout = timeout
		}
	}
}

// WithShutdownGrace bounds how long shutdown waits for in-flight dispatch.
func WithShutdownGrace(grace time.Duration) PollerOption {
	return func(p *Poller) {
		if grace > 0 {
			p.shutdownGrace = grace
		}
	}
}

// WithQueueDepth sets the dispatch queue capacity.
func WithQueueDepth(depth int) PollerOption {
	return func(p *Poller) {
		if depth > 0 {
			p.queue = make(chan monitor.Alert, depth)
		}
	}
}

// NewPoller constructs a Poller.
func NewPoller(source SampleSource, tracker *Tracker, decider *Decider, notifier AlertNotifier, sensors []Sensor, interval time.Duration, logger *log.Logger, opts ...PollerOption) (*Poller, error) {
	if source == nil {
		return nil, errors.New("poller: nil sample source")
	}
	if tracker == nil {
		return nil, errors.New("poller: nil tracker")
	}
	if decider == nil {
		return nil, errors.New("poller: nil decider")
	}
	if notifier == nil {
		return nil, errors.New("poller: nil notifier")
	}
	if len(sensors) == 0 {
		return nil, errors.New("poller: no sensors configured")
	}
	for _, sensor := range sensors {
		if sensor.ID == "" {
			return nil, errors.New("poller: empty sensor id")
		}
	}
	if interval <= 0 {
		return nil, errors.New("poller: interval must be positive")
	}
	p := &Poller{
		source:          source,
		tracker:         tracker,
		decider:         decider,
		notifier:        notifier,
		sensors:         sensors,
		interval:        interval,
		logger:          logger,
		dispatchTimeout: 10 * time.Second,
		shutdownGrace:   15 * time.Second,
		queue:           make(chan monitor.Alert, 64),
		last:            make(map[string]Status, len(sensors)),
	}
	for _, sensor := range sensors {
		p.last[sensor.ID] = Status{State: monitor.StateUnknown}
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Run seeds tracker history, then polls until the context is canceled or a
// fatal error occurs. On cancellation in-flight dispatch may complete
// within the shutdown grace period; past that it is abandoned.
func (p *Poller) Run(ctx context.Context) error {
	if p == nil {
		return errors.New("poller: nil poller")
	}
	if err := p.seed(ctx); err != nil {
		return err
	}

	done := make(chan struct{})
	go p.dispatch(done)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	if err := p.poll(ctx); err != nil {
		p.stopDispatch(done)
		return err
	}
	for {
		select {
		case <-ctx.Done():
			p.stopDispatch(done)
			return nil
		case <-ticker.C:
			if err := p.poll(ctx); err != nil {
				p.stopDispatch(done)
				return err
			}
		}
	}
}

func (p *Poller) poll(ctx context.Context) error {
	for _, sensor := range p.sensors {
		next, err := p.evaluate(ctx, sensor)
		if err != nil {
			// The tracker only errors on clock rollback, which is fatal.
			return err
		}
		metrics.SetSensorState(sensor.ID, string(next.State))
		metrics.SetSensorValue(sensor.ID, next.Value)

		p.mu.Lock()
		previous := p.last[sensor.ID]
		p.last[sensor.ID] = next
		p.mu.Unlock()

		if alert := p.decider.Decide(sensor.ID, previous, next); alert != nil {
			metrics.RecordAlert(string(alert.Severity))
			p.logger.Printf("poller: state change sensor=%s %s -> %s severity=%s value=%.2f",
				sensor.ID, alert.Previous, alert.New, alert.Severity, alert.Value)
			p.enqueue(*alert)
		}
	}
	metrics.RecordPollCycle()
	return nil
}

func (p *Poller) evaluate(ctx context.Context, sensor Sensor) (Status, error) {
	reading, ok, err := p.source.Latest(ctx, sensor.ID)
	if err != nil {
		// The source being unreachable means no sample this cycle. It
		// feeds the offline timer but never crashes the loop.
		metrics.RecordSourceError()
		p.logger.Printf("poller: source unavailable: sensor=%s err=%v", sensor.ID, err)
		return p.tracker.Tick(sensor.ID)
	}
	if !ok {
		return p.tracker.Tick(sensor.ID)
	}
	return p.tracker.Observe(sensor.ID, reading, p.roomReading(ctx, sensor.RoomID))
}

func (p *Poller) roomReading(ctx context.Context, roomID string) *monitor.Reading {
	if roomID == "" {
		return nil
	}
	reading, ok, err := p.source.Latest(ctx, roomID)
	if err != nil || !ok {
		return nil
	}
	return &reading
}

func (p *Poller) seed(ctx context.Context) error {
	for _, sensor := range p.sensors {
		readings, err := p.source.Window(ctx, sensor.ID, p.tracker.Lookback())
		if err != nil {
			p.logger.Printf("poller: history seed failed: sensor=%s err=%v", sensor.ID, err)
			continue
		}
		if len(readings) == 0 {
			continue
		}
		if err := p.tracker.Seed(sensor.ID, readings); err != nil {
			if errors.Is(err, ErrClockRollback) {
				return err
			}
			p.logger.Printf("poller: history seed failed: sensor=%s err=%v", sensor.ID, err)
			continue
		}
		p.logger.Printf("poller: seeded history sensor=%s samples=%d", sensor.ID, len(readings))
	}
	return nil
}

func (p *Poller) enqueue(alert monitor.Alert) {
	select {
	case p.queue <- alert:
	default:
		// A full queue means the channel is wedged; dropping is the
		// accepted tradeoff, the abnormal state keeps re-triggering on
		// later transitions.
		metrics.RecordDispatch("dropped")
		p.logger.Printf("poller: dispatch queue full, dropping alert sensor=%s state=%s", alert.SensorID, alert.New)
	}
}

func (p *Poller) dispatch(done chan struct{}) {
	defer close(done)
	for alert := range p.queue {
		ctx, cancel := context.WithTimeout(context.Background(), p.dispatchTimeout)
		p.notifier.Notify(ctx, alert)
		cancel()
	}
}

func (p *Poller) stopDispatch(done chan struct{}) {
	close(p.queue)
	select {
	case <-done:
	case <-time.After(p.shutdownGrace):
		p.logger.Printf("poller: abandoning in-flight dispatch after %s", p.shutdownGrace)
	}
}
