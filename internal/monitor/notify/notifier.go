package notify

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	monitor "github.com/tyjch/influx-monitor/internal/monitor/domain"
	"github.com/tyjch/influx-monitor/internal/observability/metrics"
)

// Embed colors matching the dashboard palette.
const (
	colorGreen  = 0x00FF00
	colorRed    = 0xFF0000
	colorBlue   = 0x0000FF
	colorCyan   = 0x00FFFF
	colorYellow = 0xFFFF00
	colorOrange = 0xFFA500
)

// Clock provides time for cooldown bookkeeping.
type Clock interface {
	Now() time.Time
}

// DashboardURLResolver provides a dashboard link for an alert when available.
type DashboardURLResolver func(alert monitor.Alert) string

type sendRecord struct {
	at   time.Time
	hash string
}

// Notifier renders alerts into messages and sends them through a channel,
// with optional cooldown and dedupe suppression.
type Notifier struct {
	channel      Channel
	logger       *log.Logger
	clock        Clock
	cooldown     time.Duration
	dedupeWindow time.Duration
	dashboardURL DashboardURLResolver

	mu   sync.Mutex
	sent map[string]sendRecord
}

// Option configures the notifier.
type Option func(*Notifier)

// WithClock overrides the default clock.
func WithClock(clock Clock) Option {
	return func(n *Notifier) {
		if clock != nil {
			n.clock = clock
		}
	}
}

// WithCooldown sets a minimum interval between notifications for the same
// sensor and transition.
func WithCooldown(interval time.Duration) Option {
	return func(n *Notifier) {
		if interval > 0 {
			n.cooldown = interval
		}
	}
}

// WithDedupeWindow suppresses identical notifications within the window.
func WithDedupeWindow(window time.Duration) Option {
	return func(n *Notifier) {
		if window > 0 {
			n.dedupeWindow = window
		}
	}
}

// WithDashboardURLResolver injects a dashboard link resolver.
func WithDashboardURLResolver(resolver DashboardURLResolver) Option {
	return func(n *Notifier) {
		if resolver != nil {
			n.dashboardURL = resolver
		}
	}
}

// NewNotifier constructs a notifier over a delivery channel.
func NewNotifier(channel Channel, logger *log.Logger, opts ...Option) (*Notifier, error) {
	if channel == nil {
		return nil, errors.New("notifier: nil channel")
	}
	if logger == nil {
		return nil, errors.New("notifier: nil logger")
	}
	n := &Notifier{
		channel: channel,
		logger:  logger,
		clock:   systemClock{},
		sent:    make(map[string]sendRecord),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// Notify delivers one alert. Delivery failure is logged and swallowed; the
// caller's state machine is never affected by it.
func (n *Notifier) Notify(ctx context.Context, alert monitor.Alert) {
	if n == nil || n.channel == nil {
		return
	}
	msg := buildMessage(alert)
	if n.dashboardURL != nil {
		if url := n.dashboardURL(alert); url != "" {
			msg.Description += fmt.Sprintf("\nDashboard: %s", url)
		}
	}
	if !n.shouldSend(alert, msg) {
		return
	}
	start := n.clock.Now()
	if err := n.channel.Send(ctx, msg); err != nil {
		metrics.ObserveDispatch("error", n.clock.Now().Sub(start))
		n.logger.Printf("notifier: delivery failed: sensor=%s severity=%s err=%v", alert.SensorID, alert.Severity, err)
		return
	}
	metrics.ObserveDispatch("success", n.clock.Now().Sub(start))
	n.markSent(alert, msg)
}

func buildMessage(alert monitor.Alert) Message {
	value := fmt.Sprintf("%.1f", alert.Value)
	switch alert.New {
	case monitor.StateDisconnected:
		return Message{
			Title:       "Sensor DISCONNECTED",
			Description: "Temperature sensor has been disconnected or removed from body. No trustworthy readings are arriving.",
			Color:       colorRed,
		}
	case monitor.StateMispositioned:
		return Message{
			Title:       "Sensor MISPOSITIONED",
			Description: fmt.Sprintf("Temperature sensor appears to be mispositioned (reading %s). Please check placement.", value),
			Color:       colorOrange,
		}
	case monitor.StateNormal:
		if alert.Previous == monitor.StateNormal && alert.Band == monitor.BandHot {
			return Message{
				Title:       "Temperature is HOT",
				Description: fmt.Sprintf("Current temperature: %s, above the warm band.", value),
				Color:       colorRed,
			}
		}
		return Message{
			Title:       fmt.Sprintf("Temperature is %s", strings.ToUpper(string(alert.Band))),
			Description: fmt.Sprintf("Sensor recovered; readings are steady at %s.", value),
			Color:       bandColor(alert.Band),
		}
	default:
		return Message{
			Title:       fmt.Sprintf("Sensor %s", strings.ToUpper(string(alert.New))),
			Description: fmt.Sprintf("Sensor state changed from %s to %s.", alert.Previous, alert.New),
			Color:       colorBlue,
		}
	}
}

func bandColor(band monitor.Band) int {
	switch band {
	case monitor.BandCold:
		return colorBlue
	case monitor.BandCool:
		return colorCyan
	case monitor.BandAverage:
		return colorGreen
	case monitor.BandWarm:
		return colorYellow
	case monitor.BandHot:
		return colorRed
	default:
		return colorGreen
	}
}

func (n *Notifier) shouldSend(alert monitor.Alert, msg Message) bool {
	if n.cooldown <= 0 && n.dedupeWindow <= 0 {
		return true
	}
	key := notificationKey(alert)
	now := n.clock.Now().UTC()
	hash := hashMessage(msg)

	n.mu.Lock()
	record, ok := n.sent[key]
	n.mu.Unlock()
	if !ok {
		return true
	}
	if n.cooldown > 0 && now.Sub(record.at) < n.cooldown {
		return false
	}
	if n.dedupeWindow > 0 && record.hash == hash && now.Sub(record.at) < n.dedupeWindow {
		return false
	}
	return true
}

func (n *Notifier) markSent(alert monitor.Alert, msg Message) {
	key := notificationKey(alert)
	n.mu.Lock()
	n.sent[key] = sendRecord{
		at:   n.clock.Now().UTC(),
		hash: hashMessage(msg),
	}
	n.mu.Unlock()
}

func notificationKey(alert monitor.Alert) string {
	return alert.SensorID + "|" + string(alert.Previous) + ">" + string(alert.New)
}

func hashMessage(msg Message) string {
	sum := sha1.Sum([]byte(msg.Title + "\n" + msg.Description))
	return hex.EncodeToString(sum[:8])
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }
