package notify

import (
	"context"

	"github.com/tyjch/influx-monitor/internal/monitor/application"
	monitor "github.com/tyjch/influx-monitor/internal/monitor/domain"
)

// MultiNotifier fans out to several notifiers.
type MultiNotifier struct {
	notifiers []application.AlertNotifier
}

// NewMultiNotifier constructs a fan-out notifier. Nil members are skipped.
func NewMultiNotifier(notifiers ...application.AlertNotifier) *MultiNotifier {
	filtered := make([]application.AlertNotifier, 0, len(notifiers))
	for _, n := range notifiers {
		if n != nil {
			filtered = append(filtered, n)
		}
	}
	return &MultiNotifier{notifiers: filtered}
}

// Notify delivers the alert to every member.
func (m *MultiNotifier) Notify(ctx context.Context, alert monitor.Alert) {
	if m == nil {
		return
	}
	for _, n := range m.notifiers {
		n.Notify(ctx, alert)
	}
}
