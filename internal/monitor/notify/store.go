package notify

import (
	"context"
	"log"

	monitor "github.com/tyjch/influx-monitor/internal/monitor/domain"
)

// AlertStore persists produced alerts.
type AlertStore interface {
	Insert(ctx context.Context, alert monitor.Alert) error
}

// StoreNotifier writes every alert to a store. A failed write is logged and
// never interferes with delivery on other channels.
type StoreNotifier struct {
	store  AlertStore
	logger *log.Logger
}

// NewStoreNotifier constructs a persisting notifier.
func NewStoreNotifier(store AlertStore, logger *log.Logger) *StoreNotifier {
	return &StoreNotifier{store: store, logger: logger}
}

// Notify implements application.AlertNotifier.
func (s *StoreNotifier) Notify(ctx context.Context, alert monitor.Alert) {
	if s == nil || s.store == nil {
		return
	}
	if err := s.store.Insert(ctx, alert); err != nil && s.logger != nil {
		s.logger.Printf("notifier: alert log write failed: sensor=%s err=%v", alert.SensorID, err)
	}
}
