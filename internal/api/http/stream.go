package http

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	monitor "github.com/tyjch/influx-monitor/internal/monitor/domain"
)

// SSEBroker fans out alert events to subscribed clients. The most recent
// alert per sensor is remembered and replayed to new subscribers so a
// dashboard that connects late still sees the current situation.
type SSEBroker struct {
	mu      sync.Mutex
	clients map[chan []byte]struct{}
	last    map[string][]byte
}

// NewSSEBroker constructs a broker.
func NewSSEBroker() *SSEBroker {
	return &SSEBroker{
		clients: make(map[chan []byte]struct{}),
		last:    make(map[string][]byte),
	}
}

// Notify implements application.AlertNotifier. A client that cannot keep up
// misses the event; delivery never blocks the caller.
func (b *SSEBroker) Notify(_ context.Context, alert monitor.Alert) {
	if b == nil {
		return
	}
	payload, err := json.Marshal(alert)
	if err != nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.last[alert.SensorID] = payload
	for ch := range b.clients {
		select {
		case ch <- payload:
		default:
		}
	}
}

// Subscribe registers a new client channel, pre-loaded with the latest
// alert of every sensor seen so far.
func (b *SSEBroker) Subscribe() chan []byte {
	if b == nil {
		return nil
	}
	ch := make(chan []byte, 16)
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, payload := range b.last {
		select {
		case ch <- payload:
		default:
		}
	}
	b.clients[ch] = struct{}{}
	return ch
}

// Unsubscribe removes a client channel. Safe to call more than once; sends
// and close are serialized under the broker lock.
func (b *SSEBroker) Unsubscribe(ch chan []byte) {
	if b == nil || ch == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.clients[ch]; ok {
		delete(b.clients, ch)
		close(ch)
	}
}

// StreamHandler serves the SSE alert stream.
type StreamHandler struct {
	broker    *SSEBroker
	keepAlive time.Duration
}

// NewStreamHandler constructs a stream handler.
func NewStreamHandler(broker *SSEBroker) *StreamHandler {
	return &StreamHandler{broker: broker, keepAlive: 30 * time.Second}
}

// ServeHTTP handles GET /api/v1/alerts/stream.
func (h *StreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if h == nil || h.broker == nil {
		http.Error(w, "stream not ready", http.StatusServiceUnavailable)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "stream unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch := h.broker.Subscribe()
	if ch == nil {
		http.Error(w, "stream not ready", http.StatusServiceUnavailable)
		return
	}
	defer h.broker.Unsubscribe(ch)

	_, _ = w.Write([]byte("event: ready\ndata: {}\n\n"))
	flusher.Flush()

	ticker := time.NewTicker(h.keepAlive)
	defer ticker.Stop()

	done := r.Context().Done()
	for {
		select {
		case payload, ok := <-ch:
			if !ok {
				return
			}
			_, _ = w.Write([]byte("event: alert\n"))
			_, _ = w.Write([]byte("data: "))
			_, _ = w.Write(payload)
			_, _ = w.Write([]byte("\n\n"))
			flusher.Flush()
		case <-ticker.C:
			// SSE comment line; keeps idle proxies from closing the
			// connection.
			_, _ = w.Write([]byte(": keep-alive\n\n"))
			flusher.Flush()
		case <-done:
			return
		}
	}
}
