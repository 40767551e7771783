package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	monitor "github.com/tyjch/influx-monitor/internal/monitor/domain"
)

// Config holds MQTT connection settings.
type Config struct {
	Broker   string
	ClientID string
	Username string
	Password string
	// Topic is a subscription pattern whose second segment is the sensor
	// id, e.g. "sensor/+/temperature".
	Topic string
}

type payload struct {
	Value     float64   `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// CachedSource is a push-based sample source: it subscribes to sensor
// topics and answers Latest/Window from an in-memory bounded buffer.
type CachedSource struct {
	client    mqtt.Client
	retention time.Duration
	logger    *log.Logger

	mu      sync.RWMutex
	buffers map[string][]monitor.Reading
}

// NewCachedSource connects, subscribes and starts caching readings.
func NewCachedSource(cfg Config, retention time.Duration, logger *log.Logger) (*CachedSource, error) {
	if cfg.Broker == "" {
		return nil, errors.New("mqtt source: empty broker")
	}
	if cfg.Topic == "" {
		return nil, errors.New("mqtt source: empty topic")
	}
	if retention <= 0 {
		return nil, errors.New("mqtt source: retention must be positive")
	}
	if logger == nil {
		return nil, errors.New("mqtt source: nil logger")
	}

	s := &CachedSource{
		retention: retention,
		logger:    logger,
		buffers:   make(map[string][]monitor.Reading),
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Printf("mqtt source: connection lost: %v", err)
	})
	opts.SetOnConnectHandler(func(client mqtt.Client) {
		if token := client.Subscribe(cfg.Topic, 1, s.handleMessage); token.Wait() && token.Error() != nil {
			logger.Printf("mqtt source: subscribe failed: topic=%s err=%v", cfg.Topic, token.Error())
			return
		}
		logger.Printf("mqtt source: subscribed topic=%s", cfg.Topic)
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("mqtt source: connect: %w", token.Error())
	}
	s.client = client
	return s, nil
}

// Latest returns the newest cached reading for a sensor.
func (s *CachedSource) Latest(_ context.Context, sensorID string) (monitor.Reading, bool, error) {
	if s == nil {
		return monitor.Reading{}, false, errors.New("mqtt source: nil source")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	buffer := s.buffers[sensorID]
	if len(buffer) == 0 {
		return monitor.Reading{}, false, nil
	}
	return buffer[len(buffer)-1], true, nil
}

// Window returns cached readings from the trailing lookback period.
func (s *CachedSource) Window(_ context.Context, sensorID string, lookback time.Duration) ([]monitor.Reading, error) {
	if s == nil {
		return nil, errors.New("mqtt source: nil source")
	}
	if lookback <= 0 {
		return nil, errors.New("mqtt source: lookback must be positive")
	}
	cutoff := time.Now().UTC().Add(-lookback)
	s.mu.RLock()
	defer s.mu.RUnlock()
	buffer := s.buffers[sensorID]
	var readings []monitor.Reading
	for _, r := range buffer {
		if !r.Timestamp.Before(cutoff) {
			readings = append(readings, r)
		}
	}
	return readings, nil
}

// Close disconnects from the broker.
func (s *CachedSource) Close() {
	if s == nil || s.client == nil {
		return
	}
	s.client.Disconnect(250)
}

func (s *CachedSource) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	sensorID := sensorIDFromTopic(msg.Topic())
	if sensorID == "" {
		s.logger.Printf("mqtt source: message on unexpected topic %s", msg.Topic())
		return
	}
	reading, err := parsePayload(msg.Payload())
	if err != nil {
		s.logger.Printf("mqtt source: bad payload on %s: %v", msg.Topic(), err)
		return
	}
	s.append(sensorID, reading)
}

func (s *CachedSource) append(sensorID string, reading monitor.Reading) {
	cutoff := time.Now().UTC().Add(-s.retention)
	s.mu.Lock()
	defer s.mu.Unlock()
	buffer := s.buffers[sensorID]
	if n := len(buffer); n > 0 && !reading.Timestamp.After(buffer[n-1].Timestamp) {
		return
	}
	buffer = append(buffer, reading)
	drop := 0
	for drop < len(buffer) && buffer[drop].Timestamp.Before(cutoff) {
		drop++
	}
	if drop > 0 {
		buffer = append(buffer[:0], buffer[drop:]...)
	}
	s.buffers[sensorID] = buffer
}

func sensorIDFromTopic(topic string) string {
	parts := strings.Split(topic, "/")
	if len(parts) < 2 {
		return ""
	}
	return parts[1]
}

// parsePayload accepts either a JSON object with value/timestamp or a bare
// numeric value, which is stamped on arrival.
func parsePayload(data []byte) (monitor.Reading, error) {
	var p payload
	if err := json.Unmarshal(data, &p); err == nil {
		if p.Timestamp.IsZero() {
			p.Timestamp = time.Now().UTC()
		}
		return monitor.Reading{Value: p.Value, Timestamp: p.Timestamp.UTC()}, nil
	}
	value, err := strconv.ParseFloat(strings.TrimSpace(string(data)), 64)
	if err != nil {
		return monitor.Reading{}, fmt.Errorf("mqtt source: unparseable payload %q", string(data))
	}
	return monitor.Reading{Value: value, Timestamp: time.Now().UTC()}, nil
}
