package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	monitor "github.com/tyjch/influx-monitor/internal/monitor/domain"
)

// Source selects the sample source backend.
const (
	SourcePostgres = "postgres"
	SourceMQTT     = "mqtt"
)

// SensorSpec pairs a body sensor with its optional ambient sensor.
type SensorSpec struct {
	ID     string
	RoomID string
}

// MQTT holds broker settings for the push-based source.
type MQTT struct {
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string
}

// Config is the complete, validated service configuration. Loaded once at
// startup and treated as immutable afterwards.
type Config struct {
	Source      string
	DatabaseURL string
	MQTT        MQTT

	HTTPAddr string
	LogFile  string

	Sensors []SensorSpec

	Thresholds    monitor.Thresholds
	CheckInterval time.Duration
	OfflineAfter  time.Duration

	WebhookURL       string
	WebhookUsername  string
	WebhookAvatarURL string
	NotifyRecovery   bool
	NotifyCooldown   time.Duration
	NotifyDedupe     time.Duration
	DispatchTimeout  time.Duration
	ShutdownGrace    time.Duration

	DashboardURL string
	JWTSecret    string
}

// fileConfig is the optional YAML overlay. Temperature values override the
// environment when present; zero values are ignored.
type fileConfig struct {
	Temperature struct {
		ColdMax            *float64 `yaml:"cold_max"`
		CoolMax            *float64 `yaml:"cool_max"`
		AverageMax         *float64 `yaml:"average_max"`
		WarmMax            *float64 `yaml:"warm_max"`
		CalibrationOffset  *float64 `yaml:"calibration_offset"`
		MinRealistic       *float64 `yaml:"min_realistic_temp"`
		MispositionMinutes *int     `yaml:"misposition_time_threshold"`
		StabilizationRate  *float64 `yaml:"stabilization_threshold"`
		MinStabilizationS  *int     `yaml:"min_stabilization_time"`
		RoomDifferential   *float64 `yaml:"room_temp_threshold"`
	} `yaml:"temperature"`
	General struct {
		CheckIntervalS    *int `yaml:"check_interval"`
		OfflineThresholdS *int `yaml:"offline_threshold"`
	} `yaml:"general"`
}

// Load reads configuration from the environment (plus .env when present)
// and an optional YAML overlay file, then validates it. A set but
// unparseable value is an error, never a silent fallback.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	env := &envReader{}

	thresholds := monitor.DefaultThresholds()
	thresholds.ColdMax = env.float("TEMP_COLD_MAX", thresholds.ColdMax)
	thresholds.CoolMax = env.float("TEMP_COOL_MAX", thresholds.CoolMax)
	thresholds.AverageMax = env.float("TEMP_AVERAGE_MAX", thresholds.AverageMax)
	thresholds.WarmMax = env.float("TEMP_WARM_MAX", thresholds.WarmMax)
	thresholds.CalibrationOffset = env.float("TEMP_CALIBRATION_OFFSET", thresholds.CalibrationOffset)
	thresholds.MinRealistic = env.float("TEMP_MIN_REALISTIC", thresholds.MinRealistic)
	thresholds.MispositionAfter = time.Duration(env.int("TEMP_MISPOSITION_THRESHOLD", 5)) * time.Minute
	thresholds.StabilizationRate = env.float("TEMP_STABILIZATION_THRESHOLD", thresholds.StabilizationRate)
	thresholds.MinStabilization = time.Duration(env.int("TEMP_MIN_STABILIZATION_TIME", 60)) * time.Second
	thresholds.RoomDifferential = env.float("TEMP_ROOM_THRESHOLD", thresholds.RoomDifferential)

	cfg := Config{
		Source:      getenv("SOURCE", SourcePostgres),
		DatabaseURL: getenv("DATABASE_URL", getenv("PG_DSN", "")),
		MQTT: MQTT{
			Broker:   getenv("MQTT_BROKER", ""),
			ClientID: getenv("MQTT_CLIENT_ID", "influx-monitor"),
			Username: getenv("MQTT_USERNAME", ""),
			Password: getenv("MQTT_PASSWORD", ""),
			Topic:    getenv("MQTT_TOPIC", "sensor/+/temperature"),
		},
		HTTPAddr:         getenv("HTTP_ADDR", ":8080"),
		LogFile:          getenv("LOG_FILE", ""),
		Sensors:          parseSensors(getenv("SENSOR_IDS", "DS18B20:SI7021")),
		Thresholds:       thresholds,
		CheckInterval:    time.Duration(env.int("CHECK_INTERVAL", 60)) * time.Second,
		OfflineAfter:     time.Duration(env.int("OFFLINE_THRESHOLD", 300)) * time.Second,
		WebhookURL:       getenv("DISCORD_WEBHOOK_URL", ""),
		WebhookUsername:  getenv("DISCORD_USERNAME", "Influx Monitor"),
		WebhookAvatarURL: getenv("DISCORD_AVATAR_URL", ""),
		NotifyRecovery:   env.bool("NOTIFY_RECOVERY", true),
		NotifyCooldown:   env.duration("NOTIFY_COOLDOWN", 0),
		NotifyDedupe:     env.duration("NOTIFY_DEDUP_WINDOW", 0),
		DispatchTimeout:  env.duration("DISPATCH_TIMEOUT", 10*time.Second),
		ShutdownGrace:    env.duration("SHUTDOWN_GRACE", 15*time.Second),
		DashboardURL:     getenv("GRAFANA_DASHBOARD_URL", ""),
		JWTSecret:        getenv("AUTH_JWT_SECRET", getenv("JWT_SECRET", "")),
	}
	if env.err != nil {
		return Config{}, env.err
	}

	if path != "" {
		if err := cfg.applyFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the whole configuration. Any violation is fatal at
// startup.
func (c Config) Validate() error {
	if err := c.Thresholds.Validate(); err != nil {
		return err
	}
	if c.CheckInterval <= 0 {
		return errors.New("config: check interval must be positive")
	}
	if c.OfflineAfter <= 0 {
		return errors.New("config: offline threshold must be positive")
	}
	if len(c.Sensors) == 0 {
		return errors.New("config: no sensors configured")
	}
	for _, sensor := range c.Sensors {
		if sensor.ID == "" {
			return errors.New("config: empty sensor id")
		}
	}
	switch c.Source {
	case SourcePostgres:
		if c.DatabaseURL == "" {
			return errors.New("config: DATABASE_URL is required for the postgres source")
		}
	case SourceMQTT:
		if c.MQTT.Broker == "" {
			return errors.New("config: MQTT_BROKER is required for the mqtt source")
		}
	default:
		return fmt.Errorf("config: unknown source %q", c.Source)
	}
	return nil
}

func (c *Config) applyFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	var overlay fileConfig
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}

	t := overlay.Temperature
	setFloat(&c.Thresholds.ColdMax, t.ColdMax)
	setFloat(&c.Thresholds.CoolMax, t.CoolMax)
	setFloat(&c.Thresholds.AverageMax, t.AverageMax)
	setFloat(&c.Thresholds.WarmMax, t.WarmMax)
	setFloat(&c.Thresholds.CalibrationOffset, t.CalibrationOffset)
	setFloat(&c.Thresholds.MinRealistic, t.MinRealistic)
	setFloat(&c.Thresholds.StabilizationRate, t.StabilizationRate)
	setFloat(&c.Thresholds.RoomDifferential, t.RoomDifferential)
	if t.MispositionMinutes != nil {
		c.Thresholds.MispositionAfter = time.Duration(*t.MispositionMinutes) * time.Minute
	}
	if t.MinStabilizationS != nil {
		c.Thresholds.MinStabilization = time.Duration(*t.MinStabilizationS) * time.Second
	}

	g := overlay.General
	if g.CheckIntervalS != nil {
		c.CheckInterval = time.Duration(*g.CheckIntervalS) * time.Second
	}
	if g.OfflineThresholdS != nil {
		c.OfflineAfter = time.Duration(*g.OfflineThresholdS) * time.Second
	}
	return nil
}

// parseSensors parses "body:room,body2,body3:room3" pairs.
func parseSensors(value string) []SensorSpec {
	var sensors []SensorSpec
	for _, entry := range strings.Split(value, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.SplitN(entry, ":", 2)
		spec := SensorSpec{ID: strings.TrimSpace(parts[0])}
		if len(parts) == 2 {
			spec.RoomID = strings.TrimSpace(parts[1])
		}
		sensors = append(sensors, spec)
	}
	return sensors
}

func setFloat(dst *float64, src *float64) {
	if src != nil {
		*dst = *src
	}
}

func getenv(key, fallback string) string {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	return value
}

// envReader reads typed environment values and records the first parse
// failure. An unset value yields the fallback; a set but unparseable value
// is an error.
type envReader struct {
	err error
}

func (e *envReader) fail(key, value string) {
	if e.err == nil {
		e.err = fmt.Errorf("config: malformed %s=%q", key, value)
	}
}

func (e *envReader) float(key string, fallback float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		e.fail(key, value)
		return fallback
	}
	return parsed
}

func (e *envReader) int(key string, fallback int) int {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		e.fail(key, value)
		return fallback
	}
	return parsed
}

func (e *envReader) bool(key string, fallback bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		e.fail(key, value)
		return fallback
	}
	return parsed
}

func (e *envReader) duration(key string, fallback time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return fallback
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		e.fail(key, value)
		return fallback
	}
	return parsed
}
