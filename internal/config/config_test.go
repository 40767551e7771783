package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/metrics")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Source != SourcePostgres {
		t.Fatalf("expected postgres source, got %s", cfg.Source)
	}
	if cfg.CheckInterval != time.Minute {
		t.Fatalf("expected 60s interval, got %s", cfg.CheckInterval)
	}
	if cfg.OfflineAfter != 5*time.Minute {
		t.Fatalf("expected 300s offline threshold, got %s", cfg.OfflineAfter)
	}
	if cfg.Thresholds.ColdMax != 96.5 || cfg.Thresholds.WarmMax != 99.0 {
		t.Fatalf("unexpected default thresholds %+v", cfg.Thresholds)
	}
	if len(cfg.Sensors) != 1 || cfg.Sensors[0].ID != "DS18B20" || cfg.Sensors[0].RoomID != "SI7021" {
		t.Fatalf("unexpected default sensors %+v", cfg.Sensors)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/metrics")
	t.Setenv("TEMP_COLD_MAX", "95.5")
	t.Setenv("TEMP_MISPOSITION_THRESHOLD", "10")
	t.Setenv("CHECK_INTERVAL", "30")
	t.Setenv("SENSOR_IDS", "body-1:room-1,body-2")
	t.Setenv("NOTIFY_RECOVERY", "false")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Thresholds.ColdMax != 95.5 {
		t.Fatalf("expected cold max override, got %.1f", cfg.Thresholds.ColdMax)
	}
	if cfg.Thresholds.MispositionAfter != 10*time.Minute {
		t.Fatalf("expected 10m misposition window, got %s", cfg.Thresholds.MispositionAfter)
	}
	if cfg.CheckInterval != 30*time.Second {
		t.Fatalf("expected 30s interval, got %s", cfg.CheckInterval)
	}
	if cfg.NotifyRecovery {
		t.Fatal("expected recovery notifications disabled")
	}
	if len(cfg.Sensors) != 2 || cfg.Sensors[0].RoomID != "room-1" || cfg.Sensors[1].RoomID != "" {
		t.Fatalf("unexpected sensors %+v", cfg.Sensors)
	}
}

func TestLoadYAMLOverlay(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/metrics")

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
temperature:
  cold_max: 95.0
  misposition_time_threshold: 3
  min_stabilization_time: 120
general:
  check_interval: 15
  offline_threshold: 120
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Thresholds.ColdMax != 95.0 {
		t.Fatalf("expected yaml cold max, got %.1f", cfg.Thresholds.ColdMax)
	}
	if cfg.Thresholds.MispositionAfter != 3*time.Minute {
		t.Fatalf("expected 3m misposition window, got %s", cfg.Thresholds.MispositionAfter)
	}
	if cfg.Thresholds.MinStabilization != 2*time.Minute {
		t.Fatalf("expected 2m stabilization time, got %s", cfg.Thresholds.MinStabilization)
	}
	if cfg.CheckInterval != 15*time.Second || cfg.OfflineAfter != 2*time.Minute {
		t.Fatalf("unexpected general overrides %s %s", cfg.CheckInterval, cfg.OfflineAfter)
	}
	// Values absent from the file keep their defaults.
	if cfg.Thresholds.WarmMax != 99.0 {
		t.Fatalf("expected default warm max, got %.1f", cfg.Thresholds.WarmMax)
	}
}

func TestLoadMissingOverlayFileIsNotAnError(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/metrics")

	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err != nil {
		t.Fatalf("missing overlay must not fail load: %v", err)
	}
}

func TestLoadRejectsMalformedValues(t *testing.T) {
	cases := []struct {
		key   string
		value string
	}{
		{"TEMP_COLD_MAX", "not-a-number"},
		{"TEMP_MISPOSITION_THRESHOLD", "five"},
		{"CHECK_INTERVAL", "soon"},
		{"NOTIFY_RECOVERY", "maybe"},
		{"DISPATCH_TIMEOUT", "10"}, // duration without a unit
	}
	for _, tc := range cases {
		t.Run(tc.key, func(t *testing.T) {
			t.Setenv("DATABASE_URL", "postgres://localhost/metrics")
			t.Setenv(tc.key, tc.value)

			if _, err := Load(""); err == nil {
				t.Fatalf("expected error for %s=%q", tc.key, tc.value)
			}
		})
	}
}

func TestValidateRejectsBadBandOrder(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/metrics")
	t.Setenv("TEMP_COLD_MAX", "99.5")

	if _, err := Load(""); err == nil {
		t.Fatal("expected error for unordered band bounds")
	}
}

func TestValidatePostgresRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("PG_DSN", "")

	if _, err := Load(""); err == nil {
		t.Fatal("expected error for missing database url")
	}
}

func TestValidateMQTTRequiresBroker(t *testing.T) {
	t.Setenv("SOURCE", "mqtt")
	t.Setenv("MQTT_BROKER", "")

	if _, err := Load(""); err == nil {
		t.Fatal("expected error for missing broker")
	}
}

func TestValidateRejectsUnknownSource(t *testing.T) {
	t.Setenv("SOURCE", "influx")

	if _, err := Load(""); err == nil {
		t.Fatal("expected error for unknown source")
	}
}
