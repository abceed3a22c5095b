package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestRunInvalidConfig(t *testing.T) {
	originalEnv := os.Getenv("GROWCORE_CONFIG")
	defer os.Setenv("GROWCORE_CONFIG", originalEnv)

	os.Setenv("GROWCORE_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

func TestRunMissingDatabasePath(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "test-config.yaml")

	configContent := `
site:
  id: test-site

database:
  path: ""
  wal_mode: true
  busy_timeout: 5

mqtt:
  broker:
    host: "127.0.0.1"
    port: 1883
    client_id: "test-client"
  qos: 1

influxdb:
  enabled: false

logging:
  level: info
  format: text
  output: stdout
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	originalEnv := os.Getenv("GROWCORE_CONFIG")
	defer os.Setenv("GROWCORE_CONFIG", originalEnv)
	os.Setenv("GROWCORE_CONFIG", configPath)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with empty database path")
	}
}

func TestGetConfigPathDefault(t *testing.T) {
	originalEnv := os.Getenv("GROWCORE_CONFIG")
	defer os.Setenv("GROWCORE_CONFIG", originalEnv)

	os.Unsetenv("GROWCORE_CONFIG")

	if path := getConfigPath(); path != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", path, defaultConfigPath)
	}
}

func TestGetConfigPathEnvOverride(t *testing.T) {
	originalEnv := os.Getenv("GROWCORE_CONFIG")
	defer os.Setenv("GROWCORE_CONFIG", originalEnv)

	expected := "/custom/path/config.yaml"
	os.Setenv("GROWCORE_CONFIG", expected)

	if path := getConfigPath(); path != expected {
		t.Errorf("getConfigPath() = %q, want %q", path, expected)
	}
}

func TestParseSensorMessage(t *testing.T) {
	tests := []struct {
		name     string
		topic    string
		payload  string
		wantUnit string
		wantLux  float64
		wantErr  bool
	}{
		{"bare number", "growcore/sensor/unit-1/lux", "412.5", "unit-1", 412.5, false},
		{"json object", "growcore/sensor/unit-2/lux", `{"lux": 88}`, "unit-2", 88, false},
		{"wrong topic shape", "growcore/sensor/unit-1", "100", "", 0, true},
		{"wrong leaf", "growcore/sensor/unit-1/temp", "100", "", 0, true},
		{"garbage payload", "growcore/sensor/unit-1/lux", "not a number", "", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			unit, lux, err := parseSensorMessage(tt.topic, []byte(tt.payload))
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if unit != tt.wantUnit || lux != tt.wantLux {
				t.Errorf("got (%q, %v), want (%q, %v)", unit, lux, tt.wantUnit, tt.wantLux)
			}
		})
	}
}

func TestSensorCache(t *testing.T) {
	cache := newSensorCache()

	if got := cache.get("unit-1"); got != nil {
		t.Errorf("empty cache returned %v", *got)
	}

	cache.set("unit-1", 250)
	got := cache.get("unit-1")
	if got == nil || *got != 250 {
		t.Errorf("get after set = %v, want 250", got)
	}

	// Returned pointer is a copy; mutating it must not affect the cache.
	*got = 999
	if again := cache.get("unit-1"); again == nil || *again != 250 {
		t.Error("cache value mutated through returned pointer")
	}
}
