package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Growcore.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site       SiteConfig       `yaml:"site"`
	Database   DatabaseConfig   `yaml:"database"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	InfluxDB   InfluxDBConfig   `yaml:"influxdb"`
	Logging    LoggingConfig    `yaml:"logging"`
	Safety     SafetyConfig     `yaml:"safety"`
	Evaluation EvaluationConfig `yaml:"evaluation"`
	Actuators  []ActuatorConfig `yaml:"actuators"`
}

// SiteConfig contains installation-specific information.
type SiteConfig struct {
	ID       string         `yaml:"id"`
	Name     string         `yaml:"name"`
	Timezone string         `yaml:"timezone"`
	Location LocationConfig `yaml:"location"`
}

// LocationConfig contains geographic coordinates for solar day/night calculations.
type LocationConfig struct {
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// InfluxDBConfig contains InfluxDB telemetry settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// SafetyConfig contains fleet-wide safety limits enforced before
// any actuator activation.
type SafetyConfig struct {
	// PowerBudgetWatts is the ceiling for total rated power draw of
	// simultaneously-on actuators. 0 disables the budget check.
	PowerBudgetWatts float64 `yaml:"power_budget_watts"`
}

// EvaluationConfig controls the periodic schedule evaluation driver.
type EvaluationConfig struct {
	// IntervalSeconds is how often each unit's schedules are re-evaluated.
	IntervalSeconds int `yaml:"interval_seconds"`
}

// ActuatorConfig describes one hardware actuator registered at startup.
type ActuatorConfig struct {
	ID         string   `yaml:"id"`
	UnitID     string   `yaml:"unit_id"`
	Name       string   `yaml:"name"`
	DeviceType string   `yaml:"device_type"`
	Interlocks []string `yaml:"interlocks"`

	// MaxRuntimeSeconds limits continuous on-time. 0 disables the limit.
	MaxRuntimeSeconds int `yaml:"max_runtime_seconds"`

	// CooldownSeconds is the minimum off-time between activations.
	CooldownSeconds int `yaml:"cooldown_seconds"`

	// PowerWatts is the rated draw counted against the power budget.
	PowerWatts float64 `yaml:"power_watts"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: GROWCORE_SECTION_KEY
// For example: GROWCORE_DATABASE_PATH, GROWCORE_MQTT_HOST
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Site: SiteConfig{
			ID:       "site-001",
			Name:     "Growcore",
			Timezone: "UTC",
		},
		Database: DatabaseConfig{
			Path:        "./data/growcore.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "growcore",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Safety: SafetyConfig{
			PowerBudgetWatts: 0,
		},
		Evaluation: EvaluationConfig{
			IntervalSeconds: 60,
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: GROWCORE_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// Database
	if v := os.Getenv("GROWCORE_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("GROWCORE_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("GROWCORE_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("GROWCORE_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("GROWCORE_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Safety
	if v := os.Getenv("GROWCORE_POWER_BUDGET_WATTS"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Safety.PowerBudgetWatts = f
		}
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.Safety.PowerBudgetWatts < 0 {
		errs = append(errs, "safety.power_budget_watts must not be negative")
	}

	if c.Evaluation.IntervalSeconds < 1 {
		errs = append(errs, "evaluation.interval_seconds must be at least 1")
	}

	if c.Site.Location.Latitude < -90 || c.Site.Location.Latitude > 90 {
		errs = append(errs, "site.location.latitude must be between -90 and 90")
	}
	if c.Site.Location.Longitude < -180 || c.Site.Location.Longitude > 180 {
		errs = append(errs, "site.location.longitude must be between -180 and 180")
	}

	seen := make(map[string]bool, len(c.Actuators))
	for i, a := range c.Actuators {
		if a.ID == "" {
			errs = append(errs, fmt.Sprintf("actuators[%d].id is required", i))
			continue
		}
		if seen[a.ID] {
			errs = append(errs, fmt.Sprintf("actuators[%d].id %q is duplicated", i, a.ID))
		}
		seen[a.ID] = true
		if a.UnitID == "" {
			errs = append(errs, fmt.Sprintf("actuators[%d].unit_id is required", i))
		}
		if a.PowerWatts < 0 {
			errs = append(errs, fmt.Sprintf("actuators[%d].power_watts must not be negative", i))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// EvaluationInterval returns the schedule evaluation interval as a Duration.
func (c *Config) EvaluationInterval() time.Duration {
	return time.Duration(c.Evaluation.IntervalSeconds) * time.Second
}
