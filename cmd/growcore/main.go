// Growcore - scheduling and actuator-control engine for growth units.
//
// Growcore decides, at any instant, what state each actuator should be
// in: it evaluates time-of-day and photoperiod schedules, resolves
// conflicts by priority, enforces safety interlocks and power budgets,
// and drives hardware through an MQTT gateway with bounded retries.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	_ "github.com/fernlea/grow-core/migrations"

	"github.com/fernlea/grow-core/internal/actuator"
	"github.com/fernlea/grow-core/internal/events"
	"github.com/fernlea/grow-core/internal/executor"
	"github.com/fernlea/grow-core/internal/history"
	"github.com/fernlea/grow-core/internal/infrastructure/config"
	"github.com/fernlea/grow-core/internal/infrastructure/database"
	"github.com/fernlea/grow-core/internal/infrastructure/logging"
	"github.com/fernlea/grow-core/internal/infrastructure/mqtt"
	"github.com/fernlea/grow-core/internal/infrastructure/telemetry"
	"github.com/fernlea/grow-core/internal/schedule"
	"github.com/fernlea/grow-core/internal/sun"
	"github.com/fernlea/grow-core/internal/tasks"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for
// testability. Returning an error allows main to handle exit codes
// consistently.
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting Growcore",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)

	// Database and migrations
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()

	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database ready", "path", cfg.Database.Path)

	// MQTT transport
	mqttClient, err := mqtt.Connect(cfg.MQTT)
	if err != nil {
		return fmt.Errorf("connecting to MQTT: %w", err)
	}
	defer func() {
		log.Info("disconnecting from MQTT")
		if closeErr := mqttClient.Close(); closeErr != nil {
			log.Error("error closing MQTT", "error", closeErr)
		}
	}()
	mqttClient.SetLogger(log)
	mqttClient.SetOnConnect(func() {
		log.Info("MQTT reconnected")
	})
	mqttClient.SetOnDisconnect(func(err error) {
		log.Warn("MQTT disconnected", "error", err)
	})
	log.Info("MQTT connected",
		"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
		"client_id", cfg.MQTT.Broker.ClientID,
	)

	// Telemetry sink (optional)
	var influx *telemetry.Client
	if cfg.InfluxDB.Enabled {
		influx, err = telemetry.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing telemetry")
			if closeErr := influx.Close(); closeErr != nil {
				log.Error("error closing telemetry", "error", closeErr)
			}
		}()
		influx.SetOnError(func(err error) {
			log.Error("telemetry write error", "error", err)
		})
		log.Info("telemetry connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	} else {
		log.Info("telemetry disabled")
	}

	// Event bus mirrored onto MQTT
	bus := events.NewBus()
	bus.SetLogger(log)
	bus.SetMirror(mqttClient, mqtt.Topics{}.Event)

	// History recorder
	recorder := history.NewRecorder(history.NewSQLiteRepository(db.DB))

	// Schedule store, photoperiod resolver, evaluator
	store := schedule.NewStore(schedule.NewSQLiteRepository(db.DB))
	store.SetLogger(log)
	store.SetRecorder(recorder)

	resolver := schedule.NewPhotoperiodResolver()
	resolver.SetLogger(log)
	resolver.SetSunService(sun.NewService())

	evaluator := schedule.NewEvaluator(store, resolver)
	evaluator.SetLogger(log)

	// Actuator runtime behind the MQTT hardware adapter
	qos := byte(cfg.MQTT.QoS)
	adapter := actuator.NewMQTTAdapter(mqttClient, qos)
	runtime := actuator.NewRuntime(adapter, actuator.NewSQLiteRepository(db.DB))
	runtime.SetLogger(log)
	runtime.SetEvents(bus)
	if influx != nil {
		runtime.SetTelemetry(influx)
	}

	guard := actuator.NewGuard(runtime, cfg.Safety.PowerBudgetWatts)
	guard.SetLogger(log)
	runtime.SetGuard(guard)

	// Task scheduler drives evaluation ticks, health flushes, pulses
	scheduler := tasks.NewScheduler()
	scheduler.SetLogger(log)
	defer scheduler.Stop()
	runtime.SetScheduler(scheduler)

	units, err := registerActuators(ctx, cfg, runtime)
	if err != nil {
		return err
	}
	log.Info("actuators registered", "count", runtime.Count(), "units", len(units))

	// Executor
	exec := executor.New(runtime, store, evaluator, recorder)
	exec.SetLogger(log)
	exec.SetEvents(bus)
	if influx != nil {
		exec.SetTelemetry(influx)
	}

	// Latest lux readings per unit, fed by the sensor subscription
	readings := newSensorCache()
	err = mqttClient.Subscribe(mqtt.Topics{}.AllSensorLux(), qos, func(topic string, payload []byte) error {
		unitID, lux, parseErr := parseSensorMessage(topic, payload)
		if parseErr != nil {
			log.Warn("ignoring malformed sensor message", "topic", topic, "error", parseErr)
			return nil
		}
		readings.set(unitID, lux)
		return nil
	})
	if err != nil {
		return fmt.Errorf("subscribing to sensors: %w", err)
	}

	if err := healthCheck(ctx, db, mqttClient, influx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}

	// Converge hardware with schedules immediately, then tick
	exec.SyncAtStartup(ctx, units)

	for _, unitID := range units {
		err := scheduler.Register("evaluate "+unitID, func(taskCtx context.Context) {
			exec.EvaluateUnit(taskCtx, unitID, time.Now(), readings.get(unitID))
		}, cfg.EvaluationInterval(), "evaluate-"+unitID)
		if err != nil {
			return fmt.Errorf("registering evaluation for %s: %w", unitID, err)
		}
	}
	err = scheduler.Register("health snapshot flush", func(taskCtx context.Context) {
		runtime.FlushHealth(taskCtx)
	}, time.Hour, "health-flush")
	if err != nil {
		return fmt.Errorf("registering health flush: %w", err)
	}

	log.Info("initialisation complete, waiting for shutdown signal",
		"evaluation_interval", cfg.EvaluationInterval(),
	)

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	return nil
}

// registerActuators loads configured actuators into the runtime and
// returns the distinct unit IDs, in configuration order.
func registerActuators(ctx context.Context, cfg *config.Config, runtime *actuator.Runtime) ([]string, error) {
	var units []string
	seen := make(map[string]bool)

	for _, a := range cfg.Actuators {
		entity := &actuator.Entity{
			ID:                a.ID,
			UnitID:            a.UnitID,
			Name:              a.Name,
			DeviceType:        a.DeviceType,
			Interlocks:        a.Interlocks,
			MaxRuntimeSeconds: a.MaxRuntimeSeconds,
			CooldownSeconds:   a.CooldownSeconds,
			PowerWatts:        a.PowerWatts,
		}
		if err := runtime.Register(ctx, entity); err != nil {
			return nil, fmt.Errorf("registering actuator %s: %w", a.ID, err)
		}
		if !seen[a.UnitID] {
			seen[a.UnitID] = true
			units = append(units, a.UnitID)
		}
	}

	return units, nil
}

// sensorCache holds the latest lux reading per unit.
type sensorCache struct {
	mu     sync.RWMutex
	values map[string]float64
}

func newSensorCache() *sensorCache {
	return &sensorCache{values: make(map[string]float64)}
}

func (c *sensorCache) set(unitID string, lux float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[unitID] = lux
}

func (c *sensorCache) get(unitID string) *float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if lux, ok := c.values[unitID]; ok {
		return &lux
	}
	return nil
}

// parseSensorMessage extracts the unit ID from a sensor topic
// (growcore/sensor/{unit}/lux) and the lux value from the payload.
// Payloads may be a bare number or a JSON object with a "lux" field.
func parseSensorMessage(topic string, payload []byte) (string, float64, error) {
	parts := strings.Split(topic, "/")
	if len(parts) != 4 || parts[1] != "sensor" || parts[3] != "lux" {
		return "", 0, fmt.Errorf("unexpected sensor topic %q", topic)
	}
	unitID := parts[2]

	if lux, err := strconv.ParseFloat(strings.TrimSpace(string(payload)), 64); err == nil {
		return unitID, lux, nil
	}

	var msg struct {
		Lux float64 `json:"lux"`
	}
	if err := json.Unmarshal(payload, &msg); err != nil {
		return "", 0, fmt.Errorf("parsing lux payload: %w", err)
	}
	return unitID, msg.Lux, nil
}

// getConfigPath returns the configuration file path.
// Uses GROWCORE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("GROWCORE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies all infrastructure connections are healthy.
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influx *telemetry.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}
	if err := mqttClient.HealthCheck(ctx); err != nil {
		return fmt.Errorf("mqtt: %w", err)
	}
	if influx != nil {
		if err := influx.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}
	return nil
}
