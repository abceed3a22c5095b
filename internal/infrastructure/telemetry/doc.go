// Package telemetry provides InfluxDB connectivity for Growcore.
//
// It wraps the official influxdb-client-go v2 library with Growcore-specific
// patterns for connection management, metric writing, and health monitoring.
//
// # Purpose
//
// This package handles time-series data storage for:
//   - Actuator state transitions and power draw
//   - Command execution latency and retry counts
//   - Actuator health scores from periodic snapshots
//
// # Usage
//
//	cfg := config.InfluxDBConfig{
//	    URL:    "http://localhost:8086",
//	    Token:  "your-token",
//	    Org:    "fernlea",
//	    Bucket: "growcore",
//	}
//
//	client, err := telemetry.Connect(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WriteActuatorState("act-light-1", "unit-1", "on", 240)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are delivered via a
// callback. Connection and health check errors are returned directly.
package telemetry
