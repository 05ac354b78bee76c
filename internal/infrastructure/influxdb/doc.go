// Package influxdb provides InfluxDB connectivity for SoundMesh Core.
//
// It wraps the official influxdb-client-go v2 library with SoundMesh-specific
// patterns for connection management, metric writing, and health monitoring.
//
// # Purpose
//
// This package handles time-series data storage for:
//   - Speaker status snapshots (volume, mute, play state)
//   - Group operation outcomes
//   - Poll health metrics
//
// # Usage
//
//	cfg := config.InfluxDBConfig{
//	    URL:    "http://localhost:8086",
//	    Token:  "your-token",
//	    Org:    "soundmesh",
//	    Bucket: "speakers",
//	}
//
//	client, err := influxdb.Connect(cfg)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Write speaker metrics
//	client.WriteSpeakerMetric("spk-kitchen", "volume", 0.45)
//
// # Thread Safety
//
// All methods are safe for concurrent use from multiple goroutines.
// The underlying write API uses non-blocking batched writes.
//
// # Error Handling
//
// Write operations are non-blocking and batch errors are logged via a callback.
// Connection and health check errors are returned directly.
//
// # Performance
//
// Writes are batched according to config.yaml settings (batch_size, flush_interval).
// This reduces network overhead for high-frequency polling data.
package influxdb
