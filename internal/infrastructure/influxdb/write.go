package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"
)

// WriteSpeakerMetric writes a single speaker measurement to InfluxDB.
//
// This is the primary method for recording per-speaker telemetry data.
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - speakerID: Unique identifier for the speaker (e.g., "spk-kitchen")
//   - measurement: The metric name (e.g., "volume", "poll_failures")
//   - value: The numeric value to record
//
// Example:
//
//	client.WriteSpeakerMetric("spk-kitchen", "volume", 0.45)
//	client.WriteSpeakerMetric("spk-lounge", "poll_failures", 2)
func (c *Client) WriteSpeakerMetric(speakerID string, measurement string, value float64) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(
		"speaker_metrics",
		map[string]string{
			"speaker_id":  speakerID,
			"measurement": measurement,
		},
		map[string]interface{}{
			"value": value,
		},
		time.Now(),
	)

	c.writeAPI.WritePoint(point)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for custom measurements that don't fit the helper methods.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
//
// Example:
//
//	client.WritePoint("group_operation",
//	    map[string]string{"master_id": "spk-lounge", "operation": "volume"},
//	    map[string]interface{}{"succeeded": 3, "failed": 1})
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, time.Now())
	c.writeAPI.WritePoint(point)
}

// WritePointWithTime writes a custom point with a specific timestamp.
//
// Use this when the timestamp is not "now". Status snapshots carry the
// observation time from the poll that produced them; recording with that
// timestamp keeps the series aligned with what the speaker reported.
//
// Parameters:
//   - measurement: The measurement name
//   - tags: Key-value pairs for indexing
//   - fields: Key-value pairs for the data
//   - timestamp: The exact time for this data point
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
