// Package history records speaker state history to a time-series store.
//
// The recorder is the bridge between the in-memory registry and InfluxDB.
// It is wired as a snapshot hook on the registry, so every accepted status
// snapshot produces one point, and the group coordinator hands it operation
// reports for fan-out outcome history.
//
// A nil writer disables recording; every method is a no-op in that case,
// so callers never need to guard on whether history is enabled.
package history

import (
	"time"

	"github.com/nerrad567/soundmesh-core/internal/group"
	"github.com/nerrad567/soundmesh-core/internal/speaker"
)

// Measurement names used in the time-series store.
const (
	measurementSpeakerState   = "speaker_state"
	measurementGroupOperation = "group_operation"
	measurementReachability   = "speaker_reachability"
)

// Writer is the subset of the InfluxDB client the recorder needs.
type Writer interface {
	WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time)
	WritePoint(measurement string, tags map[string]string, fields map[string]interface{})
	Flush()
}

// Recorder writes speaker state and operation history.
//
// All methods are safe for concurrent use; the underlying write API
// batches points without blocking the caller.
type Recorder struct {
	writer Writer
}

// NewRecorder creates a Recorder backed by the given writer.
// Passing a nil writer returns a disabled recorder whose methods do nothing.
func NewRecorder(writer Writer) *Recorder {
	return &Recorder{writer: writer}
}

// Enabled reports whether the recorder has a backing writer.
func (r *Recorder) Enabled() bool {
	return r != nil && r.writer != nil
}

// RecordSnapshot writes one point for an accepted status snapshot.
//
// The point is timestamped with the snapshot's observation time rather
// than the write time, so the series reflects what the speaker reported.
// Speakers without a snapshot are skipped.
func (r *Recorder) RecordSnapshot(sp speaker.Speaker) {
	if !r.Enabled() || sp.LastSnapshot == nil {
		return
	}

	snap := sp.LastSnapshot
	role, masterID := speaker.DetectRole(snap)

	tags := map[string]string{
		"speaker_id": sp.ID,
		"role":       string(role),
	}
	fields := map[string]interface{}{
		"volume":     snap.Volume,
		"muted":      snap.Muted,
		"play_state": string(snap.PlayState),
	}
	if snap.Source != "" {
		fields["source"] = snap.Source
	}
	if masterID != "" {
		fields["master_id"] = masterID
	}

	r.writer.WritePointWithTime(measurementSpeakerState, tags, fields, snap.ObservedAt)
}

// RecordOperation writes the outcome of a group fan-out operation.
func (r *Recorder) RecordOperation(report group.OperationReport) {
	if !r.Enabled() {
		return
	}

	tags := map[string]string{
		"master_id": report.MasterID,
		"operation": report.Operation,
	}
	fields := map[string]interface{}{
		"succeeded":   len(report.Succeeded),
		"failed":      len(report.Failed),
		"duration_ms": report.Duration.Milliseconds(),
	}

	r.writer.WritePointWithTime(measurementGroupOperation, tags, fields, report.StartedAt)
}

// RecordReachability writes a reachability transition for a speaker.
// Called when a speaker is flagged unreachable or recovers.
func (r *Recorder) RecordReachability(speakerID string, reachable bool) {
	if !r.Enabled() {
		return
	}

	r.writer.WritePoint(measurementReachability,
		map[string]string{"speaker_id": speakerID},
		map[string]interface{}{"reachable": reachable},
	)
}

// Flush forces pending points to be written. Used before shutdown.
func (r *Recorder) Flush() {
	if !r.Enabled() {
		return
	}
	r.writer.Flush()
}
