package history

import (
	"sync"
	"testing"
	"time"

	"github.com/nerrad567/soundmesh-core/internal/group"
	"github.com/nerrad567/soundmesh-core/internal/speaker"
)

type recordedPoint struct {
	measurement string
	tags        map[string]string
	fields      map[string]interface{}
	timestamp   time.Time
}

type fakeWriter struct {
	mu      sync.Mutex
	points  []recordedPoint
	flushes int
}

func (w *fakeWriter) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.points = append(w.points, recordedPoint{measurement, tags, fields, timestamp})
}

func (w *fakeWriter) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	w.WritePointWithTime(measurement, tags, fields, time.Now())
}

func (w *fakeWriter) Flush() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.flushes++
}

func (w *fakeWriter) recorded() []recordedPoint {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]recordedPoint, len(w.points))
	copy(out, w.points)
	return out
}

func TestRecorder_RecordSnapshot(t *testing.T) {
	writer := &fakeWriter{}
	rec := NewRecorder(writer)

	observed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	master := "spk-lounge"
	rec.RecordSnapshot(speaker.Speaker{
		ID: "spk-kitchen",
		LastSnapshot: &speaker.StatusSnapshot{
			PlayState:  speaker.PlayStatePlaying,
			Volume:     0.45,
			Muted:      false,
			Source:     "airplay",
			GroupField: "slave",
			MasterID:   &master,
			ObservedAt: observed,
		},
	})

	points := writer.recorded()
	if len(points) != 1 {
		t.Fatalf("expected 1 point, got %d", len(points))
	}

	p := points[0]
	if p.measurement != "speaker_state" {
		t.Errorf("measurement = %q, want speaker_state", p.measurement)
	}
	if p.tags["speaker_id"] != "spk-kitchen" {
		t.Errorf("speaker_id tag = %q", p.tags["speaker_id"])
	}
	if p.tags["role"] != "slave" {
		t.Errorf("role tag = %q, want slave", p.tags["role"])
	}
	if p.fields["volume"] != 0.45 {
		t.Errorf("volume field = %v, want 0.45", p.fields["volume"])
	}
	if p.fields["play_state"] != "playing" {
		t.Errorf("play_state field = %v", p.fields["play_state"])
	}
	if p.fields["master_id"] != "spk-lounge" {
		t.Errorf("master_id field = %v", p.fields["master_id"])
	}
	if !p.timestamp.Equal(observed) {
		t.Errorf("timestamp = %v, want observation time %v", p.timestamp, observed)
	}
}

func TestRecorder_RecordSnapshot_NoSnapshot(t *testing.T) {
	writer := &fakeWriter{}
	rec := NewRecorder(writer)

	rec.RecordSnapshot(speaker.Speaker{ID: "spk-empty"})

	if got := len(writer.recorded()); got != 0 {
		t.Errorf("expected no points for speaker without snapshot, got %d", got)
	}
}

func TestRecorder_RecordOperation(t *testing.T) {
	writer := &fakeWriter{}
	rec := NewRecorder(writer)

	started := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)
	rec.RecordOperation(group.OperationReport{
		ID:        "op-1",
		Operation: "volume",
		MasterID:  "spk-lounge",
		Succeeded: []string{"spk-lounge", "spk-kitchen"},
		Failed:    []group.OperationFailure{{SpeakerID: "spk-patio"}},
		StartedAt: started,
		Duration:  250 * time.Millisecond,
	})

	points := writer.recorded()
	if len(points) != 1 {
		t.Fatalf("expected 1 point, got %d", len(points))
	}

	p := points[0]
	if p.measurement != "group_operation" {
		t.Errorf("measurement = %q", p.measurement)
	}
	if p.tags["master_id"] != "spk-lounge" || p.tags["operation"] != "volume" {
		t.Errorf("tags = %v", p.tags)
	}
	if p.fields["succeeded"] != 2 || p.fields["failed"] != 1 {
		t.Errorf("fields = %v", p.fields)
	}
	if p.fields["duration_ms"] != int64(250) {
		t.Errorf("duration_ms = %v, want 250", p.fields["duration_ms"])
	}
	if !p.timestamp.Equal(started) {
		t.Errorf("timestamp = %v, want %v", p.timestamp, started)
	}
}

func TestRecorder_RecordReachability(t *testing.T) {
	writer := &fakeWriter{}
	rec := NewRecorder(writer)

	rec.RecordReachability("spk-patio", false)
	rec.RecordReachability("spk-patio", true)

	points := writer.recorded()
	if len(points) != 2 {
		t.Fatalf("expected 2 points, got %d", len(points))
	}
	if points[0].fields["reachable"] != false || points[1].fields["reachable"] != true {
		t.Errorf("reachable fields = %v, %v", points[0].fields["reachable"], points[1].fields["reachable"])
	}
}

func TestRecorder_NilWriter(t *testing.T) {
	rec := NewRecorder(nil)

	if rec.Enabled() {
		t.Error("Enabled() = true for nil writer")
	}

	// None of these should panic.
	rec.RecordSnapshot(speaker.Speaker{
		ID:           "spk-a",
		LastSnapshot: &speaker.StatusSnapshot{ObservedAt: time.Now()},
	})
	rec.RecordOperation(group.OperationReport{})
	rec.RecordReachability("spk-a", true)
	rec.Flush()
}

func TestRecorder_Flush(t *testing.T) {
	writer := &fakeWriter{}
	rec := NewRecorder(writer)

	rec.Flush()

	writer.mu.Lock()
	defer writer.mu.Unlock()
	if writer.flushes != 1 {
		t.Errorf("flushes = %d, want 1", writer.flushes)
	}
}
