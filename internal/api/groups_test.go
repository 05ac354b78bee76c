package api

import (
	"math"
	"net/http"
	"testing"

	"github.com/nerrad567/soundmesh-core/internal/group"
)

func TestHandleListGroups(t *testing.T) {
	f := newFixture(t)

	rec := f.doRequest(t, http.MethodGet, "/api/v1/groups", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body struct {
		Groups []groupResponse `json:"groups"`
		Count  int             `json:"count"`
	}
	decodeBody(t, rec, &body)
	if body.Count != 1 {
		t.Fatalf("count = %d, want 1", body.Count)
	}
	grp := body.Groups[0]
	if grp.MasterID != "a" {
		t.Errorf("master = %s, want a", grp.MasterID)
	}
	if len(grp.Members) != 2 {
		t.Fatalf("members = %d, want 2", len(grp.Members))
	}
	if grp.Members[0].ID != "a" || grp.Members[1].ID != "b" {
		t.Errorf("member order = %s, %s, want a, b", grp.Members[0].ID, grp.Members[1].ID)
	}
}

func TestHandleGetGroup(t *testing.T) {
	f := newFixture(t)

	rec := f.doRequest(t, http.MethodGet, "/api/v1/groups/a", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var grp groupResponse
	decodeBody(t, rec, &grp)
	if grp.MasterID != "a" || len(grp.Members) != 2 {
		t.Errorf("group = %+v, want a with 2 members", grp)
	}
}

func TestHandleGetGroup_NotFound(t *testing.T) {
	f := newFixture(t)

	// c is solo, not a master.
	rec := f.doRequest(t, http.MethodGet, "/api/v1/groups/c", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestHandleGroupVolume_DefaultReference(t *testing.T) {
	f := newFixture(t)

	// Reference defaults to the master's current volume (0.5). Target 0.7
	// moves every member up by 0.2 from its own level.
	rec := f.doRequest(t, http.MethodPost, "/api/v1/groups/a/volume", groupVolumeRequest{Level: 0.7})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
	}

	var report group.OperationReport
	decodeBody(t, rec, &report)
	if report.Operation != "set_volume" {
		t.Errorf("operation = %s, want set_volume", report.Operation)
	}
	if len(report.Succeeded) != 2 || len(report.Failed) != 0 {
		t.Fatalf("succeeded = %v, failed = %v, want 2/0", report.Succeeded, report.Failed)
	}

	wantVolumes := map[string]float64{"addr-a": 0.7, "addr-b": 0.5}
	for addr, want := range wantVolumes {
		got, ok := f.cmd.volume(addr)
		if !ok || math.Abs(got-want) > 1e-9 {
			t.Errorf("volume at %s = %v (%t), want %v", addr, got, ok, want)
		}
	}
}

func TestHandleGroupVolume_ExplicitReference(t *testing.T) {
	f := newFixture(t)

	ref := 0.5
	rec := f.doRequest(t, http.MethodPost, "/api/v1/groups/a/volume", groupVolumeRequest{Level: 0.3, Reference: &ref})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	// Delta is -0.2: a 0.5 -> 0.3, b 0.3 -> 0.1.
	wantVolumes := map[string]float64{"addr-a": 0.3, "addr-b": 0.1}
	for addr, want := range wantVolumes {
		got, ok := f.cmd.volume(addr)
		if !ok || math.Abs(got-want) > 1e-9 {
			t.Errorf("volume at %s = %v (%t), want %v", addr, got, ok, want)
		}
	}
}

func TestHandleGroupVolume_PartialFailure(t *testing.T) {
	f := newFixture(t)
	f.cmd.failAt["addr-b"] = true

	rec := f.doRequest(t, http.MethodPost, "/api/v1/groups/a/volume", groupVolumeRequest{Level: 0.6})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; partial failure is not an HTTP error", rec.Code, http.StatusOK)
	}

	var report group.OperationReport
	decodeBody(t, rec, &report)
	if len(report.Succeeded) != 1 || report.Succeeded[0] != "a" {
		t.Errorf("succeeded = %v, want [a]", report.Succeeded)
	}
	if len(report.Failed) != 1 || report.Failed[0].SpeakerID != "b" {
		t.Errorf("failed = %v, want b", report.Failed)
	}
}

func TestHandleGroupVolume_Errors(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		path string
		body any
		want int
	}{
		{"level out of range", "/api/v1/groups/a/volume", groupVolumeRequest{Level: 2}, http.StatusBadRequest},
		{"unknown master", "/api/v1/groups/nope/volume", groupVolumeRequest{Level: 0.5}, http.StatusNotFound},
		{"solo speaker is not a master", "/api/v1/groups/c/volume", groupVolumeRequest{Level: 0.5}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.doRequest(t, http.MethodPost, tt.path, tt.body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestHandleGroupMute(t *testing.T) {
	f := newFixture(t)

	rec := f.doRequest(t, http.MethodPost, "/api/v1/groups/a/mute", muteRequest{Muted: true})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var report group.OperationReport
	decodeBody(t, rec, &report)
	if report.Operation != "mute" {
		t.Errorf("operation = %s, want mute", report.Operation)
	}

	for _, addr := range []string{"addr-a", "addr-b"} {
		if m, ok := f.cmd.muted(addr); !ok || !m {
			t.Errorf("mute at %s = %v (%t), want true", addr, m, ok)
		}
	}
}

func TestHandleGroupOperation_Recorded(t *testing.T) {
	f := newFixture(t)

	f.doRequest(t, http.MethodPost, "/api/v1/groups/a/mute", muteRequest{Muted: true})
	f.doRequest(t, http.MethodPost, "/api/v1/groups/a/volume", groupVolumeRequest{Level: 0.6})

	f.recorder.mu.Lock()
	defer f.recorder.mu.Unlock()
	if len(f.recorder.reports) != 2 {
		t.Fatalf("recorded reports = %d, want 2", len(f.recorder.reports))
	}
	if f.recorder.reports[0].Operation != "mute" || f.recorder.reports[1].Operation != "set_volume" {
		t.Errorf("recorded operations = %s, %s", f.recorder.reports[0].Operation, f.recorder.reports[1].Operation)
	}
}

func TestHandleGroupJoin(t *testing.T) {
	f := newFixture(t)

	rec := f.doRequest(t, http.MethodPost, "/api/v1/groups/a/join", groupJoinRequest{SlaveID: "c"})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d: %s", rec.Code, http.StatusAccepted, rec.Body.String())
	}

	if len(f.grouper.joins) != 1 {
		t.Fatalf("joins = %d, want 1", len(f.grouper.joins))
	}
	if join := f.grouper.joins[0]; join[0] != "addr-c" || join[1] != "addr-a" {
		t.Errorf("join = %v, want [addr-c addr-a]", join)
	}
}

func TestHandleGroupJoin_Errors(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		path string
		body any
		want int
	}{
		{"missing slave_id", "/api/v1/groups/a/join", groupJoinRequest{}, http.StatusBadRequest},
		{"join self", "/api/v1/groups/a/join", groupJoinRequest{SlaveID: "a"}, http.StatusBadRequest},
		{"unknown slave", "/api/v1/groups/a/join", groupJoinRequest{SlaveID: "nope"}, http.StatusNotFound},
		{"unknown master", "/api/v1/groups/nope/join", groupJoinRequest{SlaveID: "c"}, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.doRequest(t, http.MethodPost, tt.path, tt.body)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestHandleGroupDisband(t *testing.T) {
	f := newFixture(t)

	rec := f.doRequest(t, http.MethodPost, "/api/v1/groups/a/disband", nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusAccepted)
	}

	if len(f.grouper.disbands) != 1 || f.grouper.disbands[0] != "addr-a" {
		t.Errorf("disbands = %v, want [addr-a]", f.grouper.disbands)
	}
}

func TestHandleGroupDisband_NotAMaster(t *testing.T) {
	f := newFixture(t)

	rec := f.doRequest(t, http.MethodPost, "/api/v1/groups/c/disband", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}
