package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/soundmesh-core/internal/group"
	"github.com/nerrad567/soundmesh-core/internal/speaker"
)

// groupResponse is the API representation of a derived group.
type groupResponse struct {
	MasterID string            `json:"master_id"`
	Members  []speakerResponse `json:"members"`
}

func (s *Server) toGroupResponse(grp speaker.Group) groupResponse {
	resp := groupResponse{
		MasterID: grp.MasterID,
		Members:  make([]speakerResponse, 0, len(grp.MemberIDs)),
	}
	for _, id := range grp.MemberIDs {
		sp, err := s.registry.LookupByID(id)
		if err != nil {
			// Member deregistered between group resolution and lookup.
			continue
		}
		resp.Members = append(resp.Members, toSpeakerResponse(*sp))
	}
	return resp
}

// handleListGroups returns all current groups derived from the latest
// snapshots.
// GET /api/v1/groups
func (s *Server) handleListGroups(w http.ResponseWriter, _ *http.Request) {
	current := s.groups.CurrentGroups()
	groups := make([]groupResponse, 0, len(current))
	for _, grp := range current {
		groups = append(groups, s.toGroupResponse(grp))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"groups": groups,
		"count":  len(groups),
	})
}

// handleGetGroup returns the group mastered by the given speaker.
// GET /api/v1/groups/{masterID}
func (s *Server) handleGetGroup(w http.ResponseWriter, r *http.Request) {
	masterID := chi.URLParam(r, "masterID")

	grp, err := s.groups.GroupOf(masterID)
	if err != nil {
		writeNotFound(w, "no group mastered by: "+masterID)
		return
	}
	writeJSON(w, http.StatusOK, s.toGroupResponse(grp))
}

// groupVolumeRequest is the request body for a group volume operation.
// Reference is the volume the client considered current when the user
// started the adjustment; it defaults to the master's latest volume.
type groupVolumeRequest struct {
	Level     float64  `json:"level"`
	Reference *float64 `json:"reference,omitempty"`
}

// handleGroupVolume fans a relative volume change out to every current
// member of the group. Per-member failures are reported, not escalated.
// POST /api/v1/groups/{masterID}/volume
func (s *Server) handleGroupVolume(w http.ResponseWriter, r *http.Request) {
	masterID := chi.URLParam(r, "masterID")

	var req groupVolumeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Level < 0 || req.Level > 1 {
		writeBadRequest(w, "level must be between 0.0 and 1.0")
		return
	}

	reference := req.Level
	if req.Reference != nil {
		reference = *req.Reference
	} else if master, err := s.registry.LookupByID(masterID); err == nil && master.LastSnapshot != nil {
		reference = master.LastSnapshot.Volume
	}

	op := group.VolumeOperation{Target: req.Level, Reference: reference}
	s.applyGroupOperation(w, r, masterID, op)
}

// handleGroupMute fans an absolute mute state out to every current
// member of the group.
// POST /api/v1/groups/{masterID}/mute
func (s *Server) handleGroupMute(w http.ResponseWriter, r *http.Request) {
	masterID := chi.URLParam(r, "masterID")

	var req muteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	s.applyGroupOperation(w, r, masterID, group.MuteOperation{Muted: req.Muted})
}

// applyGroupOperation runs a fan-out and writes the structural report.
// Partial failure is a normal outcome and still returns 200.
func (s *Server) applyGroupOperation(w http.ResponseWriter, r *http.Request, masterID string, op group.Operation) {
	report, err := s.coordinator.ApplyToGroup(r.Context(), masterID, op)
	if err != nil {
		if errors.Is(err, speaker.ErrGroupNotFound) {
			writeNotFound(w, "no group mastered by: "+masterID)
			return
		}
		s.logger.Error("group operation failed", "master_id", masterID, "operation", op.Name(), "error", err)
		writeInternalError(w, "group operation failed")
		return
	}

	if s.recorder != nil {
		s.recorder.RecordOperation(*report)
	}

	writeJSON(w, http.StatusOK, report)
}

// groupJoinRequest is the request body for adding a slave to a group.
type groupJoinRequest struct {
	SlaveID string `json:"slave_id"`
}

// handleGroupJoin requests that a speaker join the group mastered by
// masterID. The transition is confirmed by the next topology poll.
// POST /api/v1/groups/{masterID}/join
func (s *Server) handleGroupJoin(w http.ResponseWriter, r *http.Request) {
	masterID := chi.URLParam(r, "masterID")

	var req groupJoinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.SlaveID == "" {
		writeBadRequest(w, "slave_id is required")
		return
	}

	if err := s.coordinator.Join(r.Context(), req.SlaveID, masterID); err != nil {
		switch {
		case errors.Is(err, speaker.ErrSpeakerNotFound):
			writeNotFound(w, err.Error())
		case errors.Is(err, speaker.ErrInvalidSpeaker):
			writeBadRequest(w, err.Error())
		default:
			s.logger.Warn("join request failed", "slave_id", req.SlaveID, "master_id", masterID, "error", err)
			writeBadGateway(w, "speaker did not accept join request")
		}
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"master_id": masterID,
		"slave_id":  req.SlaveID,
		"requested": "join",
	})
}

// handleGroupDisband requests that the master dissolve its group.
// POST /api/v1/groups/{masterID}/disband
func (s *Server) handleGroupDisband(w http.ResponseWriter, r *http.Request) {
	masterID := chi.URLParam(r, "masterID")

	if err := s.coordinator.Disband(r.Context(), masterID); err != nil {
		switch {
		case errors.Is(err, speaker.ErrGroupNotFound):
			writeNotFound(w, "no group mastered by: "+masterID)
		case errors.Is(err, speaker.ErrSpeakerNotFound):
			writeNotFound(w, "speaker not found: "+masterID)
		default:
			s.logger.Warn("disband request failed", "master_id", masterID, "error", err)
			writeBadGateway(w, "speaker did not accept disband request")
		}
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"master_id": masterID,
		"requested": "disband",
	})
}
