package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/nerrad567/soundmesh-core/internal/speaker"
)

// speakerResponse is the API representation of a speaker, with the role
// derived from its latest snapshot.
type speakerResponse struct {
	ID           string                  `json:"id"`
	Name         string                  `json:"name"`
	Address      string                  `json:"address"`
	Role         speaker.Role            `json:"role"`
	MasterID     string                  `json:"master_id,omitempty"`
	Unreachable  bool                    `json:"unreachable"`
	LastSnapshot *speaker.StatusSnapshot `json:"last_snapshot,omitempty"`
	CreatedAt    time.Time               `json:"created_at"`
	UpdatedAt    time.Time               `json:"updated_at"`
}

func toSpeakerResponse(sp speaker.Speaker) speakerResponse {
	role, masterID := speaker.DetectRole(sp.LastSnapshot)
	return speakerResponse{
		ID:           sp.ID,
		Name:         sp.Name,
		Address:      sp.Address,
		Role:         role,
		MasterID:     masterID,
		Unreachable:  sp.Unreachable,
		LastSnapshot: sp.LastSnapshot,
		CreatedAt:    sp.CreatedAt,
		UpdatedAt:    sp.UpdatedAt,
	}
}

// handleListSpeakers returns all registered speakers.
// GET /api/v1/speakers
func (s *Server) handleListSpeakers(w http.ResponseWriter, _ *http.Request) {
	all := s.registry.All()
	speakers := make([]speakerResponse, 0, len(all))
	for _, sp := range all {
		speakers = append(speakers, toSpeakerResponse(sp))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"speakers": speakers,
		"count":    len(speakers),
	})
}

// registerSpeakerRequest is the request body for speaker registration.
type registerSpeakerRequest struct {
	ID      string `json:"id,omitempty"`
	Name    string `json:"name"`
	Address string `json:"address"`
}

// handleRegisterSpeaker registers a new speaker and starts polling it.
// POST /api/v1/speakers
func (s *Server) handleRegisterSpeaker(w http.ResponseWriter, r *http.Request) {
	var req registerSpeakerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	if req.Address == "" {
		writeBadRequest(w, "address is required")
		return
	}
	if req.ID == "" {
		req.ID = uuid.New().String()
	}

	sp := &speaker.Speaker{
		ID:      req.ID,
		Name:    req.Name,
		Address: req.Address,
	}
	if err := s.registry.Register(sp); err != nil {
		switch {
		case errors.Is(err, speaker.ErrSpeakerExists):
			writeConflict(w, "speaker already registered: "+req.ID)
		case errors.Is(err, speaker.ErrInvalidSpeaker), errors.Is(err, speaker.ErrInvalidAddress):
			writeBadRequest(w, err.Error())
		default:
			s.logger.Error("speaker registration failed", "speaker_id", req.ID, "error", err)
			writeInternalError(w, "failed to register speaker")
		}
		return
	}

	if s.store != nil {
		rec := &speaker.Record{
			ID:      req.ID,
			Name:    req.Name,
			Address: req.Address,
		}
		if err := s.store.Create(r.Context(), rec); err != nil {
			// Roll back the registry entry so state and storage agree.
			//nolint:errcheck // Best-effort rollback of an entry we just created
			s.registry.Deregister(req.ID)
			if errors.Is(err, speaker.ErrSpeakerExists) {
				writeConflict(w, "speaker already registered: "+req.ID)
				return
			}
			s.logger.Error("speaker persistence failed", "speaker_id", req.ID, "error", err)
			writeInternalError(w, "failed to persist speaker")
			return
		}
	}

	if s.poller != nil {
		if err := s.poller.Add(req.ID); err != nil {
			s.logger.Warn("failed to start polling new speaker", "speaker_id", req.ID, "error", err)
		}
	}

	registered, err := s.registry.LookupByID(req.ID)
	if err != nil {
		writeInternalError(w, "failed to load registered speaker")
		return
	}
	writeJSON(w, http.StatusCreated, toSpeakerResponse(*registered))
}

// handleGetSpeaker returns a single speaker by ID.
// GET /api/v1/speakers/{id}
func (s *Server) handleGetSpeaker(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	sp, err := s.registry.LookupByID(id)
	if err != nil {
		writeNotFound(w, "speaker not found: "+id)
		return
	}
	writeJSON(w, http.StatusOK, toSpeakerResponse(*sp))
}

// handleGetSpeakerRole returns a speaker's effective topology role.
// A slave claim is corroborated against its master's snapshot, so a
// slave pointing at a vanished master reads as solo.
// GET /api/v1/speakers/{id}/role
func (s *Server) handleGetSpeakerRole(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	role, err := s.groups.RoleOf(id)
	if err != nil {
		writeNotFound(w, "speaker not found: "+id)
		return
	}

	resp := map[string]any{
		"speaker_id": id,
		"role":       role,
	}
	if role == speaker.RoleSlave {
		sp, lookupErr := s.registry.LookupByID(id)
		if lookupErr == nil {
			if _, masterID := speaker.DetectRole(sp.LastSnapshot); masterID != "" {
				resp["master_id"] = masterID
			}
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleDeregisterSpeaker removes a speaker from polling, recovery
// tracking, the registry, and persistent storage.
// DELETE /api/v1/speakers/{id}
func (s *Server) handleDeregisterSpeaker(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if _, err := s.registry.LookupByID(id); err != nil {
		writeNotFound(w, "speaker not found: "+id)
		return
	}

	if s.poller != nil {
		s.poller.Remove(id)
	}
	if s.resolver != nil {
		s.resolver.Forget(id)
	}
	if err := s.registry.Deregister(id); err != nil {
		writeNotFound(w, "speaker not found: "+id)
		return
	}
	if s.store != nil {
		if err := s.store.Delete(r.Context(), id); err != nil && !errors.Is(err, speaker.ErrSpeakerNotFound) {
			s.logger.Error("speaker deletion from store failed", "speaker_id", id, "error", err)
			writeInternalError(w, "failed to delete speaker")
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"deleted": id,
	})
}

// updateAddressRequest is the request body for an address update.
type updateAddressRequest struct {
	Address string `json:"address"`
}

// handleUpdateAddress updates a speaker's network address, typically
// after a DHCP move reported by an operator rather than provisioning.
// PUT /api/v1/speakers/{id}/address
func (s *Server) handleUpdateAddress(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req updateAddressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Address == "" {
		writeBadRequest(w, "address is required")
		return
	}

	if err := s.registry.UpdateAddress(id, req.Address); err != nil {
		switch {
		case errors.Is(err, speaker.ErrSpeakerNotFound):
			writeNotFound(w, "speaker not found: "+id)
		case errors.Is(err, speaker.ErrInvalidAddress):
			writeBadRequest(w, err.Error())
		default:
			writeInternalError(w, "failed to update address")
		}
		return
	}

	if s.store != nil {
		if err := s.store.UpdateAddress(r.Context(), id, req.Address); err != nil {
			s.logger.Error("address persistence failed", "speaker_id", id, "error", err)
		}
	}

	sp, err := s.registry.LookupByID(id)
	if err != nil {
		writeNotFound(w, "speaker not found: "+id)
		return
	}
	writeJSON(w, http.StatusOK, toSpeakerResponse(*sp))
}

// volumeRequest is the request body for a volume command.
type volumeRequest struct {
	Level float64 `json:"level"`
}

// handleSpeakerVolume sets the volume of a single speaker directly,
// bypassing group fan-out.
// POST /api/v1/speakers/{id}/volume
func (s *Server) handleSpeakerVolume(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req volumeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.Level < 0 || req.Level > 1 {
		writeBadRequest(w, "level must be between 0.0 and 1.0")
		return
	}

	sp, err := s.registry.LookupByID(id)
	if err != nil {
		writeNotFound(w, "speaker not found: "+id)
		return
	}

	if err := s.commander.SetVolume(r.Context(), sp.Address, req.Level); err != nil {
		s.logger.Warn("volume command failed", "speaker_id", id, "error", err)
		writeBadGateway(w, "speaker did not accept volume command")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"speaker_id": id,
		"level":      req.Level,
	})
}

// muteRequest is the request body for a mute command.
type muteRequest struct {
	Muted bool `json:"muted"`
}

// handleSpeakerMute sets the mute state of a single speaker directly.
// POST /api/v1/speakers/{id}/mute
func (s *Server) handleSpeakerMute(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req muteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	sp, err := s.registry.LookupByID(id)
	if err != nil {
		writeNotFound(w, "speaker not found: "+id)
		return
	}

	if err := s.commander.SetMute(r.Context(), sp.Address, req.Muted); err != nil {
		s.logger.Warn("mute command failed", "speaker_id", id, "error", err)
		writeBadGateway(w, "speaker did not accept mute command")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"speaker_id": id,
		"muted":      req.Muted,
	})
}

// handleSpeakerLeave requests that the speaker leave its current group.
// The transition is confirmed by the next topology poll, not assumed.
// POST /api/v1/speakers/{id}/leave
func (s *Server) handleSpeakerLeave(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	if err := s.coordinator.Leave(r.Context(), id); err != nil {
		if errors.Is(err, speaker.ErrSpeakerNotFound) {
			writeNotFound(w, "speaker not found: "+id)
			return
		}
		s.logger.Warn("leave request failed", "speaker_id", id, "error", err)
		writeBadGateway(w, "speaker did not accept leave request")
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"speaker_id": id,
		"requested":  "leave",
	})
}
