package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health check
		r.Get("/health", s.handleHealth)

		// Speaker endpoints
		r.Route("/speakers", func(r chi.Router) {
			r.Get("/", s.handleListSpeakers)
			r.Post("/", s.handleRegisterSpeaker)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetSpeaker)
				r.Get("/role", s.handleGetSpeakerRole)
				r.Delete("/", s.handleDeregisterSpeaker)
				r.Put("/address", s.handleUpdateAddress)
				r.Post("/volume", s.handleSpeakerVolume)
				r.Post("/mute", s.handleSpeakerMute)
				r.Post("/leave", s.handleSpeakerLeave)
			})
		})

		// Group endpoints
		r.Route("/groups", func(r chi.Router) {
			r.Get("/", s.handleListGroups)

			r.Route("/{masterID}", func(r chi.Router) {
				r.Get("/", s.handleGetGroup)
				r.Post("/volume", s.handleGroupVolume)
				r.Post("/mute", s.handleGroupMute)
				r.Post("/join", s.handleGroupJoin)
				r.Post("/disband", s.handleGroupDisband)
			})
		})

		// WebSocket event stream
		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"version":  s.version,
		"speakers": s.registry.Count(),
	})
}
