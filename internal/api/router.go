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
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeNotFound(w, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrCodeNotAllowed, "method not allowed")
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Route("/topology", func(r chi.Router) {
			r.Get("/", s.handleTopology)
			r.Get("/edges", s.handleEdges)
		})

		r.With(s.authMiddleware).Post("/rounds", s.handleExecuteRound)

		r.Route("/devices", func(r chi.Router) {
			r.Get("/", s.handleListDevices)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.handleGetDevice)
				r.Get("/neighbours", s.handleNeighbours)
				r.Get("/history", s.handleGetDeviceHistory)

				r.Group(func(r chi.Router) {
					r.Use(s.authMiddleware)
					r.Put("/status", s.handleSetStatus)
					r.Post("/lightweight", s.handleGoLightweight)
					r.Delete("/lightweight", s.handleLeaveLightweight)
					r.Post("/execute", s.handleExecute)
				})
			})
		})

		r.Get("/audit", s.handleListAuditLogs)

		r.Get("/ws", s.handleWebSocket)
	})

	return r
}

// handleHealth reports the simulation state, connected WebSocket clients
// and, when a database is attached, its schema version.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":     "ok",
		"version":    s.version,
		"simulation": s.simulationID,
		"finalized":  s.registry.Finalized(),
	}
	if s.hub != nil {
		resp["websocket_clients"] = s.hub.ClientCount()
	}
	if s.schema != nil {
		schema, err := s.schema.SchemaStatus(r.Context())
		if err != nil {
			s.logger.Warn("schema status unavailable", "error", err)
			writeUnavailable(w, "database unavailable")
			return
		}
		resp["schema"] = schema
	}
	writeJSON(w, http.StatusOK, resp)
}
