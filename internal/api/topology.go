package api

import (
	"net/http"
)

// handleTopology returns registry statistics.
func (s *Server) handleTopology(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.GetStats())
}

// handleEdges returns every unordered neighbour pair once.
func (s *Server) handleEdges(w http.ResponseWriter, _ *http.Request) {
	edges, err := s.registry.Edges()
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"topology": s.registry.Topology(),
		"edges":    edges,
		"count":    len(edges),
	})
}

// handleExecuteRound runs one execution step on every device.
// Per-device failures are reported in the body with a 200 status.
func (s *Server) handleExecuteRound(w http.ResponseWriter, r *http.Request) {
	result, err := s.network.ExecuteRound(r.Context())
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
