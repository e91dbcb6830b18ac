package api

import "net/http"

type healthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{Status: "healthy", Service: "wildrag"})
}

// handleReady reports whether the live backend is reachable. Without a
// configured backend readiness equals liveness.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.pinger != nil {
		if err := s.pinger.Ping(r.Context()); err != nil {
			s.logger.Warn("readiness check failed", "error", err)
			writeError(w, http.StatusServiceUnavailable, "storage backend unreachable")
			return
		}
	}
	writeJSON(w, http.StatusOK, healthResponse{Status: "ready", Service: "wildrag"})
}
