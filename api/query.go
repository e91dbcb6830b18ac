package api

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/wildvoice/wildrag/internal/query"
)

type helloResponse struct {
	Message string `json:"message"`
}

func (s *Server) handleHello(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, helloResponse{Message: "Hello from wildrag!"})
}

type entityInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (s *Server) handleEntities(w http.ResponseWriter, _ *http.Request) {
	names := s.registry.Names()
	entities := make([]entityInfo, 0, len(names))
	for _, name := range names {
		cfg, err := s.registry.Get(name)
		if err != nil {
			continue
		}
		entities = append(entities, entityInfo{Name: name, Description: cfg.Description})
	}
	writeJSON(w, http.StatusOK, map[string][]entityInfo{"entities": entities})
}

type queryRequest struct {
	Entity string `json:"entity"`
	Query  string `json:"query"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Entity) == "" {
		writeError(w, http.StatusBadRequest, "entity is required")
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	result, err := s.svc.Process(r.Context(), req.Entity, req.Query)
	if err != nil {
		if query.IsClientError(err) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("query failed",
			"entity", req.Entity,
			"error", err,
			"request_id", requestID(r.Context()))
		writeError(w, http.StatusInternalServerError, "query failed")
		return
	}

	writeJSON(w, http.StatusOK, result)
}
