package service

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// stateEntry is the JSON shape for one shared-store key.
type stateEntry struct {
	Key   string `json:"key"`
	Value any    `json:"value"`
}

type setStateRequest struct {
	Value any `json:"value"`
}

func (s *Server) handleListState(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.sched.SharedState().Snapshot())
}

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	value, ok := s.sched.SharedState().Get(key)
	if !ok {
		s.writeError(w, http.StatusNotFound, "key not set")
		return
	}

	s.writeJSON(w, http.StatusOK, stateEntry{Key: key, Value: value})
}

// handleSetState writes one shared-store key as the coordinator. The write
// is broadcast to every running execution context.
func (s *Server) handleSetState(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")

	var req setStateRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	s.sched.SharedState().Set(key, req.Value)
	s.writeJSON(w, http.StatusOK, stateEntry{Key: key, Value: req.Value})
}
