package service

import (
	"encoding/json"
	"net/http"
)

// poolResponse is the JSON response for GET /v1/pool.
type poolResponse struct {
	Limit   int      `json:"limit"`
	Running int      `json:"running"`
	Queued  int      `json:"queued"`
	Handles []string `json:"handles"`
}

type setLimitRequest struct {
	Limit int `json:"limit"`
}

func (s *Server) handleGetPool(w http.ResponseWriter, r *http.Request) {
	handles := s.sched.Handles()
	ids := make([]string, 0, len(handles))
	for _, h := range handles {
		ids = append(ids, h.ID())
	}

	s.writeJSON(w, http.StatusOK, poolResponse{
		Limit:   s.sched.Limit(),
		Running: s.sched.RunningCount(),
		Queued:  s.sched.QueueLen(),
		Handles: ids,
	})
}

// handleSetLimit changes the concurrency ceiling. Invalid limits are
// rejected here with a 400; the scheduler itself also ignores them.
func (s *Server) handleSetLimit(w http.ResponseWriter, r *http.Request) {
	var req setLimitRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.Limit <= 0 {
		s.writeError(w, http.StatusBadRequest, "limit must be positive")
		return
	}

	s.sched.SetLimit(req.Limit)
	s.writeJSON(w, http.StatusOK, map[string]int{"limit": s.sched.Limit()})
}

func (s *Server) handlePurge(w http.ResponseWriter, r *http.Request) {
	s.sched.Purge()
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "purged"})
}
