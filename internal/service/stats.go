package service

import (
	"net/http"
)

// statsResponse combines the ledger's historical aggregates with the live
// pool occupancy, so one call answers both "what has run" and "what is
// running now".
type statsResponse struct {
	Total         int            `json:"total"`
	ByStatus      map[string]int `json:"by_status"`
	AvgDurationMS float64        `json:"avg_duration_ms"`
	Running       int            `json:"running"`
	Queued        int            `json:"queued"`
}

func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.ledger.GetStats(r.Context())
	if err != nil {
		s.logger.Error("get task stats", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get stats")
		return
	}

	s.writeJSON(w, http.StatusOK, statsResponse{
		Total:         stats.Total,
		ByStatus:      stats.CountByStatus,
		AvgDurationMS: stats.AvgDurationMS,
		Running:       s.sched.RunningCount(),
		Queued:        s.sched.QueueLen(),
	})
}
