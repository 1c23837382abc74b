package service

import "net/http"

// healthResponse reports liveness plus a one-line picture of the pool, so a
// probe can tell an idle daemon from a saturated one without a second call.
type healthResponse struct {
	Status   string `json:"status"`
	Limit    int    `json:"limit"`
	Running  int    `json:"running"`
	Queued   int    `json:"queued"`
	Handlers int    `json:"handlers"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, healthResponse{
		Status:   "ok",
		Limit:    s.sched.Limit(),
		Running:  s.sched.RunningCount(),
		Queued:   s.sched.QueueLen(),
		Handlers: len(s.registry.Names()),
	})
}
