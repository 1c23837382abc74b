package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/seantiz/foundry/internal/ledger"
	"github.com/seantiz/foundry/internal/model"
	"github.com/seantiz/foundry/internal/scheduler"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
	maxBodySize      = 1 << 20 // 1 MB
)

// submitTaskRequest is the JSON body for POST /v1/tasks and /v1/tasks/run.
type submitTaskRequest struct {
	Handler string         `json:"handler"`
	Args    map[string]any `json:"args"`
}

// listTasksResponse wraps the paginated list response.
type listTasksResponse struct {
	Tasks  []*model.TaskRecord `json:"tasks"`
	Total  int                 `json:"total"`
	Limit  int                 `json:"limit"`
	Offset int                 `json:"offset"`
}

type outcome struct {
	result any
	err    error
}

func (s *Server) decodeSubmit(w http.ResponseWriter, r *http.Request) (*model.Task, bool) {
	var req submitTaskRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return nil, false
	}

	if req.Handler == "" {
		s.writeError(w, http.StatusBadRequest, "handler is required")
		return nil, false
	}
	if _, ok := s.registry.Resolve(req.Handler); !ok {
		s.writeError(w, http.StatusBadRequest, "unknown handler")
		return nil, false
	}

	return model.NewTask(req.Handler, req.Args), true
}

func (s *Server) createRecord(ctx context.Context, t *model.Task) error {
	rec := &model.TaskRecord{
		ID:        t.ID,
		Handler:   t.Handler,
		Status:    model.StatusPending,
		CreatedAt: time.Now().UTC(),
	}
	return s.ledger.CreateRecord(ctx, rec)
}

func (s *Server) handleSubmitTask(w http.ResponseWriter, r *http.Request) {
	t, ok := s.decodeSubmit(w, r)
	if !ok {
		return
	}

	if err := s.createRecord(r.Context(), t); err != nil {
		s.logger.Error("create task record", "task_id", t.ID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to record task")
		return
	}

	s.track(t)

	s.writeJSON(w, http.StatusAccepted, map[string]string{
		"id":     t.ID,
		"status": model.StatusPending,
	})
}

func (s *Server) handleRunTask(w http.ResponseWriter, r *http.Request) {
	t, ok := s.decodeSubmit(w, r)
	if !ok {
		return
	}

	if err := s.createRecord(r.Context(), t); err != nil {
		s.logger.Error("create task record", "task_id", t.ID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to record task")
		return
	}

	select {
	case out := <-s.track(t):
		if out.err != nil {
			s.writeError(w, http.StatusUnprocessableEntity, out.err.Error())
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]any{
			"id":     t.ID,
			"result": out.result,
		})
	case <-r.Context().Done():
		// The task keeps running; its record finishes via the ledger.
		s.writeError(w, http.StatusRequestTimeout, "client gave up; task still tracked")
	}
}

// track drives one task through the scheduler while keeping its ledger
// record in step with the lifecycle: pending → running → completed, or a
// terminal failed/killed on the way in. The returned channel yields the
// task's outcome exactly once.
func (s *Server) track(t *model.Task) <-chan outcome {
	ch := make(chan outcome, 1)

	go func() {
		ctx := context.Background()

		h, err := s.sched.Run(ctx, t)
		if err != nil {
			status := model.StatusFailed
			if errors.Is(err, scheduler.ErrPurged) {
				status = model.StatusKilled
			}
			s.finishRecord(t.ID, status, nil, err.Error(), nil, 0)
			ch <- outcome{err: err}
			return
		}

		if err := s.ledger.UpdateStatus(ctx, t.ID, model.StatusRunning); err != nil {
			s.logger.Error("mark task running", "task_id", t.ID, "error", err)
		}
		start := time.Now()

		<-h.Done()
		durationMS := int(time.Since(start).Milliseconds())

		if h.Killed() {
			s.finishRecord(t.ID, model.StatusKilled, &start, "force terminated", nil, durationMS)
			ch <- outcome{result: nil}
			return
		}

		result := h.Result()

		var blob []byte
		if result != nil {
			b, merr := json.Marshal(result)
			if merr != nil {
				s.logger.Debug("task result not JSON-encodable", "task_id", t.ID, "error", merr)
			} else {
				blob = b
			}
		}

		s.finishRecord(t.ID, model.StatusCompleted, &start, "", blob, durationMS)
		ch <- outcome{result: result}
	}()

	return ch
}

// finishRecord writes the terminal fields of a task record. startedAt may be
// nil when execution never started.
func (s *Server) finishRecord(id, status string, startedAt *time.Time, errMsg string, result []byte, durationMS int) {
	now := time.Now().UTC()
	rec := &model.TaskRecord{
		ID:         id,
		Status:     status,
		Result:     result,
		Error:      errMsg,
		DurationMS: &durationMS,
		StartedAt:  startedAt,
		FinishedAt: &now,
	}

	if err := s.ledger.UpdateRecord(context.Background(), rec); err != nil {
		s.logger.Error("update task record", "task_id", id, "error", err)
	}
}

func (s *Server) handleListTasks(w http.ResponseWriter, r *http.Request) {
	limit := defaultListLimit
	offset := 0

	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > maxListLimit {
			s.writeError(w, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = n
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.writeError(w, http.StatusBadRequest, "invalid offset")
			return
		}
		offset = n
	}

	records, total, err := s.ledger.ListRecords(r.Context(), limit, offset)
	if err != nil {
		s.logger.Error("list task records", "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list tasks")
		return
	}

	s.writeJSON(w, http.StatusOK, listTasksResponse{
		Tasks:  records,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

func (s *Server) handleGetTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rec, err := s.ledger.GetRecord(r.Context(), id)
	if errors.Is(err, ledger.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, "task not found")
		return
	}
	if err != nil {
		s.logger.Error("get task record", "task_id", id, "error", err)
		s.writeError(w, http.StatusInternalServerError, "failed to get task")
		return
	}

	s.writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleListHandlers(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string][]string{
		"handlers": s.registry.Names(),
	})
}
