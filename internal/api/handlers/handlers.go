// Package handlers implements the HTTP endpoints of the expenses service.
package handlers

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/ManuSanchez02/telegram-expenses-bot/internal/api/middleware"
	"github.com/ManuSanchez02/telegram-expenses-bot/internal/jobs"
	"github.com/rs/zerolog"
)

// Prober reports whether the store is reachable.
type Prober interface {
	TestConnection(ctx context.Context) bool
}

// HealthHandler serves the readiness and liveness probes.
type HealthHandler struct {
	prober Prober
	now    func() time.Time
}

func NewHealthHandler(prober Prober) *HealthHandler {
	return &HealthHandler{prober: prober, now: time.Now}
}

// Ready handles GET /. It answers 503 while the database is unreachable.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if !h.prober.TestConnection(r.Context()) {
		middleware.WriteJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Live handles GET /health.
func (h *HealthHandler) Live(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, map[string]string{
		"status":    "alive",
		"timestamp": h.now().UTC().Format(time.RFC3339),
	})
}

// JobsHandler exposes the side-effect job history.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{store: store, log: log}
}

// GetJob handles GET /api/jobs/{id}.
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request, jobID string) {
	job, err := h.store.GetJob(r.Context(), jobID)
	if err != nil {
		h.log.Debug().Err(err).Str("job_id", jobID).Msg("Job lookup failed")
		middleware.WriteError(w, http.StatusNotFound, middleware.CodeNotFound, "Job not found")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, job)
}

type jobList struct {
	Jobs  []*jobs.Job `json:"jobs"`
	Count int         `json:"count"`
}

// ListJobs handles GET /api/jobs?type=&status=&limit=&offset=. Malformed
// paging values are ignored.
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := jobs.JobFilter{
		Type:   jobs.JobType(q.Get("type")),
		Status: jobs.JobStatus(q.Get("status")),
		Limit:  intParam(q.Get("limit")),
		Offset: intParam(q.Get("offset")),
	}

	found, err := h.store.ListJobs(r.Context(), filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, middleware.CodeInternal, "Failed to list jobs")
		return
	}
	if found == nil {
		found = []*jobs.Job{}
	}
	middleware.WriteJSON(w, http.StatusOK, jobList{Jobs: found, Count: len(found)})
}

func intParam(v string) int {
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0
	}
	return n
}
