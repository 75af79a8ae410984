package main

import (
	"net/http"
	"strings"

	"github.com/ManuSanchez02/telegram-expenses-bot/internal/api/handlers"
	"github.com/ManuSanchez02/telegram-expenses-bot/internal/api/middleware"
	"github.com/ManuSanchez02/telegram-expenses-bot/internal/metrics"
	"github.com/rs/zerolog"
)

// Route labels used for request metrics.
const (
	routeRoot     = "/"
	routeHealth   = "/health"
	routeParse    = "/parse"
	routeMetrics  = "/metrics"
	routeExpenses = "/api/expenses"
	routeJobs     = "/api/jobs"
)

type server struct {
	health   *handlers.HealthHandler
	parse    *handlers.ParseHandler
	expenses *handlers.ExpensesHandler
	jobs     *handlers.JobsHandler

	auth    func(http.Handler) http.Handler
	metrics *metrics.Metrics
	log     zerolog.Logger
}

func (s *server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc(routeRoot, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != routeRoot {
			middleware.WriteError(w, http.StatusNotFound, middleware.CodeNotFound, "Not found")
			return
		}
		if r.Method == http.MethodGet {
			s.health.Ready(w, r)
		} else {
			middleware.MethodNotAllowed(w)
		}
	})

	mux.HandleFunc(routeHealth, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			s.health.Live(w, r)
		} else {
			middleware.MethodNotAllowed(w)
		}
	})

	mux.Handle(routeMetrics, s.metrics.Handler())

	// Authenticated endpoints
	mux.Handle(routeParse, s.auth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			s.parse.Parse(w, r)
		} else {
			middleware.MethodNotAllowed(w)
		}
	})))

	mux.Handle(routeExpenses, s.auth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			s.expenses.ListExpenses(w, r)
		} else {
			middleware.MethodNotAllowed(w)
		}
	})))

	mux.Handle(routeJobs, s.auth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			s.jobs.ListJobs(w, r)
		} else {
			middleware.MethodNotAllowed(w)
		}
	})))

	mux.Handle(routeJobs+"/", s.auth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			middleware.MethodNotAllowed(w)
			return
		}
		jobID := strings.TrimPrefix(r.URL.Path, routeJobs+"/")
		if jobID == "" {
			middleware.WriteError(w, http.StatusBadRequest, middleware.CodeBadRequest, "Job ID is required")
			return
		}
		s.jobs.GetJob(w, r, jobID)
	})))

	return middleware.Chain(mux,
		middleware.Recovery(s.log),
		middleware.RequestID,
		middleware.Logger(s.log),
		middleware.Metrics(s.metrics, routeRoot, routeHealth, routeParse, routeMetrics, routeExpenses, routeJobs),
		middleware.CORS,
	)
}
