package adminhandler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"appraisal/internal/domain/auth"
	"appraisal/internal/platform/jobs"
	"appraisal/internal/platform/metrics"
	"appraisal/internal/transport/http/api"
	"appraisal/internal/transport/http/middleware"
)

type Handler struct {
	Metrics *metrics.Collector
	Jobs    *jobs.Service
}

func NewHandler(collector *metrics.Collector, jobsSvc *jobs.Service) *Handler {
	return &Handler{Metrics: collector, Jobs: jobsSvc}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/admin", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermLedgerAdmin)).Get("/metrics", h.handleMetrics)
		r.With(middleware.RequirePermission(auth.PermLedgerAdmin)).Get("/jobs", h.handleJobs)
	})
}

func (h *Handler) handleMetrics(w http.ResponseWriter, r *http.Request) {
	api.Success(w, h.Metrics.Snapshot(), middleware.GetRequestID(r.Context()))
}

func (h *Handler) handleJobs(w http.ResponseWriter, r *http.Request) {
	api.Success(w, h.Jobs.History(), middleware.GetRequestID(r.Context()))
}
