package ledgerhandler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"appraisal/internal/domain/appraisal"
	"appraisal/internal/domain/auth"
	"appraisal/internal/platform/jobs"
	"appraisal/internal/transport/http/api"
	"appraisal/internal/transport/http/middleware"
	"appraisal/internal/transport/http/shared"
)

type Handler struct {
	Service *appraisal.Service
	Jobs    *jobs.Service
}

func NewHandler(service *appraisal.Service, jobsSvc *jobs.Service) *Handler {
	return &Handler{Service: service, Jobs: jobsSvc}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.With(middleware.RequirePermission(auth.PermLedgerRead)).Get("/leaderboard", h.handleLeaderboard)
	r.Route("/ledger", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermLedgerAdmin)).Post("/backfill", h.handleBackfill)
		r.With(middleware.RequirePermission(auth.PermLedgerAdmin)).Post("/{appraisalID}/resync", h.handleResync)
	})
}

func (h *Handler) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	scope := appraisal.Scope{PeriodID: strings.TrimSpace(r.URL.Query().Get("periodId"))}
	if raw := strings.TrimSpace(r.URL.Query().Get("year")); raw != "" {
		year, err := strconv.Atoi(raw)
		if err != nil || year <= 0 {
			shared.FailValidation(w, requestID, []shared.ValidationIssue{{Field: "year", Reason: "must be a positive integer"}})
			return
		}
		scope.Year = year
	}

	rankings, err := h.Service.Leaderboard(r.Context(), scope)
	if err != nil {
		shared.WriteError(w, err, "leaderboard_failed", requestID)
		return
	}
	api.Success(w, rankings, requestID)
}

// handleBackfill runs the backfill inline, or queues it when async=true.
func (h *Handler) handleBackfill(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	if async, _ := strconv.ParseBool(r.URL.Query().Get("async")); async {
		h.Jobs.Enqueue(jobs.JobLedgerBackfill, func(ctx context.Context) (any, error) {
			return h.Service.BackfillLedger(ctx)
		})
		api.WriteJSON(w, http.StatusAccepted, api.Envelope{Success: true, Data: map[string]string{"status": "queued"}, RequestID: requestID})
		return
	}

	summary, err := h.Jobs.BackfillNow(r.Context())
	if err != nil {
		shared.WriteError(w, err, "ledger_backfill_failed", requestID)
		return
	}
	api.Success(w, summary, requestID)
}

func (h *Handler) handleResync(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.CurrentActor(w, r)
	if !ok {
		return
	}
	requestID := middleware.GetRequestID(r.Context())

	entry, err := h.Service.ResyncLedgerEntry(r.Context(), chi.URLParam(r, "appraisalID"), actor)
	if err != nil {
		shared.WriteError(w, err, "ledger_resync_failed", requestID)
		return
	}
	api.Success(w, entry, requestID)
}
