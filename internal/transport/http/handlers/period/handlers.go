package periodhandler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"appraisal/internal/domain/appraisal"
	"appraisal/internal/domain/auth"
	"appraisal/internal/transport/http/api"
	"appraisal/internal/transport/http/middleware"
	"appraisal/internal/transport/http/shared"
)

type Handler struct {
	Service *appraisal.Service
}

func NewHandler(service *appraisal.Service) *Handler {
	return &Handler{Service: service}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/periods", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermPeriodRead)).Get("/", h.handleList)
		r.With(middleware.RequirePermission(auth.PermPeriodRead)).Get("/active", h.handleActive)
		r.With(middleware.RequirePermission(auth.PermPeriodWrite)).Post("/", h.handleCreate)
		r.With(middleware.RequirePermission(auth.PermPeriodWrite)).Put("/{periodID}", h.handleRename)
		r.With(middleware.RequirePermission(auth.PermPeriodWrite)).Post("/{periodID}/activate", h.handleActivate)
		r.With(middleware.RequirePermission(auth.PermPeriodDelete)).Delete("/{periodID}", h.handleDelete)
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	year := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("year")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			shared.FailValidation(w, requestID, []shared.ValidationIssue{{Field: "year", Reason: "must be a positive integer"}})
			return
		}
		year = parsed
	}

	periods, err := h.Service.ListPeriods(r.Context(), year)
	if err != nil {
		shared.WriteError(w, err, "period_list_failed", requestID)
		return
	}
	api.Success(w, periods, requestID)
}

func (h *Handler) handleActive(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	period, err := h.Service.ActivePeriod(r.Context())
	if err != nil {
		shared.WriteError(w, err, "period_active_failed", requestID)
		return
	}
	api.Success(w, period, requestID)
}

type createPayload struct {
	Year    int    `json:"year" validate:"required,gte=2000,lte=2999"`
	Quarter int    `json:"quarter" validate:"required,min=1,max=4"`
	Label   string `json:"label" validate:"max=50"`
	Active  bool   `json:"active"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var payload createPayload
	if err := shared.DecodeJSON(r, &payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", requestID)
		return
	}
	validator := shared.NewValidator()
	validator.Struct(payload)
	if validator.Reject(w, requestID) {
		return
	}

	period, err := h.Service.CreatePeriod(r.Context(), payload.Year, payload.Quarter, strings.TrimSpace(payload.Label), payload.Active)
	if err != nil {
		shared.WriteError(w, err, "period_create_failed", requestID)
		return
	}
	api.Created(w, period, requestID)
}

type renamePayload struct {
	Label string `json:"label" validate:"required,max=50"`
}

func (h *Handler) handleRename(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var payload renamePayload
	if err := shared.DecodeJSON(r, &payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", requestID)
		return
	}
	validator := shared.NewValidator()
	validator.Struct(payload)
	if validator.Reject(w, requestID) {
		return
	}

	period, err := h.Service.RenamePeriod(r.Context(), chi.URLParam(r, "periodID"), payload.Label)
	if err != nil {
		shared.WriteError(w, err, "period_update_failed", requestID)
		return
	}
	api.Success(w, period, requestID)
}

func (h *Handler) handleActivate(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	periodID := chi.URLParam(r, "periodID")
	if err := h.Service.ActivatePeriod(r.Context(), periodID); err != nil {
		shared.WriteError(w, err, "period_activate_failed", requestID)
		return
	}
	api.Success(w, map[string]string{"id": periodID, "status": "active"}, requestID)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	periodID := chi.URLParam(r, "periodID")
	if err := h.Service.DeletePeriod(r.Context(), periodID); err != nil {
		shared.WriteError(w, err, "period_delete_failed", requestID)
		return
	}
	api.Success(w, map[string]string{"id": periodID}, requestID)
}
