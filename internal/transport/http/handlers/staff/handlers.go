package staffhandler

import (
	"net/http"
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
	r.Route("/staff", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermStaffRead)).Get("/", h.handleList)
		r.With(middleware.RequirePermission(auth.PermStaffWrite)).Post("/", h.handleCreate)
		r.With(middleware.RequirePermission(auth.PermStaffRead)).Get("/{staffID}", h.handleGet)
		r.With(middleware.RequirePermission(auth.PermStaffWrite)).Put("/{staffID}", h.handleUpdate)
		r.With(middleware.RequirePermission(auth.PermStaffDelete)).Delete("/{staffID}", h.handleDelete)
	})
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	filter := appraisal.StaffFilter{
		Role:         strings.ToLower(strings.TrimSpace(r.URL.Query().Get("role"))),
		SupervisorID: strings.TrimSpace(r.URL.Query().Get("supervisorId")),
	}
	validator := shared.NewValidator()
	validator.Enum("role", filter.Role, auth.Roles, "unknown role")
	if validator.Reject(w, requestID) {
		return
	}

	staff, err := h.Service.ListStaff(r.Context(), filter)
	if err != nil {
		shared.WriteError(w, err, "staff_list_failed", requestID)
		return
	}
	api.Success(w, staff, requestID)
}

type createPayload struct {
	Name         string `json:"name" validate:"required,max=200"`
	Email        string `json:"email" validate:"required,email"`
	Role         string `json:"role" validate:"required,oneof=staff supervisor hr md admin"`
	Designation  string `json:"designation" validate:"max=200"`
	Department   string `json:"department" validate:"max=200"`
	SupervisorID string `json:"supervisorId"`
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

	created, err := h.Service.CreateStaff(r.Context(), appraisal.Staff{
		Name:         payload.Name,
		Email:        payload.Email,
		Role:         payload.Role,
		Designation:  strings.TrimSpace(payload.Designation),
		Department:   strings.TrimSpace(payload.Department),
		SupervisorID: strings.TrimSpace(payload.SupervisorID),
	})
	if err != nil {
		shared.WriteError(w, err, "staff_create_failed", requestID)
		return
	}
	api.Created(w, created, requestID)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	staff, err := h.Service.GetStaff(r.Context(), chi.URLParam(r, "staffID"))
	if err != nil {
		shared.WriteError(w, err, "staff_get_failed", requestID)
		return
	}
	api.Success(w, staff, requestID)
}

type updatePayload struct {
	Name         *string `json:"name" validate:"omitempty,max=200"`
	Email        *string `json:"email" validate:"omitempty,email"`
	Role         *string `json:"role" validate:"omitempty,oneof=staff supervisor hr md admin"`
	Designation  *string `json:"designation" validate:"omitempty,max=200"`
	Department   *string `json:"department" validate:"omitempty,max=200"`
	SupervisorID *string `json:"supervisorId"`
}

func (h *Handler) handleUpdate(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var payload updatePayload
	if err := shared.DecodeJSON(r, &payload); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", requestID)
		return
	}
	validator := shared.NewValidator()
	validator.Struct(payload)
	if validator.Reject(w, requestID) {
		return
	}

	updated, err := h.Service.UpdateStaff(r.Context(), chi.URLParam(r, "staffID"), appraisal.StaffUpdate{
		Name:         payload.Name,
		Email:        payload.Email,
		Role:         payload.Role,
		Designation:  payload.Designation,
		Department:   payload.Department,
		SupervisorID: payload.SupervisorID,
	})
	if err != nil {
		shared.WriteError(w, err, "staff_update_failed", requestID)
		return
	}
	api.Success(w, updated, requestID)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	staffID := chi.URLParam(r, "staffID")
	if err := h.Service.DeleteStaff(r.Context(), staffID); err != nil {
		shared.WriteError(w, err, "staff_delete_failed", requestID)
		return
	}
	api.Success(w, map[string]string{"id": staffID}, requestID)
}
