package appraisalhandler

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
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
	r.Route("/appraisals", func(r chi.Router) {
		r.With(middleware.RequirePermission(auth.PermAppraisalRead)).Get("/", h.handleList)
		r.With(middleware.RequirePermission(auth.PermAppraisalWrite)).Post("/", h.handleCreate)
		r.With(middleware.RequirePermission(auth.PermAppraisalRead)).Get("/{appraisalID}", h.handleGet)
		r.With(middleware.RequirePermission(auth.PermAppraisalAdmin)).Delete("/{appraisalID}", h.handleDelete)
		r.With(middleware.RequirePermission(auth.PermAppraisalWrite)).Put("/{appraisalID}/content", h.handleSaveContent)
		r.With(middleware.RequirePermission(auth.PermAppraisalWrite)).Post("/{appraisalID}/transition", h.handleTransition)
		r.With(middleware.RequirePermission(auth.PermAppraisalRead)).Get("/{appraisalID}/attachment", h.handleGetAttachment)
		r.With(middleware.RequirePermission(auth.PermAppraisalWrite)).Put("/{appraisalID}/attachment", h.handlePutAttachment)
		r.With(middleware.RequirePermission(auth.PermAppraisalWrite)).Delete("/{appraisalID}/attachment", h.handleDeleteAttachment)
		r.With(middleware.RequirePermission(auth.PermAppraisalRead)).Get("/{appraisalID}/events", h.handleEvents)
		r.With(middleware.RequirePermission(auth.PermAppraisalRead)).Get("/{appraisalID}/pdf", h.handlePDF)
	})
	r.With(middleware.RequirePermission(auth.PermAppraisalRead)).Post("/scores/preview", h.handlePreviewScores)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.CurrentActor(w, r)
	if !ok {
		return
	}
	requestID := middleware.GetRequestID(r.Context())

	query := r.URL.Query()
	filter := appraisal.AppraisalFilter{
		StaffID:  strings.TrimSpace(query.Get("staffId")),
		PeriodID: strings.TrimSpace(query.Get("periodId")),
		Status:   appraisal.Status(strings.TrimSpace(query.Get("status"))),
	}
	validator := shared.NewValidator()
	if filter.Status != "" && !filter.Status.Valid() {
		validator.Add("status", "unknown status")
	}
	if validator.Reject(w, requestID) {
		return
	}

	items, err := h.Service.ListAppraisals(r.Context(), actor, filter)
	if err != nil {
		shared.WriteError(w, err, "appraisal_list_failed", requestID)
		return
	}
	api.Success(w, items, requestID)
}

type createPayload struct {
	StaffID  string             `json:"staffId"`
	PeriodID string             `json:"periodId"`
	Template *appraisal.Content `json:"template"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.CurrentActor(w, r)
	if !ok {
		return
	}
	requestID := middleware.GetRequestID(r.Context())

	var payload createPayload
	if err := shared.DecodeJSON(r, &payload); err != nil && !errors.Is(err, io.EOF) {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", requestID)
		return
	}

	created, err := h.Service.CreateDraft(r.Context(), actor, strings.TrimSpace(payload.StaffID), strings.TrimSpace(payload.PeriodID), payload.Template)
	if err != nil {
		shared.WriteError(w, err, "appraisal_create_failed", requestID)
		return
	}
	api.Created(w, created, requestID)
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.CurrentActor(w, r)
	if !ok {
		return
	}
	requestID := middleware.GetRequestID(r.Context())

	item, err := h.Service.GetAppraisal(r.Context(), chi.URLParam(r, "appraisalID"), actor)
	if err != nil {
		shared.WriteError(w, err, "appraisal_get_failed", requestID)
		return
	}
	api.Success(w, item, requestID)
}

func (h *Handler) handleDelete(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.CurrentActor(w, r)
	if !ok {
		return
	}
	requestID := middleware.GetRequestID(r.Context())

	appraisalID := chi.URLParam(r, "appraisalID")
	if err := h.Service.DeleteAppraisal(r.Context(), appraisalID); err != nil {
		shared.WriteError(w, err, "appraisal_delete_failed", requestID)
		return
	}
	slog.Info("appraisal deleted", "appraisalId", appraisalID, "actorId", actor.UserID, "requestId", requestID)
	api.Success(w, map[string]string{"id": appraisalID}, requestID)
}

func (h *Handler) handleSaveContent(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.CurrentActor(w, r)
	if !ok {
		return
	}
	requestID := middleware.GetRequestID(r.Context())

	var content appraisal.Content
	if err := shared.DecodeJSON(r, &content); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", requestID)
		return
	}

	saved, err := h.Service.SaveDraft(r.Context(), chi.URLParam(r, "appraisalID"), actor, content)
	if err != nil {
		shared.WriteError(w, err, "appraisal_save_failed", requestID)
		return
	}
	api.Success(w, saved, requestID)
}

type transitionPayload struct {
	Content *appraisal.Content `json:"content"`
}

func (h *Handler) handleTransition(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.CurrentActor(w, r)
	if !ok {
		return
	}
	requestID := middleware.GetRequestID(r.Context())

	var payload transitionPayload
	if err := shared.DecodeJSON(r, &payload); err != nil && !errors.Is(err, io.EOF) {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", requestID)
		return
	}

	updated, err := h.Service.AttemptTransition(r.Context(), chi.URLParam(r, "appraisalID"), actor, payload.Content)
	if err != nil {
		shared.WriteError(w, err, "appraisal_transition_failed", requestID)
		return
	}
	api.Success(w, updated, requestID)
}

func (h *Handler) handleGetAttachment(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.CurrentActor(w, r)
	if !ok {
		return
	}
	requestID := middleware.GetRequestID(r.Context())

	attachment, err := h.Service.Attachment(r.Context(), chi.URLParam(r, "appraisalID"), actor)
	if err != nil {
		shared.WriteError(w, err, "attachment_get_failed", requestID)
		return
	}
	if download, _ := strconv.ParseBool(r.URL.Query().Get("download")); !download {
		api.Success(w, attachment, requestID)
		return
	}

	data, err := base64.StdEncoding.DecodeString(attachment.FileData)
	if err != nil {
		shared.WriteError(w, fmt.Errorf("decode attachment: %w", err), "attachment_get_failed", requestID)
		return
	}
	w.Header().Set("Content-Type", appraisal.AttachmentMIMEType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", attachment.FileName))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	if _, err := w.Write(data); err != nil {
		slog.Warn("attachment write failed", "err", err)
	}
}

type attachmentPayload struct {
	FileName string `json:"fileName" validate:"required"`
	FileSize int64  `json:"fileSize" validate:"gte=0"`
	FileData string `json:"fileData" validate:"required,base64"`
}

func (h *Handler) handlePutAttachment(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.CurrentActor(w, r)
	if !ok {
		return
	}
	requestID := middleware.GetRequestID(r.Context())

	var payload attachmentPayload
	if err := shared.DecodeJSON(r, &payload); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			api.Fail(w, http.StatusRequestEntityTooLarge, "payload_too_large", "request body too large", requestID)
			return
		}
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", requestID)
		return
	}

	validator := shared.NewValidator()
	validator.Struct(payload)
	if validator.Reject(w, requestID) {
		return
	}
	checkPDF(validator, payload)
	if validator.Reject(w, requestID) {
		return
	}

	updated, err := h.Service.UpdateAttachment(r.Context(), chi.URLParam(r, "appraisalID"), actor, &appraisal.Attachment{
		FileName: strings.TrimSpace(payload.FileName),
		FileSize: payload.FileSize,
		FileData: payload.FileData,
	})
	if err != nil {
		shared.WriteError(w, err, "attachment_update_failed", requestID)
		return
	}
	api.Success(w, updated, requestID)
}

// checkPDF enforces the upload rules: a .pdf name, a %PDF header, at most
// MaxAttachmentBytes, and a declared size matching the payload.
func checkPDF(validator *shared.Validator, payload attachmentPayload) {
	if !strings.HasSuffix(strings.ToLower(strings.TrimSpace(payload.FileName)), ".pdf") {
		validator.Add("fileName", "must end in .pdf")
	}
	data, err := base64.StdEncoding.DecodeString(payload.FileData)
	if err != nil {
		validator.Add("fileData", "must be base64 encoded")
		return
	}
	if !bytes.HasPrefix(data, []byte("%PDF")) {
		validator.Add("fileData", "must be a PDF document")
	}
	if len(data) > appraisal.MaxAttachmentBytes {
		validator.Add("fileData", fmt.Sprintf("must be at most %d bytes", appraisal.MaxAttachmentBytes))
	}
	if payload.FileSize != int64(len(data)) {
		validator.Add("fileSize", "must equal the decoded file size")
	}
}

func (h *Handler) handleDeleteAttachment(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.CurrentActor(w, r)
	if !ok {
		return
	}
	requestID := middleware.GetRequestID(r.Context())

	updated, err := h.Service.UpdateAttachment(r.Context(), chi.URLParam(r, "appraisalID"), actor, nil)
	if err != nil {
		shared.WriteError(w, err, "attachment_delete_failed", requestID)
		return
	}
	api.Success(w, updated, requestID)
}

func (h *Handler) handleEvents(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.CurrentActor(w, r)
	if !ok {
		return
	}
	requestID := middleware.GetRequestID(r.Context())

	events, err := h.Service.Events(r.Context(), chi.URLParam(r, "appraisalID"), actor)
	if err != nil {
		shared.WriteError(w, err, "appraisal_events_failed", requestID)
		return
	}
	api.Success(w, events, requestID)
}

func (h *Handler) handlePDF(w http.ResponseWriter, r *http.Request) {
	actor, ok := shared.CurrentActor(w, r)
	if !ok {
		return
	}
	requestID := middleware.GetRequestID(r.Context())

	appraisalID := chi.URLParam(r, "appraisalID")
	var buf bytes.Buffer
	if err := h.Service.ExportPDF(r.Context(), appraisalID, actor, &buf); err != nil {
		shared.WriteError(w, err, "appraisal_pdf_failed", requestID)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "appraisal-"+appraisalID+".pdf"))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	if _, err := buf.WriteTo(w); err != nil {
		slog.Warn("pdf write failed", "err", err)
	}
}

func (h *Handler) handlePreviewScores(w http.ResponseWriter, r *http.Request) {
	requestID := middleware.GetRequestID(r.Context())

	var content appraisal.Content
	if err := shared.DecodeJSON(r, &content); err != nil {
		api.Fail(w, http.StatusBadRequest, "invalid_payload", "invalid request payload", requestID)
		return
	}
	result, err := h.Service.ComputeScores(content)
	if err != nil {
		shared.WriteError(w, err, "score_preview_failed", requestID)
		return
	}
	api.Success(w, result, requestID)
}
