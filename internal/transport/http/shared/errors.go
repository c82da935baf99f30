package shared

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"appraisal/internal/domain/appraisal"
	"appraisal/internal/transport/http/api"
)

// WriteError maps domain errors to the API envelope. Anything unrecognised
// is logged and reported as a 500 with fallbackCode.
func WriteError(w http.ResponseWriter, err error, fallbackCode, requestID string) {
	var validationErr *appraisal.ValidationError
	var authErr *appraisal.AuthorizationError
	switch {
	case errors.As(err, &validationErr):
		issues := make([]ValidationIssue, 0, len(validationErr.Violations))
		for _, v := range validationErr.Violations {
			issues = append(issues, ValidationIssue{Field: v.Field, Reason: v.Reason})
		}
		FailValidation(w, requestID, issues)
	case errors.As(err, &authErr):
		var details any
		if len(authErr.Fields) > 0 {
			details = map[string]any{"fields": authErr.Fields, "action": authErr.Action}
		}
		api.FailWithDetails(w, http.StatusForbidden, "forbidden", authErr.Error(), details, requestID)
	case errors.Is(err, appraisal.ErrNotFound):
		api.Fail(w, http.StatusNotFound, "not_found", "resource not found", requestID)
	case errors.Is(err, appraisal.ErrConflict):
		api.Fail(w, http.StatusConflict, "conflict", "appraisal was modified concurrently, reload and retry", requestID)
	case errors.Is(err, appraisal.ErrDuplicateAppraisal):
		api.Fail(w, http.StatusConflict, "duplicate_appraisal", appraisal.ErrDuplicateAppraisal.Error(), requestID)
	case errors.Is(err, appraisal.ErrStaffExists):
		api.Fail(w, http.StatusConflict, "staff_exists", appraisal.ErrStaffExists.Error(), requestID)
	case errors.Is(err, appraisal.ErrStaffInUse):
		api.Fail(w, http.StatusConflict, "staff_in_use", appraisal.ErrStaffInUse.Error(), requestID)
	case errors.Is(err, appraisal.ErrPeriodExists):
		api.Fail(w, http.StatusConflict, "period_exists", appraisal.ErrPeriodExists.Error(), requestID)
	case errors.Is(err, appraisal.ErrPeriodInUse):
		api.Fail(w, http.StatusConflict, "period_in_use", appraisal.ErrPeriodInUse.Error(), requestID)
	case errors.Is(err, appraisal.ErrDuplicate):
		api.Fail(w, http.StatusConflict, "duplicate_ledger_entry", appraisal.ErrDuplicate.Error(), requestID)
	case errors.Is(err, appraisal.ErrNotCompleted):
		api.Fail(w, http.StatusConflict, "not_completed", appraisal.ErrNotCompleted.Error(), requestID)
	case errors.Is(err, appraisal.ErrNoActivePeriod):
		api.Fail(w, http.StatusUnprocessableEntity, "no_active_period", appraisal.ErrNoActivePeriod.Error(), requestID)
	case errors.Is(err, appraisal.ErrNoSupervisor):
		api.Fail(w, http.StatusUnprocessableEntity, "no_supervisor", appraisal.ErrNoSupervisor.Error(), requestID)
	default:
		slog.Error("request failed", "code", fallbackCode, "requestId", requestID, "err", err)
		api.Fail(w, http.StatusInternalServerError, fallbackCode, "internal error", requestID)
	}
}

// DecodeJSON reads one JSON document, rejecting unknown fields.
func DecodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}
