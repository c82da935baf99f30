package appraisal

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("appraisal status changed concurrently")
	ErrDuplicate          = errors.New("ledger entry already exists")
	ErrDuplicateAppraisal = errors.New("appraisal already exists for staff and period")
	ErrStaffExists        = errors.New("staff email already registered")
	ErrStaffInUse         = errors.New("staff member supervises existing appraisals")
	ErrPeriodExists       = errors.New("period already exists for year and quarter")
	ErrPeriodInUse        = errors.New("period has appraisals")
	ErrNoActivePeriod     = errors.New("no active period")
	ErrNoSupervisor       = errors.New("staff member has no supervisor")
	ErrNotCompleted       = errors.New("appraisal is not completed")
)

// AuthorizationError reports an actor acting out of turn or touching fields
// their role does not own.
type AuthorizationError struct {
	Action string
	Role   string
	Status Status
	Reason string
	Fields []string
}

func (e *AuthorizationError) Error() string {
	msg := "not authorized: " + e.Reason
	if len(e.Fields) > 0 {
		msg += " (" + strings.Join(e.Fields, ", ") + ")"
	}
	return msg
}

type Violation struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

// ValidationError carries every unmet precondition, not just the first.
type ValidationError struct {
	Violations []Violation
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, fmt.Sprintf("%s: %s", v.Field, v.Reason))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Fields() []string {
	out := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		out = append(out, v.Field)
	}
	return out
}

func IsAuthorization(err error) bool {
	var authErr *AuthorizationError
	return errors.As(err, &authErr)
}

func IsValidation(err error) bool {
	var validationErr *ValidationError
	return errors.As(err, &validationErr)
}
