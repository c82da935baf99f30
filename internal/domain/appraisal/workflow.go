package appraisal

import (
	"fmt"

	"appraisal/internal/domain/auth"
)

type turnHolder int

const (
	turnOwner turnHolder = iota
	turnAssignedSupervisor
	turnHR
	turnMD
)

// step is one row of the transition table. Each status has at most one
// outgoing step and only the step's turn holder may fire it or edit the
// appraisal while it sits at From.
type step struct {
	From     Status
	To       Status
	Action   string
	holder   turnHolder
	editable fieldSet
	rules    []Rule
}

var steps = []step{
	{
		From:     StatusDraft,
		To:       StatusSubmitted,
		Action:   ActionSubmit,
		holder:   turnOwner,
		editable: ownerFields,
		rules:    []Rule{objectivesComplete, selfAssessmentComplete, employeeRatingsComplete},
	},
	{
		From:     StatusSubmitted,
		To:       StatusSupervisorApproved,
		Action:   ActionSupervisorApprove,
		holder:   turnAssignedSupervisor,
		editable: supervisorFields,
		rules:    []Rule{supervisorRatingsComplete, supervisorCommentsComplete},
	},
	{
		From:     StatusSupervisorApproved,
		To:       StatusHRApproved,
		Action:   ActionHRApprove,
		holder:   turnHR,
		editable: reviewerFields,
		rules:    []Rule{learningNeedsPresent},
	},
	{
		From:     StatusHRApproved,
		To:       StatusMDApproved,
		Action:   ActionMDApprove,
		holder:   turnMD,
		editable: reviewerFields,
		rules:    []Rule{learningNeedsPresent},
	},
}

func stepFrom(status Status) (step, bool) {
	for _, s := range steps {
		if s.From == status {
			return s, true
		}
	}
	return step{}, false
}

func (s step) terminal() bool {
	return s.To.Terminal()
}

// authorize decides whether actor holds the turn on a. action names the
// operation in the returned error.
func (s step) authorize(a Appraisal, actor Actor, action string) error {
	deny := func(reason string) error {
		return &AuthorizationError{Action: action, Role: actor.Role, Status: a.Status, Reason: reason}
	}
	if actor.UserID == "" {
		return deny("actor is required")
	}
	switch s.holder {
	case turnOwner:
		if actor.UserID != a.StaffID {
			return deny("only the appraisal owner can act on a draft")
		}
		return nil
	}
	if actor.UserID == a.StaffID {
		return deny("owners cannot review their own appraisal")
	}
	switch s.holder {
	case turnAssignedSupervisor:
		if actor.UserID != a.SupervisorID {
			return deny("only the assigned supervisor can act on a submitted appraisal")
		}
		if !auth.CanSupervise(actor.Role) {
			return deny(fmt.Sprintf("role %s cannot approve as a supervisor", actor.Role))
		}
	case turnHR:
		if actor.Role != auth.RoleHR {
			return deny(fmt.Sprintf("role %s cannot act on a %s appraisal", actor.Role, a.Status))
		}
	case turnMD:
		if actor.Role != auth.RoleMD {
			return deny(fmt.Sprintf("role %s cannot act on a %s appraisal", actor.Role, a.Status))
		}
	}
	return nil
}

// NextStatus reports the status the appraisal moves to from status, if any.
func NextStatus(status Status) (Status, bool) {
	s, ok := stepFrom(status)
	if !ok {
		return "", false
	}
	return s.To, true
}
