package appraisal

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	"appraisal/internal/domain/auth"
)

func canAttach(a Appraisal, actor Actor) bool {
	if actor.UserID == "" {
		return false
	}
	if actor.UserID == a.StaffID {
		return true
	}
	if a.Status == StatusDraft {
		return actor.Role == auth.RoleAdmin
	}
	if actor.UserID == a.SupervisorID {
		return true
	}
	switch actor.Role {
	case auth.RoleHR, auth.RoleMD, auth.RoleAdmin:
		return true
	}
	return false
}

// UpdateAttachment replaces or, with a nil attachment, removes the
// document. It is allowed at every status and never changes the workflow.
func (s *Service) UpdateAttachment(ctx context.Context, appraisalID string, actor Actor, attachment *Attachment) (Appraisal, error) {
	current, err := s.load(ctx, appraisalID)
	if err != nil {
		return Appraisal{}, err
	}
	action := ActionAttachmentRemove
	if attachment != nil {
		action = ActionAttachmentUpdate
	}
	if !canAttach(current, actor) {
		return s.deny(&AuthorizationError{Action: action, Role: actor.Role, Status: current.Status, Reason: "not allowed to change the attachment"})
	}

	var stored *Attachment
	if attachment != nil {
		if err := checkAttachment(*attachment); err != nil {
			return s.invalid(err)
		}
		sealed := *attachment
		sealed.Encrypted = false
		if s.Crypto.Configured() {
			data, err := s.Crypto.SealBase64(sealed.FileData)
			if err != nil {
				return Appraisal{}, fmt.Errorf("seal attachment: %w", err)
			}
			sealed.FileData = data
			sealed.Encrypted = true
		}
		stored = &sealed
	}

	now := s.now()
	if err := s.Store.SaveAttachment(ctx, current.ID, stored, now); err != nil {
		return Appraisal{}, fmt.Errorf("appraisal %s: %w", current.ID, err)
	}
	current.Attachment = stored
	current.UpdatedAt = now
	s.recordEvent(ctx, current.ID, actor, action, current.Status, current.Status)
	return current.withoutPayload(), nil
}

// Attachment returns the stored document with a plain base64 payload.
func (s *Service) Attachment(ctx context.Context, appraisalID string, actor Actor) (Attachment, error) {
	a, err := s.load(ctx, appraisalID)
	if err != nil {
		return Attachment{}, err
	}
	if !canView(a, actor) {
		s.Metrics.AuthorizationRejected()
		return Attachment{}, &AuthorizationError{Action: "appraisal.attachment.read", Role: actor.Role, Status: a.Status, Reason: "appraisal is not visible to this actor"}
	}
	if a.Attachment == nil {
		return Attachment{}, fmt.Errorf("attachment for appraisal %s: %w", appraisalID, ErrNotFound)
	}
	out := *a.Attachment
	if out.Encrypted {
		if !s.Crypto.Configured() {
			return Attachment{}, errors.New("attachment is encrypted but no key is configured")
		}
		data, err := s.Crypto.OpenBase64(out.FileData)
		if err != nil {
			return Attachment{}, fmt.Errorf("open attachment: %w", err)
		}
		out.FileData = data
		out.Encrypted = false
	}
	return out, nil
}

func checkAttachment(attachment Attachment) error {
	var violations []Violation
	if blank(attachment.FileName) {
		violations = append(violations, Violation{Field: "fileName", Reason: "required"})
	}
	if blank(attachment.FileData) {
		violations = append(violations, Violation{Field: "fileData", Reason: "required"})
	} else if _, err := base64.StdEncoding.DecodeString(attachment.FileData); err != nil {
		violations = append(violations, Violation{Field: "fileData", Reason: "must be base64 encoded"})
	}
	if attachment.FileSize < 0 {
		violations = append(violations, Violation{Field: "fileSize", Reason: "must not be negative"})
	}
	if len(violations) == 0 {
		return nil
	}
	return &ValidationError{Violations: violations}
}
