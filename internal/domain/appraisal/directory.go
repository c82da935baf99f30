package appraisal

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"appraisal/internal/domain/auth"
)

func (s *Service) CreateStaff(ctx context.Context, staff Staff) (Staff, error) {
	staff.Name = strings.TrimSpace(staff.Name)
	staff.Email = strings.ToLower(strings.TrimSpace(staff.Email))
	staff.Role = strings.ToLower(strings.TrimSpace(staff.Role))

	var violations []Violation
	if staff.Name == "" {
		violations = append(violations, Violation{Field: "name", Reason: "required"})
	}
	if staff.Email == "" {
		violations = append(violations, Violation{Field: "email", Reason: "required"})
	}
	if !auth.ValidRole(staff.Role) {
		violations = append(violations, Violation{Field: "role", Reason: "must be one of " + strings.Join(auth.Roles, ", ")})
	}
	if staff.SupervisorID != "" {
		v, err := s.checkSupervisor(ctx, staff.ID, staff.SupervisorID)
		if err != nil {
			return Staff{}, err
		}
		violations = append(violations, v...)
	}
	if len(violations) > 0 {
		return Staff{}, &ValidationError{Violations: violations}
	}

	if staff.ID == "" {
		staff.ID = uuid.NewString()
	}
	staff.CreatedAt = s.now()
	if err := s.Store.CreateStaff(ctx, staff); err != nil {
		return Staff{}, err
	}
	return staff, nil
}

// checkSupervisor requires the supervisor to exist, to be someone else and
// to hold a role that can approve appraisals.
func (s *Service) checkSupervisor(ctx context.Context, staffID, supervisorID string) ([]Violation, error) {
	if staffID != "" && supervisorID == staffID {
		return []Violation{{Field: "supervisorId", Reason: "cannot supervise themselves"}}, nil
	}
	supervisor, err := s.Store.GetStaff(ctx, supervisorID)
	if errors.Is(err, ErrNotFound) {
		return []Violation{{Field: "supervisorId", Reason: "unknown supervisor"}}, nil
	}
	if err != nil {
		return nil, err
	}
	if !auth.CanSupervise(supervisor.Role) {
		return []Violation{{Field: "supervisorId", Reason: "role " + supervisor.Role + " cannot supervise"}}, nil
	}
	return nil, nil
}

// UpdateStaff applies the non-nil fields of update to the staff record.
func (s *Service) UpdateStaff(ctx context.Context, id string, update StaffUpdate) (Staff, error) {
	staff, err := s.Store.GetStaff(ctx, id)
	if err != nil {
		return Staff{}, fmt.Errorf("staff %s: %w", id, err)
	}

	var violations []Violation
	if update.Name != nil {
		staff.Name = strings.TrimSpace(*update.Name)
		if staff.Name == "" {
			violations = append(violations, Violation{Field: "name", Reason: "required"})
		}
	}
	if update.Email != nil {
		staff.Email = strings.ToLower(strings.TrimSpace(*update.Email))
		if staff.Email == "" {
			violations = append(violations, Violation{Field: "email", Reason: "required"})
		}
	}
	if update.Role != nil {
		staff.Role = strings.ToLower(strings.TrimSpace(*update.Role))
		switch {
		case !auth.ValidRole(staff.Role):
			violations = append(violations, Violation{Field: "role", Reason: "must be one of " + strings.Join(auth.Roles, ", ")})
		case !auth.CanSupervise(staff.Role):
			reports, err := s.Store.ListStaff(ctx, StaffFilter{SupervisorID: id})
			if err != nil {
				return Staff{}, err
			}
			if len(reports) > 0 {
				violations = append(violations, Violation{Field: "role", Reason: "still supervises other staff"})
			}
		}
	}
	if update.Designation != nil {
		staff.Designation = strings.TrimSpace(*update.Designation)
	}
	if update.Department != nil {
		staff.Department = strings.TrimSpace(*update.Department)
	}
	if update.SupervisorID != nil {
		staff.SupervisorID = strings.TrimSpace(*update.SupervisorID)
		if staff.SupervisorID != "" {
			v, err := s.checkSupervisor(ctx, id, staff.SupervisorID)
			if err != nil {
				return Staff{}, err
			}
			violations = append(violations, v...)
		}
	}
	if len(violations) > 0 {
		return Staff{}, &ValidationError{Violations: violations}
	}

	if err := s.Store.UpdateStaff(ctx, staff); err != nil {
		return Staff{}, fmt.Errorf("staff %s: %w", id, err)
	}
	return staff, nil
}

// DeleteStaff removes a staff member together with their own appraisals and
// ledger history. Anyone they supervised is left without a supervisor.
func (s *Service) DeleteStaff(ctx context.Context, id string) error {
	if err := s.Store.DeleteStaff(ctx, id); err != nil {
		return fmt.Errorf("staff %s: %w", id, err)
	}
	return nil
}

func (s *Service) GetStaff(ctx context.Context, id string) (Staff, error) {
	staff, err := s.Store.GetStaff(ctx, id)
	if err != nil {
		return Staff{}, fmt.Errorf("staff %s: %w", id, err)
	}
	return staff, nil
}

func (s *Service) ListStaff(ctx context.Context, filter StaffFilter) ([]Staff, error) {
	return s.Store.ListStaff(ctx, filter)
}

func (s *Service) CreatePeriod(ctx context.Context, year, quarter int, label string, active bool) (Period, error) {
	var violations []Violation
	if year < 2000 || year > 2999 {
		violations = append(violations, Violation{Field: "year", Reason: "must be between 2000 and 2999"})
	}
	if quarter < 1 || quarter > 4 {
		violations = append(violations, Violation{Field: "quarter", Reason: "must be between 1 and 4"})
	}
	if len(violations) > 0 {
		return Period{}, &ValidationError{Violations: violations}
	}

	label = strings.TrimSpace(label)
	if label == "" {
		label = PeriodLabel(year, quarter)
	}
	period := Period{
		ID:        uuid.NewString(),
		Year:      year,
		Quarter:   quarter,
		Label:     label,
		CreatedAt: s.now(),
	}
	if err := s.Store.CreatePeriod(ctx, period); err != nil {
		return Period{}, err
	}
	if active {
		if err := s.Store.ActivatePeriod(ctx, period.ID); err != nil {
			return Period{}, err
		}
		period.IsActive = true
	}
	return period, nil
}

func (s *Service) ListPeriods(ctx context.Context, year int) ([]Period, error) {
	return s.Store.ListPeriods(ctx, year)
}

func (s *Service) ActivePeriod(ctx context.Context) (Period, error) {
	period, err := s.Store.ActivePeriod(ctx)
	if errors.Is(err, ErrNotFound) {
		return Period{}, ErrNoActivePeriod
	}
	return period, err
}

// ActivatePeriod makes id the only active period.
func (s *Service) ActivatePeriod(ctx context.Context, id string) error {
	if err := s.Store.ActivatePeriod(ctx, id); err != nil {
		return fmt.Errorf("period %s: %w", id, err)
	}
	return nil
}

// RenamePeriod changes the display label. Appraisals and ledger entries keep
// the label they were created with.
func (s *Service) RenamePeriod(ctx context.Context, id, label string) (Period, error) {
	label = strings.TrimSpace(label)
	if label == "" {
		return Period{}, &ValidationError{Violations: []Violation{{Field: "label", Reason: "required"}}}
	}
	if err := s.Store.UpdatePeriodLabel(ctx, id, label); err != nil {
		return Period{}, fmt.Errorf("period %s: %w", id, err)
	}
	period, err := s.Store.GetPeriod(ctx, id)
	if err != nil {
		return Period{}, fmt.Errorf("period %s: %w", id, err)
	}
	return period, nil
}

func (s *Service) DeletePeriod(ctx context.Context, id string) error {
	if err := s.Store.DeletePeriod(ctx, id); err != nil {
		return fmt.Errorf("period %s: %w", id, err)
	}
	return nil
}
