package appraisal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"appraisal/internal/domain/auth"
	"appraisal/internal/domain/scoring"
	"appraisal/internal/platform/crypto"
	"appraisal/internal/platform/metrics"
	"appraisal/internal/requestctx"
)

type Service struct {
	Store   StoreAPI
	Engine  *scoring.Engine
	Crypto  *crypto.Service
	Metrics *metrics.Collector
	Now     func() time.Time
}

func NewService(store StoreAPI, engine *scoring.Engine, cryptoSvc *crypto.Service, collector *metrics.Collector) *Service {
	if engine == nil {
		engine = scoring.Default()
	}
	return &Service{
		Store:   store,
		Engine:  engine,
		Crypto:  cryptoSvc,
		Metrics: collector,
		Now:     time.Now,
	}
}

func (s *Service) now() time.Time {
	return s.Now().UTC().Truncate(time.Microsecond)
}

// CreateDraft opens an appraisal for staffID in periodID, or in the active
// period when periodID is empty. A nil template uses DefaultContent.
func (s *Service) CreateDraft(ctx context.Context, actor Actor, staffID, periodID string, template *Content) (Appraisal, error) {
	if staffID == "" {
		staffID = actor.UserID
	}
	if staffID != actor.UserID && actor.Role != auth.RoleHR && actor.Role != auth.RoleAdmin {
		return s.deny(&AuthorizationError{
			Action: ActionCreate,
			Role:   actor.Role,
			Reason: "only the owner, hr or admin can open an appraisal",
		})
	}

	staff, err := s.Store.GetStaff(ctx, staffID)
	if err != nil {
		return Appraisal{}, fmt.Errorf("staff %s: %w", staffID, err)
	}
	if staff.SupervisorID == "" || staff.SupervisorID == staff.ID {
		return Appraisal{}, ErrNoSupervisor
	}
	period, err := s.resolvePeriod(ctx, periodID)
	if err != nil {
		return Appraisal{}, err
	}

	content := DefaultContent()
	if template != nil {
		content = template.normalized()
	}
	if err := Check(content, ratingSymbols(s.Engine.Known)); err != nil {
		return s.invalid(err)
	}

	now := s.now()
	a := Appraisal{
		ID:           uuid.NewString(),
		StaffID:      staff.ID,
		SupervisorID: staff.SupervisorID,
		PeriodID:     period.ID,
		PeriodLabel:  period.Label,
		Status:       StatusDraft,
		Content:      content,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.Store.CreateAppraisal(ctx, a); err != nil {
		return Appraisal{}, err
	}
	s.recordEvent(ctx, a.ID, actor, ActionCreate, "", StatusDraft)
	return a, nil
}

func (s *Service) resolvePeriod(ctx context.Context, periodID string) (Period, error) {
	if periodID == "" {
		period, err := s.Store.ActivePeriod(ctx)
		if errors.Is(err, ErrNotFound) {
			return Period{}, ErrNoActivePeriod
		}
		return period, err
	}
	period, err := s.Store.GetPeriod(ctx, periodID)
	if err != nil {
		return Period{}, fmt.Errorf("period %s: %w", periodID, err)
	}
	return period, nil
}

// SaveDraft stores content without changing status. Only the actor whose
// turn it is may save, and only the fields that turn owns.
func (s *Service) SaveDraft(ctx context.Context, appraisalID string, actor Actor, content Content) (Appraisal, error) {
	current, err := s.load(ctx, appraisalID)
	if err != nil {
		return Appraisal{}, err
	}
	st, ok := stepFrom(current.Status)
	if !ok {
		return s.deny(&AuthorizationError{
			Action: ActionSave,
			Role:   actor.Role,
			Status: current.Status,
			Reason: "completed appraisals are locked",
		})
	}
	if err := st.authorize(current, actor, ActionSave); err != nil {
		return s.deny(err)
	}

	proposed := content.normalized()
	if err := checkEdits(current.Content, proposed, st.editable, ActionSave, actor, current.Status); err != nil {
		return s.deny(err)
	}
	if err := Check(proposed, ratingSymbols(s.Engine.Known)); err != nil {
		return s.invalid(err)
	}

	next := current
	next.Content = proposed
	next.UpdatedAt = s.now()
	if err := s.Store.SaveAppraisal(ctx, next, current.Status); err != nil {
		return s.storeFailure(err)
	}
	s.recordEvent(ctx, next.ID, actor, ActionSave, current.Status, current.Status)
	return next.withoutPayload(), nil
}

// AttemptTransition moves the appraisal one step forward. proposed, when
// given, replaces the content after the actor's edit rights are checked.
// Authorization is checked before content preconditions.
func (s *Service) AttemptTransition(ctx context.Context, appraisalID string, actor Actor, proposed *Content) (Appraisal, error) {
	current, err := s.load(ctx, appraisalID)
	if err != nil {
		return Appraisal{}, err
	}
	if current.Status.Terminal() {
		return s.replayCompletion(ctx, current, actor)
	}
	st, ok := stepFrom(current.Status)
	if !ok {
		return s.deny(&AuthorizationError{
			Role:   actor.Role,
			Status: current.Status,
			Reason: "no transition from status " + string(current.Status),
		})
	}
	if err := st.authorize(current, actor, st.Action); err != nil {
		return s.deny(err)
	}

	content := current.Content
	if proposed != nil {
		candidate := proposed.normalized()
		if err := checkEdits(current.Content, candidate, st.editable, st.Action, actor, current.Status); err != nil {
			return s.deny(err)
		}
		content = candidate
	}
	if err := Check(content, ratingSymbols(s.Engine.Known)); err != nil {
		return s.invalid(err)
	}
	if err := Check(content, st.rules...); err != nil {
		return s.invalid(err)
	}

	now := s.now()
	next := current
	next.Content = content
	next.Status = st.To
	next.UpdatedAt = now
	if st.To == StatusSubmitted && next.SubmittedAt == nil {
		next.SubmittedAt = &now
	}

	if st.terminal() {
		result := s.Engine.Compute(content.employeeRatings(), content.supervisorRatings())
		next.Scores = &result
		next.CompletedAt = &now
		created, err := s.Store.CompleteAppraisal(ctx, next, current.Status, s.ledgerEntryFor(next))
		if err != nil {
			return s.storeFailure(err)
		}
		s.Metrics.Ledger(created)
	} else if err := s.Store.SaveAppraisal(ctx, next, current.Status); err != nil {
		return s.storeFailure(err)
	}

	s.Metrics.Transition(string(st.To))
	s.recordEvent(ctx, next.ID, actor, st.Action, current.Status, st.To)
	return next.withoutPayload(), nil
}

// replayCompletion answers a repeated final approval: the ledger entry is
// ensured and the stored appraisal returned unchanged.
func (s *Service) replayCompletion(ctx context.Context, current Appraisal, actor Actor) (Appraisal, error) {
	if actor.Role != auth.RoleMD || actor.UserID == current.StaffID {
		return s.deny(&AuthorizationError{
			Action: ActionMDApprove,
			Role:   actor.Role,
			Status: current.Status,
			Reason: "appraisal is already completed",
		})
	}
	if _, _, err := s.RecordLedger(ctx, current); err != nil {
		return Appraisal{}, err
	}
	return current.withoutPayload(), nil
}

// ComputeScores previews the scores for content without touching storage.
func (s *Service) ComputeScores(content Content) (scoring.Result, error) {
	if err := Check(content, ratingSymbols(s.Engine.Known)); err != nil {
		return scoring.Result{}, err
	}
	return s.Engine.Compute(content.employeeRatings(), content.supervisorRatings()), nil
}

func canView(a Appraisal, actor Actor) bool {
	switch {
	case actor.UserID != "" && actor.UserID == a.StaffID:
		return true
	case actor.Role == auth.RoleAdmin:
		return true
	case a.Status == StatusDraft:
		return false
	case actor.UserID != "" && actor.UserID == a.SupervisorID:
		return true
	case actor.Role == auth.RoleHR, actor.Role == auth.RoleMD:
		return true
	}
	return false
}

func (s *Service) GetAppraisal(ctx context.Context, appraisalID string, actor Actor) (Appraisal, error) {
	a, err := s.load(ctx, appraisalID)
	if err != nil {
		return Appraisal{}, err
	}
	if !canView(a, actor) {
		return s.deny(&AuthorizationError{Action: "appraisal.read", Role: actor.Role, Status: a.Status, Reason: "appraisal is not visible to this actor"})
	}
	return a.withoutPayload(), nil
}

// ListAppraisals returns what actor may see: their own appraisals plus,
// for supervisors, non-draft appraisals assigned to them and, for hr and md,
// every non-draft appraisal. Admins see everything.
func (s *Service) ListAppraisals(ctx context.Context, actor Actor, filter AppraisalFilter) ([]Appraisal, error) {
	if actor.Role == auth.RoleAdmin {
		return s.listStripped(ctx, filter)
	}

	var queries []AppraisalFilter
	if filter.StaffID == "" || filter.StaffID == actor.UserID {
		own := filter
		own.StaffID = actor.UserID
		own.ExcludeDrafts = false
		queries = append(queries, own)
	}
	switch actor.Role {
	case auth.RoleSupervisor:
		assigned := filter
		assigned.SupervisorID = actor.UserID
		assigned.ExcludeDrafts = true
		queries = append(queries, assigned)
	case auth.RoleHR, auth.RoleMD:
		others := filter
		others.ExcludeDrafts = true
		queries = append(queries, others)
	}

	seen := map[string]struct{}{}
	out := []Appraisal{}
	for _, query := range queries {
		items, err := s.listStripped(ctx, query)
		if err != nil {
			return nil, err
		}
		for _, item := range items {
			if _, ok := seen[item.ID]; ok {
				continue
			}
			seen[item.ID] = struct{}{}
			out = append(out, item)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Service) listStripped(ctx context.Context, filter AppraisalFilter) ([]Appraisal, error) {
	items, err := s.Store.ListAppraisals(ctx, filter)
	if err != nil {
		return nil, err
	}
	out := make([]Appraisal, 0, len(items))
	for _, item := range items {
		out = append(out, item.withoutPayload())
	}
	return out, nil
}

func (s *Service) DeleteAppraisal(ctx context.Context, appraisalID string) error {
	if err := s.Store.DeleteAppraisal(ctx, appraisalID); err != nil {
		return fmt.Errorf("appraisal %s: %w", appraisalID, err)
	}
	return nil
}

func (s *Service) Events(ctx context.Context, appraisalID string, actor Actor) ([]Event, error) {
	if _, err := s.GetAppraisal(ctx, appraisalID, actor); err != nil {
		return nil, err
	}
	return s.Store.ListEvents(ctx, appraisalID)
}

func (s *Service) load(ctx context.Context, appraisalID string) (Appraisal, error) {
	a, err := s.Store.LoadAppraisal(ctx, appraisalID)
	if err != nil {
		return Appraisal{}, fmt.Errorf("appraisal %s: %w", appraisalID, err)
	}
	return a, nil
}

func (s *Service) deny(err error) (Appraisal, error) {
	s.Metrics.AuthorizationRejected()
	return Appraisal{}, err
}

func (s *Service) invalid(err error) (Appraisal, error) {
	s.Metrics.ValidationFailed()
	return Appraisal{}, err
}

func (s *Service) storeFailure(err error) (Appraisal, error) {
	if errors.Is(err, ErrConflict) {
		s.Metrics.Conflict()
	}
	return Appraisal{}, err
}

func (s *Service) recordEvent(ctx context.Context, appraisalID string, actor Actor, action string, from, to Status) {
	event := Event{
		ID:          uuid.NewString(),
		AppraisalID: appraisalID,
		ActorID:     actor.UserID,
		ActorRole:   actor.Role,
		Action:      action,
		FromStatus:  from,
		ToStatus:    to,
		RequestID:   requestctx.RequestID(ctx),
		CreatedAt:   s.now(),
	}
	if err := s.Store.RecordEvent(ctx, event); err != nil {
		slog.Warn("appraisal event record failed", "action", action, "appraisalId", appraisalID, "err", err)
	}
}
