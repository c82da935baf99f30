package appraisal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

func (s *Service) ledgerEntryFor(a Appraisal) LedgerEntry {
	entry := LedgerEntry{
		ID:          uuid.NewString(),
		StaffID:     a.StaffID,
		PeriodID:    a.PeriodID,
		PeriodLabel: a.PeriodLabel,
		AppraisalID: a.ID,
		CreatedAt:   s.now(),
	}
	if a.Scores != nil {
		entry.Score = a.Scores.FinalScore
		entry.Rating = a.Scores.Grade
	}
	if a.CompletedAt != nil {
		entry.CompletedAt = *a.CompletedAt
	}
	return entry
}

// RecordLedger writes the ledger entry for a completed appraisal unless one
// already exists for the appraisal or for its (staff, period) pair. It
// reports whether a new entry was created; an existing entry is not an error.
func (s *Service) RecordLedger(ctx context.Context, a Appraisal) (LedgerEntry, bool, error) {
	if !a.Status.Terminal() || a.Scores == nil || a.CompletedAt == nil {
		return LedgerEntry{}, false, fmt.Errorf("appraisal %s: %w", a.ID, ErrNotCompleted)
	}
	if existing, ok, err := s.existingEntry(ctx, a); err != nil || ok {
		if ok {
			s.Metrics.Ledger(false)
		}
		return existing, false, err
	}

	entry := s.ledgerEntryFor(a)
	if err := s.Store.InsertLedgerEntry(ctx, entry); err != nil {
		if !errors.Is(err, ErrDuplicate) {
			return LedgerEntry{}, false, err
		}
		s.Metrics.Ledger(false)
		existing, _, lookupErr := s.existingEntry(ctx, a)
		return existing, false, lookupErr
	}
	s.Metrics.Ledger(true)
	return entry, true, nil
}

func (s *Service) existingEntry(ctx context.Context, a Appraisal) (LedgerEntry, bool, error) {
	entry, ok, err := s.Store.FindLedgerEntryByAppraisal(ctx, a.ID)
	if err != nil || ok {
		return entry, ok, err
	}
	return s.Store.FindLedgerEntry(ctx, a.StaffID, a.PeriodID)
}

// BackfillLedger creates missing entries for completed appraisals from their
// stored scores. Appraisals completed without scores are skipped.
func (s *Service) BackfillLedger(ctx context.Context) (BackfillSummary, error) {
	candidates, err := s.Store.ListCompletedWithoutLedger(ctx)
	if err != nil {
		return BackfillSummary{}, err
	}
	summary := BackfillSummary{Scanned: len(candidates)}
	for _, a := range candidates {
		if a.Scores == nil || a.CompletedAt == nil {
			summary.Skipped++
			summary.SkippedIDs = append(summary.SkippedIDs, a.ID)
			slog.Warn("ledger backfill skipped appraisal without scores", "appraisalId", a.ID)
			continue
		}
		_, created, err := s.RecordLedger(ctx, a)
		if err != nil {
			return summary, fmt.Errorf("backfill appraisal %s: %w", a.ID, err)
		}
		if created {
			summary.Created++
		}
	}
	return summary, nil
}

// ResyncLedgerEntry rewrites an entry's score and rating from its
// appraisal. It is the only path that mutates an existing entry.
func (s *Service) ResyncLedgerEntry(ctx context.Context, appraisalID string, actor Actor) (LedgerEntry, error) {
	a, err := s.load(ctx, appraisalID)
	if err != nil {
		return LedgerEntry{}, err
	}
	existing, ok, err := s.Store.FindLedgerEntryByAppraisal(ctx, appraisalID)
	if err != nil {
		return LedgerEntry{}, err
	}
	if !ok {
		entry, _, err := s.RecordLedger(ctx, a)
		if err != nil {
			return LedgerEntry{}, err
		}
		s.recordEvent(ctx, a.ID, actor, ActionLedgerResync, a.Status, a.Status)
		return entry, nil
	}
	if a.Scores == nil || a.CompletedAt == nil {
		return LedgerEntry{}, fmt.Errorf("appraisal %s: %w", a.ID, ErrNotCompleted)
	}

	existing.Score = a.Scores.FinalScore
	existing.Rating = a.Scores.Grade
	existing.PeriodLabel = a.PeriodLabel
	existing.CompletedAt = *a.CompletedAt
	if err := s.Store.UpdateLedgerEntry(ctx, existing); err != nil {
		return LedgerEntry{}, err
	}
	s.recordEvent(ctx, a.ID, actor, ActionLedgerResync, a.Status, a.Status)
	return existing, nil
}

// Leaderboard ranks staff over the periods selected by scope. An unknown
// period or a year without periods yields an empty board.
func (s *Service) Leaderboard(ctx context.Context, scope Scope) ([]Ranking, error) {
	var periods []Period
	switch {
	case scope.PeriodID != "":
		period, err := s.Store.GetPeriod(ctx, scope.PeriodID)
		if errors.Is(err, ErrNotFound) {
			return []Ranking{}, nil
		}
		if err != nil {
			return nil, err
		}
		periods = []Period{period}
	case scope.Year > 0:
		var err error
		if periods, err = s.Store.ListPeriods(ctx, scope.Year); err != nil {
			return nil, err
		}
	default:
		return nil, &ValidationError{Violations: []Violation{{Field: "scope", Reason: "periodId or year is required"}}}
	}
	if len(periods) == 0 {
		return []Ranking{}, nil
	}

	ids := make([]string, 0, len(periods))
	for _, period := range periods {
		ids = append(ids, period.ID)
	}
	entries, err := s.Store.ListLedger(ctx, ids)
	if err != nil {
		return nil, err
	}
	staff, err := s.Store.ListStaff(ctx, StaffFilter{})
	if err != nil {
		return nil, err
	}
	byID := make(map[string]Staff, len(staff))
	for _, member := range staff {
		byID[member.ID] = member
	}
	return Rank(entries, byID, len(periods)), nil
}
