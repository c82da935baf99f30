package sqlitestore

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"appraisal/internal/domain/appraisal"
	"appraisal/internal/domain/scoring"
)

var epoch = time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(context.Background(), filepath.Join(t.TempDir(), "appraisal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seed(t *testing.T, store *Store) (appraisal.Staff, appraisal.Staff, appraisal.Period) {
	t.Helper()
	ctx := context.Background()
	boss := appraisal.Staff{ID: "boss", Name: "Boss", Email: "boss@example.com", Role: "supervisor", CreatedAt: epoch}
	worker := appraisal.Staff{ID: "worker", Name: "Worker", Email: "worker@example.com", Role: "staff", SupervisorID: "boss", CreatedAt: epoch}
	period := appraisal.Period{ID: "p1", Year: 2025, Quarter: 1, Label: "Q1 2025", CreatedAt: epoch}
	require.NoError(t, store.CreateStaff(ctx, boss))
	require.NoError(t, store.CreateStaff(ctx, worker))
	require.NoError(t, store.CreatePeriod(ctx, period))
	return boss, worker, period
}

func draft(id string, worker appraisal.Staff, period appraisal.Period) appraisal.Appraisal {
	return appraisal.Appraisal{
		ID:           id,
		StaffID:      worker.ID,
		SupervisorID: worker.SupervisorID,
		PeriodID:     period.ID,
		PeriodLabel:  period.Label,
		Status:       appraisal.StatusDraft,
		Content:      appraisal.DefaultContent(),
		CreatedAt:    epoch,
		UpdatedAt:    epoch,
	}
}

func TestStaffRoundTripAndUniqueEmail(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	_, worker, _ := seed(t, store)

	got, err := store.GetStaff(ctx, worker.ID)
	require.NoError(t, err)
	assert.Equal(t, worker, got)

	dup := worker
	dup.ID = "other"
	assert.ErrorIs(t, store.CreateStaff(ctx, dup), appraisal.ErrStaffExists)

	_, err = store.GetStaff(ctx, "missing")
	assert.ErrorIs(t, err, appraisal.ErrNotFound)

	reports, err := store.ListStaff(ctx, appraisal.StaffFilter{SupervisorID: "boss"})
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, "worker", reports[0].ID)
}

func TestActivatePeriodKeepsSingleActive(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	_, _, first := seed(t, store)
	second := appraisal.Period{ID: "p2", Year: 2025, Quarter: 2, Label: "Q2 2025", CreatedAt: epoch}
	require.NoError(t, store.CreatePeriod(ctx, second))

	_, err := store.ActivePeriod(ctx)
	assert.ErrorIs(t, err, appraisal.ErrNotFound)

	require.NoError(t, store.ActivatePeriod(ctx, first.ID))
	require.NoError(t, store.ActivatePeriod(ctx, second.ID))

	active, err := store.ActivePeriod(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.ID, active.ID)

	periods, err := store.ListPeriods(ctx, 2025)
	require.NoError(t, err)
	require.Len(t, periods, 2)
	assert.Equal(t, "p2", periods[0].ID)
	assert.False(t, periods[1].IsActive)

	assert.ErrorIs(t, store.ActivatePeriod(ctx, "missing"), appraisal.ErrNotFound)
	assert.ErrorIs(t, store.CreatePeriod(ctx, appraisal.Period{ID: "p3", Year: 2025, Quarter: 1, Label: "dup", CreatedAt: epoch}), appraisal.ErrPeriodExists)
}

func TestDeletePeriodInUse(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	_, worker, period := seed(t, store)
	require.NoError(t, store.CreateAppraisal(ctx, draft("a1", worker, period)))

	assert.ErrorIs(t, store.DeletePeriod(ctx, period.ID), appraisal.ErrPeriodInUse)
	require.NoError(t, store.DeleteAppraisal(ctx, "a1"))
	require.NoError(t, store.DeletePeriod(ctx, period.ID))
	assert.ErrorIs(t, store.DeletePeriod(ctx, period.ID), appraisal.ErrNotFound)
}

func TestAppraisalOnePerStaffAndPeriod(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	_, worker, period := seed(t, store)

	require.NoError(t, store.CreateAppraisal(ctx, draft("a1", worker, period)))
	assert.ErrorIs(t, store.CreateAppraisal(ctx, draft("a2", worker, period)), appraisal.ErrDuplicateAppraisal)

	got, err := store.LoadAppraisal(ctx, "a1")
	require.NoError(t, err)
	assert.Equal(t, appraisal.StatusDraft, got.Status)
	assert.Equal(t, appraisal.DefaultContent(), got.Content)
	assert.Nil(t, got.Scores)
	assert.Nil(t, got.CompletedAt)
}

func TestSaveAppraisalDetectsStaleStatus(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	_, worker, period := seed(t, store)
	a := draft("a1", worker, period)
	require.NoError(t, store.CreateAppraisal(ctx, a))

	submitted := a
	submitted.Status = appraisal.StatusSubmitted
	submittedAt := epoch.Add(time.Hour)
	submitted.SubmittedAt = &submittedAt
	require.NoError(t, store.SaveAppraisal(ctx, submitted, appraisal.StatusDraft))

	// A second writer still holding the draft loses.
	assert.ErrorIs(t, store.SaveAppraisal(ctx, submitted, appraisal.StatusDraft), appraisal.ErrConflict)

	missing := submitted
	missing.ID = "nope"
	assert.ErrorIs(t, store.SaveAppraisal(ctx, missing, appraisal.StatusDraft), appraisal.ErrNotFound)

	got, err := store.LoadAppraisal(ctx, "a1")
	require.NoError(t, err)
	require.NotNil(t, got.SubmittedAt)
	assert.True(t, got.SubmittedAt.Equal(submittedAt))
}

func TestCompleteAppraisalWritesLedgerOnce(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	_, worker, period := seed(t, store)
	a := draft("a1", worker, period)
	a.Status = appraisal.StatusHRApproved
	require.NoError(t, store.CreateAppraisal(ctx, a))

	done := a
	done.Status = appraisal.StatusMDApproved
	completed := epoch.Add(48 * time.Hour)
	done.CompletedAt = &completed
	done.Scores = &scoring.Result{EmployeeScore: 100, SupervisorScore: 85, FinalScore: 89.5, Grade: "A", GradeLabel: "Outstanding"}
	entry := appraisal.LedgerEntry{
		ID: "l1", StaffID: worker.ID, PeriodID: period.ID, PeriodLabel: period.Label,
		AppraisalID: "a1", Score: 89.5, Rating: "A", CompletedAt: completed, CreatedAt: completed,
	}

	created, err := store.CompleteAppraisal(ctx, done, appraisal.StatusHRApproved, entry)
	require.NoError(t, err)
	assert.True(t, created)

	_, err = store.CompleteAppraisal(ctx, done, appraisal.StatusHRApproved, entry)
	assert.ErrorIs(t, err, appraisal.ErrConflict)

	again := entry
	again.ID = "l2"
	assert.ErrorIs(t, store.InsertLedgerEntry(ctx, again), appraisal.ErrDuplicate)

	found, ok, err := store.FindLedgerEntry(ctx, worker.ID, period.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "l1", found.ID)
	assert.Equal(t, 89.5, found.Score)

	ledger, err := store.ListLedger(ctx, []string{period.ID, "other"})
	require.NoError(t, err)
	assert.Len(t, ledger, 1)

	pending, err := store.ListCompletedWithoutLedger(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestDeleteAppraisalCascades(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	_, worker, period := seed(t, store)
	require.NoError(t, store.CreateAppraisal(ctx, draft("a1", worker, period)))
	require.NoError(t, store.RecordEvent(ctx, appraisal.Event{
		ID: "e1", AppraisalID: "a1", ActorID: worker.ID, ActorRole: "staff",
		Action: appraisal.ActionCreate, ToStatus: appraisal.StatusDraft, CreatedAt: epoch,
	}))

	events, err := store.ListEvents(ctx, "a1")
	require.NoError(t, err)
	require.Len(t, events, 1)

	require.NoError(t, store.DeleteAppraisal(ctx, "a1"))
	events, err = store.ListEvents(ctx, "a1")
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.ErrorIs(t, store.DeleteAppraisal(ctx, "a1"), appraisal.ErrNotFound)
}

func TestAttachmentColumn(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	_, worker, period := seed(t, store)
	require.NoError(t, store.CreateAppraisal(ctx, draft("a1", worker, period)))

	att := &appraisal.Attachment{FileName: "plan.pdf", FileSize: 4, FileData: "JVBERg=="}
	require.NoError(t, store.SaveAttachment(ctx, "a1", att, epoch.Add(time.Minute)))

	got, err := store.LoadAppraisal(ctx, "a1")
	require.NoError(t, err)
	require.NotNil(t, got.Attachment)
	assert.Equal(t, *att, *got.Attachment)

	require.NoError(t, store.SaveAttachment(ctx, "a1", nil, epoch.Add(2*time.Minute)))
	got, err = store.LoadAppraisal(ctx, "a1")
	require.NoError(t, err)
	assert.Nil(t, got.Attachment)
}

func TestUpdateStaff(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	boss, worker, _ := seed(t, store)

	worker.Name = "Worker Bee"
	worker.SupervisorID = ""
	require.NoError(t, store.UpdateStaff(ctx, worker))
	got, err := store.GetStaff(ctx, worker.ID)
	require.NoError(t, err)
	assert.Equal(t, worker, got)

	worker.Email = boss.Email
	assert.ErrorIs(t, store.UpdateStaff(ctx, worker), appraisal.ErrStaffExists)
	assert.ErrorIs(t, store.UpdateStaff(ctx, appraisal.Staff{ID: "missing", Name: "x", Email: "x@example.com", Role: "staff"}), appraisal.ErrNotFound)
}

func TestDeleteStaffRemovesOwnHistory(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	boss, worker, period := seed(t, store)
	require.NoError(t, store.CreateAppraisal(ctx, draft("a1", worker, period)))
	require.NoError(t, store.InsertLedgerEntry(ctx, appraisal.LedgerEntry{
		ID: "l1", StaffID: worker.ID, PeriodID: period.ID, PeriodLabel: period.Label, AppraisalID: "a1",
		Score: 70, Rating: "B", CompletedAt: epoch, CreatedAt: epoch,
	}))

	assert.ErrorIs(t, store.DeleteStaff(ctx, boss.ID), appraisal.ErrStaffInUse)

	require.NoError(t, store.DeleteStaff(ctx, worker.ID))
	_, err := store.LoadAppraisal(ctx, "a1")
	assert.ErrorIs(t, err, appraisal.ErrNotFound)
	entries, err := store.ListLedger(ctx, []string{period.ID})
	require.NoError(t, err)
	assert.Empty(t, entries)

	require.NoError(t, store.DeleteStaff(ctx, boss.ID))
	assert.ErrorIs(t, store.DeleteStaff(ctx, boss.ID), appraisal.ErrNotFound)
}

func TestDeleteStaffClearsReports(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	boss, worker, _ := seed(t, store)

	require.NoError(t, store.DeleteStaff(ctx, boss.ID))
	got, err := store.GetStaff(ctx, worker.ID)
	require.NoError(t, err)
	assert.Empty(t, got.SupervisorID)
}

func TestUpdatePeriodLabel(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	_, _, period := seed(t, store)

	require.NoError(t, store.UpdatePeriodLabel(ctx, period.ID, "Spring"))
	got, err := store.GetPeriod(ctx, period.ID)
	require.NoError(t, err)
	assert.Equal(t, "Spring", got.Label)
	assert.ErrorIs(t, store.UpdatePeriodLabel(ctx, "missing", "x"), appraisal.ErrNotFound)
}
