package appraisal

import (
	"context"
	"time"
)

// StoreAPI is the persistence contract shared by the Postgres and SQLite
// backends. Lookups return ErrNotFound for missing rows.
type StoreAPI interface {
	Ping(ctx context.Context) error

	CreateStaff(ctx context.Context, staff Staff) error
	GetStaff(ctx context.Context, id string) (Staff, error)
	ListStaff(ctx context.Context, filter StaffFilter) ([]Staff, error)
	UpdateStaff(ctx context.Context, staff Staff) error
	// DeleteStaff removes the staff member with their own appraisals, events
	// and ledger entries, and clears them as supervisor of others. It returns
	// ErrStaffInUse while they are the supervisor on any appraisal.
	DeleteStaff(ctx context.Context, id string) error

	CreatePeriod(ctx context.Context, period Period) error
	GetPeriod(ctx context.Context, id string) (Period, error)
	ActivePeriod(ctx context.Context) (Period, error)
	ListPeriods(ctx context.Context, year int) ([]Period, error)
	ActivatePeriod(ctx context.Context, id string) error
	UpdatePeriodLabel(ctx context.Context, id, label string) error
	DeletePeriod(ctx context.Context, id string) error

	CreateAppraisal(ctx context.Context, a Appraisal) error
	LoadAppraisal(ctx context.Context, id string) (Appraisal, error)
	ListAppraisals(ctx context.Context, filter AppraisalFilter) ([]Appraisal, error)
	// SaveAppraisal writes status, content and timestamps only if the stored
	// status still equals expected, otherwise ErrConflict.
	SaveAppraisal(ctx context.Context, a Appraisal, expected Status) error
	// CompleteAppraisal applies the terminal write and the ledger insert in
	// one transaction. It reports whether the ledger entry was new.
	CompleteAppraisal(ctx context.Context, a Appraisal, expected Status, entry LedgerEntry) (bool, error)
	SaveAttachment(ctx context.Context, id string, attachment *Attachment, updatedAt time.Time) error
	DeleteAppraisal(ctx context.Context, id string) error
	ListCompletedWithoutLedger(ctx context.Context) ([]Appraisal, error)

	RecordEvent(ctx context.Context, event Event) error
	ListEvents(ctx context.Context, appraisalID string) ([]Event, error)

	FindLedgerEntry(ctx context.Context, staffID, periodID string) (LedgerEntry, bool, error)
	FindLedgerEntryByAppraisal(ctx context.Context, appraisalID string) (LedgerEntry, bool, error)
	// InsertLedgerEntry returns ErrDuplicate when the appraisal or the
	// (staff, period) pair already has an entry.
	InsertLedgerEntry(ctx context.Context, entry LedgerEntry) error
	UpdateLedgerEntry(ctx context.Context, entry LedgerEntry) error
	ListLedger(ctx context.Context, periodIDs []string) ([]LedgerEntry, error)
}
