package jobs

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"appraisal/internal/domain/appraisal"
)

const (
	JobLedgerBackfill = "ledger_backfill"

	historySize = 20
)

// Run is the record of one job execution.
type Run struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	Status      string    `json:"status"`
	Details     any       `json:"details,omitempty"`
	Error       string    `json:"error,omitempty"`
	StartedAt   time.Time `json:"startedAt"`
	CompletedAt time.Time `json:"completedAt"`
}

// Backfiller is the part of the appraisal service the scheduler drives.
type Backfiller interface {
	BackfillLedger(ctx context.Context) (appraisal.BackfillSummary, error)
}

type Service struct {
	Ledger   Backfiller
	Interval time.Duration
	queue    chan job

	mu      sync.Mutex
	history []Run
}

type job struct {
	Type string
	Run  func(context.Context) (any, error)
}

func New(ledger Backfiller, interval time.Duration) *Service {
	return &Service{
		Ledger:   ledger,
		Interval: interval,
		queue:    make(chan job, 16),
	}
}

func (s *Service) Start(ctx context.Context) {
	go s.worker(ctx)
	if s.Interval > 0 {
		go s.scheduleBackfill(ctx, s.Interval)
	}
}

func (s *Service) Enqueue(jobType string, run func(context.Context) (any, error)) {
	select {
	case s.queue <- job{Type: jobType, Run: run}:
	default:
		slog.Warn("job queue full", "jobType", jobType)
	}
}

func (s *Service) RunNow(ctx context.Context, jobType string, run func(context.Context) (any, error)) (any, error) {
	return s.runJob(ctx, job{Type: jobType, Run: run})
}

// BackfillNow runs the ledger backfill synchronously and records the run.
func (s *Service) BackfillNow(ctx context.Context) (appraisal.BackfillSummary, error) {
	details, err := s.RunNow(ctx, JobLedgerBackfill, s.backfill)
	summary, _ := details.(appraisal.BackfillSummary)
	return summary, err
}

// History returns the most recent runs, newest first.
func (s *Service) History() []Run {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Run, len(s.history))
	for i, run := range s.history {
		out[len(s.history)-1-i] = run
	}
	return out
}

func (s *Service) backfill(ctx context.Context) (any, error) {
	return s.Ledger.BackfillLedger(ctx)
}

func (s *Service) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.queue:
			if _, err := s.runJob(ctx, j); err != nil {
				slog.Warn("job run failed", "jobType", j.Type, "err", err)
			}
		}
	}
}

func (s *Service) runJob(ctx context.Context, j job) (any, error) {
	run := Run{ID: uuid.NewString(), Type: j.Type, Status: "running", StartedAt: time.Now().UTC()}
	details, err := j.Run(ctx)
	run.Status = "completed"
	if err != nil {
		run.Status = "failed"
		run.Error = err.Error()
	}
	run.Details = details
	run.CompletedAt = time.Now().UTC()
	s.record(run)
	slog.Info("job run finished", "jobType", j.Type, "runId", run.ID, "status", run.Status)
	return details, err
}

func (s *Service) record(run Run) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = append(s.history, run)
	if len(s.history) > historySize {
		s.history = s.history[len(s.history)-historySize:]
	}
}

func (s *Service) scheduleBackfill(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Enqueue(JobLedgerBackfill, s.backfill)
		}
	}
}
