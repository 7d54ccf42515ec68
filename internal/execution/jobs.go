// Package execution holds the River workers that run in-process alongside
// the API.
package execution

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/riverqueue/river"

	"github.com/sketchcode/backend/internal/ledger"
	"github.com/sketchcode/backend/internal/repository"
)

const (
	ExpireProInterval   = time.Hour
	AuditLedgerInterval = 24 * time.Hour
)

type ExpireProPlansArgs struct{}

func (ExpireProPlansArgs) Kind() string { return "expire_pro_plans" }

type AuditLedgerArgs struct{}

func (AuditLedgerArgs) Kind() string { return "audit_ledger" }

// ExpiredProLister finds PRO accounts whose window ended before cutoff.
type ExpiredProLister interface {
	ListExpiredPro(ctx context.Context, cutoff time.Time) ([]uuid.UUID, error)
}

// PlanExpirer downgrades one account, re-checking under its row lock.
type PlanExpirer interface {
	ExpirePro(ctx context.Context, accountID uuid.UUID, now time.Time) (bool, error)
}

type ExpireProPlansWorker struct {
	river.WorkerDefaults[ExpireProPlansArgs]
	accounts ExpiredProLister
	ledger   PlanExpirer
	log      *slog.Logger
	now      func() time.Time
}

func NewExpireProPlansWorker(accounts ExpiredProLister, l PlanExpirer, log *slog.Logger) *ExpireProPlansWorker {
	if log == nil {
		log = slog.Default()
	}
	return &ExpireProPlansWorker{accounts: accounts, ledger: l, log: log, now: time.Now}
}

// Work downgrades every PRO account lapsed past the renewal grace. One
// failing account does not stop the rest; the job errors so River retries
// the stragglers.
func (w *ExpireProPlansWorker) Work(ctx context.Context, job *river.Job[ExpireProPlansArgs]) error {
	now := w.now().UTC()
	ids, err := w.accounts.ListExpiredPro(ctx, now.Add(-ledger.ProExpiryGrace))
	if err != nil {
		return fmt.Errorf("list expired pro accounts: %w", err)
	}
	expired, failed := 0, 0
	for _, id := range ids {
		changed, err := w.ledger.ExpirePro(ctx, id, now)
		if err != nil {
			failed++
			w.log.Error("expire pro plan failed", "account_id", id, "error", err)
			continue
		}
		if changed {
			expired++
		}
	}
	w.log.Info("pro plans expired", "candidates", len(ids), "expired", expired, "failed", failed)
	if failed > 0 {
		return fmt.Errorf("%d of %d pro plans failed to expire", failed, len(ids))
	}
	return nil
}

// DriftLister reports accounts whose balance disagrees with their ledger.
type DriftLister interface {
	ListDrift(ctx context.Context) ([]repository.BalanceDrift, error)
}

type AuditLedgerWorker struct {
	river.WorkerDefaults[AuditLedgerArgs]
	credits DriftLister
	log     *slog.Logger
}

func NewAuditLedgerWorker(credits DriftLister, log *slog.Logger) *AuditLedgerWorker {
	if log == nil {
		log = slog.Default()
	}
	return &AuditLedgerWorker{credits: credits, log: log}
}

// Work only reports. Balances are never rewritten from the log automatically.
func (w *AuditLedgerWorker) Work(ctx context.Context, job *river.Job[AuditLedgerArgs]) error {
	drift, err := w.credits.ListDrift(ctx)
	if err != nil {
		return fmt.Errorf("audit ledger: %w", err)
	}
	for _, d := range drift {
		w.log.Warn("ledger drift", "account_id", d.AccountID, "credits", d.Credits, "ledger_sum", d.LedgerSum)
	}
	w.log.Info("ledger audit finished", "drifting_accounts", len(drift))
	return nil
}

// Register adds both workers to workers.
func Register(workers *river.Workers, expire *ExpireProPlansWorker, audit *AuditLedgerWorker) {
	river.AddWorker(workers, expire)
	river.AddWorker(workers, audit)
}

// PeriodicJobs schedules the maintenance jobs. Expiry also runs at start so
// a restart does not delay downgrades by an interval.
func PeriodicJobs() []*river.PeriodicJob {
	return []*river.PeriodicJob{
		river.NewPeriodicJob(
			river.PeriodicInterval(ExpireProInterval),
			func() (river.JobArgs, *river.InsertOpts) {
				return ExpireProPlansArgs{}, &river.InsertOpts{UniqueOpts: river.UniqueOpts{ByPeriod: ExpireProInterval}}
			},
			&river.PeriodicJobOpts{RunOnStart: true},
		),
		river.NewPeriodicJob(
			river.PeriodicInterval(AuditLedgerInterval),
			func() (river.JobArgs, *river.InsertOpts) {
				return AuditLedgerArgs{}, &river.InsertOpts{UniqueOpts: river.UniqueOpts{ByPeriod: AuditLedgerInterval}}
			},
			nil,
		),
	}
}
