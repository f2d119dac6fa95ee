package cron

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/gigledger-backend/internal/admin"
	"github.com/angelmondragon/gigledger-backend/pkg/auth"
	"github.com/angelmondragon/gigledger-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/gigledger-backend/pkg/errors"
	"github.com/angelmondragon/gigledger-backend/pkg/logger"
)

const defaultReconcileBatch = 100

type openContractLister interface {
	ListNonTerminal(ctx context.Context, afterID uuid.UUID, limit int) ([]models.Contract, error)
}

type reconciler interface {
	Reconcile(ctx context.Context, contractID uuid.UUID, actor auth.Actor) (*admin.Report, error)
}

type EscrowReconciliationJobParams struct {
	Logger     *logger.Logger
	Contracts  openContractLister
	Reconciler reconciler
	BatchSize  int
}

func NewEscrowReconciliationJob(params EscrowReconciliationJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Contracts == nil {
		return nil, fmt.Errorf("contract repository required")
	}
	if params.Reconciler == nil {
		return nil, fmt.Errorf("reconciler required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultReconcileBatch
	}
	return &escrowReconciliationJob{
		logg:       params.Logger,
		contracts:  params.Contracts,
		reconciler: params.Reconciler,
		batch:      batch,
	}, nil
}

type escrowReconciliationJob struct {
	logg       *logger.Logger
	contracts  openContractLister
	reconciler reconciler
	batch      int
}

func (j *escrowReconciliationJob) Name() string { return "escrow-reconciliation" }

// Run walks every open contract and reconciles it. A failing contract does not
// stop the walk; all failures come back together.
func (j *escrowReconciliationJob) Run(ctx context.Context) error {
	var (
		errs    error
		checked int
		drifted int
		after   = uuid.Nil
	)
	for {
		page, err := j.contracts.ListNonTerminal(ctx, after, j.batch)
		if err != nil {
			return multierr.Append(errs, fmt.Errorf("list open contracts: %w", err))
		}
		for _, contract := range page {
			checked++
			if err := j.check(ctx, contract.ID); err != nil {
				drifted++
				errs = multierr.Append(errs, err)
			}
		}
		if len(page) < j.batch {
			break
		}
		after = page[len(page)-1].ID
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"contracts_checked": checked,
		"contracts_failed":  drifted,
	}), "escrow reconciliation finished")
	return errs
}

func (j *escrowReconciliationJob) check(ctx context.Context, contractID uuid.UUID) error {
	ctx = j.logg.WithContractID(ctx, contractID.String())
	report, err := j.reconciler.Reconcile(ctx, contractID, auth.SystemActor)
	if err != nil {
		return fmt.Errorf("reconcile contract %s: %w", contractID, err)
	}
	if report.Consistent() {
		return nil
	}
	violation := pkgerrors.New(pkgerrors.CodeInvariantViolation, "escrow ledger out of balance").
		WithDetails(report.Discrepancies)
	for _, item := range report.Discrepancies {
		j.logg.Critical(j.logg.WithFields(ctx, map[string]any{
			"check":    item.Check,
			"expected": item.Expected,
			"actual":   item.Actual,
		}), item.Message, violation)
	}
	return fmt.Errorf("contract %s: %w", contractID, violation)
}
