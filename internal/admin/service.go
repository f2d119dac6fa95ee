// Package admin exposes the privileged operations that bypass the ordinary
// party rules, and the escrow reconciliation report.
package admin

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/gigledger-backend/internal/audit"
	"github.com/angelmondragon/gigledger-backend/internal/contracts"
	"github.com/angelmondragon/gigledger-backend/internal/ledger"
	"github.com/angelmondragon/gigledger-backend/internal/milestones"
	"github.com/angelmondragon/gigledger-backend/internal/reviews"
	"github.com/angelmondragon/gigledger-backend/pkg/auth"
	"github.com/angelmondragon/gigledger-backend/pkg/db"
	"github.com/angelmondragon/gigledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/gigledger-backend/pkg/errors"
	"github.com/angelmondragon/gigledger-backend/pkg/pagination"
)

type Service interface {
	AcceptFunds(ctx context.Context, input AcceptFundsInput) (*contracts.FundResult, error)
	ReleaseFunds(ctx context.Context, input ReleaseFundsInput) (*reviews.ReleaseResult, error)
	Pause(ctx context.Context, input OverrideInput) (*contracts.Snapshot, error)
	Resume(ctx context.Context, input OverrideInput) (*contracts.Snapshot, error)
	Cancel(ctx context.Context, input OverrideInput) (*contracts.CloseResult, error)
	Reconcile(ctx context.Context, contractID uuid.UUID, actor auth.Actor) (*Report, error)
	AuditTrail(ctx context.Context, contractID uuid.UUID, actor auth.Actor, params pagination.Params) (*AuditTrail, error)
}

// ServiceParams wires the admin controller over the lifecycle and payout services.
type ServiceParams struct {
	Contracts      contracts.Service
	Reviews        reviews.Service
	Audit          audit.Service
	ContractsRepo  contracts.Repository
	MilestonesRepo milestones.Repository
	LedgerRepo     ledger.Repository
}

type service struct {
	contracts      contracts.Service
	reviews        reviews.Service
	audit          audit.Service
	contractsRepo  contracts.Repository
	milestonesRepo milestones.Repository
	ledgerRepo     ledger.Repository
	now            func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Contracts == nil || params.Reviews == nil {
		return nil, fmt.Errorf("contract and review services required")
	}
	if params.Audit == nil {
		return nil, fmt.Errorf("audit service required")
	}
	if params.ContractsRepo == nil || params.MilestonesRepo == nil || params.LedgerRepo == nil {
		return nil, fmt.Errorf("contract, milestone and ledger repositories required")
	}
	return &service{
		contracts:      params.Contracts,
		reviews:        params.Reviews,
		audit:          params.Audit,
		contractsRepo:  params.ContractsRepo,
		milestonesRepo: params.MilestonesRepo,
		ledgerRepo:     params.LedgerRepo,
		now:            func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) AcceptFunds(ctx context.Context, input AcceptFundsInput) (*contracts.FundResult, error) {
	if err := input.Actor.RequireAdmin(); err != nil {
		return nil, err
	}
	reference := strings.TrimSpace(input.PaymentReference)
	if reference == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment reference is required")
	}
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		reason = "funds accepted under reference " + reference
	}
	return s.contracts.Fund(ctx, contracts.FundInput{
		ContractID: input.ContractID,
		Actor:      input.Actor,
		Amount:     input.Amount,
		Reference:  reference,
		Source:     input.Source,
		Override:   &audit.Override{Reason: reason},
	})
}

func (s *service) ReleaseFunds(ctx context.Context, input ReleaseFundsInput) (*reviews.ReleaseResult, error) {
	override, err := s.override(input.Actor, input.Reason)
	if err != nil {
		return nil, err
	}
	return s.reviews.Release(ctx, reviews.ReleaseInput{
		ContractID:  input.ContractID,
		MilestoneID: input.MilestoneID,
		Actor:       input.Actor,
		Amount:      input.Amount,
		Reason:      override.Reason,
		Override:    override,
	})
}

func (s *service) Pause(ctx context.Context, input OverrideInput) (*contracts.Snapshot, error) {
	transition, err := s.transition(input)
	if err != nil {
		return nil, err
	}
	return s.contracts.Pause(ctx, transition)
}

func (s *service) Resume(ctx context.Context, input OverrideInput) (*contracts.Snapshot, error) {
	transition, err := s.transition(input)
	if err != nil {
		return nil, err
	}
	return s.contracts.Resume(ctx, transition)
}

func (s *service) Cancel(ctx context.Context, input OverrideInput) (*contracts.CloseResult, error) {
	transition, err := s.transition(input)
	if err != nil {
		return nil, err
	}
	return s.contracts.Cancel(ctx, transition)
}

func (s *service) transition(input OverrideInput) (contracts.TransitionInput, error) {
	override, err := s.override(input.Actor, input.Reason)
	if err != nil {
		return contracts.TransitionInput{}, err
	}
	return contracts.TransitionInput{
		ContractID: input.ContractID,
		Actor:      input.Actor,
		Reason:     override.Reason,
		Override:   override,
	}, nil
}

func (s *service) override(actor auth.Actor, reason string) (*audit.Override, error) {
	override := &audit.Override{Reason: strings.TrimSpace(reason)}
	if err := audit.ValidateOverride(actor, override); err != nil {
		return nil, err
	}
	return override, nil
}

func (s *service) AuditTrail(ctx context.Context, contractID uuid.UUID, actor auth.Actor, params pagination.Params) (*AuditTrail, error) {
	if err := actor.RequireAdmin(); err != nil {
		return nil, err
	}
	if _, err := s.contractsRepo.FindByID(ctx, contractID); err != nil {
		return nil, db.Classify(err, "contract not found")
	}
	activity, err := s.audit.ContractActivity(ctx, contractID, params)
	if err != nil {
		return nil, err
	}
	actions, err := s.audit.AdminActions(ctx, audit.AdminActionFilter{ContractID: contractID}, pagination.Params{Limit: pagination.MaxLimit})
	if err != nil {
		return nil, err
	}
	return &AuditTrail{Activity: *activity, AdminActions: actions.Items}, nil
}

func requireOperator(actor auth.Actor) error {
	if actor.Role == enums.ActorRoleSystem {
		return actor.Validate()
	}
	return actor.RequireAdmin()
}

// sumDecimal folds amounts without intermediate rounding.
func sumDecimal(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}
