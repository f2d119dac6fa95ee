// Package disputes freezes contested milestones and settles them on admin resolution.
package disputes

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/gigledger-backend/internal/audit"
	"github.com/angelmondragon/gigledger-backend/internal/contracts"
	"github.com/angelmondragon/gigledger-backend/internal/ledger"
	"github.com/angelmondragon/gigledger-backend/internal/milestones"
	"github.com/angelmondragon/gigledger-backend/internal/reviews"
	"github.com/angelmondragon/gigledger-backend/internal/uow"
	"github.com/angelmondragon/gigledger-backend/pkg/auth"
	"github.com/angelmondragon/gigledger-backend/pkg/db"
	"github.com/angelmondragon/gigledger-backend/pkg/db/models"
	"github.com/angelmondragon/gigledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/gigledger-backend/pkg/errors"
	"github.com/angelmondragon/gigledger-backend/pkg/outbox"
	"github.com/angelmondragon/gigledger-backend/pkg/outbox/payloads"
)

type Service interface {
	Open(ctx context.Context, input OpenInput) (*models.Dispute, error)
	Resolve(ctx context.Context, input ResolveInput) (*ResolveResult, error)
	Get(ctx context.Context, disputeID uuid.UUID, actor auth.Actor) (*models.Dispute, error)
	ListByContract(ctx context.Context, contractID uuid.UUID, actor auth.Actor) ([]models.Dispute, error)
}

type service struct {
	runner     uow.Runner
	repo       Repository
	contracts  contracts.Repository
	milestones milestones.Repository
	ledger     ledger.Service
	payouts    reviews.Service
	audit      audit.Service
}

func NewService(
	runner uow.Runner,
	repo Repository,
	contractsRepo contracts.Repository,
	milestonesRepo milestones.Repository,
	ledgerSvc ledger.Service,
	payouts reviews.Service,
	auditSvc audit.Service,
) (Service, error) {
	if runner == nil {
		return nil, fmt.Errorf("unit of work runner required")
	}
	if repo == nil || contractsRepo == nil || milestonesRepo == nil {
		return nil, fmt.Errorf("dispute, contract and milestone repositories required")
	}
	if ledgerSvc == nil || payouts == nil {
		return nil, fmt.Errorf("ledger and review services required")
	}
	if auditSvc == nil {
		return nil, fmt.Errorf("audit service required")
	}
	return &service{
		runner:     runner,
		repo:       repo,
		contracts:  contractsRepo,
		milestones: milestonesRepo,
		ledger:     ledgerSvc,
		payouts:    payouts,
		audit:      auditSvc,
	}, nil
}

func (s *service) Open(ctx context.Context, input OpenInput) (*models.Dispute, error) {
	reason := strings.TrimSpace(input.Reason)
	if reason == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "dispute reason is required")
	}

	var opened *models.Dispute
	err := s.runner.Do(ctx, "dispute.open", func(tx *gorm.DB) error {
		contract, err := s.contracts.WithTx(tx).LockByID(ctx, input.ContractID)
		if err != nil {
			return db.Classify(err, "contract not found")
		}
		if !contract.IsClient(input.Actor.UserID) && !contract.IsDeveloper(input.Actor.UserID) {
			if err := input.Actor.Validate(); err != nil {
				return err
			}
			return pkgerrors.New(pkgerrors.CodeForbidden, "only the client or the developer can open a dispute")
		}
		if contract.Status.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "contract is closed").
				WithDetails(map[string]any{"status": contract.Status})
		}

		repo := s.repo.WithTx(tx)
		existing, err := repo.FindOpen(ctx, contract.ID, input.MilestoneID)
		switch {
		case err == nil:
			return pkgerrors.New(pkgerrors.CodeDuplicateDispute, "an open dispute already exists").
				WithDetails(map[string]any{"dispute_id": existing.ID.String()})
		case !db.IsNotFound(err):
			return db.Classify(err, "check open disputes")
		}

		dispute := &models.Dispute{
			ContractID: contract.ID,
			OpenedBy:   input.Actor.UserID,
			Reason:     reason,
			Status:     enums.DisputeStatusOpen,
		}
		var events []outbox.DomainEvent
		var milestone *models.Milestone
		if input.MilestoneID != nil {
			milestone, err = s.milestones.WithTx(tx).LockByID(ctx, *input.MilestoneID)
			if err != nil {
				return db.Classify(err, "milestone not found")
			}
			if milestone.ContractID != contract.ID {
				return pkgerrors.New(pkgerrors.CodeNotFound, "milestone does not belong to this contract")
			}
			if milestone.Status != enums.MilestoneStatusSubmitted && milestone.Status != enums.MilestoneStatusApproved {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "only submitted or approved milestones can be disputed").
					WithDetails(map[string]any{"status": milestone.Status})
			}
			prior := milestone.Status
			if err := s.milestones.WithTx(tx).TransitionStatus(ctx, milestone, enums.MilestoneStatusDisputed, nil); err != nil {
				return db.Classify(err, "freeze milestone")
			}
			dispute.MilestoneID = &milestone.ID
			dispute.MilestonePriorStatus = &prior
			events = append(events, milestones.StateChangedEvent(milestone, prior))
		}

		if err := repo.Create(ctx, dispute); err != nil {
			return db.Classify(err, "create dispute")
		}
		events = append([]outbox.DomainEvent{{
			EventType:     enums.EventDisputeOpened,
			AggregateType: enums.AggregateDispute,
			AggregateID:   dispute.ID,
			Data: payloads.DisputeOpenedEvent{
				DisputeID:   dispute.ID,
				ContractID:  contract.ID,
				MilestoneID: dispute.MilestoneID,
				OpenedBy:    input.Actor.UserID,
				Reason:      reason,
			},
		}}, events...)

		if err := s.audit.Record(ctx, tx, audit.Entry{
			Actor:       input.Actor,
			Action:      enums.ActivityDisputeOpened,
			ContractID:  &contract.ID,
			MilestoneID: dispute.MilestoneID,
			TargetType:  enums.AdminTargetDispute,
			TargetID:    dispute.ID,
			Payload:     map[string]any{"dispute_id": dispute.ID.String(), "reason": reason},
			Events:      events,
		}); err != nil {
			return err
		}
		opened = dispute
		return nil
	})
	if err != nil {
		return nil, err
	}
	return opened, nil
}

func (s *service) Resolve(ctx context.Context, input ResolveInput) (*ResolveResult, error) {
	if err := input.Actor.RequireAdmin(); err != nil {
		return nil, err
	}
	if !input.Outcome.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unknown dispute outcome").
			WithDetails(map[string]any{"outcome": input.Outcome})
	}

	var result *ResolveResult
	err := s.runner.Do(ctx, "dispute.resolve", func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		peek, err := repo.FindByID(ctx, input.DisputeID)
		if err != nil {
			return db.Classify(err, "dispute not found")
		}
		contract, err := s.contracts.WithTx(tx).LockByID(ctx, peek.ContractID)
		if err != nil {
			return db.Classify(err, "contract not found")
		}
		dispute, err := repo.LockByID(ctx, input.DisputeID)
		if err != nil {
			return db.Classify(err, "dispute not found")
		}
		if dispute.Status != enums.DisputeStatusOpen {
			return pkgerrors.New(pkgerrors.CodeAlreadyResolved, "dispute is already resolved").
				WithDetails(map[string]any{"dispute_id": dispute.ID.String(), "outcome": dispute.Outcome})
		}

		var milestone *models.Milestone
		if dispute.MilestoneID != nil {
			milestone, err = s.milestones.WithTx(tx).LockByID(ctx, *dispute.MilestoneID)
			if err != nil {
				return db.Classify(err, "milestone not found")
			}
		}

		base, err := s.baseAmount(ctx, tx, contract, milestone)
		if err != nil {
			return err
		}
		developerAmount, refundAmount, err := split(input, base, contract.Currency)
		if err != nil {
			return err
		}

		result = &ResolveResult{}
		var events []outbox.DomainEvent
		if developerAmount.IsPositive() {
			released, event, err := s.payouts.ReleaseInTx(ctx, tx, reviews.PayoutInput{
				Contract:  contract,
				Milestone: milestone,
				Amount:    developerAmount,
				CoinType:  enums.CoinTransactionDisputePayout,
				Override:  true,
			})
			if err != nil {
				return err
			}
			result.Release = &released.Posting
			events = append(events, event)
		}
		if refundAmount.IsPositive() {
			refunded, err := s.ledger.Refund(ctx, tx, ledger.RefundInput{
				ContractID:  contract.ID,
				MilestoneID: dispute.MilestoneID,
				Amount:      refundAmount,
				ClientID:    contract.ClientID,
			})
			if err != nil {
				return err
			}
			result.Refund = refunded
			events = append(events, outbox.DomainEvent{
				EventType:     enums.EventEscrowRefunded,
				AggregateType: enums.AggregateContract,
				AggregateID:   contract.ID,
				Data: payloads.EscrowRefundedEvent{
					ContractID:  contract.ID,
					MilestoneID: dispute.MilestoneID,
					ClientID:    contract.ClientID,
					Currency:    contract.Currency,
					Amount:      refundAmount,
				},
			})
		}
		if milestone != nil {
			event, err := s.settleMilestone(ctx, tx, milestone, dispute, developerAmount, refundAmount)
			if err != nil {
				return err
			}
			if event != nil {
				events = append(events, *event)
			}
		}

		now := time.Now().UTC()
		outcome := input.Outcome
		resolver := input.Actor.UserID
		notes := strings.TrimSpace(input.Notes)
		dispute.Outcome = &outcome
		dispute.DeveloperAmount = decimal.NewNullDecimal(developerAmount)
		dispute.RefundAmount = decimal.NewNullDecimal(refundAmount)
		dispute.ResolvedBy = &resolver
		dispute.ResolvedAt = &now
		if notes != "" {
			dispute.ResolutionNotes = &notes
		}
		if err := repo.MarkResolved(ctx, dispute); err != nil {
			return db.Classify(err, "resolve dispute")
		}
		events = append([]outbox.DomainEvent{{
			EventType:     enums.EventDisputeResolved,
			AggregateType: enums.AggregateDispute,
			AggregateID:   dispute.ID,
			Data: payloads.DisputeResolvedEvent{
				DisputeID:       dispute.ID,
				ContractID:      contract.ID,
				MilestoneID:     dispute.MilestoneID,
				Outcome:         outcome,
				DeveloperAmount: developerAmount,
				RefundAmount:    refundAmount,
				ResolvedBy:      resolver,
			},
		}}, events...)

		reason := notes
		if reason == "" {
			reason = "dispute resolved as " + string(outcome)
		}
		if err := s.audit.Record(ctx, tx, audit.Entry{
			Actor:       input.Actor,
			Action:      enums.ActivityDisputeResolved,
			ContractID:  &contract.ID,
			MilestoneID: dispute.MilestoneID,
			TargetType:  enums.AdminTargetDispute,
			TargetID:    dispute.ID,
			Payload: map[string]any{
				"outcome":          outcome,
				"base_amount":      base.String(),
				"developer_amount": developerAmount.String(),
				"refund_amount":    refundAmount.String(),
			},
			Override: &audit.Override{Reason: reason},
			Events:   events,
		}); err != nil {
			return err
		}
		result.Dispute = *dispute
		result.Milestone = milestone
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// baseAmount is what a resolution divides: the milestone amount, or whatever
// escrow is still available for contract-level disputes.
func (s *service) baseAmount(ctx context.Context, tx *gorm.DB, contract *models.Contract, milestone *models.Milestone) (decimal.Decimal, error) {
	if milestone != nil {
		return milestone.Amount, nil
	}
	account, err := s.ledger.Account(ctx, tx, contract.ID)
	if err != nil {
		return decimal.Zero, err
	}
	return ledger.Available(*account)
}

func split(input ResolveInput, base decimal.Decimal, currency enums.Currency) (decimal.Decimal, decimal.Decimal, error) {
	switch input.Outcome {
	case enums.DisputeOutcomeReleaseToDeveloper:
		return base, decimal.Zero, nil
	case enums.DisputeOutcomeRefundToClient:
		return decimal.Zero, base, nil
	case enums.DisputeOutcomeSplit:
		dev := input.DeveloperAmount
		if dev.IsNegative() || dev.GreaterThan(base) {
			return decimal.Zero, decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "developer amount must lie between zero and the disputed amount").
				WithDetails(map[string]any{"developer_amount": dev.String(), "base_amount": base.String()})
		}
		if dev.IsPositive() {
			if err := ledger.ValidateAmount(dev, currency); err != nil {
				return decimal.Zero, decimal.Zero, err
			}
		}
		return dev, base.Sub(dev), nil
	default:
		return decimal.Zero, decimal.Zero, nil
	}
}

// settleMilestone moves a disputed milestone to where the resolution leaves it.
// Payouts already marked it RELEASED inside ReleaseInTx.
func (s *service) settleMilestone(ctx context.Context, tx *gorm.DB, milestone *models.Milestone, dispute *models.Dispute, developerAmount, refundAmount decimal.Decimal) (*outbox.DomainEvent, error) {
	from := milestone.Status
	var to enums.MilestoneStatus
	switch {
	case developerAmount.IsPositive():
		return nil, nil
	case refundAmount.IsPositive():
		to = enums.MilestoneStatusRefunded
	case dispute.MilestonePriorStatus != nil:
		to = *dispute.MilestonePriorStatus
	default:
		to = enums.MilestoneStatusSubmitted
	}
	if err := s.milestones.WithTx(tx).TransitionStatus(ctx, milestone, to, nil); err != nil {
		return nil, db.Classify(err, "settle disputed milestone")
	}
	event := milestones.StateChangedEvent(milestone, from)
	return &event, nil
}

func (s *service) Get(ctx context.Context, disputeID uuid.UUID, actor auth.Actor) (*models.Dispute, error) {
	dispute, err := s.repo.FindByID(ctx, disputeID)
	if err != nil {
		return nil, db.Classify(err, "dispute not found")
	}
	contract, err := s.contracts.FindByID(ctx, dispute.ContractID)
	if err != nil {
		return nil, db.Classify(err, "contract not found")
	}
	if err := contracts.Authorize(contract, actor, contracts.AccessParty); err != nil {
		return nil, err
	}
	return dispute, nil
}

func (s *service) ListByContract(ctx context.Context, contractID uuid.UUID, actor auth.Actor) ([]models.Dispute, error) {
	contract, err := s.contracts.FindByID(ctx, contractID)
	if err != nil {
		return nil, db.Classify(err, "contract not found")
	}
	if err := contracts.Authorize(contract, actor, contracts.AccessParty); err != nil {
		return nil, err
	}
	rows, err := s.repo.ListByContract(ctx, contractID)
	if err != nil {
		return nil, db.Classify(err, "list disputes")
	}
	return rows, nil
}
