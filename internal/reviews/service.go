// Package reviews applies client verdicts and pays approved milestones out of escrow.
package reviews

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/gigledger-backend/internal/audit"
	"github.com/angelmondragon/gigledger-backend/internal/contracts"
	"github.com/angelmondragon/gigledger-backend/internal/ledger"
	"github.com/angelmondragon/gigledger-backend/internal/milestones"
	"github.com/angelmondragon/gigledger-backend/internal/uow"
	"github.com/angelmondragon/gigledger-backend/pkg/db"
	"github.com/angelmondragon/gigledger-backend/pkg/db/models"
	"github.com/angelmondragon/gigledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/gigledger-backend/pkg/errors"
	"github.com/angelmondragon/gigledger-backend/pkg/outbox"
	"github.com/angelmondragon/gigledger-backend/pkg/outbox/payloads"
)

type Service interface {
	Review(ctx context.Context, input ReviewInput) (*ReviewResult, error)
	Release(ctx context.Context, input ReleaseInput) (*ReleaseResult, error)
	// ReleaseInTx posts a payout inside the caller's transaction and returns
	// the milestone_released event for the caller to queue.
	ReleaseInTx(ctx context.Context, tx *gorm.DB, input PayoutInput) (*ReleaseResult, outbox.DomainEvent, error)
}

type service struct {
	runner     uow.Runner
	contracts  contracts.Repository
	milestones milestones.Repository
	ledger     ledger.Service
	audit      audit.Service
}

func NewService(runner uow.Runner, contractsRepo contracts.Repository, milestonesRepo milestones.Repository, ledgerSvc ledger.Service, auditSvc audit.Service) (Service, error) {
	if runner == nil {
		return nil, fmt.Errorf("unit of work runner required")
	}
	if contractsRepo == nil || milestonesRepo == nil {
		return nil, fmt.Errorf("contract and milestone repositories required")
	}
	if ledgerSvc == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if auditSvc == nil {
		return nil, fmt.Errorf("audit service required")
	}
	return &service{
		runner:     runner,
		contracts:  contractsRepo,
		milestones: milestonesRepo,
		ledger:     ledgerSvc,
		audit:      auditSvc,
	}, nil
}

func (s *service) Review(ctx context.Context, input ReviewInput) (*ReviewResult, error) {
	if !input.Decision.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "decision must be APPROVE or REJECT")
	}

	var result *ReviewResult
	err := s.runner.Do(ctx, "milestone.review", func(tx *gorm.DB) error {
		contract, milestone, err := milestones.LockForUpdate(ctx, tx, s.contracts, s.milestones, input.MilestoneID)
		if err != nil {
			return err
		}
		if err := contracts.Authorize(contract, input.Actor, contracts.AccessClient); err != nil {
			return err
		}
		if contract.Status.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "contract is closed")
		}
		if milestone.Status != enums.MilestoneStatusSubmitted {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "only submitted milestones can be reviewed").
				WithDetails(map[string]any{"milestone_id": milestone.ID.String(), "status": milestone.Status})
		}

		repo := s.milestones.WithTx(tx)
		review := &models.MilestoneReview{
			MilestoneID: milestone.ID,
			ReviewerID:  input.Actor.UserID,
			Decision:    input.Decision,
			ReasonCode:  optional(input.ReasonCode),
			Comments:    optional(input.Comments),
		}
		latest, err := repo.LatestSubmission(ctx, milestone.ID)
		switch {
		case err == nil:
			review.SubmissionID = &latest.ID
		case !db.IsNotFound(err):
			return db.Classify(err, "load latest submission")
		}
		if err := repo.CreateReview(ctx, review); err != nil {
			return db.Classify(err, "store review")
		}

		// a rejection sends the work back to the developer for another submission
		to := enums.MilestoneStatusInProgress
		if input.Decision == enums.ReviewDecisionApprove {
			to = enums.MilestoneStatusApproved
		}
		from := milestone.Status
		if err := repo.TransitionStatus(ctx, milestone, to, nil); err != nil {
			return db.Classify(err, "apply review")
		}

		if err := s.audit.Record(ctx, tx, audit.Entry{
			Actor:       input.Actor,
			Action:      enums.ActivityMilestoneReviewed,
			ContractID:  &contract.ID,
			MilestoneID: &milestone.ID,
			TargetType:  enums.AdminTargetMilestone,
			TargetID:    milestone.ID,
			Payload: map[string]any{
				"decision":    input.Decision,
				"reason_code": strings.TrimSpace(input.ReasonCode),
				"from":        from,
				"to":          to,
			},
			Events: []outbox.DomainEvent{{
				EventType:     enums.EventMilestoneReviewed,
				AggregateType: enums.AggregateMilestone,
				AggregateID:   milestone.ID,
				Data: payloads.MilestoneReviewedEvent{
					MilestoneID: milestone.ID,
					ContractID:  contract.ID,
					ReviewID:    review.ID,
					ReviewerID:  input.Actor.UserID,
					Decision:    input.Decision,
				},
			}},
		}); err != nil {
			return err
		}
		result = &ReviewResult{Milestone: *milestone, Review: *review}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) Release(ctx context.Context, input ReleaseInput) (*ReleaseResult, error) {
	if input.Amount.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must not be negative")
	}

	var result *ReleaseResult
	err := s.runner.Do(ctx, "milestone.release", func(tx *gorm.DB) error {
		contract, milestone, err := milestones.LockForUpdate(ctx, tx, s.contracts, s.milestones, input.MilestoneID)
		if err != nil {
			return err
		}
		if input.ContractID != uuid.Nil && milestone.ContractID != input.ContractID {
			return pkgerrors.New(pkgerrors.CodeNotFound, "milestone does not belong to this contract")
		}
		if err := checkRelease(contract, milestone, input); err != nil {
			return err
		}

		amount := input.Amount
		if amount.IsZero() {
			amount = milestone.Amount
		}
		// Escrow shortfall wins over the milestone cap.
		account, err := s.ledger.Account(ctx, tx, contract.ID)
		if err != nil {
			return err
		}
		if _, err := ledger.ApplyRelease(*account, amount); err != nil {
			return err
		}
		if amount.GreaterThan(milestone.Amount) {
			return pkgerrors.New(pkgerrors.CodeValidation, "release exceeds the milestone amount").
				WithDetails(map[string]any{"amount": amount.String(), "milestone_amount": milestone.Amount.String()})
		}

		from := milestone.Status
		released, event, err := s.ReleaseInTx(ctx, tx, PayoutInput{
			Contract:  contract,
			Milestone: milestone,
			Amount:    amount,
			CoinType:  enums.CoinTransactionMilestonePayout,
			Override:  input.Override != nil,
		})
		if err != nil {
			return err
		}

		payload := map[string]any{
			"amount":     released.Posting.Split.Gross.String(),
			"fee":        released.Posting.Split.Fee.String(),
			"net":        released.Posting.Split.Net.String(),
			"percentage": released.Posting.Split.Percentage.String(),
			"from":       from,
		}
		if reason := strings.TrimSpace(input.Reason); reason != "" {
			payload["reason"] = reason
		}
		if err := s.audit.Record(ctx, tx, audit.Entry{
			Actor:       input.Actor,
			Action:      enums.ActivityMilestoneReleased,
			ContractID:  &contract.ID,
			MilestoneID: &milestone.ID,
			TargetType:  enums.AdminTargetMilestone,
			TargetID:    milestone.ID,
			Payload:     payload,
			Override:    input.Override,
			Events:      []outbox.DomainEvent{event},
		}); err != nil {
			return err
		}
		result = released
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func checkRelease(contract *models.Contract, milestone *models.Milestone, input ReleaseInput) error {
	if input.Override != nil {
		if err := audit.ValidateOverride(input.Actor, input.Override); err != nil {
			return err
		}
		if contract.Status != enums.ContractStatusActiveFunded && contract.Status != enums.ContractStatusPaused {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "contract must be funded or paused").
				WithDetails(map[string]any{"status": contract.Status})
		}
		switch milestone.Status {
		case enums.MilestoneStatusReleased, enums.MilestoneStatusRefunded, enums.MilestoneStatusDisputed:
			return pkgerrors.New(pkgerrors.CodeStateConflict, "milestone cannot be force-released").
				WithDetails(map[string]any{"status": milestone.Status})
		}
		return nil
	}

	if err := contracts.Authorize(contract, input.Actor, contracts.AccessClient); err != nil {
		return err
	}
	if contract.Status != enums.ContractStatusActiveFunded {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "contract must be funded and active").
			WithDetails(map[string]any{"status": contract.Status})
	}
	if milestone.Status != enums.MilestoneStatusApproved {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "only approved milestones can be released").
			WithDetails(map[string]any{"status": milestone.Status})
	}
	return nil
}

func (s *service) ReleaseInTx(ctx context.Context, tx *gorm.DB, input PayoutInput) (*ReleaseResult, outbox.DomainEvent, error) {
	contract := input.Contract
	if contract.DeveloperID == nil {
		return nil, outbox.DomainEvent{}, pkgerrors.New(pkgerrors.CodeStateConflict, "contract has no developer to pay")
	}
	var milestoneID *uuid.UUID
	description := fmt.Sprintf("payout for contract %s", contract.ID)
	if input.Milestone != nil {
		id := input.Milestone.ID
		milestoneID = &id
		description = fmt.Sprintf("payout for milestone %q", input.Milestone.Title)
	}

	posting, err := s.ledger.Release(ctx, tx, ledger.ReleaseInput{
		ContractID:  contract.ID,
		MilestoneID: milestoneID,
		Currency:    contract.Currency,
		Amount:      input.Amount,
		ClientID:    contract.ClientID,
		DeveloperID: *contract.DeveloperID,
		CoinType:    input.CoinType,
		Description: description,
	})
	if err != nil {
		return nil, outbox.DomainEvent{}, err
	}

	if input.Milestone != nil {
		now := time.Now().UTC()
		if err := s.milestones.WithTx(tx).TransitionStatus(ctx, input.Milestone, enums.MilestoneStatusReleased, map[string]any{"released_at": now}); err != nil {
			return nil, outbox.DomainEvent{}, db.Classify(err, "mark milestone released")
		}
		input.Milestone.ReleasedAt = &now
	}

	event := outbox.DomainEvent{
		EventType:     enums.EventMilestoneReleased,
		AggregateType: enums.AggregateContract,
		AggregateID:   contract.ID,
		Data: payloads.MilestoneReleasedEvent{
			ContractID:  contract.ID,
			MilestoneID: milestoneID,
			DeveloperID: *contract.DeveloperID,
			Currency:    contract.Currency,
			Gross:       posting.Split.Gross,
			Fee:         posting.Split.Fee,
			Net:         posting.Split.Net,
			Override:    input.Override,
		},
	}
	return &ReleaseResult{Milestone: input.Milestone, Posting: *posting}, event, nil
}

func optional(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}
