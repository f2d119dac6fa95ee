// Package milestones runs the per-milestone work and submission workflow.
package milestones

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/gigledger-backend/internal/audit"
	"github.com/angelmondragon/gigledger-backend/internal/contracts"
	"github.com/angelmondragon/gigledger-backend/internal/ledger"
	"github.com/angelmondragon/gigledger-backend/internal/uow"
	"github.com/angelmondragon/gigledger-backend/pkg/auth"
	"github.com/angelmondragon/gigledger-backend/pkg/db"
	"github.com/angelmondragon/gigledger-backend/pkg/db/models"
	"github.com/angelmondragon/gigledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/gigledger-backend/pkg/errors"
	"github.com/angelmondragon/gigledger-backend/pkg/outbox"
	"github.com/angelmondragon/gigledger-backend/pkg/outbox/payloads"
)

const maxEvidenceItems = 20

type Service interface {
	Create(ctx context.Context, input CreateInput) (*models.Milestone, error)
	StartWork(ctx context.Context, milestoneID uuid.UUID, actor auth.Actor) (*models.Milestone, error)
	Submit(ctx context.Context, input SubmitInput) (*SubmitResult, error)
	Get(ctx context.Context, milestoneID uuid.UUID, actor auth.Actor) (*models.Milestone, error)
	ListByContract(ctx context.Context, contractID uuid.UUID, actor auth.Actor) ([]models.Milestone, error)
	ListSubmissions(ctx context.Context, milestoneID uuid.UUID, actor auth.Actor) ([]models.MilestoneSubmission, error)
	ListReviews(ctx context.Context, milestoneID uuid.UUID, actor auth.Actor) ([]models.MilestoneReview, error)
}

type service struct {
	runner    uow.Runner
	repo      Repository
	contracts contracts.Repository
	audit     audit.Service
}

func NewService(runner uow.Runner, repo Repository, contractsRepo contracts.Repository, auditSvc audit.Service) (Service, error) {
	if runner == nil {
		return nil, fmt.Errorf("unit of work runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("milestone repository required")
	}
	if contractsRepo == nil {
		return nil, fmt.Errorf("contract repository required")
	}
	if auditSvc == nil {
		return nil, fmt.Errorf("audit service required")
	}
	return &service{runner: runner, repo: repo, contracts: contractsRepo, audit: auditSvc}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Milestone, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title is required")
	}
	if input.OrderIndex < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order index must not be negative")
	}

	var created *models.Milestone
	err := s.runner.Do(ctx, "milestone.create", func(tx *gorm.DB) error {
		contract, err := s.contracts.WithTx(tx).LockByID(ctx, input.ContractID)
		if err != nil {
			return db.Classify(err, "contract not found")
		}
		if err := contracts.Authorize(contract, input.Actor, contracts.AccessClient); err != nil {
			return err
		}
		if contract.Status.IsTerminal() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "contract is closed").
				WithDetails(map[string]any{"contract_id": contract.ID.String(), "status": contract.Status})
		}
		if err := ledger.ValidateAmount(input.Amount, contract.Currency); err != nil {
			return err
		}

		repo := s.repo.WithTx(tx)
		existing, err := repo.ListByContract(ctx, contract.ID)
		if err != nil {
			return db.Classify(err, "list milestones")
		}
		committed := decimal.Zero
		nextIndex := 1
		for _, m := range existing {
			committed = committed.Add(m.Amount)
			if m.OrderIndex >= nextIndex {
				nextIndex = m.OrderIndex + 1
			}
			if input.OrderIndex != 0 && m.OrderIndex == input.OrderIndex {
				return orderIndexTaken(contract.ID, input.OrderIndex)
			}
		}
		if contract.FundingMode == enums.FundingModeMilestoneBased && committed.Add(input.Amount).GreaterThan(contract.TotalAmount) {
			return pkgerrors.New(pkgerrors.CodeValidation, "milestones would exceed the contract total").
				WithDetails(map[string]any{
					"committed":    committed.String(),
					"amount":       input.Amount.String(),
					"total_amount": contract.TotalAmount.String(),
				})
		}
		index := input.OrderIndex
		if index == 0 {
			index = nextIndex
		}

		milestone := &models.Milestone{
			ContractID:         contract.ID,
			Title:              title,
			Description:        strings.TrimSpace(input.Description),
			AcceptanceCriteria: strings.TrimSpace(input.AcceptanceCriteria),
			Amount:             input.Amount,
			DueDate:            input.DueDate,
			OrderIndex:         index,
			Status:             enums.MilestoneStatusPending,
		}
		if err := repo.Create(ctx, milestone); err != nil {
			if db.IsUniqueViolation(err, orderIndexConstraint) {
				return orderIndexTaken(contract.ID, index)
			}
			return db.Classify(err, "create milestone")
		}
		if err := s.audit.Record(ctx, tx, audit.Entry{
			Actor:       input.Actor,
			Action:      enums.ActivityMilestoneCreated,
			ContractID:  &contract.ID,
			MilestoneID: &milestone.ID,
			TargetType:  enums.AdminTargetMilestone,
			TargetID:    milestone.ID,
			Payload: map[string]any{
				"title":       milestone.Title,
				"amount":      milestone.Amount.String(),
				"order_index": milestone.OrderIndex,
			},
			Events: []outbox.DomainEvent{StateChangedEvent(milestone, "")},
		}); err != nil {
			return err
		}
		created = milestone
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

const orderIndexConstraint = "ux_milestones_order"

func orderIndexTaken(contractID uuid.UUID, index int) error {
	return pkgerrors.New(pkgerrors.CodeValidation, "order index already used on this contract").
		WithDetails(map[string]any{"contract_id": contractID.String(), "order_index": index})
}

func (s *service) StartWork(ctx context.Context, milestoneID uuid.UUID, actor auth.Actor) (*models.Milestone, error) {
	var started *models.Milestone
	err := s.runner.Do(ctx, "milestone.start", func(tx *gorm.DB) error {
		contract, milestone, err := LockForUpdate(ctx, tx, s.contracts, s.repo, milestoneID)
		if err != nil {
			return err
		}
		if err := contracts.Authorize(contract, actor, contracts.AccessDeveloper); err != nil {
			return err
		}
		if !contract.Status.IsActive() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "contract is not active").
				WithDetails(map[string]any{"contract_id": contract.ID.String(), "status": contract.Status})
		}
		if milestone.Status != enums.MilestoneStatusPending {
			return statusConflict(milestone, "work can only start on a pending milestone")
		}
		from := milestone.Status
		if err := s.repo.WithTx(tx).TransitionStatus(ctx, milestone, enums.MilestoneStatusInProgress, nil); err != nil {
			return db.Classify(err, "start milestone")
		}
		if err := s.audit.Record(ctx, tx, audit.Entry{
			Actor:       actor,
			Action:      enums.ActivityMilestoneStarted,
			ContractID:  &contract.ID,
			MilestoneID: &milestone.ID,
			TargetType:  enums.AdminTargetMilestone,
			TargetID:    milestone.ID,
			Payload:     map[string]any{"from": from, "to": milestone.Status},
			Events:      []outbox.DomainEvent{StateChangedEvent(milestone, from)},
		}); err != nil {
			return err
		}
		started = milestone
		return nil
	})
	if err != nil {
		return nil, err
	}
	return started, nil
}

func (s *service) Submit(ctx context.Context, input SubmitInput) (*SubmitResult, error) {
	summary := strings.TrimSpace(input.Summary)
	if summary == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "submission summary is required")
	}
	if len(input.Evidence) > maxEvidenceItems {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "too many evidence items").
			WithDetails(map[string]any{"max": maxEvidenceItems})
	}
	evidence := make(models.EvidenceItems, 0, len(input.Evidence))
	for i, item := range input.Evidence {
		item.Label = strings.TrimSpace(item.Label)
		if item.Label == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "evidence label is required").
				WithDetails(map[string]any{"index": i})
		}
		evidence = append(evidence, item)
	}

	var result *SubmitResult
	err := s.runner.Do(ctx, "milestone.submit", func(tx *gorm.DB) error {
		contract, milestone, err := LockForUpdate(ctx, tx, s.contracts, s.repo, input.MilestoneID)
		if err != nil {
			return err
		}
		if err := contracts.Authorize(contract, input.Actor, contracts.AccessDeveloper); err != nil {
			return err
		}
		if !contract.Status.IsActive() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "contract is not active").
				WithDetails(map[string]any{"contract_id": contract.ID.String(), "status": contract.Status})
		}
		if milestone.Status != enums.MilestoneStatusInProgress {
			return statusConflict(milestone, "only in-progress milestones can be submitted")
		}

		repo := s.repo.WithTx(tx)
		sequence := 1
		latest, err := repo.LatestSubmission(ctx, milestone.ID)
		switch {
		case err == nil:
			sequence = latest.Sequence + 1
		case !db.IsNotFound(err):
			return db.Classify(err, "load latest submission")
		}
		submission := &models.MilestoneSubmission{
			MilestoneID: milestone.ID,
			Sequence:    sequence,
			DeveloperID: input.Actor.UserID,
			Summary:     summary,
			Evidence:    evidence,
		}
		if err := repo.CreateSubmission(ctx, submission); err != nil {
			return db.Classify(err, "store submission")
		}
		if err := repo.TransitionStatus(ctx, milestone, enums.MilestoneStatusSubmitted, nil); err != nil {
			return db.Classify(err, "submit milestone")
		}
		if err := s.audit.Record(ctx, tx, audit.Entry{
			Actor:       input.Actor,
			Action:      enums.ActivityMilestoneSubmitted,
			ContractID:  &contract.ID,
			MilestoneID: &milestone.ID,
			TargetType:  enums.AdminTargetMilestone,
			TargetID:    milestone.ID,
			Payload: map[string]any{
				"submission_id":  submission.ID.String(),
				"sequence":       submission.Sequence,
				"evidence_count": len(submission.Evidence),
			},
			Events: []outbox.DomainEvent{{
				EventType:     enums.EventMilestoneSubmitted,
				AggregateType: enums.AggregateMilestone,
				AggregateID:   milestone.ID,
				Data: payloads.MilestoneSubmittedEvent{
					MilestoneID:  milestone.ID,
					ContractID:   contract.ID,
					SubmissionID: submission.ID,
					Sequence:     submission.Sequence,
					DeveloperID:  input.Actor.UserID,
				},
			}},
		}); err != nil {
			return err
		}
		result = &SubmitResult{Milestone: *milestone, Submission: *submission}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) Get(ctx context.Context, milestoneID uuid.UUID, actor auth.Actor) (*models.Milestone, error) {
	milestone, err := s.repo.FindByID(ctx, milestoneID)
	if err != nil {
		return nil, db.Classify(err, "milestone not found")
	}
	if err := s.authorizeRead(ctx, milestone.ContractID, actor); err != nil {
		return nil, err
	}
	return milestone, nil
}

func (s *service) ListByContract(ctx context.Context, contractID uuid.UUID, actor auth.Actor) ([]models.Milestone, error) {
	if err := s.authorizeRead(ctx, contractID, actor); err != nil {
		return nil, err
	}
	rows, err := s.repo.ListByContract(ctx, contractID)
	if err != nil {
		return nil, db.Classify(err, "list milestones")
	}
	return rows, nil
}

func (s *service) ListSubmissions(ctx context.Context, milestoneID uuid.UUID, actor auth.Actor) ([]models.MilestoneSubmission, error) {
	if _, err := s.Get(ctx, milestoneID, actor); err != nil {
		return nil, err
	}
	rows, err := s.repo.ListSubmissions(ctx, milestoneID)
	if err != nil {
		return nil, db.Classify(err, "list submissions")
	}
	return rows, nil
}

func (s *service) ListReviews(ctx context.Context, milestoneID uuid.UUID, actor auth.Actor) ([]models.MilestoneReview, error) {
	if _, err := s.Get(ctx, milestoneID, actor); err != nil {
		return nil, err
	}
	rows, err := s.repo.ListReviews(ctx, milestoneID)
	if err != nil {
		return nil, db.Classify(err, "list reviews")
	}
	return rows, nil
}

func (s *service) authorizeRead(ctx context.Context, contractID uuid.UUID, actor auth.Actor) error {
	contract, err := s.contracts.FindByID(ctx, contractID)
	if err != nil {
		return db.Classify(err, "contract not found")
	}
	return contracts.Authorize(contract, actor, contracts.AccessParty)
}

// LockForUpdate locks a milestone's contract and then the milestone itself.
// Every writer takes the locks in this order.
func LockForUpdate(ctx context.Context, tx *gorm.DB, contractsRepo contracts.Repository, repo Repository, milestoneID uuid.UUID) (*models.Contract, *models.Milestone, error) {
	peek, err := repo.WithTx(tx).FindByID(ctx, milestoneID)
	if err != nil {
		return nil, nil, db.Classify(err, "milestone not found")
	}
	contract, err := contractsRepo.WithTx(tx).LockByID(ctx, peek.ContractID)
	if err != nil {
		return nil, nil, db.Classify(err, "contract not found")
	}
	milestone, err := repo.WithTx(tx).LockByID(ctx, milestoneID)
	if err != nil {
		return nil, nil, db.Classify(err, "milestone not found")
	}
	return contract, milestone, nil
}

func statusConflict(milestone *models.Milestone, msg string) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, msg).
		WithDetails(map[string]any{"milestone_id": milestone.ID.String(), "status": milestone.Status})
}
