// Package contracts runs the contract lifecycle and owns who may act on a contract.
package contracts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/gigledger-backend/internal/audit"
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

// Service exposes the contract lifecycle.
type Service interface {
	Create(ctx context.Context, input CreateInput) (*Snapshot, error)
	AssignDeveloper(ctx context.Context, input AssignDeveloperInput) (*Snapshot, error)
	Activate(ctx context.Context, input TransitionInput) (*Snapshot, error)
	Fund(ctx context.Context, input FundInput) (*FundResult, error)
	Pause(ctx context.Context, input TransitionInput) (*Snapshot, error)
	Resume(ctx context.Context, input TransitionInput) (*Snapshot, error)
	Cancel(ctx context.Context, input TransitionInput) (*CloseResult, error)
	Complete(ctx context.Context, input TransitionInput) (*CloseResult, error)
	Get(ctx context.Context, contractID uuid.UUID, actor auth.Actor) (*Snapshot, error)
	Escrow(ctx context.Context, contractID uuid.UUID, actor auth.Actor) (*EscrowView, error)
}

type service struct {
	db     *gorm.DB
	runner uow.Runner
	repo   Repository
	ledger ledger.Service
	audit  audit.Service
}

// NewService wires the lifecycle manager. conn serves read paths; every
// mutation runs through runner.
func NewService(conn *gorm.DB, runner uow.Runner, repo Repository, ledgerSvc ledger.Service, auditSvc audit.Service) (Service, error) {
	if conn == nil {
		return nil, fmt.Errorf("database required")
	}
	if runner == nil {
		return nil, fmt.Errorf("unit of work runner required")
	}
	if repo == nil {
		return nil, fmt.Errorf("contract repository required")
	}
	if ledgerSvc == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if auditSvc == nil {
		return nil, fmt.Errorf("audit service required")
	}
	return &service{db: conn, runner: runner, repo: repo, ledger: ledgerSvc, audit: auditSvc}, nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*Snapshot, error) {
	if err := input.Actor.Validate(); err != nil {
		return nil, err
	}
	if input.Actor.Role == enums.ActorRoleSystem {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "contracts are created by clients")
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title is required")
	}
	if !input.Currency.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unsupported currency").
			WithDetails(map[string]any{"currency": input.Currency})
	}
	if err := ledger.ValidateAmount(input.TotalAmount, input.Currency); err != nil {
		return nil, err
	}
	mode := input.FundingMode
	if mode == "" {
		mode = enums.FundingModeMilestoneBased
	}
	if !mode.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "unsupported funding mode").
			WithDetails(map[string]any{"funding_mode": input.FundingMode})
	}
	if input.DeveloperID != nil && (*input.DeveloperID == uuid.Nil || *input.DeveloperID == input.Actor.UserID) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "developer must be a different user than the client")
	}

	contract := &models.Contract{
		ClientID:     input.Actor.UserID,
		DeveloperID:  input.DeveloperID,
		Title:        title,
		Description:  strings.TrimSpace(input.Description),
		Currency:     input.Currency,
		TotalAmount:  input.TotalAmount,
		FundingMode:  mode,
		Status:       enums.ContractStatusDraft,
		StartAt:      input.StartAt,
		TermsVersion: strings.TrimSpace(input.TermsVersion),
		Metadata:     input.Metadata,
	}

	var snapshot *Snapshot
	err := s.runner.Do(ctx, "contract.create", func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, contract); err != nil {
			return db.Classify(err, "create contract")
		}
		account, err := s.ledger.OpenAccount(ctx, tx, contract.ID, contract.Currency)
		if err != nil {
			return err
		}
		if err := s.audit.Record(ctx, tx, audit.Entry{
			Actor:      input.Actor,
			Action:     enums.ActivityContractCreated,
			ContractID: &contract.ID,
			TargetType: enums.AdminTargetContract,
			TargetID:   contract.ID,
			Payload: map[string]any{
				"title":        contract.Title,
				"currency":     contract.Currency,
				"total_amount": contract.TotalAmount.String(),
				"funding_mode": contract.FundingMode,
			},
			Events: []outbox.DomainEvent{stateChanged(contract, "", "")},
		}); err != nil {
			return err
		}
		snapshot = &Snapshot{Contract: *contract, Escrow: *account, Available: decimal.Zero}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}

func (s *service) AssignDeveloper(ctx context.Context, input AssignDeveloperInput) (*Snapshot, error) {
	var snapshot *Snapshot
	err := s.runner.Do(ctx, "contract.assign_developer", func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		contract, err := lockContract(ctx, repo, input.ContractID)
		if err != nil {
			return err
		}
		if err := Authorize(contract, input.Actor, AccessClient); err != nil {
			return err
		}
		if contract.Status != enums.ContractStatusDraft && contract.Status != enums.ContractStatusActiveUnfunded {
			return statusConflict(contract, "developer can only be assigned before funding")
		}
		if input.DeveloperID == uuid.Nil || input.DeveloperID == contract.ClientID {
			return pkgerrors.New(pkgerrors.CodeValidation, "developer must be a different user than the client")
		}
		if err := repo.AssignDeveloper(ctx, contract.ID, input.DeveloperID); err != nil {
			return db.Classify(err, "assign developer")
		}
		developer := input.DeveloperID
		contract.DeveloperID = &developer

		if err := s.audit.Record(ctx, tx, audit.Entry{
			Actor:      input.Actor,
			Action:     enums.ActivityDeveloperAssigned,
			ContractID: &contract.ID,
			TargetType: enums.AdminTargetContract,
			TargetID:   contract.ID,
			Payload:    map[string]any{"developer_id": developer.String()},
		}); err != nil {
			return err
		}
		snapshot, err = s.snapshot(ctx, tx, contract)
		return err
	})
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}

func (s *service) Activate(ctx context.Context, input TransitionInput) (*Snapshot, error) {
	var snapshot *Snapshot
	err := s.runner.Do(ctx, "contract.activate", func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		contract, err := lockContract(ctx, repo, input.ContractID)
		if err != nil {
			return err
		}
		if err := Authorize(contract, input.Actor, AccessClient); err != nil {
			return err
		}
		if contract.Status != enums.ContractStatusDraft {
			return statusConflict(contract, "only draft contracts can be activated")
		}
		if contract.DeveloperID == nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "assign a developer before activating")
		}
		if err := s.transition(ctx, tx, contract, transition{
			actor:  input.Actor,
			action: enums.ActivityContractActivated,
			to:     enums.ContractStatusActiveUnfunded,
		}); err != nil {
			return err
		}
		snapshot, err = s.snapshot(ctx, tx, contract)
		return err
	})
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}

func (s *service) Fund(ctx context.Context, input FundInput) (*FundResult, error) {
	var result *FundResult
	err := s.runner.Do(ctx, "contract.fund", func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		contract, err := lockContract(ctx, repo, input.ContractID)
		if err != nil {
			return err
		}
		if err := AuthorizeOrOverride(contract, input.Actor, AccessClient, input.Override); err != nil {
			return err
		}
		if !acceptsFunding(contract.Status) {
			return statusConflict(contract, "contract cannot accept funding")
		}

		source := input.Source
		if !source.IsValid() {
			source = enums.FundingSourceClient
			if input.Override != nil {
				source = enums.FundingSourceManual
			}
		}
		client := contract.ClientID
		funded, err := s.ledger.Fund(ctx, tx, ledger.FundInput{
			ContractID: contract.ID,
			Currency:   contract.Currency,
			Amount:     input.Amount,
			Reference:  input.Reference,
			Source:     source,
			FromUserID: &client,
			MaxFunded:  contract.TotalAmount,
		})
		if err != nil {
			return err
		}
		available, err := ledger.Available(funded.Account)
		if err != nil {
			return err
		}
		result = &FundResult{Transaction: funded.Transaction, Replayed: funded.Replayed}
		if funded.Replayed {
			result.Snapshot = Snapshot{Contract: *contract, Escrow: funded.Account, Available: available}
			return nil
		}

		events := []outbox.DomainEvent{{
			EventType:     enums.EventContractFunded,
			AggregateType: enums.AggregateContract,
			AggregateID:   contract.ID,
			Data: payloads.ContractFundedEvent{
				ContractID:  contract.ID,
				Amount:      input.Amount,
				Currency:    contract.Currency,
				FundedTotal: funded.Account.FundedTotal,
				Available:   available,
				Source:      source,
				Reference:   strings.TrimSpace(input.Reference),
			},
		}}
		from := contract.Status
		if from == enums.ContractStatusActiveUnfunded {
			if err := repo.TransitionStatus(ctx, contract, enums.ContractStatusActiveFunded, nil); err != nil {
				return db.Classify(err, "mark contract funded")
			}
			events = append(events, stateChanged(contract, from, ""))
		}

		if err := s.audit.Record(ctx, tx, audit.Entry{
			Actor:      input.Actor,
			Action:     enums.ActivityContractFunded,
			ContractID: &contract.ID,
			TargetType: enums.AdminTargetContract,
			TargetID:   contract.ID,
			Payload: map[string]any{
				"amount":         input.Amount.String(),
				"reference":      strings.TrimSpace(input.Reference),
				"source":         source,
				"funded_total":   funded.Account.FundedTotal.String(),
				"transaction_id": funded.Transaction.ID.String(),
			},
			Override: input.Override,
			Events:   events,
		}); err != nil {
			return err
		}
		result.Snapshot = Snapshot{Contract: *contract, Escrow: funded.Account, Available: available}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) Pause(ctx context.Context, input TransitionInput) (*Snapshot, error) {
	var snapshot *Snapshot
	err := s.runner.Do(ctx, "contract.pause", func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		contract, err := lockContract(ctx, repo, input.ContractID)
		if err != nil {
			return err
		}
		if err := AuthorizeOrOverride(contract, input.Actor, AccessClient, input.Override); err != nil {
			return err
		}
		if !contract.Status.IsActive() {
			return statusConflict(contract, "only active contracts can be paused")
		}
		if err := s.transition(ctx, tx, contract, transition{
			actor:    input.Actor,
			action:   enums.ActivityContractPaused,
			to:       enums.ContractStatusPaused,
			reason:   input.Reason,
			override: input.Override,
		}); err != nil {
			return err
		}
		snapshot, err = s.snapshot(ctx, tx, contract)
		return err
	})
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}

func (s *service) Resume(ctx context.Context, input TransitionInput) (*Snapshot, error) {
	var snapshot *Snapshot
	err := s.runner.Do(ctx, "contract.resume", func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		contract, err := lockContract(ctx, repo, input.ContractID)
		if err != nil {
			return err
		}
		if err := AuthorizeOrOverride(contract, input.Actor, AccessClient, input.Override); err != nil {
			return err
		}
		if contract.Status != enums.ContractStatusPaused {
			return statusConflict(contract, "only paused contracts can be resumed")
		}
		account, err := s.ledger.Account(ctx, tx, contract.ID)
		if err != nil {
			return err
		}
		to := enums.ContractStatusActiveUnfunded
		if account.FundedTotal.IsPositive() {
			to = enums.ContractStatusActiveFunded
		}
		if err := s.transition(ctx, tx, contract, transition{
			actor:    input.Actor,
			action:   enums.ActivityContractResumed,
			to:       to,
			reason:   input.Reason,
			override: input.Override,
		}); err != nil {
			return err
		}
		snapshot, err = s.snapshot(ctx, tx, contract)
		return err
	})
	if err != nil {
		return nil, err
	}
	return snapshot, nil
}

func (s *service) Cancel(ctx context.Context, input TransitionInput) (*CloseResult, error) {
	var result *CloseResult
	err := s.runner.Do(ctx, "contract.cancel", func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		contract, err := lockContract(ctx, repo, input.ContractID)
		if err != nil {
			return err
		}
		if err := AuthorizeOrOverride(contract, input.Actor, AccessClient, input.Override); err != nil {
			return err
		}
		if contract.Status.IsTerminal() {
			return statusConflict(contract, "contract is already closed")
		}
		if err := requireNoOpenDispute(ctx, repo, contract); err != nil {
			return err
		}

		reason := strings.TrimSpace(input.Reason)
		now := time.Now().UTC()
		fields := map[string]any{"cancelled_at": now}
		if reason != "" {
			fields["cancel_reason"] = reason
		}
		result, err = s.close(ctx, tx, contract, transition{
			actor:    input.Actor,
			action:   enums.ActivityContractCancelled,
			to:       enums.ContractStatusCancelled,
			reason:   reason,
			override: input.Override,
			fields:   fields,
		})
		if err != nil {
			return err
		}
		result.Contract.CancelledAt = &now
		if reason != "" {
			result.Contract.CancelReason = &reason
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) Complete(ctx context.Context, input TransitionInput) (*CloseResult, error) {
	var result *CloseResult
	err := s.runner.Do(ctx, "contract.complete", func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		contract, err := lockContract(ctx, repo, input.ContractID)
		if err != nil {
			return err
		}
		if err := AuthorizeOrOverride(contract, input.Actor, AccessClient, input.Override); err != nil {
			return err
		}
		if !contract.Status.IsActive() && contract.Status != enums.ContractStatusPaused {
			return statusConflict(contract, "only active or paused contracts can be completed")
		}
		if err := requireNoOpenDispute(ctx, repo, contract); err != nil {
			return err
		}
		unsettled, err := repo.CountUnsettledMilestones(ctx, contract.ID)
		if err != nil {
			return db.Classify(err, "count unsettled milestones")
		}
		if unsettled > 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "every milestone must be released or refunded first").
				WithDetails(map[string]any{"unsettled_milestones": unsettled})
		}

		now := time.Now().UTC()
		result, err = s.close(ctx, tx, contract, transition{
			actor:    input.Actor,
			action:   enums.ActivityContractCompleted,
			to:       enums.ContractStatusCompleted,
			reason:   strings.TrimSpace(input.Reason),
			override: input.Override,
			fields:   map[string]any{"completed_at": now},
		})
		if err != nil {
			return err
		}
		result.Contract.CompletedAt = &now
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) Get(ctx context.Context, contractID uuid.UUID, actor auth.Actor) (*Snapshot, error) {
	contract, err := s.repo.FindByID(ctx, contractID)
	if err != nil {
		return nil, db.Classify(err, "load contract")
	}
	if err := Authorize(contract, actor, AccessParty); err != nil {
		return nil, err
	}
	return s.snapshot(ctx, s.db, contract)
}

func (s *service) Escrow(ctx context.Context, contractID uuid.UUID, actor auth.Actor) (*EscrowView, error) {
	snapshot, err := s.Get(ctx, contractID, actor)
	if err != nil {
		return nil, err
	}
	txns, err := s.ledger.History(ctx, s.db, contractID)
	if err != nil {
		return nil, err
	}
	return &EscrowView{Escrow: snapshot.Escrow, Available: snapshot.Available, Transactions: txns}, nil
}

type transition struct {
	actor    auth.Actor
	action   enums.ActivityAction
	to       enums.ContractStatus
	reason   string
	override *audit.Override
	fields   map[string]any
	payload  map[string]any
}

// transition applies a compare-and-set status change and audits it.
func (s *service) transition(ctx context.Context, tx *gorm.DB, contract *models.Contract, t transition, extra ...outbox.DomainEvent) error {
	from := contract.Status
	if err := s.repo.WithTx(tx).TransitionStatus(ctx, contract, t.to, t.fields); err != nil {
		return db.Classify(err, "update contract status")
	}
	payload := map[string]any{"from": from, "to": t.to}
	for k, v := range t.payload {
		payload[k] = v
	}
	if t.reason != "" {
		payload["reason"] = t.reason
	}
	return s.audit.Record(ctx, tx, audit.Entry{
		Actor:      t.actor,
		Action:     t.action,
		ContractID: &contract.ID,
		TargetType: enums.AdminTargetContract,
		TargetID:   contract.ID,
		Payload:    payload,
		Override:   t.override,
		Events:     append([]outbox.DomainEvent{stateChanged(contract, from, t.reason)}, extra...),
	})
}

// close refunds whatever escrow remains to the client and moves the contract
// into a terminal status, in that order.
func (s *service) close(ctx context.Context, tx *gorm.DB, contract *models.Contract, t transition) (*CloseResult, error) {
	refund, err := s.ledger.RefundRemaining(ctx, tx, ledger.RefundInput{
		ContractID: contract.ID,
		ClientID:   contract.ClientID,
	})
	if err != nil {
		return nil, err
	}

	var extra []outbox.DomainEvent
	if refund.Transaction != nil {
		t.payload = map[string]any{"refunded_amount": refund.Transaction.Amount.String()}
		extra = append(extra, outbox.DomainEvent{
			EventType:     enums.EventEscrowRefunded,
			AggregateType: enums.AggregateContract,
			AggregateID:   contract.ID,
			Data: payloads.EscrowRefundedEvent{
				ContractID: contract.ID,
				ClientID:   contract.ClientID,
				Currency:   contract.Currency,
				Amount:     refund.Transaction.Amount,
			},
		})
	}
	if err := s.transition(ctx, tx, contract, t, extra...); err != nil {
		return nil, err
	}

	available, err := ledger.Available(refund.Account)
	if err != nil {
		return nil, err
	}
	return &CloseResult{
		Snapshot: Snapshot{Contract: *contract, Escrow: refund.Account, Available: available},
		Refund:   refund.Transaction,
	}, nil
}

func (s *service) snapshot(ctx context.Context, tx *gorm.DB, contract *models.Contract) (*Snapshot, error) {
	account, err := s.ledger.Account(ctx, tx, contract.ID)
	if err != nil {
		return nil, err
	}
	available, err := ledger.Available(*account)
	if err != nil {
		return nil, err
	}
	return &Snapshot{Contract: *contract, Escrow: *account, Available: available}, nil
}

func lockContract(ctx context.Context, repo Repository, id uuid.UUID) (*models.Contract, error) {
	contract, err := repo.LockByID(ctx, id)
	if err != nil {
		return nil, db.Classify(err, "contract not found")
	}
	return contract, nil
}

func requireNoOpenDispute(ctx context.Context, repo Repository, contract *models.Contract) error {
	open, err := repo.CountOpenDisputes(ctx, contract.ID)
	if err != nil {
		return db.Classify(err, "count open disputes")
	}
	if open > 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "contract has an open dispute").
			WithDetails(map[string]any{"contract_id": contract.ID.String(), "open_disputes": open})
	}
	return nil
}

func acceptsFunding(status enums.ContractStatus) bool {
	return status.IsActive() || status == enums.ContractStatusPaused
}

func statusConflict(contract *models.Contract, msg string) error {
	return pkgerrors.New(pkgerrors.CodeStateConflict, msg).
		WithDetails(map[string]any{"contract_id": contract.ID.String(), "status": contract.Status})
}

// stateChanged builds the lifecycle event for a contract already moved to its
// new status.
func stateChanged(contract *models.Contract, from enums.ContractStatus, reason string) outbox.DomainEvent {
	return outbox.DomainEvent{
		EventType:     enums.EventContractStateChanged,
		AggregateType: enums.AggregateContract,
		AggregateID:   contract.ID,
		Data: payloads.ContractStateChangedEvent{
			ContractID: contract.ID,
			From:       from,
			To:         contract.Status,
			Reason:     reason,
		},
	}
}
