// Package escrowtest wires the escrow core over an in-memory database for
// package tests.
package escrowtest

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/gigledger-backend/internal/audit"
	"github.com/angelmondragon/gigledger-backend/internal/ledger"
	"github.com/angelmondragon/gigledger-backend/internal/uow"
	"github.com/angelmondragon/gigledger-backend/pkg/auth"
	"github.com/angelmondragon/gigledger-backend/pkg/db"
	"github.com/angelmondragon/gigledger-backend/pkg/db/dbtest"
	"github.com/angelmondragon/gigledger-backend/pkg/db/models"
	"github.com/angelmondragon/gigledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/gigledger-backend/pkg/errors"
	"github.com/angelmondragon/gigledger-backend/pkg/logger"
	"github.com/angelmondragon/gigledger-backend/pkg/metrics"
	"github.com/angelmondragon/gigledger-backend/pkg/outbox"
)

// FeePercent is the platform fee every Env is configured with.
const FeePercent = "5"

type Env struct {
	Client     *db.Client
	DB         *gorm.DB
	Logger     *logger.Logger
	Runner     uow.Runner
	LedgerRepo ledger.Repository
	Ledger     ledger.Service
	Audit      audit.Service
	Outbox     *outbox.Repository

	ClientActor    auth.Actor
	DeveloperActor auth.Actor
	AdminActor     auth.Actor
}

// New returns an Env whose wallets hold up to 1,000,000.
func New(t testing.TB) *Env {
	return NewWithCapacity(t, "1000000")
}

func NewWithCapacity(t testing.TB, walletCapacity string) *Env {
	t.Helper()
	client := dbtest.New(t)
	logg := logger.New(logger.Options{ServiceName: "escrowtest", Output: io.Discard})

	runner, err := uow.New(client, logg, metrics.NewUnitOfWorkMetrics(prometheus.NewRegistry()), uow.Options{
		MaxRetries: 2,
		Backoff:    time.Millisecond,
	})
	require.NoError(t, err)

	ledgerRepo := ledger.NewRepository(client.DB())
	ledgerSvc, err := ledger.NewService(ledgerRepo, D(FeePercent), D(walletCapacity))
	require.NoError(t, err)

	events := outbox.NewRepository(client.DB())
	auditSvc, err := audit.NewService(audit.NewRepository(client.DB()), outbox.NewService(events, logg))
	require.NoError(t, err)

	return &Env{
		Client:         client,
		DB:             client.DB(),
		Logger:         logg,
		Runner:         runner,
		LedgerRepo:     ledgerRepo,
		Ledger:         ledgerSvc,
		Audit:          auditSvc,
		Outbox:         events,
		ClientActor:    auth.Actor{UserID: uuid.New(), Role: enums.ActorRoleUser},
		DeveloperActor: auth.Actor{UserID: uuid.New(), Role: enums.ActorRoleUser},
		AdminActor:     auth.Actor{UserID: uuid.New(), Role: enums.ActorRoleAdmin},
	}
}

// ContractSeed describes a contract inserted directly, bypassing the lifecycle.
type ContractSeed struct {
	Total  string
	Funded string
	Status enums.ContractStatus
	Mode   enums.FundingMode
}

// SeedContract inserts a contract between ClientActor and DeveloperActor with
// its escrow account, funded through the ledger when seed.Funded is set.
func (e *Env) SeedContract(t testing.TB, seed ContractSeed) *models.Contract {
	t.Helper()
	ctx := context.Background()
	if seed.Total == "" {
		seed.Total = "1000"
	}
	if seed.Status == "" {
		seed.Status = enums.ContractStatusActiveUnfunded
	}
	if seed.Mode == "" {
		seed.Mode = enums.FundingModeMilestoneBased
	}
	developer := e.DeveloperActor.UserID
	contract := &models.Contract{
		ClientID:    e.ClientActor.UserID,
		DeveloperID: &developer,
		Title:       "Checkout rewrite",
		Currency:    enums.CurrencyUSD,
		TotalAmount: D(seed.Total),
		FundingMode: seed.Mode,
		Status:      seed.Status,
	}
	err := e.Client.WithTx(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(contract).Error; err != nil {
			return err
		}
		if _, err := e.Ledger.OpenAccount(ctx, tx, contract.ID, contract.Currency); err != nil {
			return err
		}
		if seed.Funded == "" {
			return nil
		}
		client := contract.ClientID
		_, err := e.Ledger.Fund(ctx, tx, ledger.FundInput{
			ContractID: contract.ID,
			Currency:   contract.Currency,
			Amount:     D(seed.Funded),
			Source:     enums.FundingSourceClient,
			FromUserID: &client,
		})
		return err
	})
	require.NoError(t, err)
	return contract
}

// SeedMilestone inserts a milestone in the given status.
func (e *Env) SeedMilestone(t testing.TB, contractID uuid.UUID, amount string, status enums.MilestoneStatus) *models.Milestone {
	t.Helper()
	var index int64
	require.NoError(t, e.DB.Model(&models.Milestone{}).Where("contract_id = ?", contractID).Count(&index).Error)
	milestone := &models.Milestone{
		ContractID: contractID,
		Title:      "Milestone",
		Amount:     D(amount),
		OrderIndex: int(index) + 1,
		Status:     status,
	}
	require.NoError(t, e.DB.Create(milestone).Error)
	return milestone
}

func (e *Env) Account(t testing.TB, contractID uuid.UUID) models.EscrowAccount {
	t.Helper()
	account, err := e.LedgerRepo.FindAccount(context.Background(), contractID)
	require.NoError(t, err)
	return *account
}

func (e *Env) Contract(t testing.TB, contractID uuid.UUID) models.Contract {
	t.Helper()
	var contract models.Contract
	require.NoError(t, e.DB.Where("id = ?", contractID).First(&contract).Error)
	return contract
}

func (e *Env) Milestone(t testing.TB, milestoneID uuid.UUID) models.Milestone {
	t.Helper()
	var milestone models.Milestone
	require.NoError(t, e.DB.Where("id = ?", milestoneID).First(&milestone).Error)
	return milestone
}

// Wallet returns the developer wallet, or nil when none was opened.
func (e *Env) Wallet(t testing.TB, userID uuid.UUID) *models.CoinWallet {
	t.Helper()
	var wallets []models.CoinWallet
	require.NoError(t, e.DB.Where("user_id = ?", userID).Find(&wallets).Error)
	if len(wallets) == 0 {
		return nil
	}
	return &wallets[0]
}

func (e *Env) Count(t testing.TB, model any, query string, args ...any) int64 {
	t.Helper()
	var n int64
	q := e.DB.Model(model)
	if query != "" {
		q = q.Where(query, args...)
	}
	require.NoError(t, q.Count(&n).Error)
	return n
}

func (e *Env) CountActivity(t testing.TB, contractID uuid.UUID) int64 {
	t.Helper()
	return e.Count(t, &models.ActivityLog{}, "contract_id = ?", contractID)
}

func (e *Env) CountAdminActions(t testing.TB) int64 {
	t.Helper()
	return e.Count(t, &models.AdminAction{}, "")
}

// EventTypes lists the outbox event types queued for an aggregate, oldest first.
func (e *Env) EventTypes(t testing.TB, aggregateID uuid.UUID) []enums.OutboxEventType {
	t.Helper()
	rows, err := e.Outbox.ListByAggregate(context.Background(), aggregateID)
	require.NoError(t, err)
	out := make([]enums.OutboxEventType, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.EventType)
	}
	return out
}

func D(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

// RequireCode fails the test unless err carries the typed code.
func RequireCode(t testing.TB, err error, code pkgerrors.Code) {
	t.Helper()
	require.Error(t, err)
	require.Truef(t, pkgerrors.IsCode(err, code), "expected %s, got %v", code, err)
}
