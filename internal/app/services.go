// Package app assembles the escrow services shared by the api and cron binaries.
package app

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/gigledger-backend/internal/admin"
	"github.com/angelmondragon/gigledger-backend/internal/audit"
	"github.com/angelmondragon/gigledger-backend/internal/contracts"
	"github.com/angelmondragon/gigledger-backend/internal/disputes"
	"github.com/angelmondragon/gigledger-backend/internal/ledger"
	"github.com/angelmondragon/gigledger-backend/internal/milestones"
	"github.com/angelmondragon/gigledger-backend/internal/reviews"
	"github.com/angelmondragon/gigledger-backend/internal/uow"
	"github.com/angelmondragon/gigledger-backend/pkg/config"
	"github.com/angelmondragon/gigledger-backend/pkg/db"
	"github.com/angelmondragon/gigledger-backend/pkg/logger"
	"github.com/angelmondragon/gigledger-backend/pkg/metrics"
	"github.com/angelmondragon/gigledger-backend/pkg/outbox"
)

type Services struct {
	Contracts  contracts.Service
	Milestones milestones.Service
	Reviews    reviews.Service
	Disputes   disputes.Service
	Admin      admin.Service

	ContractsRepo contracts.Repository
	Outbox        *outbox.Repository
}

// NewServices wires repositories, the unit-of-work runner and every escrow
// service over one database client.
func NewServices(cfg *config.Config, logg *logger.Logger, client *db.Client, reg prometheus.Registerer) (*Services, error) {
	if cfg == nil || logg == nil || client == nil {
		return nil, fmt.Errorf("config, logger and database client required")
	}

	feePercent, err := cfg.Escrow.FeePercent()
	if err != nil {
		return nil, err
	}
	walletCapacity, err := cfg.Escrow.MaxWalletCapacity()
	if err != nil {
		return nil, err
	}

	runner, err := uow.New(client, logg, metrics.NewUnitOfWorkMetrics(reg), uow.Options{
		MaxRetries: cfg.Escrow.TxMaxRetries,
		Backoff:    cfg.Escrow.TxRetryBackoff,
	})
	if err != nil {
		return nil, fmt.Errorf("unit of work: %w", err)
	}

	conn := client.DB()
	ledgerRepo := ledger.NewRepository(conn)
	ledgerSvc, err := ledger.NewService(ledgerRepo, feePercent, walletCapacity)
	if err != nil {
		return nil, fmt.Errorf("ledger service: %w", err)
	}

	events := outbox.NewRepository(conn)
	auditSvc, err := audit.NewService(audit.NewRepository(conn), outbox.NewService(events, logg))
	if err != nil {
		return nil, fmt.Errorf("audit service: %w", err)
	}

	contractsRepo := contracts.NewRepository(conn)
	milestonesRepo := milestones.NewRepository(conn)

	contractsSvc, err := contracts.NewService(conn, runner, contractsRepo, ledgerSvc, auditSvc)
	if err != nil {
		return nil, fmt.Errorf("contracts service: %w", err)
	}
	milestonesSvc, err := milestones.NewService(runner, milestonesRepo, contractsRepo, auditSvc)
	if err != nil {
		return nil, fmt.Errorf("milestones service: %w", err)
	}
	reviewsSvc, err := reviews.NewService(runner, contractsRepo, milestonesRepo, ledgerSvc, auditSvc)
	if err != nil {
		return nil, fmt.Errorf("reviews service: %w", err)
	}
	disputesSvc, err := disputes.NewService(runner, disputes.NewRepository(conn), contractsRepo, milestonesRepo, ledgerSvc, reviewsSvc, auditSvc)
	if err != nil {
		return nil, fmt.Errorf("disputes service: %w", err)
	}
	adminSvc, err := admin.NewService(admin.ServiceParams{
		Contracts:      contractsSvc,
		Reviews:        reviewsSvc,
		Audit:          auditSvc,
		ContractsRepo:  contractsRepo,
		MilestonesRepo: milestonesRepo,
		LedgerRepo:     ledgerRepo,
	})
	if err != nil {
		return nil, fmt.Errorf("admin service: %w", err)
	}

	return &Services{
		Contracts:     contractsSvc,
		Milestones:    milestonesSvc,
		Reviews:       reviewsSvc,
		Disputes:      disputesSvc,
		Admin:         adminSvc,
		ContractsRepo: contractsRepo,
		Outbox:        events,
	}, nil
}
