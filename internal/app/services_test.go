package app

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/gigledger-backend/internal/contracts"
	"github.com/angelmondragon/gigledger-backend/internal/escrowtest"
	"github.com/angelmondragon/gigledger-backend/internal/milestones"
	"github.com/angelmondragon/gigledger-backend/internal/reviews"
	"github.com/angelmondragon/gigledger-backend/pkg/auth"
	"github.com/angelmondragon/gigledger-backend/pkg/config"
	"github.com/angelmondragon/gigledger-backend/pkg/db/dbtest"
	"github.com/angelmondragon/gigledger-backend/pkg/db/models"
	"github.com/angelmondragon/gigledger-backend/pkg/enums"
	"github.com/angelmondragon/gigledger-backend/pkg/logger"
)

var d = escrowtest.D

func testConfig() *config.Config {
	return &config.Config{
		Escrow: config.EscrowConfig{
			PlatformFeePercent: "5",
			WalletMaxCapacity:  "1000000",
			TxMaxRetries:       2,
			TxRetryBackoff:     time.Millisecond,
		},
	}
}

func TestNewServicesRejectsBadConfig(t *testing.T) {
	client := dbtest.New(t)
	logg := logger.New(logger.Options{ServiceName: "app-test", Output: io.Discard})

	_, err := NewServices(nil, logg, client, nil)
	require.Error(t, err)

	cfg := testConfig()
	cfg.Escrow.PlatformFeePercent = "101"
	_, err = NewServices(cfg, logg, client, nil)
	require.Error(t, err)
}

func TestWiredServicesRunContractToCompletion(t *testing.T) {
	client := dbtest.New(t)
	logg := logger.New(logger.Options{ServiceName: "app-test", Output: io.Discard})
	svc, err := NewServices(testConfig(), logg, client, prometheus.NewRegistry())
	require.NoError(t, err)

	ctx := context.Background()
	clientActor := auth.Actor{UserID: uuid.New(), Role: enums.ActorRoleUser}
	developer := auth.Actor{UserID: uuid.New(), Role: enums.ActorRoleUser}

	created, err := svc.Contracts.Create(ctx, contracts.CreateInput{
		Actor:       clientActor,
		DeveloperID: &developer.UserID,
		Title:       "Marketplace backend",
		Currency:    enums.CurrencyUSD,
		TotalAmount: d("1000"),
	})
	require.NoError(t, err)
	contractID := created.Contract.ID

	_, err = svc.Contracts.Activate(ctx, contracts.TransitionInput{ContractID: contractID, Actor: clientActor})
	require.NoError(t, err)

	milestone, err := svc.Milestones.Create(ctx, milestones.CreateInput{
		ContractID: contractID,
		Actor:      clientActor,
		Title:      "Everything",
		Amount:     d("1000"),
	})
	require.NoError(t, err)

	funded, err := svc.Contracts.Fund(ctx, contracts.FundInput{ContractID: contractID, Actor: clientActor, Amount: d("1000"), Reference: "pi_app_1"})
	require.NoError(t, err)
	assert.Equal(t, enums.ContractStatusActiveFunded, funded.Contract.Status)

	_, err = svc.Milestones.StartWork(ctx, milestone.ID, developer)
	require.NoError(t, err)
	_, err = svc.Milestones.Submit(ctx, milestones.SubmitInput{
		MilestoneID: milestone.ID,
		Actor:       developer,
		Summary:     "Shipped",
		Evidence:    models.EvidenceItems{{Label: "PR", URL: "https://example.com/pr/7"}},
	})
	require.NoError(t, err)
	_, err = svc.Reviews.Review(ctx, reviews.ReviewInput{MilestoneID: milestone.ID, Actor: clientActor, Decision: enums.ReviewDecisionApprove})
	require.NoError(t, err)

	released, err := svc.Reviews.Release(ctx, reviews.ReleaseInput{MilestoneID: milestone.ID, Actor: clientActor})
	require.NoError(t, err)
	assert.True(t, released.Posting.Split.Fee.Equal(d("50")))
	assert.True(t, released.Posting.Split.Net.Equal(d("950")))

	closed, err := svc.Contracts.Complete(ctx, contracts.TransitionInput{ContractID: contractID, Actor: clientActor})
	require.NoError(t, err)
	assert.Equal(t, enums.ContractStatusCompleted, closed.Contract.Status)

	report, err := svc.Admin.Reconcile(ctx, contractID, auth.SystemActor)
	require.NoError(t, err)
	assert.True(t, report.Consistent(), "%+v", report.Discrepancies)

	open, err := svc.ContractsRepo.ListNonTerminal(ctx, uuid.Nil, 10)
	require.NoError(t, err)
	assert.Empty(t, open)

	events, err := svc.Outbox.ListByAggregate(ctx, contractID)
	require.NoError(t, err)
	assert.NotEmpty(t, events)
}
