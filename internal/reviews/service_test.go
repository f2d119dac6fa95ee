package reviews

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/gigledger-backend/internal/audit"
	"github.com/angelmondragon/gigledger-backend/internal/contracts"
	"github.com/angelmondragon/gigledger-backend/internal/escrowtest"
	"github.com/angelmondragon/gigledger-backend/internal/milestones"
	"github.com/angelmondragon/gigledger-backend/pkg/db/models"
	"github.com/angelmondragon/gigledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/gigledger-backend/pkg/errors"
)

var d = escrowtest.D

func newTestService(t *testing.T, env *escrowtest.Env) Service {
	t.Helper()
	svc, err := NewService(env.Runner, contracts.NewRepository(env.DB), milestones.NewRepository(env.DB), env.Ledger, env.Audit)
	require.NoError(t, err)
	return svc
}

func TestApproveThenReleaseSplitsFee(t *testing.T) {
	env := escrowtest.New(t)
	svc := newTestService(t, env)
	ctx := context.Background()
	contract := env.SeedContract(t, escrowtest.ContractSeed{Status: enums.ContractStatusActiveFunded, Funded: "1000"})
	milestone := env.SeedMilestone(t, contract.ID, "1000", enums.MilestoneStatusSubmitted)

	reviewed, err := svc.Review(ctx, ReviewInput{MilestoneID: milestone.ID, Actor: env.ClientActor, Decision: enums.ReviewDecisionApprove})
	require.NoError(t, err)
	assert.Equal(t, enums.MilestoneStatusApproved, reviewed.Milestone.Status)

	released, err := svc.Release(ctx, ReleaseInput{ContractID: contract.ID, MilestoneID: milestone.ID, Actor: env.ClientActor})
	require.NoError(t, err)
	assert.True(t, released.Posting.Split.Fee.Equal(d("50")))
	assert.True(t, released.Posting.Split.Net.Equal(d("950")))
	assert.Equal(t, enums.MilestoneStatusReleased, released.Milestone.Status)

	account := env.Account(t, contract.ID)
	assert.True(t, account.ReleasedTotal.Equal(d("1000")))
	assert.Equal(t, enums.EscrowStatusDepleted, account.Status)

	wallet := env.Wallet(t, env.DeveloperActor.UserID)
	require.NotNil(t, wallet)
	assert.True(t, wallet.Balance.Equal(d("950")))

	var coin models.CoinTransaction
	require.NoError(t, env.DB.Where("wallet_id = ?", wallet.ID).First(&coin).Error)
	require.NotNil(t, coin.ReferenceID)
	assert.Equal(t, milestone.ID, *coin.ReferenceID)
	assert.Equal(t, enums.CoinDirectionIn, coin.Direction)

	stored := env.Milestone(t, milestone.ID)
	assert.Equal(t, enums.MilestoneStatusReleased, stored.Status)
	assert.NotNil(t, stored.ReleasedAt)
	assert.Equal(t, int64(1), env.Count(t, &models.PlatformFee{}, "contract_id = ?", contract.ID))
	assert.Contains(t, env.EventTypes(t, contract.ID), enums.EventMilestoneReleased)
	assert.Equal(t, int64(2), env.CountActivity(t, contract.ID))
	assert.Zero(t, env.CountAdminActions(t))
}

func TestRejectReturnsMilestoneToWork(t *testing.T) {
	env := escrowtest.New(t)
	svc := newTestService(t, env)
	ctx := context.Background()
	contract := env.SeedContract(t, escrowtest.ContractSeed{Status: enums.ContractStatusActiveFunded, Funded: "300"})
	milestone := env.SeedMilestone(t, contract.ID, "300", enums.MilestoneStatusSubmitted)

	result, err := svc.Review(ctx, ReviewInput{
		MilestoneID: milestone.ID,
		Actor:       env.ClientActor,
		Decision:    enums.ReviewDecisionReject,
		ReasonCode:  "INCOMPLETE",
		Comments:    "missing tests",
	})
	require.NoError(t, err)
	assert.Equal(t, enums.MilestoneStatusInProgress, result.Milestone.Status)
	require.NotNil(t, result.Review.ReasonCode)
	assert.Equal(t, "INCOMPLETE", *result.Review.ReasonCode)
	assert.Contains(t, env.EventTypes(t, milestone.ID), enums.EventMilestoneReviewed)

	_, err = svc.Release(ctx, ReleaseInput{ContractID: contract.ID, MilestoneID: milestone.ID, Actor: env.ClientActor})
	escrowtest.RequireCode(t, err, pkgerrors.CodeStateConflict)

	_, err = svc.Review(ctx, ReviewInput{MilestoneID: milestone.ID, Actor: env.ClientActor, Decision: enums.ReviewDecisionApprove})
	escrowtest.RequireCode(t, err, pkgerrors.CodeStateConflict)
	assert.Equal(t, int64(1), env.Count(t, &models.MilestoneReview{}, "milestone_id = ?", milestone.ID))
}

func TestReviewRules(t *testing.T) {
	env := escrowtest.New(t)
	svc := newTestService(t, env)
	ctx := context.Background()
	contract := env.SeedContract(t, escrowtest.ContractSeed{Status: enums.ContractStatusActiveFunded, Funded: "300"})
	milestone := env.SeedMilestone(t, contract.ID, "300", enums.MilestoneStatusSubmitted)

	_, err := svc.Review(ctx, ReviewInput{MilestoneID: milestone.ID, Actor: env.ClientActor, Decision: "MAYBE"})
	escrowtest.RequireCode(t, err, pkgerrors.CodeValidation)

	_, err = svc.Review(ctx, ReviewInput{MilestoneID: milestone.ID, Actor: env.DeveloperActor, Decision: enums.ReviewDecisionApprove})
	escrowtest.RequireCode(t, err, pkgerrors.CodeForbidden)

	_, err = svc.Review(ctx, ReviewInput{MilestoneID: uuid.New(), Actor: env.ClientActor, Decision: enums.ReviewDecisionApprove})
	escrowtest.RequireCode(t, err, pkgerrors.CodeNotFound)
}

func TestReleaseWithInsufficientEscrowChangesNothing(t *testing.T) {
	env := escrowtest.New(t)
	svc := newTestService(t, env)
	contract := env.SeedContract(t, escrowtest.ContractSeed{Status: enums.ContractStatusActiveFunded, Funded: "100"})
	milestone := env.SeedMilestone(t, contract.ID, "500", enums.MilestoneStatusApproved)

	_, err := svc.Release(context.Background(), ReleaseInput{ContractID: contract.ID, MilestoneID: milestone.ID, Actor: env.ClientActor})
	escrowtest.RequireCode(t, err, pkgerrors.CodeInsufficientFunds)

	account := env.Account(t, contract.ID)
	assert.True(t, account.ReleasedTotal.IsZero())
	assert.True(t, account.FundedTotal.Equal(d("100")))
	assert.Equal(t, enums.MilestoneStatusApproved, env.Milestone(t, milestone.ID).Status)
	assert.Nil(t, env.Wallet(t, env.DeveloperActor.UserID))
	assert.Zero(t, env.Count(t, &models.PlatformFee{}, ""))
	assert.Zero(t, env.CountActivity(t, contract.ID))
	assert.Empty(t, env.EventTypes(t, contract.ID))
}

func TestReleaseOverWalletCapacityRollsBack(t *testing.T) {
	env := escrowtest.NewWithCapacity(t, "500")
	svc := newTestService(t, env)
	contract := env.SeedContract(t, escrowtest.ContractSeed{Status: enums.ContractStatusActiveFunded, Funded: "1000"})
	milestone := env.SeedMilestone(t, contract.ID, "1000", enums.MilestoneStatusApproved)

	_, err := svc.Release(context.Background(), ReleaseInput{ContractID: contract.ID, MilestoneID: milestone.ID, Actor: env.ClientActor})
	escrowtest.RequireCode(t, err, pkgerrors.CodeWalletCapacity)
	assert.True(t, env.Account(t, contract.ID).ReleasedTotal.IsZero())
	assert.Equal(t, enums.MilestoneStatusApproved, env.Milestone(t, milestone.ID).Status)
}

func TestPartialAndOversizedRelease(t *testing.T) {
	env := escrowtest.New(t)
	svc := newTestService(t, env)
	ctx := context.Background()
	contract := env.SeedContract(t, escrowtest.ContractSeed{Status: enums.ContractStatusActiveFunded, Funded: "1000"})
	milestone := env.SeedMilestone(t, contract.ID, "400", enums.MilestoneStatusApproved)

	_, err := svc.Release(ctx, ReleaseInput{ContractID: contract.ID, MilestoneID: milestone.ID, Actor: env.ClientActor, Amount: d("401")})
	escrowtest.RequireCode(t, err, pkgerrors.CodeValidation)

	_, err = svc.Release(ctx, ReleaseInput{ContractID: uuid.New(), MilestoneID: milestone.ID, Actor: env.ClientActor})
	escrowtest.RequireCode(t, err, pkgerrors.CodeNotFound)

	released, err := svc.Release(ctx, ReleaseInput{ContractID: contract.ID, MilestoneID: milestone.ID, Actor: env.ClientActor, Amount: d("250")})
	require.NoError(t, err)
	assert.True(t, released.Posting.Split.Fee.Equal(d("12.5")))
	assert.True(t, env.Account(t, contract.ID).ReleasedTotal.Equal(d("250")))
}

func TestReleaseBeyondEscrowAndMilestoneIsInsufficientFunds(t *testing.T) {
	env := escrowtest.New(t)
	svc := newTestService(t, env)
	ctx := context.Background()
	contract := env.SeedContract(t, escrowtest.ContractSeed{Status: enums.ContractStatusActiveFunded, Funded: "500"})
	milestone := env.SeedMilestone(t, contract.ID, "1000", enums.MilestoneStatusApproved)

	_, err := svc.Release(ctx, ReleaseInput{ContractID: contract.ID, MilestoneID: milestone.ID, Actor: env.ClientActor, Amount: d("1500")})
	escrowtest.RequireCode(t, err, pkgerrors.CodeInsufficientFunds)

	_, err = svc.Release(ctx, ReleaseInput{ContractID: contract.ID, MilestoneID: milestone.ID, Actor: env.ClientActor, Amount: d("800")})
	escrowtest.RequireCode(t, err, pkgerrors.CodeInsufficientFunds)

	assert.True(t, env.Account(t, contract.ID).ReleasedTotal.IsZero())
	assert.Equal(t, enums.MilestoneStatusApproved, env.Milestone(t, milestone.ID).Status)
}

func TestAdminForcedRelease(t *testing.T) {
	env := escrowtest.New(t)
	svc := newTestService(t, env)
	ctx := context.Background()
	contract := env.SeedContract(t, escrowtest.ContractSeed{Status: enums.ContractStatusPaused, Funded: "800"})
	milestone := env.SeedMilestone(t, contract.ID, "800", enums.MilestoneStatusInProgress)
	input := ReleaseInput{ContractID: contract.ID, MilestoneID: milestone.ID, Actor: env.ClientActor, Override: &audit.Override{Reason: "client unreachable"}}

	_, err := svc.Release(ctx, input)
	escrowtest.RequireCode(t, err, pkgerrors.CodeForbidden)

	input.Actor = env.AdminActor
	result, err := svc.Release(ctx, input)
	require.NoError(t, err)
	assert.True(t, result.Posting.Split.Net.Equal(d("760")))
	assert.Equal(t, int64(1), env.CountAdminActions(t))
	assert.Equal(t, int64(1), env.CountActivity(t, contract.ID))

	disputed := env.SeedMilestone(t, contract.ID, "10", enums.MilestoneStatusDisputed)
	input.MilestoneID = disputed.ID
	_, err = svc.Release(ctx, input)
	escrowtest.RequireCode(t, err, pkgerrors.CodeStateConflict)
	assert.Equal(t, int64(1), env.CountAdminActions(t))
}

func TestConcurrentReleaseOfOneMilestone(t *testing.T) {
	env := escrowtest.New(t)
	svc := newTestService(t, env)
	contract := env.SeedContract(t, escrowtest.ContractSeed{Status: enums.ContractStatusActiveFunded, Funded: "1000"})
	milestone := env.SeedMilestone(t, contract.ID, "1000", enums.MilestoneStatusApproved)

	const workers = 4
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Release(context.Background(), ReleaseInput{ContractID: contract.ID, MilestoneID: milestone.ID, Actor: env.ClientActor})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		if !pkgerrors.IsCode(err, pkgerrors.CodeStateConflict) && !pkgerrors.IsCode(err, pkgerrors.CodeInsufficientFunds) {
			t.Fatalf("unexpected release error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.True(t, env.Account(t, contract.ID).ReleasedTotal.Equal(d("1000")))
	assert.True(t, env.Wallet(t, env.DeveloperActor.UserID).Balance.Equal(d("950")))
}
