package milestones

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/gigledger-backend/internal/contracts"
	"github.com/angelmondragon/gigledger-backend/internal/escrowtest"
	"github.com/angelmondragon/gigledger-backend/pkg/auth"
	"github.com/angelmondragon/gigledger-backend/pkg/db/models"
	"github.com/angelmondragon/gigledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/gigledger-backend/pkg/errors"
)

var d = escrowtest.D

func newTestService(t *testing.T) (Service, *escrowtest.Env) {
	t.Helper()
	env := escrowtest.New(t)
	svc, err := NewService(env.Runner, NewRepository(env.DB), contracts.NewRepository(env.DB), env.Audit)
	require.NoError(t, err)
	return svc, env
}

func TestCreateAppendsPendingMilestones(t *testing.T) {
	svc, env := newTestService(t)
	ctx := context.Background()
	contract := env.SeedContract(t, escrowtest.ContractSeed{Total: "1000"})

	first, err := svc.Create(ctx, CreateInput{ContractID: contract.ID, Actor: env.ClientActor, Title: "Design", Amount: d("400")})
	require.NoError(t, err)
	second, err := svc.Create(ctx, CreateInput{ContractID: contract.ID, Actor: env.ClientActor, Title: "Build", Amount: d("600")})
	require.NoError(t, err)

	assert.Equal(t, enums.MilestoneStatusPending, first.Status)
	assert.Equal(t, 1, first.OrderIndex)
	assert.Equal(t, 2, second.OrderIndex)
	assert.Equal(t, []enums.OutboxEventType{enums.EventMilestoneStateChanged}, env.EventTypes(t, first.ID))

	_, err = svc.Create(ctx, CreateInput{ContractID: contract.ID, Actor: env.ClientActor, Title: "Extra", Amount: d("0.01")})
	escrowtest.RequireCode(t, err, pkgerrors.CodeValidation)
}

func TestCreateAllowsOvercommitForUpfrontContracts(t *testing.T) {
	svc, env := newTestService(t)
	contract := env.SeedContract(t, escrowtest.ContractSeed{Total: "100", Mode: enums.FundingModeFullUpfront})

	_, err := svc.Create(context.Background(), CreateInput{ContractID: contract.ID, Actor: env.ClientActor, Title: "All of it", Amount: d("150")})
	require.NoError(t, err)
}

func TestCreateRejectsTakenOrderIndex(t *testing.T) {
	svc, env := newTestService(t)
	ctx := context.Background()
	contract := env.SeedContract(t, escrowtest.ContractSeed{Total: "1000"})

	first, err := svc.Create(ctx, CreateInput{ContractID: contract.ID, Actor: env.ClientActor, Title: "Design", Amount: d("100"), OrderIndex: 3})
	require.NoError(t, err)
	assert.Equal(t, 3, first.OrderIndex)

	_, err = svc.Create(ctx, CreateInput{ContractID: contract.ID, Actor: env.ClientActor, Title: "Build", Amount: d("100"), OrderIndex: 3})
	escrowtest.RequireCode(t, err, pkgerrors.CodeValidation)

	next, err := svc.Create(ctx, CreateInput{ContractID: contract.ID, Actor: env.ClientActor, Title: "Build", Amount: d("100")})
	require.NoError(t, err)
	assert.Equal(t, 4, next.OrderIndex)

	dup := &models.Milestone{ContractID: contract.ID, Title: "Raw", Amount: d("1"), OrderIndex: 3, Status: enums.MilestoneStatusPending}
	require.Error(t, env.DB.Create(dup).Error)
}

func TestCreateRules(t *testing.T) {
	svc, env := newTestService(t)
	ctx := context.Background()
	contract := env.SeedContract(t, escrowtest.ContractSeed{})
	closed := env.SeedContract(t, escrowtest.ContractSeed{Status: enums.ContractStatusCancelled})

	_, err := svc.Create(ctx, CreateInput{ContractID: contract.ID, Actor: env.DeveloperActor, Title: "x", Amount: d("10")})
	escrowtest.RequireCode(t, err, pkgerrors.CodeForbidden)

	_, err = svc.Create(ctx, CreateInput{ContractID: contract.ID, Actor: env.ClientActor, Title: "x", Amount: d("-5")})
	escrowtest.RequireCode(t, err, pkgerrors.CodeValidation)

	_, err = svc.Create(ctx, CreateInput{ContractID: contract.ID, Actor: env.ClientActor, Title: " ", Amount: d("5")})
	escrowtest.RequireCode(t, err, pkgerrors.CodeValidation)

	_, err = svc.Create(ctx, CreateInput{ContractID: closed.ID, Actor: env.ClientActor, Title: "x", Amount: d("5")})
	escrowtest.RequireCode(t, err, pkgerrors.CodeStateConflict)

	_, err = svc.Create(ctx, CreateInput{ContractID: uuid.New(), Actor: env.ClientActor, Title: "x", Amount: d("5")})
	escrowtest.RequireCode(t, err, pkgerrors.CodeNotFound)
}

func TestStartAndSubmitFlow(t *testing.T) {
	svc, env := newTestService(t)
	ctx := context.Background()
	contract := env.SeedContract(t, escrowtest.ContractSeed{Status: enums.ContractStatusActiveFunded, Funded: "1000"})
	milestone := env.SeedMilestone(t, contract.ID, "1000", enums.MilestoneStatusPending)

	_, err := svc.StartWork(ctx, milestone.ID, env.ClientActor)
	escrowtest.RequireCode(t, err, pkgerrors.CodeForbidden)

	_, err = svc.Submit(ctx, SubmitInput{MilestoneID: milestone.ID, Actor: env.DeveloperActor, Summary: "done"})
	escrowtest.RequireCode(t, err, pkgerrors.CodeStateConflict)

	started, err := svc.StartWork(ctx, milestone.ID, env.DeveloperActor)
	require.NoError(t, err)
	assert.Equal(t, enums.MilestoneStatusInProgress, started.Status)

	_, err = svc.StartWork(ctx, milestone.ID, env.DeveloperActor)
	escrowtest.RequireCode(t, err, pkgerrors.CodeStateConflict)

	submitted, err := svc.Submit(ctx, SubmitInput{
		MilestoneID: milestone.ID,
		Actor:       env.DeveloperActor,
		Summary:     "Checkout flow shipped",
		Evidence:    models.EvidenceItems{{Label: "PR", URL: "https://example.com/pr/1"}},
	})
	require.NoError(t, err)
	assert.Equal(t, enums.MilestoneStatusSubmitted, submitted.Milestone.Status)
	assert.Equal(t, 1, submitted.Submission.Sequence)
	assert.Equal(t, enums.MilestoneStatusSubmitted, env.Milestone(t, milestone.ID).Status)
	assert.Contains(t, env.EventTypes(t, milestone.ID), enums.EventMilestoneSubmitted)
	assert.Equal(t, int64(2), env.CountActivity(t, contract.ID))
}

func TestSubmissionsAccumulateAcrossResubmits(t *testing.T) {
	svc, env := newTestService(t)
	ctx := context.Background()
	contract := env.SeedContract(t, escrowtest.ContractSeed{Status: enums.ContractStatusActiveFunded, Funded: "500"})
	milestone := env.SeedMilestone(t, contract.ID, "500", enums.MilestoneStatusInProgress)

	_, err := svc.Submit(ctx, SubmitInput{MilestoneID: milestone.ID, Actor: env.DeveloperActor, Summary: "first cut"})
	require.NoError(t, err)
	// a rejection sends the milestone back to work
	require.NoError(t, env.DB.Model(&models.Milestone{}).Where("id = ?", milestone.ID).
		Update("status", enums.MilestoneStatusInProgress).Error)
	second, err := svc.Submit(ctx, SubmitInput{MilestoneID: milestone.ID, Actor: env.DeveloperActor, Summary: "second cut"})
	require.NoError(t, err)
	assert.Equal(t, 2, second.Submission.Sequence)

	subs, err := svc.ListSubmissions(ctx, milestone.ID, env.ClientActor)
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, "first cut", subs[0].Summary)
	assert.Equal(t, "second cut", subs[1].Summary)
}

func TestSubmitValidatesEvidence(t *testing.T) {
	svc, env := newTestService(t)
	_, err := svc.Submit(context.Background(), SubmitInput{
		MilestoneID: uuid.New(),
		Actor:       env.DeveloperActor,
		Summary:     "done",
		Evidence:    models.EvidenceItems{{Label: " "}},
	})
	escrowtest.RequireCode(t, err, pkgerrors.CodeValidation)
}

func TestStartWorkNeedsActiveContract(t *testing.T) {
	svc, env := newTestService(t)
	contract := env.SeedContract(t, escrowtest.ContractSeed{Status: enums.ContractStatusPaused})
	milestone := env.SeedMilestone(t, contract.ID, "100", enums.MilestoneStatusPending)

	_, err := svc.StartWork(context.Background(), milestone.ID, env.DeveloperActor)
	escrowtest.RequireCode(t, err, pkgerrors.CodeStateConflict)
}

func TestReadsRequireParty(t *testing.T) {
	svc, env := newTestService(t)
	ctx := context.Background()
	contract := env.SeedContract(t, escrowtest.ContractSeed{})
	milestone := env.SeedMilestone(t, contract.ID, "100", enums.MilestoneStatusPending)
	env.SeedMilestone(t, contract.ID, "200", enums.MilestoneStatusPending)
	stranger := auth.Actor{UserID: uuid.New(), Role: enums.ActorRoleUser}

	rows, err := svc.ListByContract(ctx, contract.ID, env.DeveloperActor)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, milestone.ID, rows[0].ID)

	_, err = svc.ListByContract(ctx, contract.ID, stranger)
	escrowtest.RequireCode(t, err, pkgerrors.CodeForbidden)
	_, err = svc.Get(ctx, milestone.ID, stranger)
	escrowtest.RequireCode(t, err, pkgerrors.CodeForbidden)

	got, err := svc.Get(ctx, milestone.ID, env.AdminActor)
	require.NoError(t, err)
	assert.Equal(t, milestone.ID, got.ID)

	reviews, err := svc.ListReviews(ctx, milestone.ID, env.ClientActor)
	require.NoError(t, err)
	assert.Empty(t, reviews)
}

func TestTransitionStatusIsCompareAndSet(t *testing.T) {
	env := escrowtest.New(t)
	repo := NewRepository(env.DB)
	contract := env.SeedContract(t, escrowtest.ContractSeed{})
	milestone := env.SeedMilestone(t, contract.ID, "100", enums.MilestoneStatusPending)

	stale := *milestone
	require.NoError(t, repo.TransitionStatus(context.Background(), milestone, enums.MilestoneStatusInProgress, nil))
	err := repo.TransitionStatus(context.Background(), &stale, enums.MilestoneStatusInProgress, nil)
	escrowtest.RequireCode(t, err, pkgerrors.CodeStateConflict)
}
