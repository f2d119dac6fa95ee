package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/gigledger-backend/internal/ledger"
	"github.com/angelmondragon/gigledger-backend/internal/milestones"
	"github.com/angelmondragon/gigledger-backend/internal/reviews"
	"github.com/angelmondragon/gigledger-backend/pkg/db/models"
	"github.com/angelmondragon/gigledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/gigledger-backend/pkg/errors"
)

type stubMilestonesService struct {
	milestones.Service
	submit func(ctx context.Context, input milestones.SubmitInput) (*milestones.SubmitResult, error)
}

func (s stubMilestonesService) Submit(ctx context.Context, input milestones.SubmitInput) (*milestones.SubmitResult, error) {
	return s.submit(ctx, input)
}

type stubReviewsService struct {
	reviews.Service
	review  func(ctx context.Context, input reviews.ReviewInput) (*reviews.ReviewResult, error)
	release func(ctx context.Context, input reviews.ReleaseInput) (*reviews.ReleaseResult, error)
}

func (s stubReviewsService) Review(ctx context.Context, input reviews.ReviewInput) (*reviews.ReviewResult, error) {
	return s.review(ctx, input)
}

func (s stubReviewsService) Release(ctx context.Context, input reviews.ReleaseInput) (*reviews.ReleaseResult, error) {
	return s.release(ctx, input)
}

func TestSubmitMilestoneForwardsEvidence(t *testing.T) {
	actor := userActor()
	milestoneID := uuid.New()
	var got milestones.SubmitInput
	svc := stubMilestonesService{submit: func(ctx context.Context, input milestones.SubmitInput) (*milestones.SubmitResult, error) {
		got = input
		return &milestones.SubmitResult{
			Milestone:  models.Milestone{ID: milestoneID, Status: enums.MilestoneStatusSubmitted},
			Submission: models.MilestoneSubmission{ID: uuid.New(), MilestoneID: milestoneID, Sequence: 1},
		}, nil
	}}

	body := map[string]any{
		"summary":  "done",
		"evidence": []map[string]any{{"label": "pull request", "url": "https://example.com/pr/1"}},
	}
	req := newRequest(t, http.MethodPost, "/", body, &actor, map[string]string{"milestoneId": milestoneID.String()})
	rec := httptest.NewRecorder()
	SubmitMilestone(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rec.Code, rec.Body.String())
	}
	if got.MilestoneID != milestoneID || got.Summary != "done" || len(got.Evidence) != 1 {
		t.Fatalf("unexpected submit input %+v", got)
	}
}

func TestReviewMilestoneRejectsUnknownDecision(t *testing.T) {
	actor := userActor()
	svc := stubReviewsService{review: func(ctx context.Context, input reviews.ReviewInput) (*reviews.ReviewResult, error) {
		t.Fatal("service must not be called")
		return nil, nil
	}}
	req := newRequest(t, http.MethodPost, "/", map[string]any{"decision": "MAYBE"}, &actor, map[string]string{"milestoneId": uuid.NewString()})
	rec := httptest.NewRecorder()
	ReviewMilestone(svc, nil).ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestReviewMilestonePassesDecision(t *testing.T) {
	actor := userActor()
	milestoneID := uuid.New()
	var got reviews.ReviewInput
	svc := stubReviewsService{review: func(ctx context.Context, input reviews.ReviewInput) (*reviews.ReviewResult, error) {
		got = input
		return &reviews.ReviewResult{
			Milestone: models.Milestone{ID: milestoneID, Status: enums.MilestoneStatusInProgress},
			Review:    models.MilestoneReview{ID: uuid.New(), MilestoneID: milestoneID, Decision: input.Decision},
		}, nil
	}}
	body := map[string]any{"decision": "REJECT", "reason_code": "INCOMPLETE", "comments": "missing tests"}
	req := newRequest(t, http.MethodPost, "/", body, &actor, map[string]string{"milestoneId": milestoneID.String()})
	rec := httptest.NewRecorder()
	ReviewMilestone(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	if got.Decision != enums.ReviewDecisionReject || got.ReasonCode != "INCOMPLETE" {
		t.Fatalf("unexpected review input %+v", got)
	}
}

func TestReleaseMilestoneDefaultsToFullAmount(t *testing.T) {
	actor := userActor()
	milestoneID := uuid.New()
	var got reviews.ReleaseInput
	svc := stubReviewsService{release: func(ctx context.Context, input reviews.ReleaseInput) (*reviews.ReleaseResult, error) {
		got = input
		split := ledger.FeeSplit{
			Gross:      decimal.NewFromInt(100),
			Fee:        decimal.NewFromInt(5),
			Net:        decimal.NewFromInt(95),
			Percentage: decimal.NewFromInt(5),
		}
		return &reviews.ReleaseResult{
			Milestone: &models.Milestone{ID: milestoneID, Status: enums.MilestoneStatusReleased},
			Posting:   ledger.ReleaseResult{Split: split},
		}, nil
	}}

	req := newRequest(t, http.MethodPost, "/", nil, &actor, map[string]string{"milestoneId": milestoneID.String()})
	rec := httptest.NewRecorder()
	ReleaseMilestone(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	if !got.Amount.IsZero() || got.ContractID != uuid.Nil || got.MilestoneID != milestoneID {
		t.Fatalf("unexpected release input %+v", got)
	}
	env := decodeEnvelope(t, rec)
	if !containsJSON(env.Data, `"net":"95"`) || !containsJSON(env.Data, `"fee":"5"`) {
		t.Fatalf("expected fee split in %s", env.Data)
	}
}

func TestReleaseMilestoneSurfacesInsufficientFunds(t *testing.T) {
	actor := userActor()
	svc := stubReviewsService{release: func(ctx context.Context, input reviews.ReleaseInput) (*reviews.ReleaseResult, error) {
		return nil, pkgerrors.New(pkgerrors.CodeInsufficientFunds, "escrow holds 10, release needs 40")
	}}
	req := newRequest(t, http.MethodPost, "/", map[string]any{"amount": "40"}, &actor, map[string]string{"milestoneId": uuid.NewString()})
	rec := httptest.NewRecorder()
	ReleaseMilestone(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", rec.Code)
	}
	env := decodeEnvelope(t, rec)
	if env.Error.Code != string(pkgerrors.CodeInsufficientFunds) || env.Error.Message != "escrow holds 10, release needs 40" {
		t.Fatalf("unexpected error %+v", env.Error)
	}
}
