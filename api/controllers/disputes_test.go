package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/gigledger-backend/internal/disputes"
	"github.com/angelmondragon/gigledger-backend/internal/ledger"
	"github.com/angelmondragon/gigledger-backend/pkg/db/models"
	"github.com/angelmondragon/gigledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/gigledger-backend/pkg/errors"
)

type stubDisputesService struct {
	disputes.Service
	open    func(ctx context.Context, input disputes.OpenInput) (*models.Dispute, error)
	resolve func(ctx context.Context, input disputes.ResolveInput) (*disputes.ResolveResult, error)
}

func (s stubDisputesService) Open(ctx context.Context, input disputes.OpenInput) (*models.Dispute, error) {
	return s.open(ctx, input)
}

func (s stubDisputesService) Resolve(ctx context.Context, input disputes.ResolveInput) (*disputes.ResolveResult, error) {
	return s.resolve(ctx, input)
}

func TestOpenDisputeMapsDuplicate(t *testing.T) {
	actor := userActor()
	contractID := uuid.New()
	milestoneID := uuid.New()
	var got disputes.OpenInput
	svc := stubDisputesService{open: func(ctx context.Context, input disputes.OpenInput) (*models.Dispute, error) {
		got = input
		return nil, pkgerrors.New(pkgerrors.CodeDuplicateDispute, "milestone already has an open dispute")
	}}

	body := map[string]any{"milestone_id": milestoneID.String(), "reason": "work not delivered"}
	req := newRequest(t, http.MethodPost, "/", body, &actor, map[string]string{"contractId": contractID.String()})
	rec := httptest.NewRecorder()
	OpenDispute(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", rec.Code)
	}
	if got.ContractID != contractID || got.MilestoneID == nil || *got.MilestoneID != milestoneID {
		t.Fatalf("unexpected open input %+v", got)
	}
	if env := decodeEnvelope(t, rec); env.Error.Code != string(pkgerrors.CodeDuplicateDispute) {
		t.Fatalf("unexpected code %q", env.Error.Code)
	}
}

func TestResolveDisputeRequiresDeveloperAmountForSplit(t *testing.T) {
	actor := adminActor()
	svc := stubDisputesService{resolve: func(ctx context.Context, input disputes.ResolveInput) (*disputes.ResolveResult, error) {
		t.Fatal("service must not be called")
		return nil, nil
	}}
	req := newRequest(t, http.MethodPost, "/", map[string]any{"outcome": "SPLIT"}, &actor, map[string]string{"disputeId": uuid.NewString()})
	rec := httptest.NewRecorder()
	ResolveDispute(svc, nil).ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestResolveDisputeSplitReturnsBothLegs(t *testing.T) {
	actor := adminActor()
	disputeID := uuid.New()
	var got disputes.ResolveInput
	svc := stubDisputesService{resolve: func(ctx context.Context, input disputes.ResolveInput) (*disputes.ResolveResult, error) {
		got = input
		outcome := enums.DisputeOutcomeSplit
		refundTx := models.EscrowTransaction{ID: uuid.New(), Type: enums.EscrowTransactionRefund, Amount: decimal.NewFromInt(40)}
		return &disputes.ResolveResult{
			Dispute: models.Dispute{ID: disputeID, Status: enums.DisputeStatusResolved, Outcome: &outcome},
			Release: &ledger.ReleaseResult{Split: ledger.FeeSplit{Gross: decimal.NewFromInt(60)}},
			Refund:  &ledger.RefundResult{Transaction: &refundTx},
		}, nil
	}}

	body := map[string]any{"outcome": "SPLIT", "developer_amount": "60", "notes": "partial delivery"}
	req := newRequest(t, http.MethodPost, "/", body, &actor, map[string]string{"disputeId": disputeID.String()})
	rec := httptest.NewRecorder()
	ResolveDispute(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	if got.Outcome != enums.DisputeOutcomeSplit || !got.DeveloperAmount.Equal(decimal.NewFromInt(60)) {
		t.Fatalf("unexpected resolve input %+v", got)
	}
	env := decodeEnvelope(t, rec)
	if !containsJSON(env.Data, `"release"`) || !containsJSON(env.Data, `"refund"`) {
		t.Fatalf("expected both legs in %s", env.Data)
	}
}

func TestResolveDisputeAlreadyResolved(t *testing.T) {
	actor := adminActor()
	svc := stubDisputesService{resolve: func(ctx context.Context, input disputes.ResolveInput) (*disputes.ResolveResult, error) {
		return nil, pkgerrors.New(pkgerrors.CodeAlreadyResolved, "dispute already resolved")
	}}
	req := newRequest(t, http.MethodPost, "/", map[string]any{"outcome": "DISMISS"}, &actor, map[string]string{"disputeId": uuid.NewString()})
	rec := httptest.NewRecorder()
	ResolveDispute(svc, nil).ServeHTTP(rec, req)
	if rec.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d", rec.Code)
	}
}
