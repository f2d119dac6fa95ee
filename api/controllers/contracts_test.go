package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/gigledger-backend/internal/contracts"
	"github.com/angelmondragon/gigledger-backend/pkg/db/models"
	"github.com/angelmondragon/gigledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/gigledger-backend/pkg/errors"
)

type stubContractsService struct {
	contracts.Service
	create func(ctx context.Context, input contracts.CreateInput) (*contracts.Snapshot, error)
	fund   func(ctx context.Context, input contracts.FundInput) (*contracts.FundResult, error)
	cancel func(ctx context.Context, input contracts.TransitionInput) (*contracts.CloseResult, error)
}

func (s stubContractsService) Create(ctx context.Context, input contracts.CreateInput) (*contracts.Snapshot, error) {
	return s.create(ctx, input)
}

func (s stubContractsService) Fund(ctx context.Context, input contracts.FundInput) (*contracts.FundResult, error) {
	return s.fund(ctx, input)
}

func (s stubContractsService) Cancel(ctx context.Context, input contracts.TransitionInput) (*contracts.CloseResult, error) {
	return s.cancel(ctx, input)
}

func TestCreateContractParsesInput(t *testing.T) {
	actor := userActor()
	var got contracts.CreateInput
	svc := stubContractsService{create: func(ctx context.Context, input contracts.CreateInput) (*contracts.Snapshot, error) {
		got = input
		return &contracts.Snapshot{Contract: models.Contract{ID: uuid.New(), ClientID: input.Actor.UserID, Status: enums.ContractStatusDraft}}, nil
	}}

	body := map[string]any{
		"title":         "Landing page",
		"currency":      "usd",
		"total_amount":  "1500.00",
		"funding_mode":  "MILESTONE_BASED",
		"terms_version": "v1",
	}
	req := newRequest(t, http.MethodPost, "/api/v1/contracts", body, &actor, nil)
	rec := httptest.NewRecorder()
	CreateContract(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d: %s", rec.Code, rec.Body.String())
	}
	if got.Actor != actor {
		t.Fatalf("unexpected actor %+v", got.Actor)
	}
	if got.Currency != enums.CurrencyUSD {
		t.Fatalf("expected USD got %q", got.Currency)
	}
	if !got.TotalAmount.Equal(decimal.RequireFromString("1500")) {
		t.Fatalf("unexpected total %s", got.TotalAmount)
	}
	if got.FundingMode != enums.FundingModeMilestoneBased {
		t.Fatalf("unexpected funding mode %q", got.FundingMode)
	}
}

func TestCreateContractRejectsBadInput(t *testing.T) {
	actor := userActor()
	svc := stubContractsService{create: func(ctx context.Context, input contracts.CreateInput) (*contracts.Snapshot, error) {
		t.Fatal("service must not be called")
		return nil, nil
	}}

	cases := map[string]map[string]any{
		"unknown currency": {"title": "x", "currency": "DOGE", "total_amount": "10", "funding_mode": "FULL_UPFRONT"},
		"bad amount":       {"title": "x", "currency": "USD", "total_amount": "ten", "funding_mode": "FULL_UPFRONT"},
		"bad mode":         {"title": "x", "currency": "USD", "total_amount": "10", "funding_mode": "WHENEVER"},
		"missing title":    {"currency": "USD", "total_amount": "10", "funding_mode": "FULL_UPFRONT"},
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			req := newRequest(t, http.MethodPost, "/api/v1/contracts", body, &actor, nil)
			rec := httptest.NewRecorder()
			CreateContract(svc, nil).ServeHTTP(rec, req)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400 got %d: %s", rec.Code, rec.Body.String())
			}
		})
	}
}

func TestContractHandlersRequireActor(t *testing.T) {
	req := newRequest(t, http.MethodPost, "/api/v1/contracts", map[string]any{}, nil, nil)
	rec := httptest.NewRecorder()
	CreateContract(stubContractsService{}, nil).ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}
}

func TestFundContractForwardsReferenceAndReplayFlag(t *testing.T) {
	actor := userActor()
	contractID := uuid.New()
	var got contracts.FundInput
	svc := stubContractsService{fund: func(ctx context.Context, input contracts.FundInput) (*contracts.FundResult, error) {
		got = input
		return &contracts.FundResult{
			Snapshot:    contracts.Snapshot{Contract: models.Contract{ID: contractID}},
			Transaction: models.EscrowTransaction{ID: uuid.New(), Amount: input.Amount},
			Replayed:    true,
		}, nil
	}}

	body := map[string]any{"amount": "250.50", "payment_reference": " pay_123 ", "source": "bank_transfer"}
	req := newRequest(t, http.MethodPost, "/api/v1/contracts/x/fund", body, &actor, map[string]string{"contractId": contractID.String()})
	rec := httptest.NewRecorder()
	FundContract(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	if got.ContractID != contractID || got.Reference != "pay_123" {
		t.Fatalf("unexpected fund input %+v", got)
	}
	if got.Source != enums.FundingSourceBankTransfer {
		t.Fatalf("unexpected source %q", got.Source)
	}
	env := decodeEnvelope(t, rec)
	if !containsJSON(env.Data, `"replayed":true`) {
		t.Fatalf("expected replayed flag in %s", env.Data)
	}
}

func TestFundContractMapsInsufficientFunds(t *testing.T) {
	actor := userActor()
	svc := stubContractsService{fund: func(ctx context.Context, input contracts.FundInput) (*contracts.FundResult, error) {
		return nil, pkgerrors.New(pkgerrors.CodeWalletCapacity, "wallet would exceed capacity")
	}}
	body := map[string]any{"amount": "1"}
	req := newRequest(t, http.MethodPost, "/", body, &actor, map[string]string{"contractId": uuid.NewString()})
	rec := httptest.NewRecorder()
	FundContract(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", rec.Code)
	}
	if env := decodeEnvelope(t, rec); env.Error.Code != string(pkgerrors.CodeWalletCapacity) {
		t.Fatalf("unexpected code %q", env.Error.Code)
	}
}

func TestFundContractRejectsInvalidPathParam(t *testing.T) {
	actor := userActor()
	req := newRequest(t, http.MethodPost, "/", map[string]any{"amount": "1"}, &actor, map[string]string{"contractId": "not-a-uuid"})
	rec := httptest.NewRecorder()
	FundContract(stubContractsService{}, nil).ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestCancelContractAcceptsEmptyBody(t *testing.T) {
	actor := userActor()
	contractID := uuid.New()
	var got contracts.TransitionInput
	svc := stubContractsService{cancel: func(ctx context.Context, input contracts.TransitionInput) (*contracts.CloseResult, error) {
		got = input
		refund := models.EscrowTransaction{ID: uuid.New(), Type: enums.EscrowTransactionRefund, Amount: decimal.NewFromInt(40)}
		return &contracts.CloseResult{Snapshot: contracts.Snapshot{Contract: models.Contract{ID: contractID}}, Refund: &refund}, nil
	}}

	req := newRequest(t, http.MethodPost, "/", nil, &actor, map[string]string{"contractId": contractID.String()})
	rec := httptest.NewRecorder()
	CancelContract(svc, nil).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}
	if got.ContractID != contractID || got.Reason != "" {
		t.Fatalf("unexpected transition input %+v", got)
	}
	if env := decodeEnvelope(t, rec); !containsJSON(env.Data, `"refund"`) {
		t.Fatalf("expected refund in %s", env.Data)
	}
}
