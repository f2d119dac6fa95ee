package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/gigledger-backend/api/responses"
	"github.com/angelmondragon/gigledger-backend/api/validators"
	"github.com/angelmondragon/gigledger-backend/internal/contracts"
	"github.com/angelmondragon/gigledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/gigledger-backend/pkg/errors"
	"github.com/angelmondragon/gigledger-backend/pkg/logger"
)

type createContractRequest struct {
	DeveloperID  *uuid.UUID      `json:"developer_id,omitempty"`
	Title        string          `json:"title" validate:"required,max=200"`
	Description  string          `json:"description" validate:"max=5000"`
	Currency     string          `json:"currency" validate:"required"`
	TotalAmount  string          `json:"total_amount" validate:"required"`
	FundingMode  string          `json:"funding_mode" validate:"required,oneof=FULL_UPFRONT MILESTONE_BASED"`
	StartAt      *time.Time      `json:"start_at,omitempty"`
	TermsVersion string          `json:"terms_version" validate:"max=64"`
	Metadata     json.RawMessage `json:"metadata,omitempty"`
}

type assignDeveloperRequest struct {
	DeveloperID uuid.UUID `json:"developer_id" validate:"required"`
}

type fundContractRequest struct {
	Amount           string `json:"amount" validate:"required"`
	PaymentReference string `json:"payment_reference" validate:"max=128"`
	Source           string `json:"source,omitempty"`
}

type transitionRequest struct {
	Reason string `json:"reason" validate:"max=1000"`
}

// CreateContract drafts a contract owned by the calling client.
func CreateContract(svc contracts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "contracts")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}

		var req createContractRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		currency, err := enums.ParseCurrency(strings.ToUpper(strings.TrimSpace(req.Currency)))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid currency"))
			return
		}
		total, err := validators.ParseAmount("total_amount", req.TotalAmount)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		snapshot, err := svc.Create(r.Context(), contracts.CreateInput{
			Actor:        actor,
			DeveloperID:  req.DeveloperID,
			Title:        validators.SanitizeString(req.Title, 200),
			Description:  validators.SanitizeString(req.Description, 5000),
			Currency:     currency,
			TotalAmount:  total,
			FundingMode:  enums.FundingMode(req.FundingMode),
			StartAt:      req.StartAt,
			TermsVersion: validators.SanitizeString(req.TermsVersion, 64),
			Metadata:     req.Metadata,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toSnapshotView(*snapshot))
	}
}

func GetContract(svc contracts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "contracts")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		contractID, err := validators.URLParamUUID(r, "contractId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		snapshot, err := svc.Get(r.Context(), contractID, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toSnapshotView(*snapshot))
	}
}

// ContractEscrow returns the escrow position and its ledger history.
func ContractEscrow(svc contracts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "contracts")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		contractID, err := validators.URLParamUUID(r, "contractId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		view, err := svc.Escrow(r.Context(), contractID, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toEscrowHistoryView(view))
	}
}

func AssignDeveloper(svc contracts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "contracts")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		contractID, err := validators.URLParamUUID(r, "contractId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req assignDeveloperRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if req.DeveloperID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "developer_id is required"))
			return
		}

		snapshot, err := svc.AssignDeveloper(r.Context(), contracts.AssignDeveloperInput{
			ContractID:  contractID,
			Actor:       actor,
			DeveloperID: req.DeveloperID,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toSnapshotView(*snapshot))
	}
}

// FundContract deposits into escrow. payment_reference deduplicates retries
// on top of the Idempotency-Key replay.
func FundContract(svc contracts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "contracts")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		contractID, err := validators.URLParamUUID(r, "contractId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req fundContractRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		amount, err := validators.ParseAmount("amount", req.Amount)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var source enums.FundingSource
		if raw := strings.TrimSpace(req.Source); raw != "" {
			source, err = enums.ParseFundingSource(strings.ToUpper(raw))
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid funding source"))
				return
			}
		}

		result, err := svc.Fund(r.Context(), contracts.FundInput{
			ContractID: contractID,
			Actor:      actor,
			Amount:     amount,
			Reference:  strings.TrimSpace(req.PaymentReference),
			Source:     source,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toFundView(result))
	}
}

type snapshotTransition func(ctx context.Context, input contracts.TransitionInput) (*contracts.Snapshot, error)

// ActivateContract moves a funded-or-not draft into the active lifecycle.
func ActivateContract(svc contracts.Service, logg *logger.Logger) http.HandlerFunc {
	return contractTransition(svc, logg, func(s contracts.Service) snapshotTransition { return s.Activate })
}

func PauseContract(svc contracts.Service, logg *logger.Logger) http.HandlerFunc {
	return contractTransition(svc, logg, func(s contracts.Service) snapshotTransition { return s.Pause })
}

func ResumeContract(svc contracts.Service, logg *logger.Logger) http.HandlerFunc {
	return contractTransition(svc, logg, func(s contracts.Service) snapshotTransition { return s.Resume })
}

func contractTransition(svc contracts.Service, logg *logger.Logger, pick func(contracts.Service) snapshotTransition) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "contracts")
			return
		}
		input, ok := decodeTransition(w, r, logg)
		if !ok {
			return
		}
		snapshot, err := pick(svc)(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toSnapshotView(*snapshot))
	}
}

func CancelContract(svc contracts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "contracts")
			return
		}
		input, ok := decodeTransition(w, r, logg)
		if !ok {
			return
		}
		result, err := svc.Cancel(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toCloseView(result))
	}
}

func CompleteContract(svc contracts.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "contracts")
			return
		}
		input, ok := decodeTransition(w, r, logg)
		if !ok {
			return
		}
		result, err := svc.Complete(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toCloseView(result))
	}
}

// decodeTransition reads the optional reason body. An empty body is allowed.
func decodeTransition(w http.ResponseWriter, r *http.Request, logg *logger.Logger) (contracts.TransitionInput, bool) {
	actor, ok := requireActor(w, r, logg)
	if !ok {
		return contracts.TransitionInput{}, false
	}
	contractID, err := validators.URLParamUUID(r, "contractId")
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return contracts.TransitionInput{}, false
	}
	var req transitionRequest
	if err := validators.DecodeOptionalJSONBody(r, &req); err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return contracts.TransitionInput{}, false
	}
	return contracts.TransitionInput{
		ContractID: contractID,
		Actor:      actor,
		Reason:     validators.SanitizeString(req.Reason, 1000),
	}, true
}
