package controllers

import (
	"net/http"
	"strings"

	"github.com/angelmondragon/gigledger-backend/api/responses"
	"github.com/angelmondragon/gigledger-backend/api/validators"
	"github.com/angelmondragon/gigledger-backend/internal/admin"
	"github.com/angelmondragon/gigledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/gigledger-backend/pkg/errors"
	"github.com/angelmondragon/gigledger-backend/pkg/logger"
)

type acceptFundsRequest struct {
	Amount           string `json:"amount" validate:"required"`
	Source           string `json:"source,omitempty"`
	PaymentReference string `json:"payment_reference" validate:"required,max=128"`
	Reason           string `json:"reason" validate:"max=1000"`
}

type adminReleaseRequest struct {
	Amount string `json:"amount,omitempty"`
	Reason string `json:"reason" validate:"required,max=1000"`
}

type overrideRequest struct {
	Reason string `json:"reason" validate:"required,max=1000"`
}

// AdminAcceptFunds records funds received outside the client flow, keyed by
// the provider's payment reference.
func AdminAcceptFunds(svc admin.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "admin")
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
		var req acceptFundsRequest
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

		result, err := svc.AcceptFunds(r.Context(), admin.AcceptFundsInput{
			ContractID:       contractID,
			Actor:            actor,
			Amount:           amount,
			Source:           source,
			PaymentReference: strings.TrimSpace(req.PaymentReference),
			Reason:           validators.SanitizeString(req.Reason, 1000),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toFundView(result))
	}
}

func AdminReleaseMilestone(svc admin.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "admin")
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
		milestoneID, err := validators.URLParamUUID(r, "milestoneId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req adminReleaseRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		amount, err := validators.ParseAmount("amount", req.Amount)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.ReleaseFunds(r.Context(), admin.ReleaseFundsInput{
			ContractID:  contractID,
			MilestoneID: milestoneID,
			Actor:       actor,
			Amount:      amount,
			Reason:      validators.SanitizeString(req.Reason, 1000),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toReleaseView(result))
	}
}

func AdminPauseContract(svc admin.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		input, ok := decodeOverride(svc, w, r, logg)
		if !ok {
			return
		}
		snapshot, err := svc.Pause(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toSnapshotView(*snapshot))
	}
}

func AdminResumeContract(svc admin.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		input, ok := decodeOverride(svc, w, r, logg)
		if !ok {
			return
		}
		snapshot, err := svc.Resume(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toSnapshotView(*snapshot))
	}
}

func AdminCancelContract(svc admin.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		input, ok := decodeOverride(svc, w, r, logg)
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

func decodeOverride(svc admin.Service, w http.ResponseWriter, r *http.Request, logg *logger.Logger) (admin.OverrideInput, bool) {
	if svc == nil {
		serviceUnavailable(w, r, logg, "admin")
		return admin.OverrideInput{}, false
	}
	actor, ok := requireActor(w, r, logg)
	if !ok {
		return admin.OverrideInput{}, false
	}
	contractID, err := validators.URLParamUUID(r, "contractId")
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return admin.OverrideInput{}, false
	}
	var req overrideRequest
	if err := validators.DecodeJSONBody(r, &req); err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return admin.OverrideInput{}, false
	}
	return admin.OverrideInput{
		ContractID: contractID,
		Actor:      actor,
		Reason:     validators.SanitizeString(req.Reason, 1000),
	}, true
}

// AdminReconciliation compares escrow counters with the ledger rows behind them.
func AdminReconciliation(svc admin.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "admin")
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
		report, err := svc.Reconcile(r.Context(), contractID, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toReconciliationView(report))
	}
}

func AdminAuditTrail(svc admin.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "admin")
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
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		trail, err := svc.AuditTrail(r.Context(), contractID, actor, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toAuditTrailView(trail))
	}
}
