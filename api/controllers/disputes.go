package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/gigledger-backend/api/responses"
	"github.com/angelmondragon/gigledger-backend/api/validators"
	"github.com/angelmondragon/gigledger-backend/internal/disputes"
	"github.com/angelmondragon/gigledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/gigledger-backend/pkg/errors"
	"github.com/angelmondragon/gigledger-backend/pkg/logger"
)

type openDisputeRequest struct {
	MilestoneID *uuid.UUID `json:"milestone_id,omitempty"`
	Reason      string     `json:"reason" validate:"required,max=5000"`
}

type resolveDisputeRequest struct {
	Outcome         string `json:"outcome" validate:"required,oneof=RELEASE_TO_DEVELOPER REFUND_TO_CLIENT SPLIT DISMISS"`
	DeveloperAmount string `json:"developer_amount,omitempty"`
	Notes           string `json:"notes" validate:"max=5000"`
}

// OpenDispute freezes a milestone (or the whole contract when milestone_id is
// omitted) pending admin resolution.
func OpenDispute(svc disputes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "disputes")
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
		var req openDisputeRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		dispute, err := svc.Open(r.Context(), disputes.OpenInput{
			ContractID:  contractID,
			MilestoneID: req.MilestoneID,
			Actor:       actor,
			Reason:      validators.SanitizeString(req.Reason, 5000),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toDisputeView(*dispute))
	}
}

func ListDisputes(svc disputes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "disputes")
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
		items, err := svc.ListByContract(r.Context(), contractID, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toDisputeViews(items))
	}
}

func GetDispute(svc disputes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "disputes")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		disputeID, err := validators.URLParamUUID(r, "disputeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		dispute, err := svc.Get(r.Context(), disputeID, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toDisputeView(*dispute))
	}
}

func ResolveDispute(svc disputes.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "disputes")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		disputeID, err := validators.URLParamUUID(r, "disputeId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req resolveDisputeRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		outcome, err := enums.ParseDisputeOutcome(strings.ToUpper(req.Outcome))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid outcome"))
			return
		}
		devAmount, err := validators.ParseAmount("developer_amount", req.DeveloperAmount)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if outcome == enums.DisputeOutcomeSplit && strings.TrimSpace(req.DeveloperAmount) == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "developer_amount is required for SPLIT"))
			return
		}

		result, err := svc.Resolve(r.Context(), disputes.ResolveInput{
			DisputeID:       disputeID,
			Actor:           actor,
			Outcome:         outcome,
			DeveloperAmount: devAmount,
			Notes:           validators.SanitizeString(req.Notes, 5000),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		body := map[string]any{"dispute": toDisputeView(result.Dispute)}
		if result.Milestone != nil {
			body["milestone"] = toMilestoneView(*result.Milestone)
		}
		if result.Release != nil {
			body["release"] = toPayoutView(*result.Release, nil)
		}
		if result.Refund != nil {
			refund := map[string]any{"escrow": toEscrowView(result.Refund.Account)}
			if result.Refund.Transaction != nil {
				refund["transaction"] = toEscrowTransactionView(*result.Refund.Transaction)
			}
			body["refund"] = refund
		}
		responses.WriteSuccess(w, body)
	}
}
