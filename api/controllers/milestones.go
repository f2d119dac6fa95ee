package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/angelmondragon/gigledger-backend/api/responses"
	"github.com/angelmondragon/gigledger-backend/api/validators"
	"github.com/angelmondragon/gigledger-backend/internal/milestones"
	"github.com/angelmondragon/gigledger-backend/internal/reviews"
	"github.com/angelmondragon/gigledger-backend/pkg/db/models"
	"github.com/angelmondragon/gigledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/gigledger-backend/pkg/errors"
	"github.com/angelmondragon/gigledger-backend/pkg/logger"
)

type createMilestoneRequest struct {
	Title              string     `json:"title" validate:"required,max=200"`
	Description        string     `json:"description" validate:"max=5000"`
	AcceptanceCriteria string     `json:"acceptance_criteria" validate:"max=5000"`
	Amount             string     `json:"amount" validate:"required"`
	DueDate            *time.Time `json:"due_date,omitempty"`
	OrderIndex         int        `json:"order_index" validate:"min=0"`
}

type submitMilestoneRequest struct {
	Summary  string                `json:"summary" validate:"required,max=5000"`
	Evidence []models.EvidenceItem `json:"evidence" validate:"max=20,dive"`
}

type reviewMilestoneRequest struct {
	Decision   string `json:"decision" validate:"required,oneof=APPROVE REJECT"`
	ReasonCode string `json:"reason_code" validate:"max=64"`
	Comments   string `json:"comments" validate:"max=5000"`
}

type releaseMilestoneRequest struct {
	Amount string `json:"amount,omitempty"`
	Reason string `json:"reason" validate:"max=1000"`
}

func CreateMilestone(svc milestones.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "milestones")
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
		var req createMilestoneRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		amount, err := validators.ParseAmount("amount", req.Amount)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		milestone, err := svc.Create(r.Context(), milestones.CreateInput{
			ContractID:         contractID,
			Actor:              actor,
			Title:              validators.SanitizeString(req.Title, 200),
			Description:        validators.SanitizeString(req.Description, 5000),
			AcceptanceCriteria: validators.SanitizeString(req.AcceptanceCriteria, 5000),
			Amount:             amount,
			DueDate:            req.DueDate,
			OrderIndex:         req.OrderIndex,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, toMilestoneView(*milestone))
	}
}

func ListMilestones(svc milestones.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "milestones")
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
		responses.WriteSuccess(w, toMilestoneViews(items))
	}
}

func GetMilestone(svc milestones.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "milestones")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		milestoneID, err := validators.URLParamUUID(r, "milestoneId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		milestone, err := svc.Get(r.Context(), milestoneID, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toMilestoneView(*milestone))
	}
}

// StartMilestone lets the developer move a PENDING milestone into IN_PROGRESS.
func StartMilestone(svc milestones.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "milestones")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		milestoneID, err := validators.URLParamUUID(r, "milestoneId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		milestone, err := svc.StartWork(r.Context(), milestoneID, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toMilestoneView(*milestone))
	}
}

func SubmitMilestone(svc milestones.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "milestones")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		milestoneID, err := validators.URLParamUUID(r, "milestoneId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req submitMilestoneRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Submit(r.Context(), milestones.SubmitInput{
			MilestoneID: milestoneID,
			Actor:       actor,
			Summary:     validators.SanitizeString(req.Summary, 5000),
			Evidence:    models.EvidenceItems(req.Evidence),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, map[string]any{
			"milestone":  toMilestoneView(result.Milestone),
			"submission": toSubmissionView(result.Submission),
		})
	}
}

func ListSubmissions(svc milestones.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "milestones")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		milestoneID, err := validators.URLParamUUID(r, "milestoneId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		items, err := svc.ListSubmissions(r.Context(), milestoneID, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]submissionView, 0, len(items))
		for _, item := range items {
			out = append(out, toSubmissionView(item))
		}
		responses.WriteSuccess(w, out)
	}
}

func ListReviews(svc milestones.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "milestones")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		milestoneID, err := validators.URLParamUUID(r, "milestoneId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		items, err := svc.ListReviews(r.Context(), milestoneID, actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		out := make([]reviewView, 0, len(items))
		for _, item := range items {
			out = append(out, toReviewView(item))
		}
		responses.WriteSuccess(w, out)
	}
}

// ReviewMilestone records the client's decision on the latest submission.
func ReviewMilestone(svc reviews.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "reviews")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		milestoneID, err := validators.URLParamUUID(r, "milestoneId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req reviewMilestoneRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		decision, err := enums.ParseReviewDecision(strings.ToUpper(req.Decision))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid decision"))
			return
		}

		result, err := svc.Review(r.Context(), reviews.ReviewInput{
			MilestoneID: milestoneID,
			Actor:       actor,
			Decision:    decision,
			ReasonCode:  validators.SanitizeString(req.ReasonCode, 64),
			Comments:    validators.SanitizeString(req.Comments, 5000),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"milestone": toMilestoneView(result.Milestone),
			"review":    toReviewView(result.Review),
		})
	}
}

// ReleaseMilestone pays an approved milestone out of escrow. Omitting amount
// releases the full milestone amount.
func ReleaseMilestone(svc reviews.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			serviceUnavailable(w, r, logg, "reviews")
			return
		}
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		milestoneID, err := validators.URLParamUUID(r, "milestoneId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req releaseMilestoneRequest
		if err := validators.DecodeOptionalJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		amount, err := validators.ParseAmount("amount", req.Amount)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.Release(r.Context(), reviews.ReleaseInput{
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
