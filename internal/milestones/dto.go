package milestones

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/gigledger-backend/pkg/auth"
	"github.com/angelmondragon/gigledger-backend/pkg/db/models"
)

// CreateInput describes a priced unit of work added by the client. OrderIndex
// zero appends after the last milestone.
type CreateInput struct {
	ContractID         uuid.UUID
	Actor              auth.Actor
	Title              string
	Description        string
	AcceptanceCriteria string
	Amount             decimal.Decimal
	DueDate            *time.Time
	OrderIndex         int
}

type SubmitInput struct {
	MilestoneID uuid.UUID
	Actor       auth.Actor
	Summary     string
	Evidence    models.EvidenceItems
}

type SubmitResult struct {
	Milestone  models.Milestone
	Submission models.MilestoneSubmission
}
