package disputes

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/gigledger-backend/internal/ledger"
	"github.com/angelmondragon/gigledger-backend/pkg/auth"
	"github.com/angelmondragon/gigledger-backend/pkg/db/models"
	"github.com/angelmondragon/gigledger-backend/pkg/enums"
)

// OpenInput raises a dispute on a milestone, or on the whole contract when
// MilestoneID is nil.
type OpenInput struct {
	ContractID  uuid.UUID
	MilestoneID *uuid.UUID
	Actor       auth.Actor
	Reason      string
}

// ResolveInput closes a dispute. DeveloperAmount is only read for SPLIT.
type ResolveInput struct {
	DisputeID       uuid.UUID
	Actor           auth.Actor
	Outcome         enums.DisputeOutcome
	DeveloperAmount decimal.Decimal
	Notes           string
}

type ResolveResult struct {
	Dispute   models.Dispute
	Milestone *models.Milestone
	Release   *ledger.ReleaseResult
	Refund    *ledger.RefundResult
}
