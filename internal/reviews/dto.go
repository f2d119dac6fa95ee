package reviews

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/gigledger-backend/internal/audit"
	"github.com/angelmondragon/gigledger-backend/internal/ledger"
	"github.com/angelmondragon/gigledger-backend/pkg/auth"
	"github.com/angelmondragon/gigledger-backend/pkg/db/models"
	"github.com/angelmondragon/gigledger-backend/pkg/enums"
)

type ReviewInput struct {
	MilestoneID uuid.UUID
	Actor       auth.Actor
	Decision    enums.ReviewDecision
	ReasonCode  string
	Comments    string
}

type ReviewResult struct {
	Milestone models.Milestone
	Review    models.MilestoneReview
}

// ReleaseInput pays a milestone out of escrow. A zero Amount releases the full
// milestone amount. ContractID, when set, must own the milestone. Override
// switches to the admin path.
type ReleaseInput struct {
	ContractID  uuid.UUID
	MilestoneID uuid.UUID
	Actor       auth.Actor
	Amount      decimal.Decimal
	Reason      string
	Override    *audit.Override
}

type ReleaseResult struct {
	Milestone *models.Milestone
	Posting   ledger.ReleaseResult
}

// PayoutInput is a release whose preconditions the caller already checked
// under its own locks. Milestone is nil for contract-level payouts.
type PayoutInput struct {
	Contract  *models.Contract
	Milestone *models.Milestone
	Amount    decimal.Decimal
	CoinType  enums.CoinTransactionType
	Override  bool
}
