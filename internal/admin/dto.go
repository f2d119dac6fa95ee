package admin

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/gigledger-backend/internal/audit"
	"github.com/angelmondragon/gigledger-backend/pkg/auth"
	"github.com/angelmondragon/gigledger-backend/pkg/db/models"
	"github.com/angelmondragon/gigledger-backend/pkg/enums"
)

// AcceptFundsInput records money received outside the client flow, such as a
// bank transfer matched by an operator.
type AcceptFundsInput struct {
	ContractID       uuid.UUID
	Actor            auth.Actor
	Amount           decimal.Decimal
	Source           enums.FundingSource
	PaymentReference string
	Reason           string
}

type ReleaseFundsInput struct {
	ContractID  uuid.UUID
	MilestoneID uuid.UUID
	Actor       auth.Actor
	Amount      decimal.Decimal
	Reason      string
}

// OverrideInput drives pause, resume and cancel on behalf of the parties.
type OverrideInput struct {
	ContractID uuid.UUID
	Actor      auth.Actor
	Reason     string
}

// Discrepancy is one failed reconciliation check.
type Discrepancy struct {
	Check    string `json:"check"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
	Message  string `json:"message"`
}

// LedgerSums totals the escrow ledger rows by type.
type LedgerSums struct {
	Funded   decimal.Decimal `json:"funded"`
	Released decimal.Decimal `json:"released"`
	Refunded decimal.Decimal `json:"refunded"`
}

type Report struct {
	ContractID     uuid.UUID            `json:"contract_id"`
	CheckedAt      time.Time            `json:"checked_at"`
	Escrow         models.EscrowAccount `json:"escrow"`
	Ledger         LedgerSums           `json:"ledger"`
	FeeGross       decimal.Decimal      `json:"fee_gross"`
	FeeTotal       decimal.Decimal      `json:"fee_total"`
	DeveloperNet   decimal.Decimal      `json:"developer_net"`
	MilestoneTotal decimal.Decimal      `json:"milestone_total"`
	Discrepancies  []Discrepancy        `json:"discrepancies"`
}

func (r Report) Consistent() bool {
	return len(r.Discrepancies) == 0
}

// AuditTrail is one page of a contract's activity together with the admin
// actions taken against it.
type AuditTrail struct {
	Activity     audit.Page[models.ActivityLog]
	AdminActions []models.AdminAction
}
