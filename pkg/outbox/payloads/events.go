package payloads

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/gigledger-backend/pkg/enums"
)

// ContractFundedEvent is emitted once per accepted funding payment.
type ContractFundedEvent struct {
	ContractID  uuid.UUID           `json:"contract_id"`
	Amount      decimal.Decimal     `json:"amount"`
	Currency    enums.Currency      `json:"currency"`
	FundedTotal decimal.Decimal     `json:"funded_total"`
	Available   decimal.Decimal     `json:"available"`
	Source      enums.FundingSource `json:"source,omitempty"`
	Reference   string              `json:"reference,omitempty"`
}

// ContractStateChangedEvent reports a contract lifecycle transition.
type ContractStateChangedEvent struct {
	ContractID uuid.UUID            `json:"contract_id"`
	From       enums.ContractStatus `json:"from"`
	To         enums.ContractStatus `json:"to"`
	Reason     string               `json:"reason,omitempty"`
}

// MilestoneStateChangedEvent reports a milestone transition not covered by a richer event.
type MilestoneStateChangedEvent struct {
	MilestoneID uuid.UUID             `json:"milestone_id"`
	ContractID  uuid.UUID             `json:"contract_id"`
	From        enums.MilestoneStatus `json:"from"`
	To          enums.MilestoneStatus `json:"to"`
}

type MilestoneSubmittedEvent struct {
	MilestoneID  uuid.UUID `json:"milestone_id"`
	ContractID   uuid.UUID `json:"contract_id"`
	SubmissionID uuid.UUID `json:"submission_id"`
	Sequence     int       `json:"sequence"`
	DeveloperID  uuid.UUID `json:"developer_id"`
}

type MilestoneReviewedEvent struct {
	MilestoneID uuid.UUID            `json:"milestone_id"`
	ContractID  uuid.UUID            `json:"contract_id"`
	ReviewID    uuid.UUID            `json:"review_id"`
	ReviewerID  uuid.UUID            `json:"reviewer_id"`
	Decision    enums.ReviewDecision `json:"decision"`
}

// MilestoneReleasedEvent carries the gross/fee/net split of a payout.
type MilestoneReleasedEvent struct {
	ContractID  uuid.UUID       `json:"contract_id"`
	MilestoneID *uuid.UUID      `json:"milestone_id,omitempty"`
	DeveloperID uuid.UUID       `json:"developer_id"`
	Currency    enums.Currency  `json:"currency"`
	Gross       decimal.Decimal `json:"gross"`
	Fee         decimal.Decimal `json:"fee"`
	Net         decimal.Decimal `json:"net"`
	Override    bool            `json:"override"`
}

type EscrowRefundedEvent struct {
	ContractID  uuid.UUID       `json:"contract_id"`
	MilestoneID *uuid.UUID      `json:"milestone_id,omitempty"`
	ClientID    uuid.UUID       `json:"client_id"`
	Currency    enums.Currency  `json:"currency"`
	Amount      decimal.Decimal `json:"amount"`
}

type DisputeOpenedEvent struct {
	DisputeID   uuid.UUID  `json:"dispute_id"`
	ContractID  uuid.UUID  `json:"contract_id"`
	MilestoneID *uuid.UUID `json:"milestone_id,omitempty"`
	OpenedBy    uuid.UUID  `json:"opened_by"`
	Reason      string     `json:"reason"`
}

type DisputeResolvedEvent struct {
	DisputeID       uuid.UUID            `json:"dispute_id"`
	ContractID      uuid.UUID            `json:"contract_id"`
	MilestoneID     *uuid.UUID           `json:"milestone_id,omitempty"`
	Outcome         enums.DisputeOutcome `json:"outcome"`
	DeveloperAmount decimal.Decimal      `json:"developer_amount"`
	RefundAmount    decimal.Decimal      `json:"refund_amount"`
	ResolvedBy      uuid.UUID            `json:"resolved_by"`
}
