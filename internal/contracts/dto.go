package contracts

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/gigledger-backend/internal/audit"
	"github.com/angelmondragon/gigledger-backend/pkg/auth"
	"github.com/angelmondragon/gigledger-backend/pkg/db/models"
	"github.com/angelmondragon/gigledger-backend/pkg/enums"
)

// CreateInput captures a new contract drafted by its client.
type CreateInput struct {
	Actor        auth.Actor
	DeveloperID  *uuid.UUID
	Title        string
	Description  string
	Currency     enums.Currency
	TotalAmount  decimal.Decimal
	FundingMode  enums.FundingMode
	StartAt      *time.Time
	TermsVersion string
	Metadata     json.RawMessage
}

type AssignDeveloperInput struct {
	ContractID  uuid.UUID
	Actor       auth.Actor
	DeveloperID uuid.UUID
}

// FundInput deposits money into the contract's escrow. Reference, when set,
// deduplicates retried payments.
type FundInput struct {
	ContractID uuid.UUID
	Actor      auth.Actor
	Amount     decimal.Decimal
	Reference  string
	Source     enums.FundingSource
	Override   *audit.Override
}

// TransitionInput drives the lifecycle operations that carry no money of their own.
type TransitionInput struct {
	ContractID uuid.UUID
	Actor      auth.Actor
	Reason     string
	Override   *audit.Override
}

// Snapshot is a contract together with its escrow position.
type Snapshot struct {
	Contract  models.Contract
	Escrow    models.EscrowAccount
	Available decimal.Decimal
}

// EscrowView is the escrow position plus its ledger history.
type EscrowView struct {
	Escrow       models.EscrowAccount
	Available    decimal.Decimal
	Transactions []models.EscrowTransaction
}

type FundResult struct {
	Snapshot
	Transaction models.EscrowTransaction
	Replayed    bool
}

// CloseResult describes a cancelled or completed contract. Refund is nil when no
// escrow was left to return.
type CloseResult struct {
	Snapshot
	Refund *models.EscrowTransaction
}
