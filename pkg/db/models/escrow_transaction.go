package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/gigledger-backend/pkg/enums"
)

// EscrowTransaction is an immutable escrow ledger entry.
type EscrowTransaction struct {
	ID                uuid.UUID                   `gorm:"column:id;type:uuid;primaryKey"`
	ContractID        uuid.UUID                   `gorm:"column:contract_id;type:uuid;not null;index"`
	MilestoneID       *uuid.UUID                  `gorm:"column:milestone_id;type:uuid"`
	Type              enums.EscrowTransactionType `gorm:"column:type;type:escrow_transaction_type_enum;not null"`
	Amount            decimal.Decimal             `gorm:"column:amount;type:numeric(20,8);not null"`
	FromUserID        *uuid.UUID                  `gorm:"column:from_user_id;type:uuid"`
	ToUserID          *uuid.UUID                  `gorm:"column:to_user_id;type:uuid"`
	ProviderReference *string                     `gorm:"column:provider_reference;uniqueIndex:ux_escrow_transactions_provider_reference"`
	Source            *enums.FundingSource        `gorm:"column:source;type:funding_source_enum"`
	Status            enums.TransactionStatus     `gorm:"column:status;type:transaction_status_enum;not null"`
	CreatedAt         time.Time                   `gorm:"column:created_at;autoCreateTime"`
}

func (t *EscrowTransaction) BeforeCreate(*gorm.DB) error {
	ensureID(&t.ID)
	return nil
}
