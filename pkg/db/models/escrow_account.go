package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/gigledger-backend/pkg/enums"
)

// EscrowAccount holds the monotone funded/released/refunded counters for one contract.
type EscrowAccount struct {
	ID            uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	ContractID    uuid.UUID          `gorm:"column:contract_id;type:uuid;not null;uniqueIndex:ux_escrow_accounts_contract"`
	Currency      enums.Currency     `gorm:"column:currency;type:varchar(8);not null"`
	FundedTotal   decimal.Decimal    `gorm:"column:funded_total;type:numeric(20,8);not null"`
	ReleasedTotal decimal.Decimal    `gorm:"column:released_total;type:numeric(20,8);not null"`
	RefundedTotal decimal.Decimal    `gorm:"column:refunded_total;type:numeric(20,8);not null"`
	Status        enums.EscrowStatus `gorm:"column:status;type:escrow_status_enum;not null"`
	Version       int64              `gorm:"column:version;not null"`
	CreatedAt     time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (a *EscrowAccount) BeforeCreate(*gorm.DB) error {
	ensureID(&a.ID)
	return nil
}
