package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/gigledger-backend/pkg/enums"
)

// PlatformFee records the platform's cut of a single release.
type PlatformFee struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	ContractID  uuid.UUID       `gorm:"column:contract_id;type:uuid;not null;index"`
	MilestoneID *uuid.UUID      `gorm:"column:milestone_id;type:uuid"`
	Currency    enums.Currency  `gorm:"column:currency;type:varchar(8);not null"`
	GrossAmount decimal.Decimal `gorm:"column:gross_amount;type:numeric(20,8);not null"`
	Amount      decimal.Decimal `gorm:"column:amount;type:numeric(20,8);not null"`
	Percentage  decimal.Decimal `gorm:"column:percentage;type:numeric(7,4);not null"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
}

func (f *PlatformFee) BeforeCreate(*gorm.DB) error {
	ensureID(&f.ID)
	return nil
}
