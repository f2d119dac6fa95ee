package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/gigledger-backend/pkg/enums"
)

// Contract is an agreement between a client and a developer backed by one escrow account.
type Contract struct {
	ID           uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	ClientID     uuid.UUID            `gorm:"column:client_id;type:uuid;not null;index"`
	DeveloperID  *uuid.UUID           `gorm:"column:developer_id;type:uuid;index"`
	Title        string               `gorm:"column:title;not null"`
	Description  string               `gorm:"column:description"`
	Currency     enums.Currency       `gorm:"column:currency;type:varchar(8);not null"`
	TotalAmount  decimal.Decimal      `gorm:"column:total_amount;type:numeric(20,8);not null"`
	FundingMode  enums.FundingMode    `gorm:"column:funding_mode;type:funding_mode_enum;not null"`
	Status       enums.ContractStatus `gorm:"column:status;type:contract_status_enum;not null"`
	StartAt      *time.Time           `gorm:"column:start_at"`
	TermsVersion string               `gorm:"column:terms_version"`
	Metadata     json.RawMessage      `gorm:"column:metadata;type:jsonb"`
	CancelReason *string              `gorm:"column:cancel_reason"`
	CompletedAt  *time.Time           `gorm:"column:completed_at"`
	CancelledAt  *time.Time           `gorm:"column:cancelled_at"`
	CreatedAt    time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *Contract) BeforeCreate(*gorm.DB) error {
	ensureID(&c.ID)
	return nil
}

// IsClient reports whether userID is the paying party.
func (c *Contract) IsClient(userID uuid.UUID) bool {
	return c != nil && c.ClientID == userID
}

// IsDeveloper reports whether userID is the assigned developer.
func (c *Contract) IsDeveloper(userID uuid.UUID) bool {
	return c != nil && c.DeveloperID != nil && *c.DeveloperID == userID
}
