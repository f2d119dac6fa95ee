package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/gigledger-backend/pkg/enums"
)

// Dispute freezes a milestone, or a whole contract, until an admin resolves it.
type Dispute struct {
	ID                   uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	ContractID           uuid.UUID              `gorm:"column:contract_id;type:uuid;not null;index"`
	MilestoneID          *uuid.UUID             `gorm:"column:milestone_id;type:uuid;index"`
	OpenedBy             uuid.UUID              `gorm:"column:opened_by;type:uuid;not null"`
	Reason               string                 `gorm:"column:reason;not null"`
	Status               enums.DisputeStatus    `gorm:"column:status;type:dispute_status_enum;not null"`
	Outcome              *enums.DisputeOutcome  `gorm:"column:outcome;type:dispute_outcome_enum"`
	MilestonePriorStatus *enums.MilestoneStatus `gorm:"column:milestone_prior_status;type:milestone_status_enum"`
	DeveloperAmount      decimal.NullDecimal    `gorm:"column:developer_amount;type:numeric(20,8)"`
	RefundAmount         decimal.NullDecimal    `gorm:"column:refund_amount;type:numeric(20,8)"`
	ResolutionNotes      *string                `gorm:"column:resolution_notes"`
	ResolvedBy           *uuid.UUID             `gorm:"column:resolved_by;type:uuid"`
	ResolvedAt           *time.Time             `gorm:"column:resolved_at"`
	CreatedAt            time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

func (d *Dispute) BeforeCreate(*gorm.DB) error {
	ensureID(&d.ID)
	return nil
}
