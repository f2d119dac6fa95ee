package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/gigledger-backend/pkg/enums"
)

// Milestone is a priced unit of work inside a contract.
type Milestone struct {
	ID                 uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	ContractID         uuid.UUID             `gorm:"column:contract_id;type:uuid;not null;index;uniqueIndex:ux_milestones_order,priority:1"`
	Title              string                `gorm:"column:title;not null"`
	Description        string                `gorm:"column:description"`
	AcceptanceCriteria string                `gorm:"column:acceptance_criteria"`
	Amount             decimal.Decimal       `gorm:"column:amount;type:numeric(20,8);not null"`
	DueDate            *time.Time            `gorm:"column:due_date"`
	OrderIndex         int                   `gorm:"column:order_index;not null;uniqueIndex:ux_milestones_order,priority:2"`
	Status             enums.MilestoneStatus `gorm:"column:status;type:milestone_status_enum;not null"`
	ReleasedAt         *time.Time            `gorm:"column:released_at"`
	CreatedAt          time.Time             `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time             `gorm:"column:updated_at;autoUpdateTime"`
}

func (m *Milestone) BeforeCreate(*gorm.DB) error {
	ensureID(&m.ID)
	return nil
}
