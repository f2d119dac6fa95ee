package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/gigledger-backend/pkg/enums"
)

// ActivityLog is an append-only record of a state-changing operation.
type ActivityLog struct {
	ID          uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	ContractID  *uuid.UUID           `gorm:"column:contract_id;type:uuid;index"`
	MilestoneID *uuid.UUID           `gorm:"column:milestone_id;type:uuid"`
	ActorID     uuid.UUID            `gorm:"column:actor_id;type:uuid;not null"`
	ActorRole   enums.ActorRole      `gorm:"column:actor_role;type:varchar(16);not null"`
	Action      enums.ActivityAction `gorm:"column:action;type:activity_action_enum;not null"`
	Payload     json.RawMessage      `gorm:"column:payload;type:jsonb"`
	CreatedAt   time.Time            `gorm:"column:created_at;autoCreateTime"`
}

func (a *ActivityLog) BeforeCreate(*gorm.DB) error {
	ensureID(&a.ID)
	return nil
}

// AdminAction is the second, admin-scoped audit row written for privileged mutations.
type AdminAction struct {
	ID         uuid.UUID             `gorm:"column:id;type:uuid;primaryKey"`
	AdminID    uuid.UUID             `gorm:"column:admin_id;type:uuid;not null;index"`
	Action     enums.ActivityAction  `gorm:"column:action;type:activity_action_enum;not null"`
	TargetType enums.AdminTargetType `gorm:"column:target_type;type:varchar(16);not null"`
	TargetID   uuid.UUID             `gorm:"column:target_id;type:uuid;not null;index"`
	ContractID *uuid.UUID            `gorm:"column:contract_id;type:uuid;index"`
	Reason     *string               `gorm:"column:reason"`
	Payload    json.RawMessage       `gorm:"column:payload;type:jsonb"`
	CreatedAt  time.Time             `gorm:"column:created_at;autoCreateTime"`
}

func (a *AdminAction) BeforeCreate(*gorm.DB) error {
	ensureID(&a.ID)
	return nil
}
