package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/gigledger-backend/pkg/enums"
)

// MilestoneReview is one entry of a milestone's append-only review history.
type MilestoneReview struct {
	ID           uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	MilestoneID  uuid.UUID            `gorm:"column:milestone_id;type:uuid;not null;index"`
	SubmissionID *uuid.UUID           `gorm:"column:submission_id;type:uuid"`
	ReviewerID   uuid.UUID            `gorm:"column:reviewer_id;type:uuid;not null"`
	Decision     enums.ReviewDecision `gorm:"column:decision;type:review_decision_enum;not null"`
	ReasonCode   *string              `gorm:"column:reason_code"`
	Comments     *string              `gorm:"column:comments"`
	CreatedAt    time.Time            `gorm:"column:created_at;autoCreateTime"`
}

func (r *MilestoneReview) BeforeCreate(*gorm.DB) error {
	ensureID(&r.ID)
	return nil
}
