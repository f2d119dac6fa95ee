package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// EvidenceItem points at a deliverable attached to a submission.
type EvidenceItem struct {
	Label string `json:"label"`
	URL   string `json:"url,omitempty"`
	Note  string `json:"note,omitempty"`
}

// EvidenceItems persists as a JSON array.
type EvidenceItems []EvidenceItem

func (e EvidenceItems) Value() (driver.Value, error) {
	if e == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(e)
}

func (e *EvidenceItems) Scan(value any) error {
	var raw []byte
	switch v := value.(type) {
	case nil:
		*e = EvidenceItems{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("evidence items: unsupported type %T", value)
	}
	return json.Unmarshal(raw, e)
}

// MilestoneSubmission is an immutable record of one hand-in for review.
type MilestoneSubmission struct {
	ID          uuid.UUID     `gorm:"column:id;type:uuid;primaryKey"`
	MilestoneID uuid.UUID     `gorm:"column:milestone_id;type:uuid;not null;uniqueIndex:ux_milestone_submissions_sequence,priority:1"`
	Sequence    int           `gorm:"column:sequence;not null;uniqueIndex:ux_milestone_submissions_sequence,priority:2"`
	DeveloperID uuid.UUID     `gorm:"column:developer_id;type:uuid;not null"`
	Summary     string        `gorm:"column:summary;not null"`
	Evidence    EvidenceItems `gorm:"column:evidence;type:jsonb;not null"`
	CreatedAt   time.Time     `gorm:"column:created_at;autoCreateTime"`
}

func (s *MilestoneSubmission) BeforeCreate(*gorm.DB) error {
	ensureID(&s.ID)
	return nil
}
