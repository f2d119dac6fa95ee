package milestones

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/gigledger-backend/pkg/db"
	"github.com/angelmondragon/gigledger-backend/pkg/db/models"
	"github.com/angelmondragon/gigledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/gigledger-backend/pkg/errors"
)

// Repository persists milestones with their submission and review histories.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, milestone *models.Milestone) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Milestone, error)
	LockByID(ctx context.Context, id uuid.UUID) (*models.Milestone, error)
	ListByContract(ctx context.Context, contractID uuid.UUID) ([]models.Milestone, error)
	TransitionStatus(ctx context.Context, milestone *models.Milestone, to enums.MilestoneStatus, fields map[string]any) error

	CreateSubmission(ctx context.Context, submission *models.MilestoneSubmission) error
	LatestSubmission(ctx context.Context, milestoneID uuid.UUID) (*models.MilestoneSubmission, error)
	ListSubmissions(ctx context.Context, milestoneID uuid.UUID) ([]models.MilestoneSubmission, error)

	CreateReview(ctx context.Context, review *models.MilestoneReview) error
	ListReviews(ctx context.Context, milestoneID uuid.UUID) ([]models.MilestoneReview, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, milestone *models.Milestone) error {
	return r.db.WithContext(ctx).Create(milestone).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Milestone, error) {
	var milestone models.Milestone
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&milestone).Error; err != nil {
		return nil, err
	}
	return &milestone, nil
}

func (r *repository) LockByID(ctx context.Context, id uuid.UUID) (*models.Milestone, error) {
	var milestone models.Milestone
	if err := db.ForUpdate(r.db.WithContext(ctx)).Where("id = ?", id).First(&milestone).Error; err != nil {
		return nil, err
	}
	return &milestone, nil
}

func (r *repository) ListByContract(ctx context.Context, contractID uuid.UUID) ([]models.Milestone, error) {
	var rows []models.Milestone
	if err := r.db.WithContext(ctx).
		Where("contract_id = ?", contractID).
		Order("order_index ASC").
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// TransitionStatus is a compare-and-set on the status the milestone was read
// with; losing the race yields STATE_CONFLICT.
func (r *repository) TransitionStatus(ctx context.Context, milestone *models.Milestone, to enums.MilestoneStatus, fields map[string]any) error {
	updates := make(map[string]any, len(fields)+2)
	for k, v := range fields {
		updates[k] = v
	}
	now := time.Now().UTC()
	updates["status"] = to
	updates["updated_at"] = now

	res := r.db.WithContext(ctx).
		Model(&models.Milestone{}).
		Where("id = ? AND status = ?", milestone.ID, milestone.Status).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "milestone status changed concurrently").
			WithDetails(map[string]any{"milestone_id": milestone.ID.String(), "expected": milestone.Status})
	}
	milestone.Status = to
	milestone.UpdatedAt = now
	return nil
}

func (r *repository) CreateSubmission(ctx context.Context, submission *models.MilestoneSubmission) error {
	return r.db.WithContext(ctx).Create(submission).Error
}

func (r *repository) LatestSubmission(ctx context.Context, milestoneID uuid.UUID) (*models.MilestoneSubmission, error) {
	var submission models.MilestoneSubmission
	if err := r.db.WithContext(ctx).
		Where("milestone_id = ?", milestoneID).
		Order("sequence DESC").
		First(&submission).Error; err != nil {
		return nil, err
	}
	return &submission, nil
}

func (r *repository) ListSubmissions(ctx context.Context, milestoneID uuid.UUID) ([]models.MilestoneSubmission, error) {
	var rows []models.MilestoneSubmission
	if err := r.db.WithContext(ctx).
		Where("milestone_id = ?", milestoneID).
		Order("sequence ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) CreateReview(ctx context.Context, review *models.MilestoneReview) error {
	return r.db.WithContext(ctx).Create(review).Error
}

func (r *repository) ListReviews(ctx context.Context, milestoneID uuid.UUID) ([]models.MilestoneReview, error) {
	var rows []models.MilestoneReview
	if err := r.db.WithContext(ctx).
		Where("milestone_id = ?", milestoneID).
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
