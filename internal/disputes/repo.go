package disputes

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

type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, dispute *models.Dispute) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error)
	LockByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error)
	FindOpen(ctx context.Context, contractID uuid.UUID, milestoneID *uuid.UUID) (*models.Dispute, error)
	ListByContract(ctx context.Context, contractID uuid.UUID) ([]models.Dispute, error)
	MarkResolved(ctx context.Context, dispute *models.Dispute) error
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

func (r *repository) Create(ctx context.Context, dispute *models.Dispute) error {
	return r.db.WithContext(ctx).Create(dispute).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	var dispute models.Dispute
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&dispute).Error; err != nil {
		return nil, err
	}
	return &dispute, nil
}

func (r *repository) LockByID(ctx context.Context, id uuid.UUID) (*models.Dispute, error) {
	var dispute models.Dispute
	if err := db.ForUpdate(r.db.WithContext(ctx)).Where("id = ?", id).First(&dispute).Error; err != nil {
		return nil, err
	}
	return &dispute, nil
}

// FindOpen returns the open dispute on the milestone, or the open contract-level
// dispute when milestoneID is nil.
func (r *repository) FindOpen(ctx context.Context, contractID uuid.UUID, milestoneID *uuid.UUID) (*models.Dispute, error) {
	query := r.db.WithContext(ctx).Where("contract_id = ? AND status = ?", contractID, enums.DisputeStatusOpen)
	if milestoneID != nil {
		query = query.Where("milestone_id = ?", *milestoneID)
	} else {
		query = query.Where("milestone_id IS NULL")
	}
	var dispute models.Dispute
	if err := query.First(&dispute).Error; err != nil {
		return nil, err
	}
	return &dispute, nil
}

func (r *repository) ListByContract(ctx context.Context, contractID uuid.UUID) ([]models.Dispute, error) {
	var rows []models.Dispute
	if err := r.db.WithContext(ctx).
		Where("contract_id = ?", contractID).
		Order("created_at DESC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// MarkResolved flips an OPEN dispute to RESOLVED with its resolution columns.
// A dispute that is no longer open yields ALREADY_RESOLVED.
func (r *repository) MarkResolved(ctx context.Context, dispute *models.Dispute) error {
	res := r.db.WithContext(ctx).
		Model(&models.Dispute{}).
		Where("id = ? AND status = ?", dispute.ID, enums.DisputeStatusOpen).
		Updates(map[string]any{
			"status":           enums.DisputeStatusResolved,
			"outcome":          dispute.Outcome,
			"developer_amount": dispute.DeveloperAmount,
			"refund_amount":    dispute.RefundAmount,
			"resolution_notes": dispute.ResolutionNotes,
			"resolved_by":      dispute.ResolvedBy,
			"resolved_at":      dispute.ResolvedAt,
			"updated_at":       time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeAlreadyResolved, "dispute is already resolved").
			WithDetails(map[string]any{"dispute_id": dispute.ID.String()})
	}
	dispute.Status = enums.DisputeStatusResolved
	return nil
}
