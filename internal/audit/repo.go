package audit

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/gigledger-backend/pkg/db/models"
	"github.com/angelmondragon/gigledger-backend/pkg/pagination"
)

// Repository persists the append-only audit tables.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateActivity(ctx context.Context, entry *models.ActivityLog) error
	CreateAdminAction(ctx context.Context, action *models.AdminAction) error
	ListActivity(ctx context.Context, contractID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.ActivityLog, error)
	ListAdminActions(ctx context.Context, filter AdminActionFilter, limit int, cursor *pagination.Cursor) ([]models.AdminAction, error)
}

// AdminActionFilter narrows the admin audit trail. Zero values match everything.
type AdminActionFilter struct {
	AdminID    uuid.UUID
	ContractID uuid.UUID
	TargetID   uuid.UUID
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

func (r *repository) CreateActivity(ctx context.Context, entry *models.ActivityLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) CreateAdminAction(ctx context.Context, action *models.AdminAction) error {
	return r.db.WithContext(ctx).Create(action).Error
}

func (r *repository) ListActivity(ctx context.Context, contractID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.ActivityLog, error) {
	query := r.db.WithContext(ctx).Where("contract_id = ?", contractID)
	query = applyCursor(query, cursor)
	var rows []models.ActivityLog
	if err := query.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListAdminActions(ctx context.Context, filter AdminActionFilter, limit int, cursor *pagination.Cursor) ([]models.AdminAction, error) {
	query := r.db.WithContext(ctx).Model(&models.AdminAction{})
	if filter.AdminID != uuid.Nil {
		query = query.Where("admin_id = ?", filter.AdminID)
	}
	if filter.ContractID != uuid.Nil {
		query = query.Where("contract_id = ?", filter.ContractID)
	}
	if filter.TargetID != uuid.Nil {
		query = query.Where("target_id = ?", filter.TargetID)
	}
	query = applyCursor(query, cursor)
	var rows []models.AdminAction
	if err := query.Order("created_at DESC").Order("id DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func applyCursor(query *gorm.DB, cursor *pagination.Cursor) *gorm.DB {
	if cursor == nil {
		return query
	}
	return query.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
}
