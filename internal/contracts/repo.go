package contracts

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

// Repository persists contracts and answers the cross-table questions the
// lifecycle rules depend on.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	Create(ctx context.Context, contract *models.Contract) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Contract, error)
	LockByID(ctx context.Context, id uuid.UUID) (*models.Contract, error)
	TransitionStatus(ctx context.Context, contract *models.Contract, to enums.ContractStatus, fields map[string]any) error
	AssignDeveloper(ctx context.Context, id uuid.UUID, developerID uuid.UUID) error
	ListNonTerminal(ctx context.Context, afterID uuid.UUID, limit int) ([]models.Contract, error)

	CountOpenDisputes(ctx context.Context, contractID uuid.UUID) (int64, error)
	CountUnsettledMilestones(ctx context.Context, contractID uuid.UUID) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a contract repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, contract *models.Contract) error {
	return r.db.WithContext(ctx).Create(contract).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Contract, error) {
	var contract models.Contract
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&contract).Error; err != nil {
		return nil, err
	}
	return &contract, nil
}

func (r *repository) LockByID(ctx context.Context, id uuid.UUID) (*models.Contract, error) {
	var contract models.Contract
	if err := db.ForUpdate(r.db.WithContext(ctx)).Where("id = ?", id).First(&contract).Error; err != nil {
		return nil, err
	}
	return &contract, nil
}

// TransitionStatus moves the contract to `to` only if it still holds the status
// it was read with. The passed contract is updated in place on success.
func (r *repository) TransitionStatus(ctx context.Context, contract *models.Contract, to enums.ContractStatus, fields map[string]any) error {
	updates := make(map[string]any, len(fields)+2)
	for k, v := range fields {
		updates[k] = v
	}
	now := time.Now().UTC()
	updates["status"] = to
	updates["updated_at"] = now

	res := r.db.WithContext(ctx).
		Model(&models.Contract{}).
		Where("id = ? AND status = ?", contract.ID, contract.Status).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "contract status changed concurrently").
			WithDetails(map[string]any{"contract_id": contract.ID.String(), "expected": contract.Status})
	}
	contract.Status = to
	contract.UpdatedAt = now
	return nil
}

func (r *repository) AssignDeveloper(ctx context.Context, id uuid.UUID, developerID uuid.UUID) error {
	return r.db.WithContext(ctx).
		Model(&models.Contract{}).
		Where("id = ?", id).
		Updates(map[string]any{"developer_id": developerID, "updated_at": time.Now().UTC()}).Error
}

func (r *repository) ListNonTerminal(ctx context.Context, afterID uuid.UUID, limit int) ([]models.Contract, error) {
	query := r.db.WithContext(ctx).
		Where("status NOT IN ?", []enums.ContractStatus{enums.ContractStatusCompleted, enums.ContractStatusCancelled}).
		Order("id ASC").
		Limit(limit)
	if afterID != uuid.Nil {
		query = query.Where("id > ?", afterID)
	}
	var rows []models.Contract
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) CountOpenDisputes(ctx context.Context, contractID uuid.UUID) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&models.Dispute{}).
		Where("contract_id = ? AND status = ?", contractID, enums.DisputeStatusOpen).
		Count(&n).Error
	return n, err
}

func (r *repository) CountUnsettledMilestones(ctx context.Context, contractID uuid.UUID) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).
		Model(&models.Milestone{}).
		Where("contract_id = ? AND status NOT IN ?", contractID,
			[]enums.MilestoneStatus{enums.MilestoneStatusReleased, enums.MilestoneStatusRefunded}).
		Count(&n).Error
	return n, err
}
