package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/gigledger-backend/pkg/db"
	"github.com/angelmondragon/gigledger-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/gigledger-backend/pkg/errors"
)

// Repository persists escrow accounts, their ledger entries and developer wallets.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	CreateAccount(ctx context.Context, account *models.EscrowAccount) error
	FindAccount(ctx context.Context, contractID uuid.UUID) (*models.EscrowAccount, error)
	LockAccount(ctx context.Context, contractID uuid.UUID) (*models.EscrowAccount, error)
	SaveAccount(ctx context.Context, account *models.EscrowAccount) error
	ListAccounts(ctx context.Context, afterID uuid.UUID, limit int) ([]models.EscrowAccount, error)

	CreateEscrowTransaction(ctx context.Context, txn *models.EscrowTransaction) error
	FindFundByReference(ctx context.Context, reference string) (*models.EscrowTransaction, error)
	ListEscrowTransactions(ctx context.Context, contractID uuid.UUID) ([]models.EscrowTransaction, error)

	CreatePlatformFee(ctx context.Context, fee *models.PlatformFee) error
	ListPlatformFees(ctx context.Context, contractID uuid.UUID) ([]models.PlatformFee, error)

	FindWallet(ctx context.Context, userID uuid.UUID) (*models.CoinWallet, error)
	LockWallet(ctx context.Context, userID uuid.UUID) (*models.CoinWallet, error)
	CreateWallet(ctx context.Context, wallet *models.CoinWallet) error
	SaveWallet(ctx context.Context, wallet *models.CoinWallet) error
	CreateCoinTransaction(ctx context.Context, txn *models.CoinTransaction) error
	ListCoinTransactions(ctx context.Context, walletID uuid.UUID) ([]models.CoinTransaction, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateAccount(ctx context.Context, account *models.EscrowAccount) error {
	return r.db.WithContext(ctx).Create(account).Error
}

func (r *repository) FindAccount(ctx context.Context, contractID uuid.UUID) (*models.EscrowAccount, error) {
	var account models.EscrowAccount
	if err := r.db.WithContext(ctx).Where("contract_id = ?", contractID).First(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

func (r *repository) LockAccount(ctx context.Context, contractID uuid.UUID) (*models.EscrowAccount, error) {
	var account models.EscrowAccount
	if err := db.ForUpdate(r.db.WithContext(ctx)).Where("contract_id = ?", contractID).First(&account).Error; err != nil {
		return nil, err
	}
	return &account, nil
}

// SaveAccount writes the counters only if nobody bumped the version since the
// account was read, then advances account.Version.
func (r *repository) SaveAccount(ctx context.Context, account *models.EscrowAccount) error {
	res := r.db.WithContext(ctx).
		Model(&models.EscrowAccount{}).
		Where("id = ? AND version = ?", account.ID, account.Version).
		Updates(map[string]any{
			"funded_total":   account.FundedTotal,
			"released_total": account.ReleasedTotal,
			"refunded_total": account.RefundedTotal,
			"status":         account.Status,
			"version":        account.Version + 1,
			"updated_at":     time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeConflict, "escrow account was modified concurrently").
			WithDetails(map[string]any{"contract_id": account.ContractID.String(), "version": account.Version})
	}
	account.Version++
	return nil
}

func (r *repository) ListAccounts(ctx context.Context, afterID uuid.UUID, limit int) ([]models.EscrowAccount, error) {
	query := r.db.WithContext(ctx).Order("id ASC").Limit(limit)
	if afterID != uuid.Nil {
		query = query.Where("id > ?", afterID)
	}
	var accounts []models.EscrowAccount
	if err := query.Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}

func (r *repository) CreateEscrowTransaction(ctx context.Context, txn *models.EscrowTransaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

func (r *repository) FindFundByReference(ctx context.Context, reference string) (*models.EscrowTransaction, error) {
	var txn models.EscrowTransaction
	if err := r.db.WithContext(ctx).Where("provider_reference = ?", reference).First(&txn).Error; err != nil {
		return nil, err
	}
	return &txn, nil
}

func (r *repository) ListEscrowTransactions(ctx context.Context, contractID uuid.UUID) ([]models.EscrowTransaction, error) {
	var txns []models.EscrowTransaction
	if err := r.db.WithContext(ctx).
		Where("contract_id = ?", contractID).
		Order("created_at ASC").
		Find(&txns).Error; err != nil {
		return nil, err
	}
	return txns, nil
}

func (r *repository) CreatePlatformFee(ctx context.Context, fee *models.PlatformFee) error {
	return r.db.WithContext(ctx).Create(fee).Error
}

func (r *repository) ListPlatformFees(ctx context.Context, contractID uuid.UUID) ([]models.PlatformFee, error) {
	var fees []models.PlatformFee
	if err := r.db.WithContext(ctx).
		Where("contract_id = ?", contractID).
		Order("created_at ASC").
		Find(&fees).Error; err != nil {
		return nil, err
	}
	return fees, nil
}

func (r *repository) FindWallet(ctx context.Context, userID uuid.UUID) (*models.CoinWallet, error) {
	var wallet models.CoinWallet
	if err := r.db.WithContext(ctx).Where("user_id = ?", userID).First(&wallet).Error; err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (r *repository) LockWallet(ctx context.Context, userID uuid.UUID) (*models.CoinWallet, error) {
	var wallet models.CoinWallet
	if err := db.ForUpdate(r.db.WithContext(ctx)).Where("user_id = ?", userID).First(&wallet).Error; err != nil {
		return nil, err
	}
	return &wallet, nil
}

func (r *repository) CreateWallet(ctx context.Context, wallet *models.CoinWallet) error {
	return r.db.WithContext(ctx).Create(wallet).Error
}

func (r *repository) SaveWallet(ctx context.Context, wallet *models.CoinWallet) error {
	res := r.db.WithContext(ctx).
		Model(&models.CoinWallet{}).
		Where("id = ? AND version = ?", wallet.ID, wallet.Version).
		Updates(map[string]any{
			"balance":    wallet.Balance,
			"status":     wallet.Status,
			"version":    wallet.Version + 1,
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeConflict, "wallet was modified concurrently").
			WithDetails(map[string]any{"wallet_id": wallet.ID.String(), "version": wallet.Version})
	}
	wallet.Version++
	return nil
}

func (r *repository) CreateCoinTransaction(ctx context.Context, txn *models.CoinTransaction) error {
	return r.db.WithContext(ctx).Create(txn).Error
}

func (r *repository) ListCoinTransactions(ctx context.Context, walletID uuid.UUID) ([]models.CoinTransaction, error) {
	var txns []models.CoinTransaction
	if err := r.db.WithContext(ctx).
		Where("wallet_id = ?", walletID).
		Order("created_at ASC").
		Find(&txns).Error; err != nil {
		return nil, err
	}
	return txns, nil
}
