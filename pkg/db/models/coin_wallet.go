package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/gigledger-backend/pkg/enums"
)

// CoinWallet is a user's internal-currency balance.
type CoinWallet struct {
	ID          uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	UserID      uuid.UUID          `gorm:"column:user_id;type:uuid;not null;uniqueIndex:ux_coin_wallets_user"`
	Balance     decimal.Decimal    `gorm:"column:balance;type:numeric(20,8);not null"`
	MaxCapacity decimal.Decimal    `gorm:"column:max_capacity;type:numeric(20,8);not null"`
	Status      enums.WalletStatus `gorm:"column:status;type:wallet_status_enum;not null"`
	Version     int64              `gorm:"column:version;not null"`
	CreatedAt   time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (w *CoinWallet) BeforeCreate(*gorm.DB) error {
	ensureID(&w.ID)
	return nil
}
