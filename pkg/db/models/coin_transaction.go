package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/gigledger-backend/pkg/enums"
)

// CoinTransaction is an immutable wallet ledger entry.
type CoinTransaction struct {
	ID          uuid.UUID                 `gorm:"column:id;type:uuid;primaryKey"`
	WalletID    uuid.UUID                 `gorm:"column:wallet_id;type:uuid;not null;index"`
	Type        enums.CoinTransactionType `gorm:"column:type;type:coin_transaction_type_enum;not null"`
	Amount      decimal.Decimal           `gorm:"column:amount;type:numeric(20,8);not null"`
	Direction   enums.CoinDirection       `gorm:"column:direction;type:coin_direction_enum;not null"`
	Status      enums.TransactionStatus   `gorm:"column:status;type:transaction_status_enum;not null"`
	ReferenceID *uuid.UUID                `gorm:"column:reference_id;type:uuid;index"`
	Description string                    `gorm:"column:description"`
	CreatedAt   time.Time                 `gorm:"column:created_at;autoCreateTime"`
}

func (t *CoinTransaction) BeforeCreate(*gorm.DB) error {
	ensureID(&t.ID)
	return nil
}
