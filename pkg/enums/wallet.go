package enums

import "fmt"

// WalletStatus gates whether a wallet may be credited.
type WalletStatus string

const (
	WalletStatusActive WalletStatus = "ACTIVE"
	WalletStatusFrozen WalletStatus = "FROZEN"
)

var validWalletStatuses = []WalletStatus{
	WalletStatusActive,
	WalletStatusFrozen,
}

// String implements fmt.Stringer.
func (w WalletStatus) String() string {
	return string(w)
}

// IsValid reports whether the value is a known WalletStatus.
func (w WalletStatus) IsValid() bool {
	for _, candidate := range validWalletStatuses {
		if candidate == w {
			return true
		}
	}
	return false
}

// ParseWalletStatus converts raw input into a WalletStatus.
func ParseWalletStatus(value string) (WalletStatus, error) {
	for _, candidate := range validWalletStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid wallet status %q", value)
}

// CoinDirection is the direction of a coin movement relative to the wallet.
type CoinDirection string

const (
	CoinDirectionIn  CoinDirection = "IN"
	CoinDirectionOut CoinDirection = "OUT"
)

var validCoinDirections = []CoinDirection{
	CoinDirectionIn,
	CoinDirectionOut,
}

// String implements fmt.Stringer.
func (c CoinDirection) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CoinDirection.
func (c CoinDirection) IsValid() bool {
	for _, candidate := range validCoinDirections {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCoinDirection converts raw input into a CoinDirection.
func ParseCoinDirection(value string) (CoinDirection, error) {
	for _, candidate := range validCoinDirections {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid coin direction %q", value)
}

// CoinTransactionType classifies wallet ledger rows.
type CoinTransactionType string

const (
	CoinTransactionMilestonePayout CoinTransactionType = "MILESTONE_PAYOUT"
	CoinTransactionDisputePayout   CoinTransactionType = "DISPUTE_PAYOUT"
)

var validCoinTransactionTypes = []CoinTransactionType{
	CoinTransactionMilestonePayout,
	CoinTransactionDisputePayout,
}

// String implements fmt.Stringer.
func (c CoinTransactionType) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CoinTransactionType.
func (c CoinTransactionType) IsValid() bool {
	for _, candidate := range validCoinTransactionTypes {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCoinTransactionType converts raw input into a CoinTransactionType.
func ParseCoinTransactionType(value string) (CoinTransactionType, error) {
	for _, candidate := range validCoinTransactionTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid coin transaction type %q", value)
}
