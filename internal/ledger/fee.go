package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/gigledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/gigledger-backend/pkg/errors"
)

var hundred = decimal.NewFromInt(100)

// FeeSplit is the outcome of splitting a gross release into fee and net payout.
type FeeSplit struct {
	Gross      decimal.Decimal
	Fee        decimal.Decimal
	Net        decimal.Decimal
	Percentage decimal.Decimal
}

// ComputeFee rounds the fee half-up to scale fractional digits and derives net by
// subtraction, so Fee + Net == Gross for every input.
func ComputeFee(amount, percentage decimal.Decimal, scale int32) (FeeSplit, error) {
	if err := requirePositive(amount); err != nil {
		return FeeSplit{}, err
	}
	if percentage.IsNegative() || percentage.GreaterThan(hundred) {
		return FeeSplit{}, pkgerrors.New(pkgerrors.CodeValidation, "fee percentage must be between 0 and 100").
			WithDetails(map[string]any{"percentage": percentage.String()})
	}
	if scale < 0 {
		scale = 0
	}
	fee := amount.Mul(percentage).Div(hundred).Round(scale)
	if fee.GreaterThan(amount) {
		fee = amount
	}
	return FeeSplit{
		Gross:      amount,
		Fee:        fee,
		Net:        amount.Sub(fee),
		Percentage: percentage,
	}, nil
}

// ValidateAmount rejects non-positive amounts and amounts finer than the currency allows.
func ValidateAmount(amount decimal.Decimal, currency enums.Currency) error {
	if err := requirePositive(amount); err != nil {
		return err
	}
	scale := currency.Scale()
	if !amount.Equal(amount.Truncate(scale)) {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount has more precision than the currency allows").
			WithDetails(map[string]any{"amount": amount.String(), "currency": currency, "scale": scale})
	}
	return nil
}
