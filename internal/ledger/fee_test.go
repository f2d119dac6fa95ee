package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/gigledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/gigledger-backend/pkg/errors"
)

func TestComputeFee(t *testing.T) {
	cases := []struct {
		name    string
		amount  string
		percent string
		scale   int32
		fee     string
		net     string
	}{
		{name: "five percent of a thousand", amount: "1000", percent: "5", scale: 2, fee: "50", net: "950"},
		{name: "rounds half up to cents", amount: "0.10", percent: "5", scale: 2, fee: "0.01", net: "0.09"},
		{name: "whole-unit currency", amount: "999", percent: "2.5", scale: 0, fee: "25", net: "974"},
		{name: "eight decimal currency", amount: "0.12345678", percent: "1", scale: 8, fee: "0.00123457", net: "0.12222221"},
		{name: "zero fee", amount: "42.42", percent: "0", scale: 2, fee: "0", net: "42.42"},
		{name: "full fee", amount: "42.42", percent: "100", scale: 2, fee: "42.42", net: "0"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			split, err := ComputeFee(d(tc.amount), d(tc.percent), tc.scale)
			require.NoError(t, err)
			assert.True(t, split.Fee.Equal(d(tc.fee)), "fee %s", split.Fee)
			assert.True(t, split.Net.Equal(d(tc.net)), "net %s", split.Net)
			assert.True(t, split.Fee.Add(split.Net).Equal(split.Gross))
		})
	}
}

func TestComputeFeeConservesGrossAcrossScales(t *testing.T) {
	percents := []string{"0", "0.5", "3.3333", "5", "12.5", "99.99", "100"}
	for scale := int32(0); scale <= 8; scale++ {
		for _, pct := range percents {
			for _, raw := range []int64{1, 7, 99, 1001, 123456789} {
				amount := decimal.New(raw, -scale)
				split, err := ComputeFee(amount, d(pct), scale)
				require.NoError(t, err)
				require.True(t, split.Fee.Add(split.Net).Equal(amount))
				require.False(t, split.Fee.IsNegative())
				require.False(t, split.Net.IsNegative())
				require.True(t, split.Fee.Equal(split.Fee.Round(scale)))
			}
		}
	}
}

func TestComputeFeeRejectsBadInput(t *testing.T) {
	_, err := ComputeFee(d("10"), d("101"), 2)
	assertCode(t, err, pkgerrors.CodeValidation)
	_, err = ComputeFee(d("10"), d("-1"), 2)
	assertCode(t, err, pkgerrors.CodeValidation)
	_, err = ComputeFee(decimal.Zero, d("5"), 2)
	assertCode(t, err, pkgerrors.CodeValidation)
}

func TestValidateAmountHonoursCurrencyScale(t *testing.T) {
	require.NoError(t, ValidateAmount(d("10.25"), enums.CurrencyUSD))
	require.NoError(t, ValidateAmount(d("0.00000001"), enums.CurrencyBTC))
	assertCode(t, ValidateAmount(d("10.255"), enums.CurrencyUSD), pkgerrors.CodeValidation)
	assertCode(t, ValidateAmount(d("1.5"), enums.CurrencyJPY), pkgerrors.CodeValidation)
	assertCode(t, ValidateAmount(d("-1"), enums.CurrencyUSD), pkgerrors.CodeValidation)
}
