package ledger

import (
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/gigledger-backend/pkg/db/models"
	"github.com/angelmondragon/gigledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/gigledger-backend/pkg/errors"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func newAccount() models.EscrowAccount {
	return models.EscrowAccount{
		ID:            uuid.New(),
		ContractID:    uuid.New(),
		Currency:      enums.CurrencyUSD,
		FundedTotal:   decimal.Zero,
		ReleasedTotal: decimal.Zero,
		RefundedTotal: decimal.Zero,
		Status:        enums.EscrowStatusUnfunded,
	}
}

func assertCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed, "expected typed error, got %v", err)
	assert.Equal(t, code, typed.Code())
}

func TestApplyFundMarksAccountFunded(t *testing.T) {
	account, err := ApplyFund(newAccount(), d("1000"))
	require.NoError(t, err)
	assert.Equal(t, enums.EscrowStatusFunded, account.Status)
	assert.True(t, account.FundedTotal.Equal(d("1000")))

	available, err := Available(account)
	require.NoError(t, err)
	assert.True(t, available.Equal(d("1000")))
}

func TestApplyReleaseDepletesAccount(t *testing.T) {
	account, err := ApplyFund(newAccount(), d("1000"))
	require.NoError(t, err)

	account, err = ApplyRelease(account, d("1000"))
	require.NoError(t, err)
	assert.Equal(t, enums.EscrowStatusDepleted, account.Status)

	account, err = ApplyFund(account, d("10"))
	require.NoError(t, err)
	assert.Equal(t, enums.EscrowStatusFunded, account.Status)
}

func TestApplyReleaseRejectsOverdraw(t *testing.T) {
	funded, err := ApplyFund(newAccount(), d("100"))
	require.NoError(t, err)

	after, err := ApplyRelease(funded, d("100.01"))
	assertCode(t, err, pkgerrors.CodeInsufficientFunds)
	assert.Equal(t, funded, after)

	_, err = ApplyRefund(funded, d("150"))
	assertCode(t, err, pkgerrors.CodeInsufficientFunds)
}

func TestPrimitivesRejectNonPositiveAmounts(t *testing.T) {
	account := newAccount()
	for _, amount := range []decimal.Decimal{decimal.Zero, d("-5")} {
		_, err := ApplyFund(account, amount)
		assertCode(t, err, pkgerrors.CodeValidation)
		_, err = ApplyRelease(account, amount)
		assertCode(t, err, pkgerrors.CodeValidation)
		_, err = ApplyRefund(account, amount)
		assertCode(t, err, pkgerrors.CodeValidation)
	}
}

func TestAvailableReportsCorruption(t *testing.T) {
	account := newAccount()
	account.FundedTotal = d("10")
	account.ReleasedTotal = d("20")
	_, err := Available(account)
	assertCode(t, err, pkgerrors.CodeInvariantViolation)

	account = newAccount()
	account.RefundedTotal = d("-1")
	_, err = Available(account)
	assertCode(t, err, pkgerrors.CodeInvariantViolation)
}

func TestEscrowConservationUnderRandomPostings(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	account := newAccount()

	for i := 0; i < 2000; i++ {
		amount := decimal.New(rng.Int63n(50000)+1, -2)
		before := account
		var err error
		switch rng.Intn(3) {
		case 0:
			account, err = ApplyFund(account, amount)
		case 1:
			account, err = ApplyRelease(account, amount)
		default:
			account, err = ApplyRefund(account, amount)
		}
		if err != nil {
			assertCode(t, err, pkgerrors.CodeInsufficientFunds)
			require.Equal(t, before, account, "failed posting must not mutate the account")
		}

		available, err := Available(account)
		require.NoError(t, err)
		require.False(t, available.IsNegative())
		require.True(t, account.FundedTotal.Equal(account.ReleasedTotal.Add(account.RefundedTotal).Add(available)))
		require.True(t, account.FundedTotal.GreaterThanOrEqual(before.FundedTotal))
		require.True(t, account.ReleasedTotal.GreaterThanOrEqual(before.ReleasedTotal))
		require.True(t, account.RefundedTotal.GreaterThanOrEqual(before.RefundedTotal))
	}
}

func TestCreditWallet(t *testing.T) {
	wallet := models.CoinWallet{
		ID:          uuid.New(),
		UserID:      uuid.New(),
		Balance:     d("90"),
		MaxCapacity: d("100"),
		Status:      enums.WalletStatusActive,
	}

	credited, err := CreditWallet(wallet, d("10"))
	require.NoError(t, err)
	assert.True(t, credited.Balance.Equal(d("100")))

	unchanged, err := CreditWallet(wallet, d("10.01"))
	assertCode(t, err, pkgerrors.CodeWalletCapacity)
	assert.True(t, unchanged.Balance.Equal(d("90")))

	wallet.Status = enums.WalletStatusFrozen
	_, err = CreditWallet(wallet, d("1"))
	assertCode(t, err, pkgerrors.CodeStateConflict)
}
