package ledger

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/gigledger-backend/pkg/db"
	"github.com/angelmondragon/gigledger-backend/pkg/db/dbtest"
	"github.com/angelmondragon/gigledger-backend/pkg/db/models"
	"github.com/angelmondragon/gigledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/gigledger-backend/pkg/errors"
)

type ledgerFixture struct {
	client     *db.Client
	repo       Repository
	svc        Service
	contractID uuid.UUID
	clientID   uuid.UUID
	developer  uuid.UUID
}

func newLedgerFixture(t *testing.T, walletCapacity string) *ledgerFixture {
	t.Helper()
	client := dbtest.New(t)
	repo := NewRepository(client.DB())
	svc, err := NewService(repo, d("5"), d(walletCapacity))
	require.NoError(t, err)

	f := &ledgerFixture{
		client:     client,
		repo:       repo,
		svc:        svc,
		contractID: uuid.New(),
		clientID:   uuid.New(),
		developer:  uuid.New(),
	}
	err = client.WithTx(context.Background(), func(tx *gorm.DB) error {
		_, err := svc.OpenAccount(context.Background(), tx, f.contractID, enums.CurrencyUSD)
		return err
	})
	require.NoError(t, err)
	return f
}

func (f *ledgerFixture) fund(t *testing.T, amount, reference string) *FundResult {
	t.Helper()
	var result *FundResult
	err := f.client.WithTx(context.Background(), func(tx *gorm.DB) error {
		var err error
		result, err = f.svc.Fund(context.Background(), tx, FundInput{
			ContractID: f.contractID,
			Currency:   enums.CurrencyUSD,
			Amount:     d(amount),
			Reference:  reference,
			Source:     enums.FundingSourceClient,
			FromUserID: &f.clientID,
		})
		return err
	})
	require.NoError(t, err)
	return result
}

func (f *ledgerFixture) release(amount string) (*ReleaseResult, error) {
	var result *ReleaseResult
	milestoneID := uuid.New()
	err := f.client.WithTx(context.Background(), func(tx *gorm.DB) error {
		var err error
		result, err = f.svc.Release(context.Background(), tx, ReleaseInput{
			ContractID:  f.contractID,
			MilestoneID: &milestoneID,
			Currency:    enums.CurrencyUSD,
			Amount:      d(amount),
			ClientID:    f.clientID,
			DeveloperID: f.developer,
		})
		return err
	})
	return result, err
}

func TestNewServiceValidatesArguments(t *testing.T) {
	_, err := NewService(nil, d("5"), d("100"))
	require.Error(t, err)
	_, err = NewService(NewRepository(nil), d("150"), d("100"))
	require.Error(t, err)
	_, err = NewService(NewRepository(nil), d("5"), decimal.Zero)
	require.Error(t, err)
}

func TestReleasePostsFeeWalletAndLedgerEntries(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t, "1000000")
	f.fund(t, "1000", "")

	result, err := f.release("1000")
	require.NoError(t, err)
	assert.True(t, result.Split.Fee.Equal(d("50")))
	assert.True(t, result.Split.Net.Equal(d("950")))
	assert.Equal(t, enums.EscrowStatusDepleted, result.Account.Status)

	account, err := f.repo.FindAccount(ctx, f.contractID)
	require.NoError(t, err)
	assert.True(t, account.ReleasedTotal.Equal(d("1000")))
	assert.Equal(t, int64(2), account.Version)

	fees, err := f.repo.ListPlatformFees(ctx, f.contractID)
	require.NoError(t, err)
	require.Len(t, fees, 1)
	assert.True(t, fees[0].Amount.Equal(d("50")))
	assert.True(t, fees[0].GrossAmount.Equal(d("1000")))

	wallet, err := f.repo.FindWallet(ctx, f.developer)
	require.NoError(t, err)
	assert.True(t, wallet.Balance.Equal(d("950")))

	coins, err := f.repo.ListCoinTransactions(ctx, wallet.ID)
	require.NoError(t, err)
	require.Len(t, coins, 1)
	assert.Equal(t, enums.CoinDirectionIn, coins[0].Direction)
	assert.Equal(t, enums.CoinTransactionMilestonePayout, coins[0].Type)

	txns, err := f.repo.ListEscrowTransactions(ctx, f.contractID)
	require.NoError(t, err)
	require.Len(t, txns, 2)
	assert.Equal(t, enums.EscrowTransactionFund, txns[0].Type)
	assert.Equal(t, enums.EscrowTransactionRelease, txns[1].Type)
}

func TestReleaseOverdrawLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t, "1000000")
	f.fund(t, "100", "")

	_, err := f.release("150")
	assertCode(t, err, pkgerrors.CodeInsufficientFunds)

	account, err := f.repo.FindAccount(ctx, f.contractID)
	require.NoError(t, err)
	assert.True(t, account.ReleasedTotal.IsZero())
	fees, err := f.repo.ListPlatformFees(ctx, f.contractID)
	require.NoError(t, err)
	assert.Empty(t, fees)
	_, err = f.repo.FindWallet(ctx, f.developer)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestReleaseOverWalletCapacityRollsBack(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t, "500")
	f.fund(t, "1000", "")

	_, err := f.release("1000")
	assertCode(t, err, pkgerrors.CodeWalletCapacity)

	account, err := f.repo.FindAccount(ctx, f.contractID)
	require.NoError(t, err)
	assert.True(t, account.ReleasedTotal.IsZero())
	assert.Equal(t, enums.EscrowStatusFunded, account.Status)
	fees, err := f.repo.ListPlatformFees(ctx, f.contractID)
	require.NoError(t, err)
	assert.Empty(t, fees)
}

func TestFundReplaysKnownReference(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t, "1000000")

	first := f.fund(t, "250", "pi_123")
	assert.False(t, first.Replayed)
	second := f.fund(t, "250", "pi_123")
	assert.True(t, second.Replayed)
	assert.Equal(t, first.Transaction.ID, second.Transaction.ID)

	account, err := f.repo.FindAccount(ctx, f.contractID)
	require.NoError(t, err)
	assert.True(t, account.FundedTotal.Equal(d("250")))

	err = f.client.WithTx(ctx, func(tx *gorm.DB) error {
		_, err := f.svc.Fund(ctx, tx, FundInput{
			ContractID: f.contractID,
			Currency:   enums.CurrencyUSD,
			Amount:     d("300"),
			Reference:  "pi_123",
		})
		return err
	})
	assertCode(t, err, pkgerrors.CodeIdempotency)
}

func TestRefundRemainingDrainsEscrow(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t, "1000000")
	f.fund(t, "400", "")
	_, err := f.release("100")
	require.NoError(t, err)

	var refunded *RefundResult
	err = f.client.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		refunded, err = f.svc.RefundRemaining(ctx, tx, RefundInput{ContractID: f.contractID, ClientID: f.clientID})
		return err
	})
	require.NoError(t, err)
	require.NotNil(t, refunded.Transaction)
	assert.True(t, refunded.Transaction.Amount.Equal(d("300")))
	assert.Equal(t, enums.EscrowStatusDepleted, refunded.Account.Status)

	err = f.client.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		refunded, err = f.svc.RefundRemaining(ctx, tx, RefundInput{ContractID: f.contractID, ClientID: f.clientID})
		return err
	})
	require.NoError(t, err)
	assert.Nil(t, refunded.Transaction)
}

func TestSaveAccountDetectsStaleVersion(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t, "1000000")

	stale, err := f.repo.FindAccount(ctx, f.contractID)
	require.NoError(t, err)
	f.fund(t, "10", "")

	stale.FundedTotal = d("999")
	assertCode(t, f.repo.SaveAccount(ctx, stale), pkgerrors.CodeConflict)

	fresh, err := f.repo.FindAccount(ctx, f.contractID)
	require.NoError(t, err)
	assert.True(t, fresh.FundedTotal.Equal(d("10")))
}

func TestListAccountsPagesByID(t *testing.T) {
	ctx := context.Background()
	client := dbtest.New(t)
	repo := NewRepository(client.DB())
	for i := 0; i < 3; i++ {
		require.NoError(t, repo.CreateAccount(ctx, &models.EscrowAccount{
			ContractID:    uuid.New(),
			Currency:      enums.CurrencyUSD,
			FundedTotal:   decimal.Zero,
			ReleasedTotal: decimal.Zero,
			RefundedTotal: decimal.Zero,
			Status:        enums.EscrowStatusUnfunded,
		}))
	}

	page, err := repo.ListAccounts(ctx, uuid.Nil, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	rest, err := repo.ListAccounts(ctx, page[1].ID, 2)
	require.NoError(t, err)
	require.Len(t, rest, 1)
}

func TestFundRejectsDepositPastCap(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t, "1000000")
	f.fund(t, "800", "")

	err := f.client.WithTx(ctx, func(tx *gorm.DB) error {
		_, err := f.svc.Fund(ctx, tx, FundInput{
			ContractID: f.contractID,
			Currency:   enums.CurrencyUSD,
			Amount:     d("300"),
			MaxFunded:  d("1000"),
		})
		return err
	})
	assertCode(t, err, pkgerrors.CodeValidation)

	account, err := f.repo.FindAccount(ctx, f.contractID)
	require.NoError(t, err)
	assert.True(t, account.FundedTotal.Equal(d("800")))
}

func TestFundCapCountsRefundedEscrowAsReturned(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t, "1000000")
	f.fund(t, "1000", "")

	fundCapped := func(amount string) error {
		return f.client.WithTx(ctx, func(tx *gorm.DB) error {
			_, err := f.svc.Fund(ctx, tx, FundInput{
				ContractID: f.contractID,
				Currency:   enums.CurrencyUSD,
				Amount:     d(amount),
				MaxFunded:  d("1000"),
			})
			return err
		})
	}
	require.NoError(t, f.client.WithTx(ctx, func(tx *gorm.DB) error {
		_, err := f.svc.Refund(ctx, tx, RefundInput{ContractID: f.contractID, Amount: d("300"), ClientID: f.clientID})
		return err
	}))

	require.NoError(t, fundCapped("300"))
	assertCode(t, fundCapped("0.01"), pkgerrors.CodeValidation)

	account, err := f.repo.FindAccount(ctx, f.contractID)
	require.NoError(t, err)
	assert.True(t, account.FundedTotal.Equal(d("1300")))
	assert.True(t, account.RefundedTotal.Equal(d("300")))
}
