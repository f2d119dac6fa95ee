package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/gigledger-backend/pkg/db"
	"github.com/angelmondragon/gigledger-backend/pkg/db/models"
	"github.com/angelmondragon/gigledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/gigledger-backend/pkg/errors"
)

// Service posts escrow movements. Every method runs inside the caller's
// transaction so the counters, ledger rows and wallet credit commit together.
type Service interface {
	OpenAccount(ctx context.Context, tx *gorm.DB, contractID uuid.UUID, currency enums.Currency) (*models.EscrowAccount, error)
	Fund(ctx context.Context, tx *gorm.DB, input FundInput) (*FundResult, error)
	Release(ctx context.Context, tx *gorm.DB, input ReleaseInput) (*ReleaseResult, error)
	Refund(ctx context.Context, tx *gorm.DB, input RefundInput) (*RefundResult, error)
	RefundRemaining(ctx context.Context, tx *gorm.DB, input RefundInput) (*RefundResult, error)
	Account(ctx context.Context, tx *gorm.DB, contractID uuid.UUID) (*models.EscrowAccount, error)
	History(ctx context.Context, tx *gorm.DB, contractID uuid.UUID) ([]models.EscrowTransaction, error)
}

// FundInput credits escrow. Reference, when set, makes the call idempotent.
type FundInput struct {
	ContractID uuid.UUID
	Currency   enums.Currency
	Amount     decimal.Decimal
	Reference  string
	Source     enums.FundingSource
	FromUserID *uuid.UUID
	// MaxFunded caps funded_total minus refunded_total after the deposit, so escrow
	// returned to the client can be deposited again. Zero disables the cap.
	MaxFunded decimal.Decimal
}

type FundResult struct {
	Account     models.EscrowAccount
	Transaction models.EscrowTransaction
	Replayed    bool
}

// ReleaseInput pays out of escrow to the developer's wallet, net of the platform fee.
type ReleaseInput struct {
	ContractID  uuid.UUID
	MilestoneID *uuid.UUID
	Currency    enums.Currency
	Amount      decimal.Decimal
	ClientID    uuid.UUID
	DeveloperID uuid.UUID
	CoinType    enums.CoinTransactionType
	Description string
}

type ReleaseResult struct {
	Account         models.EscrowAccount
	Split           FeeSplit
	Fee             models.PlatformFee
	Transaction     models.EscrowTransaction
	Wallet          *models.CoinWallet
	CoinTransaction *models.CoinTransaction
}

// RefundInput returns escrow to the client. Amount is ignored by RefundRemaining.
type RefundInput struct {
	ContractID  uuid.UUID
	MilestoneID *uuid.UUID
	Amount      decimal.Decimal
	ClientID    uuid.UUID
}

type RefundResult struct {
	Account     models.EscrowAccount
	Transaction *models.EscrowTransaction
}

type service struct {
	repo           Repository
	feePercent     decimal.Decimal
	walletCapacity decimal.Decimal
}

// NewService wires the posting service with the platform fee and the capacity
// assigned to wallets opened on first payout.
func NewService(repo Repository, feePercent, walletCapacity decimal.Decimal) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if feePercent.IsNegative() || feePercent.GreaterThan(hundred) {
		return nil, fmt.Errorf("fee percent must be between 0 and 100, got %s", feePercent)
	}
	if !walletCapacity.IsPositive() {
		return nil, fmt.Errorf("wallet capacity must be positive, got %s", walletCapacity)
	}
	return &service{repo: repo, feePercent: feePercent, walletCapacity: walletCapacity}, nil
}

func (s *service) OpenAccount(ctx context.Context, tx *gorm.DB, contractID uuid.UUID, currency enums.Currency) (*models.EscrowAccount, error) {
	account := &models.EscrowAccount{
		ContractID:    contractID,
		Currency:      currency,
		FundedTotal:   decimal.Zero,
		ReleasedTotal: decimal.Zero,
		RefundedTotal: decimal.Zero,
		Status:        enums.EscrowStatusUnfunded,
	}
	if err := s.repo.WithTx(tx).CreateAccount(ctx, account); err != nil {
		return nil, db.Classify(err, "create escrow account")
	}
	return account, nil
}

func (s *service) Account(ctx context.Context, tx *gorm.DB, contractID uuid.UUID) (*models.EscrowAccount, error) {
	account, err := s.repo.WithTx(tx).FindAccount(ctx, contractID)
	if err != nil {
		return nil, db.Classify(err, "load escrow account")
	}
	return account, nil
}

func (s *service) History(ctx context.Context, tx *gorm.DB, contractID uuid.UUID) ([]models.EscrowTransaction, error) {
	txns, err := s.repo.WithTx(tx).ListEscrowTransactions(ctx, contractID)
	if err != nil {
		return nil, db.Classify(err, "list escrow transactions")
	}
	return txns, nil
}

func (s *service) Fund(ctx context.Context, tx *gorm.DB, input FundInput) (*FundResult, error) {
	if err := ValidateAmount(input.Amount, input.Currency); err != nil {
		return nil, err
	}
	repo := s.repo.WithTx(tx)
	reference := strings.TrimSpace(input.Reference)

	if reference != "" {
		existing, err := repo.FindFundByReference(ctx, reference)
		switch {
		case err == nil:
			return s.replayFund(ctx, repo, existing, input)
		case !errors.Is(err, gorm.ErrRecordNotFound):
			return nil, db.Classify(err, "lookup funding reference")
		}
	}

	account, err := repo.LockAccount(ctx, input.ContractID)
	if err != nil {
		return nil, db.Classify(err, "lock escrow account")
	}
	next, err := ApplyFund(*account, input.Amount)
	if err != nil {
		return nil, err
	}
	if input.MaxFunded.IsPositive() && next.FundedTotal.Sub(next.RefundedTotal).GreaterThan(input.MaxFunded) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "funding would exceed the contract total").
			WithDetails(map[string]any{
				"funded_total":   account.FundedTotal.String(),
				"refunded_total": account.RefundedTotal.String(),
				"amount":       input.Amount.String(),
				"total_amount": input.MaxFunded.String(),
			})
	}
	if err := repo.SaveAccount(ctx, &next); err != nil {
		return nil, db.Classify(err, "save escrow account")
	}

	txn := models.EscrowTransaction{
		ContractID: input.ContractID,
		Type:       enums.EscrowTransactionFund,
		Amount:     input.Amount,
		FromUserID: input.FromUserID,
		Status:     enums.TransactionStatusCompleted,
	}
	if reference != "" {
		txn.ProviderReference = &reference
	}
	if input.Source.IsValid() {
		source := input.Source
		txn.Source = &source
	}
	if err := repo.CreateEscrowTransaction(ctx, &txn); err != nil {
		return nil, db.Classify(err, "record funding")
	}
	return &FundResult{Account: next, Transaction: txn}, nil
}

func (s *service) replayFund(ctx context.Context, repo Repository, existing *models.EscrowTransaction, input FundInput) (*FundResult, error) {
	if existing.ContractID != input.ContractID || !existing.Amount.Equal(input.Amount) {
		return nil, pkgerrors.New(pkgerrors.CodeIdempotency, "funding reference already used for a different payment").
			WithDetails(map[string]any{"reference": input.Reference})
	}
	account, err := repo.FindAccount(ctx, input.ContractID)
	if err != nil {
		return nil, db.Classify(err, "load escrow account")
	}
	return &FundResult{Account: *account, Transaction: *existing, Replayed: true}, nil
}

// Release follows a fixed order: debit escrow, book the fee, credit the wallet,
// then append the RELEASE entry. Any failure aborts the caller's transaction.
func (s *service) Release(ctx context.Context, tx *gorm.DB, input ReleaseInput) (*ReleaseResult, error) {
	if err := ValidateAmount(input.Amount, input.Currency); err != nil {
		return nil, err
	}
	if input.DeveloperID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "contract has no developer to pay")
	}
	repo := s.repo.WithTx(tx)

	account, err := repo.LockAccount(ctx, input.ContractID)
	if err != nil {
		return nil, db.Classify(err, "lock escrow account")
	}
	next, err := ApplyRelease(*account, input.Amount)
	if err != nil {
		return nil, err
	}

	split, err := ComputeFee(input.Amount, s.feePercent, input.Currency.Scale())
	if err != nil {
		return nil, err
	}

	if err := repo.SaveAccount(ctx, &next); err != nil {
		return nil, db.Classify(err, "save escrow account")
	}

	fee := models.PlatformFee{
		ContractID:  input.ContractID,
		MilestoneID: input.MilestoneID,
		Currency:    input.Currency,
		GrossAmount: split.Gross,
		Amount:      split.Fee,
		Percentage:  split.Percentage,
	}
	if err := repo.CreatePlatformFee(ctx, &fee); err != nil {
		return nil, db.Classify(err, "record platform fee")
	}

	result := &ReleaseResult{Account: next, Split: split, Fee: fee}
	if split.Net.IsPositive() {
		wallet, coinTxn, err := s.creditDeveloper(ctx, repo, input, split.Net)
		if err != nil {
			return nil, err
		}
		result.Wallet = wallet
		result.CoinTransaction = coinTxn
	}

	developer := input.DeveloperID
	client := input.ClientID
	txn := models.EscrowTransaction{
		ContractID:  input.ContractID,
		MilestoneID: input.MilestoneID,
		Type:        enums.EscrowTransactionRelease,
		Amount:      input.Amount,
		FromUserID:  &client,
		ToUserID:    &developer,
		Status:      enums.TransactionStatusCompleted,
	}
	if err := repo.CreateEscrowTransaction(ctx, &txn); err != nil {
		return nil, db.Classify(err, "record release")
	}
	result.Transaction = txn
	return result, nil
}

func (s *service) creditDeveloper(ctx context.Context, repo Repository, input ReleaseInput, net decimal.Decimal) (*models.CoinWallet, *models.CoinTransaction, error) {
	wallet, err := repo.LockWallet(ctx, input.DeveloperID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		wallet = &models.CoinWallet{
			UserID:      input.DeveloperID,
			Balance:     decimal.Zero,
			MaxCapacity: s.walletCapacity,
			Status:      enums.WalletStatusActive,
		}
		err = repo.CreateWallet(ctx, wallet)
	}
	if err != nil {
		return nil, nil, db.Classify(err, "open developer wallet")
	}

	credited, err := CreditWallet(*wallet, net)
	if err != nil {
		return nil, nil, err
	}
	if err := repo.SaveWallet(ctx, &credited); err != nil {
		return nil, nil, db.Classify(err, "save developer wallet")
	}

	coinType := input.CoinType
	if !coinType.IsValid() {
		coinType = enums.CoinTransactionMilestonePayout
	}
	coinTxn := &models.CoinTransaction{
		WalletID:    credited.ID,
		Type:        coinType,
		Amount:      net,
		Direction:   enums.CoinDirectionIn,
		Status:      enums.TransactionStatusCompleted,
		ReferenceID: input.MilestoneID,
		Description: input.Description,
	}
	if coinTxn.ReferenceID == nil {
		contractID := input.ContractID
		coinTxn.ReferenceID = &contractID
	}
	if err := repo.CreateCoinTransaction(ctx, coinTxn); err != nil {
		return nil, nil, db.Classify(err, "record wallet credit")
	}
	return &credited, coinTxn, nil
}

func (s *service) Refund(ctx context.Context, tx *gorm.DB, input RefundInput) (*RefundResult, error) {
	if err := requirePositive(input.Amount); err != nil {
		return nil, err
	}
	repo := s.repo.WithTx(tx)
	account, err := repo.LockAccount(ctx, input.ContractID)
	if err != nil {
		return nil, db.Classify(err, "lock escrow account")
	}
	return s.refund(ctx, repo, *account, input.Amount, input)
}

// RefundRemaining returns whatever escrow is still available. A drained or
// never-funded account yields a result with a nil Transaction.
func (s *service) RefundRemaining(ctx context.Context, tx *gorm.DB, input RefundInput) (*RefundResult, error) {
	repo := s.repo.WithTx(tx)
	account, err := repo.LockAccount(ctx, input.ContractID)
	if err != nil {
		return nil, db.Classify(err, "lock escrow account")
	}
	available, err := Available(*account)
	if err != nil {
		return nil, err
	}
	if !available.IsPositive() {
		return &RefundResult{Account: *account}, nil
	}
	return s.refund(ctx, repo, *account, available, input)
}

func (s *service) refund(ctx context.Context, repo Repository, account models.EscrowAccount, amount decimal.Decimal, input RefundInput) (*RefundResult, error) {
	next, err := ApplyRefund(account, amount)
	if err != nil {
		return nil, err
	}
	if err := repo.SaveAccount(ctx, &next); err != nil {
		return nil, db.Classify(err, "save escrow account")
	}
	client := input.ClientID
	txn := &models.EscrowTransaction{
		ContractID:  input.ContractID,
		MilestoneID: input.MilestoneID,
		Type:        enums.EscrowTransactionRefund,
		Amount:      amount,
		ToUserID:    &client,
		Status:      enums.TransactionStatusCompleted,
	}
	if err := repo.CreateEscrowTransaction(ctx, txn); err != nil {
		return nil, db.Classify(err, "record refund")
	}
	return &RefundResult{Account: next, Transaction: txn}, nil
}
