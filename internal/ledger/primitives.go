package ledger

import (
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/gigledger-backend/pkg/db/models"
	"github.com/angelmondragon/gigledger-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/gigledger-backend/pkg/errors"
)

// Available returns funded - released - refunded. A negative result, or a negative
// counter, means the account was corrupted and is reported as an invariant violation.
func Available(account models.EscrowAccount) (decimal.Decimal, error) {
	if account.FundedTotal.IsNegative() || account.ReleasedTotal.IsNegative() || account.RefundedTotal.IsNegative() {
		return decimal.Zero, invariantViolation(account, "escrow counter is negative")
	}
	available := account.FundedTotal.Sub(account.ReleasedTotal).Sub(account.RefundedTotal)
	if available.IsNegative() {
		return decimal.Zero, invariantViolation(account, "available escrow is negative")
	}
	return available, nil
}

// ApplyFund credits escrow and marks an unfunded or drained account as funded.
func ApplyFund(account models.EscrowAccount, amount decimal.Decimal) (models.EscrowAccount, error) {
	if err := requirePositive(amount); err != nil {
		return account, err
	}
	if _, err := Available(account); err != nil {
		return account, err
	}
	account.FundedTotal = account.FundedTotal.Add(amount)
	if account.Status != enums.EscrowStatusFunded {
		account.Status = enums.EscrowStatusFunded
	}
	return account, nil
}

// ApplyRelease moves amount out of escrow towards the developer.
func ApplyRelease(account models.EscrowAccount, amount decimal.Decimal) (models.EscrowAccount, error) {
	if err := requireAvailable(account, amount); err != nil {
		return account, err
	}
	account.ReleasedTotal = account.ReleasedTotal.Add(amount)
	return settle(account)
}

// ApplyRefund moves amount out of escrow back to the client.
func ApplyRefund(account models.EscrowAccount, amount decimal.Decimal) (models.EscrowAccount, error) {
	if err := requireAvailable(account, amount); err != nil {
		return account, err
	}
	account.RefundedTotal = account.RefundedTotal.Add(amount)
	return settle(account)
}

// CreditWallet adds amount to an active wallet. Credits that would push the balance
// past MaxCapacity are rejected rather than clamped.
func CreditWallet(wallet models.CoinWallet, amount decimal.Decimal) (models.CoinWallet, error) {
	if err := requirePositive(amount); err != nil {
		return wallet, err
	}
	if wallet.Status != enums.WalletStatusActive {
		return wallet, pkgerrors.New(pkgerrors.CodeStateConflict, "wallet is not active").
			WithDetails(map[string]any{"wallet_id": wallet.ID.String(), "status": wallet.Status})
	}
	next := wallet.Balance.Add(amount)
	if wallet.MaxCapacity.IsPositive() && next.GreaterThan(wallet.MaxCapacity) {
		return wallet, pkgerrors.New(pkgerrors.CodeWalletCapacity, "credit exceeds wallet capacity").
			WithDetails(map[string]any{
				"wallet_id":    wallet.ID.String(),
				"balance":      wallet.Balance.String(),
				"credit":       amount.String(),
				"max_capacity": wallet.MaxCapacity.String(),
			})
	}
	wallet.Balance = next
	return wallet, nil
}

func requireAvailable(account models.EscrowAccount, amount decimal.Decimal) error {
	if err := requirePositive(amount); err != nil {
		return err
	}
	available, err := Available(account)
	if err != nil {
		return err
	}
	if amount.GreaterThan(available) {
		return pkgerrors.New(pkgerrors.CodeInsufficientFunds, "amount exceeds available escrow").
			WithDetails(map[string]any{
				"contract_id": account.ContractID.String(),
				"requested":   amount.String(),
				"available":   available.String(),
			})
	}
	return nil
}

func settle(account models.EscrowAccount) (models.EscrowAccount, error) {
	available, err := Available(account)
	if err != nil {
		return account, err
	}
	if available.IsZero() && account.FundedTotal.IsPositive() {
		account.Status = enums.EscrowStatusDepleted
	}
	return account, nil
}

func requirePositive(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive").
			WithDetails(map[string]any{"amount": amount.String()})
	}
	return nil
}

func invariantViolation(account models.EscrowAccount, msg string) error {
	return pkgerrors.New(pkgerrors.CodeInvariantViolation, msg).WithDetails(map[string]any{
		"contract_id":    account.ContractID.String(),
		"funded_total":   account.FundedTotal.String(),
		"released_total": account.ReleasedTotal.String(),
		"refunded_total": account.RefundedTotal.String(),
	})
}
