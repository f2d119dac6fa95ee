package enums

import "fmt"

// EscrowStatus mirrors the escrow account lifecycle.
type EscrowStatus string

const (
	EscrowStatusUnfunded EscrowStatus = "UNFUNDED"
	EscrowStatusFunded   EscrowStatus = "FUNDED"
	EscrowStatusDepleted EscrowStatus = "DEPLETED"
)

var validEscrowStatuses = []EscrowStatus{
	EscrowStatusUnfunded,
	EscrowStatusFunded,
	EscrowStatusDepleted,
}

// String implements fmt.Stringer.
func (e EscrowStatus) String() string {
	return string(e)
}

// IsValid reports whether the value is a known EscrowStatus.
func (e EscrowStatus) IsValid() bool {
	for _, candidate := range validEscrowStatuses {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseEscrowStatus converts raw input into a EscrowStatus.
func ParseEscrowStatus(value string) (EscrowStatus, error) {
	for _, candidate := range validEscrowStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid escrow status %q", value)
}

// EscrowTransactionType classifies immutable escrow ledger rows.
type EscrowTransactionType string

const (
	EscrowTransactionFund    EscrowTransactionType = "FUND"
	EscrowTransactionRelease EscrowTransactionType = "RELEASE"
	EscrowTransactionRefund  EscrowTransactionType = "REFUND"
)

var validEscrowTransactionTypes = []EscrowTransactionType{
	EscrowTransactionFund,
	EscrowTransactionRelease,
	EscrowTransactionRefund,
}

// String implements fmt.Stringer.
func (e EscrowTransactionType) String() string {
	return string(e)
}

// IsValid reports whether the value is a known EscrowTransactionType.
func (e EscrowTransactionType) IsValid() bool {
	for _, candidate := range validEscrowTransactionTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseEscrowTransactionType converts raw input into a EscrowTransactionType.
func ParseEscrowTransactionType(value string) (EscrowTransactionType, error) {
	for _, candidate := range validEscrowTransactionTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid escrow transaction type %q", value)
}

// TransactionStatus is the settlement state of a ledger row.
type TransactionStatus string

const (
	TransactionStatusCompleted TransactionStatus = "COMPLETED"
	TransactionStatusFailed    TransactionStatus = "FAILED"
)

var validTransactionStatuses = []TransactionStatus{
	TransactionStatusCompleted,
	TransactionStatusFailed,
}

// String implements fmt.Stringer.
func (t TransactionStatus) String() string {
	return string(t)
}

// IsValid reports whether the value is a known TransactionStatus.
func (t TransactionStatus) IsValid() bool {
	for _, candidate := range validTransactionStatuses {
		if candidate == t {
			return true
		}
	}
	return false
}

// ParseTransactionStatus converts raw input into a TransactionStatus.
func ParseTransactionStatus(value string) (TransactionStatus, error) {
	for _, candidate := range validTransactionStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid transaction status %q", value)
}

// FundingSource records where escrowed money came from.
type FundingSource string

const (
	FundingSourceClient          FundingSource = "CLIENT"
	FundingSourcePaymentProvider FundingSource = "PAYMENT_PROVIDER"
	FundingSourceBankTransfer    FundingSource = "BANK_TRANSFER"
	FundingSourceManual          FundingSource = "MANUAL"
)

var validFundingSources = []FundingSource{
	FundingSourceClient,
	FundingSourcePaymentProvider,
	FundingSourceBankTransfer,
	FundingSourceManual,
}

// String implements fmt.Stringer.
func (f FundingSource) String() string {
	return string(f)
}

// IsValid reports whether the value is a known FundingSource.
func (f FundingSource) IsValid() bool {
	for _, candidate := range validFundingSources {
		if candidate == f {
			return true
		}
	}
	return false
}

// ParseFundingSource converts raw input into a FundingSource.
func ParseFundingSource(value string) (FundingSource, error) {
	for _, candidate := range validFundingSources {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid funding source %q", value)
}
