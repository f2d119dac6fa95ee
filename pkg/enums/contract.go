package enums

import "fmt"

// ContractStatus tracks where a contract sits in its lifecycle.
type ContractStatus string

const (
	ContractStatusDraft          ContractStatus = "DRAFT"
	ContractStatusActiveUnfunded ContractStatus = "ACTIVE_UNFUNDED"
	ContractStatusActiveFunded   ContractStatus = "ACTIVE_FUNDED"
	ContractStatusPaused         ContractStatus = "PAUSED"
	ContractStatusCompleted      ContractStatus = "COMPLETED"
	ContractStatusCancelled      ContractStatus = "CANCELLED"
)

var validContractStatuses = []ContractStatus{
	ContractStatusDraft,
	ContractStatusActiveUnfunded,
	ContractStatusActiveFunded,
	ContractStatusPaused,
	ContractStatusCompleted,
	ContractStatusCancelled,
}

// String implements fmt.Stringer.
func (c ContractStatus) String() string {
	return string(c)
}

// IsValid reports whether the value is a known ContractStatus.
func (c ContractStatus) IsValid() bool {
	for _, candidate := range validContractStatuses {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseContractStatus converts raw input into a ContractStatus.
func ParseContractStatus(value string) (ContractStatus, error) {
	for _, candidate := range validContractStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid contract status %q", value)
}

// IsTerminal reports whether the status is absorbing.
func (c ContractStatus) IsTerminal() bool {
	return c == ContractStatusCompleted || c == ContractStatusCancelled
}

// IsActive reports whether work can progress under the status.
func (c ContractStatus) IsActive() bool {
	return c == ContractStatusActiveUnfunded || c == ContractStatusActiveFunded
}

// FundingMode controls how escrow is expected to be funded.
type FundingMode string

const (
	FundingModeFullUpfront    FundingMode = "FULL_UPFRONT"
	FundingModeMilestoneBased FundingMode = "MILESTONE_BASED"
)

var validFundingModes = []FundingMode{
	FundingModeFullUpfront,
	FundingModeMilestoneBased,
}

// String implements fmt.Stringer.
func (f FundingMode) String() string {
	return string(f)
}

// IsValid reports whether the value is a known FundingMode.
func (f FundingMode) IsValid() bool {
	for _, candidate := range validFundingModes {
		if candidate == f {
			return true
		}
	}
	return false
}

// ParseFundingMode converts raw input into a FundingMode.
func ParseFundingMode(value string) (FundingMode, error) {
	for _, candidate := range validFundingModes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid funding mode %q", value)
}
