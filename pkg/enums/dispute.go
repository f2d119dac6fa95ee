package enums

import "fmt"

// DisputeStatus tracks whether a dispute still freezes its target.
type DisputeStatus string

const (
	DisputeStatusOpen     DisputeStatus = "OPEN"
	DisputeStatusResolved DisputeStatus = "RESOLVED"
)

var validDisputeStatuses = []DisputeStatus{
	DisputeStatusOpen,
	DisputeStatusResolved,
}

// String implements fmt.Stringer.
func (d DisputeStatus) String() string {
	return string(d)
}

// IsValid reports whether the value is a known DisputeStatus.
func (d DisputeStatus) IsValid() bool {
	for _, candidate := range validDisputeStatuses {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseDisputeStatus converts raw input into a DisputeStatus.
func ParseDisputeStatus(value string) (DisputeStatus, error) {
	for _, candidate := range validDisputeStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid dispute status %q", value)
}

// DisputeOutcome is the closed set of admin resolutions.
type DisputeOutcome string

const (
	DisputeOutcomeReleaseToDeveloper DisputeOutcome = "RELEASE_TO_DEVELOPER"
	DisputeOutcomeRefundToClient     DisputeOutcome = "REFUND_TO_CLIENT"
	DisputeOutcomeSplit              DisputeOutcome = "SPLIT"
	DisputeOutcomeDismiss            DisputeOutcome = "DISMISS"
)

var validDisputeOutcomes = []DisputeOutcome{
	DisputeOutcomeReleaseToDeveloper,
	DisputeOutcomeRefundToClient,
	DisputeOutcomeSplit,
	DisputeOutcomeDismiss,
}

// String implements fmt.Stringer.
func (d DisputeOutcome) String() string {
	return string(d)
}

// IsValid reports whether the value is a known DisputeOutcome.
func (d DisputeOutcome) IsValid() bool {
	for _, candidate := range validDisputeOutcomes {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseDisputeOutcome converts raw input into a DisputeOutcome.
func ParseDisputeOutcome(value string) (DisputeOutcome, error) {
	for _, candidate := range validDisputeOutcomes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid dispute outcome %q", value)
}
