package enums

import "fmt"

// MilestoneStatus tracks the review workflow of a milestone.
type MilestoneStatus string

const (
	MilestoneStatusPending    MilestoneStatus = "PENDING"
	MilestoneStatusInProgress MilestoneStatus = "IN_PROGRESS"
	MilestoneStatusSubmitted  MilestoneStatus = "SUBMITTED"
	MilestoneStatusApproved   MilestoneStatus = "APPROVED"
	MilestoneStatusRejected   MilestoneStatus = "REJECTED"
	MilestoneStatusReleased   MilestoneStatus = "RELEASED"
	MilestoneStatusDisputed   MilestoneStatus = "DISPUTED"
	MilestoneStatusRefunded   MilestoneStatus = "REFUNDED"
)

var validMilestoneStatuses = []MilestoneStatus{
	MilestoneStatusPending,
	MilestoneStatusInProgress,
	MilestoneStatusSubmitted,
	MilestoneStatusApproved,
	MilestoneStatusRejected,
	MilestoneStatusReleased,
	MilestoneStatusDisputed,
	MilestoneStatusRefunded,
}

// String implements fmt.Stringer.
func (m MilestoneStatus) String() string {
	return string(m)
}

// IsValid reports whether the value is a known MilestoneStatus.
func (m MilestoneStatus) IsValid() bool {
	for _, candidate := range validMilestoneStatuses {
		if candidate == m {
			return true
		}
	}
	return false
}

// ParseMilestoneStatus converts raw input into a MilestoneStatus.
func ParseMilestoneStatus(value string) (MilestoneStatus, error) {
	for _, candidate := range validMilestoneStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid milestone status %q", value)
}

// IsSettled reports whether the milestone's money has been fully paid out or returned.
func (m MilestoneStatus) IsSettled() bool {
	return m == MilestoneStatusReleased || m == MilestoneStatusRefunded
}

// ReviewDecision is the client's verdict on a submission.
type ReviewDecision string

const (
	ReviewDecisionApprove ReviewDecision = "APPROVE"
	ReviewDecisionReject  ReviewDecision = "REJECT"
)

var validReviewDecisions = []ReviewDecision{
	ReviewDecisionApprove,
	ReviewDecisionReject,
}

// String implements fmt.Stringer.
func (r ReviewDecision) String() string {
	return string(r)
}

// IsValid reports whether the value is a known ReviewDecision.
func (r ReviewDecision) IsValid() bool {
	for _, candidate := range validReviewDecisions {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseReviewDecision converts raw input into a ReviewDecision.
func ParseReviewDecision(value string) (ReviewDecision, error) {
	for _, candidate := range validReviewDecisions {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid review decision %q", value)
}
