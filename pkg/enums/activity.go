package enums

import "fmt"

// ActivityAction names the state-changing operation recorded in the audit log.
type ActivityAction string

const (
	ActivityContractCreated    ActivityAction = "CONTRACT_CREATED"
	ActivityDeveloperAssigned  ActivityAction = "DEVELOPER_ASSIGNED"
	ActivityContractActivated  ActivityAction = "CONTRACT_ACTIVATED"
	ActivityContractFunded     ActivityAction = "CONTRACT_FUNDED"
	ActivityContractPaused     ActivityAction = "CONTRACT_PAUSED"
	ActivityContractResumed    ActivityAction = "CONTRACT_RESUMED"
	ActivityContractCancelled  ActivityAction = "CONTRACT_CANCELLED"
	ActivityContractCompleted  ActivityAction = "CONTRACT_COMPLETED"
	ActivityEscrowRefunded     ActivityAction = "ESCROW_REFUNDED"
	ActivityMilestoneCreated   ActivityAction = "MILESTONE_CREATED"
	ActivityMilestoneStarted   ActivityAction = "MILESTONE_STARTED"
	ActivityMilestoneSubmitted ActivityAction = "MILESTONE_SUBMITTED"
	ActivityMilestoneReviewed  ActivityAction = "MILESTONE_REVIEWED"
	ActivityMilestoneReleased  ActivityAction = "MILESTONE_RELEASED"
	ActivityDisputeOpened      ActivityAction = "DISPUTE_OPENED"
	ActivityDisputeResolved    ActivityAction = "DISPUTE_RESOLVED"
)

var validActivityActions = []ActivityAction{
	ActivityContractCreated,
	ActivityDeveloperAssigned,
	ActivityContractActivated,
	ActivityContractFunded,
	ActivityContractPaused,
	ActivityContractResumed,
	ActivityContractCancelled,
	ActivityContractCompleted,
	ActivityEscrowRefunded,
	ActivityMilestoneCreated,
	ActivityMilestoneStarted,
	ActivityMilestoneSubmitted,
	ActivityMilestoneReviewed,
	ActivityMilestoneReleased,
	ActivityDisputeOpened,
	ActivityDisputeResolved,
}

// String implements fmt.Stringer.
func (a ActivityAction) String() string {
	return string(a)
}

// IsValid reports whether the value is a known ActivityAction.
func (a ActivityAction) IsValid() bool {
	for _, candidate := range validActivityActions {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseActivityAction converts raw input into a ActivityAction.
func ParseActivityAction(value string) (ActivityAction, error) {
	for _, candidate := range validActivityActions {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid activity action %q", value)
}

// AdminTargetType identifies what an admin action touched.
type AdminTargetType string

const (
	AdminTargetContract  AdminTargetType = "contract"
	AdminTargetMilestone AdminTargetType = "milestone"
	AdminTargetDispute   AdminTargetType = "dispute"
)

var validAdminTargetTypes = []AdminTargetType{
	AdminTargetContract,
	AdminTargetMilestone,
	AdminTargetDispute,
}

// String implements fmt.Stringer.
func (a AdminTargetType) String() string {
	return string(a)
}

// IsValid reports whether the value is a known AdminTargetType.
func (a AdminTargetType) IsValid() bool {
	for _, candidate := range validAdminTargetTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseAdminTargetType converts raw input into a AdminTargetType.
func ParseAdminTargetType(value string) (AdminTargetType, error) {
	for _, candidate := range validAdminTargetTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid admin target type %q", value)
}
