package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type column of outbox_events.
type OutboxAggregateType string

const (
	AggregateContract  OutboxAggregateType = "contract"
	AggregateMilestone OutboxAggregateType = "milestone"
	AggregateDispute   OutboxAggregateType = "dispute"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateContract,
	AggregateMilestone,
	AggregateDispute,
}

// IsValid reports whether the value matches a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type column of outbox_events.
type OutboxEventType string

const (
	EventContractFunded        OutboxEventType = "contract_funded"
	EventContractStateChanged  OutboxEventType = "contract_state_changed"
	EventMilestoneStateChanged OutboxEventType = "milestone_state_changed"
	EventMilestoneSubmitted    OutboxEventType = "milestone_submitted"
	EventMilestoneReviewed     OutboxEventType = "milestone_reviewed"
	EventMilestoneReleased     OutboxEventType = "milestone_released"
	EventEscrowRefunded        OutboxEventType = "escrow_refunded"
	EventDisputeOpened         OutboxEventType = "dispute_opened"
	EventDisputeResolved       OutboxEventType = "dispute_resolved"
)

var validOutboxEventTypes = []OutboxEventType{
	EventContractFunded,
	EventContractStateChanged,
	EventMilestoneStateChanged,
	EventMilestoneSubmitted,
	EventMilestoneReviewed,
	EventMilestoneReleased,
	EventEscrowRefunded,
	EventDisputeOpened,
	EventDisputeResolved,
}

// IsValid reports whether the value matches a known event type.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
