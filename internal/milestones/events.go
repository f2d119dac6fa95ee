package milestones

import (
	"github.com/angelmondragon/gigledger-backend/pkg/db/models"
	"github.com/angelmondragon/gigledger-backend/pkg/enums"
	"github.com/angelmondragon/gigledger-backend/pkg/outbox"
	"github.com/angelmondragon/gigledger-backend/pkg/outbox/payloads"
)

// StateChangedEvent reports a milestone that already moved from `from` to its
// current status.
func StateChangedEvent(milestone *models.Milestone, from enums.MilestoneStatus) outbox.DomainEvent {
	return outbox.DomainEvent{
		EventType:     enums.EventMilestoneStateChanged,
		AggregateType: enums.AggregateMilestone,
		AggregateID:   milestone.ID,
		Data: payloads.MilestoneStateChangedEvent{
			MilestoneID: milestone.ID,
			ContractID:  milestone.ContractID,
			From:        from,
			To:          milestone.Status,
		},
	}
}
