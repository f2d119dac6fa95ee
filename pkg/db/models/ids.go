package models

import "github.com/google/uuid"

func ensureID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

// All lists every persisted model, in dependency order.
func All() []any {
	return []any{
		&Contract{},
		&EscrowAccount{},
		&EscrowTransaction{},
		&Milestone{},
		&MilestoneSubmission{},
		&MilestoneReview{},
		&Dispute{},
		&PlatformFee{},
		&CoinWallet{},
		&CoinTransaction{},
		&ActivityLog{},
		&AdminAction{},
		&OutboxEvent{},
		&OutboxDLQ{},
	}
}
