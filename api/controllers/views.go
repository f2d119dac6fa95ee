package controllers

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/gigledger-backend/internal/admin"
	"github.com/angelmondragon/gigledger-backend/internal/contracts"
	"github.com/angelmondragon/gigledger-backend/internal/ledger"
	"github.com/angelmondragon/gigledger-backend/internal/reviews"
	"github.com/angelmondragon/gigledger-backend/pkg/db/models"
	"github.com/angelmondragon/gigledger-backend/pkg/enums"
)

type contractView struct {
	ID           uuid.UUID            `json:"id"`
	ClientID     uuid.UUID            `json:"client_id"`
	DeveloperID  *uuid.UUID           `json:"developer_id,omitempty"`
	Title        string               `json:"title"`
	Description  string               `json:"description,omitempty"`
	Currency     enums.Currency       `json:"currency"`
	TotalAmount  decimal.Decimal      `json:"total_amount"`
	FundingMode  enums.FundingMode    `json:"funding_mode"`
	Status       enums.ContractStatus `json:"status"`
	StartAt      *time.Time           `json:"start_at,omitempty"`
	TermsVersion string               `json:"terms_version,omitempty"`
	Metadata     json.RawMessage      `json:"metadata,omitempty"`
	CancelReason *string              `json:"cancel_reason,omitempty"`
	CompletedAt  *time.Time           `json:"completed_at,omitempty"`
	CancelledAt  *time.Time           `json:"cancelled_at,omitempty"`
	CreatedAt    time.Time            `json:"created_at"`
	UpdatedAt    time.Time            `json:"updated_at"`
}

type escrowView struct {
	ID            uuid.UUID          `json:"id"`
	Currency      enums.Currency     `json:"currency"`
	FundedTotal   decimal.Decimal    `json:"funded_total"`
	ReleasedTotal decimal.Decimal    `json:"released_total"`
	RefundedTotal decimal.Decimal    `json:"refunded_total"`
	Available     decimal.Decimal    `json:"available"`
	Status        enums.EscrowStatus `json:"status"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

type escrowTransactionView struct {
	ID                uuid.UUID                   `json:"id"`
	MilestoneID       *uuid.UUID                  `json:"milestone_id,omitempty"`
	Type              enums.EscrowTransactionType `json:"type"`
	Amount            decimal.Decimal             `json:"amount"`
	FromUserID        *uuid.UUID                  `json:"from_user_id,omitempty"`
	ToUserID          *uuid.UUID                  `json:"to_user_id,omitempty"`
	ProviderReference *string                     `json:"provider_reference,omitempty"`
	Source            *enums.FundingSource        `json:"source,omitempty"`
	Status            enums.TransactionStatus     `json:"status"`
	CreatedAt         time.Time                   `json:"created_at"`
}

type contractSnapshotView struct {
	Contract contractView `json:"contract"`
	Escrow   escrowView   `json:"escrow"`
}

type fundView struct {
	contractSnapshotView
	Transaction escrowTransactionView `json:"transaction"`
	Replayed    bool                  `json:"replayed"`
}

type closeView struct {
	contractSnapshotView
	Refund *escrowTransactionView `json:"refund,omitempty"`
}

type escrowHistoryView struct {
	Escrow       escrowView              `json:"escrow"`
	Transactions []escrowTransactionView `json:"transactions"`
}

type milestoneView struct {
	ID                 uuid.UUID             `json:"id"`
	ContractID         uuid.UUID             `json:"contract_id"`
	Title              string                `json:"title"`
	Description        string                `json:"description,omitempty"`
	AcceptanceCriteria string                `json:"acceptance_criteria,omitempty"`
	Amount             decimal.Decimal       `json:"amount"`
	DueDate            *time.Time            `json:"due_date,omitempty"`
	OrderIndex         int                   `json:"order_index"`
	Status             enums.MilestoneStatus `json:"status"`
	ReleasedAt         *time.Time            `json:"released_at,omitempty"`
	CreatedAt          time.Time             `json:"created_at"`
	UpdatedAt          time.Time             `json:"updated_at"`
}

type submissionView struct {
	ID          uuid.UUID            `json:"id"`
	MilestoneID uuid.UUID            `json:"milestone_id"`
	Sequence    int                  `json:"sequence"`
	DeveloperID uuid.UUID            `json:"developer_id"`
	Summary     string               `json:"summary"`
	Evidence    models.EvidenceItems `json:"evidence"`
	CreatedAt   time.Time            `json:"created_at"`
}

type reviewView struct {
	ID           uuid.UUID            `json:"id"`
	MilestoneID  uuid.UUID            `json:"milestone_id"`
	SubmissionID *uuid.UUID           `json:"submission_id,omitempty"`
	ReviewerID   uuid.UUID            `json:"reviewer_id"`
	Decision     enums.ReviewDecision `json:"decision"`
	ReasonCode   *string              `json:"reason_code,omitempty"`
	Comments     *string              `json:"comments,omitempty"`
	CreatedAt    time.Time            `json:"created_at"`
}

type payoutView struct {
	Gross      decimal.Decimal       `json:"gross"`
	Fee        decimal.Decimal       `json:"fee"`
	Net        decimal.Decimal       `json:"net"`
	Percentage decimal.Decimal       `json:"fee_percentage"`
	Escrow     escrowView            `json:"escrow"`
	Release    escrowTransactionView `json:"transaction"`
	WalletID   *uuid.UUID            `json:"wallet_id,omitempty"`
	Balance    *decimal.Decimal      `json:"wallet_balance,omitempty"`
	Milestone  *milestoneView        `json:"milestone,omitempty"`
}

type disputeView struct {
	ID                   uuid.UUID              `json:"id"`
	ContractID           uuid.UUID              `json:"contract_id"`
	MilestoneID          *uuid.UUID             `json:"milestone_id,omitempty"`
	OpenedBy             uuid.UUID              `json:"opened_by"`
	Reason               string                 `json:"reason"`
	Status               enums.DisputeStatus    `json:"status"`
	Outcome              *enums.DisputeOutcome  `json:"outcome,omitempty"`
	MilestonePriorStatus *enums.MilestoneStatus `json:"milestone_prior_status,omitempty"`
	DeveloperAmount      *decimal.Decimal       `json:"developer_amount,omitempty"`
	RefundAmount         *decimal.Decimal       `json:"refund_amount,omitempty"`
	ResolutionNotes      *string                `json:"resolution_notes,omitempty"`
	ResolvedBy           *uuid.UUID             `json:"resolved_by,omitempty"`
	ResolvedAt           *time.Time             `json:"resolved_at,omitempty"`
	CreatedAt            time.Time              `json:"created_at"`
}

type activityView struct {
	ID          uuid.UUID            `json:"id"`
	MilestoneID *uuid.UUID           `json:"milestone_id,omitempty"`
	ActorID     uuid.UUID            `json:"actor_id"`
	ActorRole   enums.ActorRole      `json:"actor_role"`
	Action      enums.ActivityAction `json:"action"`
	Payload     json.RawMessage      `json:"payload,omitempty"`
	CreatedAt   time.Time            `json:"created_at"`
}

type adminActionView struct {
	ID         uuid.UUID             `json:"id"`
	AdminID    uuid.UUID             `json:"admin_id"`
	Action     enums.ActivityAction  `json:"action"`
	TargetType enums.AdminTargetType `json:"target_type"`
	TargetID   uuid.UUID             `json:"target_id"`
	Reason     *string               `json:"reason,omitempty"`
	Payload    json.RawMessage       `json:"payload,omitempty"`
	CreatedAt  time.Time             `json:"created_at"`
}

type auditTrailView struct {
	Activity     []activityView    `json:"activity"`
	NextCursor   string            `json:"next_cursor,omitempty"`
	AdminActions []adminActionView `json:"admin_actions"`
}

type reconciliationView struct {
	ContractID     uuid.UUID           `json:"contract_id"`
	CheckedAt      time.Time           `json:"checked_at"`
	Consistent     bool                `json:"consistent"`
	Escrow         escrowView          `json:"escrow"`
	LedgerFunded   decimal.Decimal     `json:"ledger_funded"`
	LedgerReleased decimal.Decimal     `json:"ledger_released"`
	LedgerRefunded decimal.Decimal     `json:"ledger_refunded"`
	FeeGross       decimal.Decimal     `json:"fee_gross"`
	FeeTotal       decimal.Decimal     `json:"fee_total"`
	DeveloperNet   decimal.Decimal     `json:"developer_net"`
	MilestoneTotal decimal.Decimal     `json:"milestone_total"`
	Discrepancies  []admin.Discrepancy `json:"discrepancies"`
}

func toContractView(c models.Contract) contractView {
	return contractView{
		ID:           c.ID,
		ClientID:     c.ClientID,
		DeveloperID:  c.DeveloperID,
		Title:        c.Title,
		Description:  c.Description,
		Currency:     c.Currency,
		TotalAmount:  c.TotalAmount,
		FundingMode:  c.FundingMode,
		Status:       c.Status,
		StartAt:      c.StartAt,
		TermsVersion: c.TermsVersion,
		Metadata:     c.Metadata,
		CancelReason: c.CancelReason,
		CompletedAt:  c.CompletedAt,
		CancelledAt:  c.CancelledAt,
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
	}
}

func toEscrowView(a models.EscrowAccount) escrowView {
	available, err := ledger.Available(a)
	if err != nil {
		available = decimal.Zero
	}
	return escrowView{
		ID:            a.ID,
		Currency:      a.Currency,
		FundedTotal:   a.FundedTotal,
		ReleasedTotal: a.ReleasedTotal,
		RefundedTotal: a.RefundedTotal,
		Available:     available,
		Status:        a.Status,
		UpdatedAt:     a.UpdatedAt,
	}
}

func toEscrowTransactionView(t models.EscrowTransaction) escrowTransactionView {
	return escrowTransactionView{
		ID:                t.ID,
		MilestoneID:       t.MilestoneID,
		Type:              t.Type,
		Amount:            t.Amount,
		FromUserID:        t.FromUserID,
		ToUserID:          t.ToUserID,
		ProviderReference: t.ProviderReference,
		Source:            t.Source,
		Status:            t.Status,
		CreatedAt:         t.CreatedAt,
	}
}

func toSnapshotView(s contracts.Snapshot) contractSnapshotView {
	return contractSnapshotView{Contract: toContractView(s.Contract), Escrow: toEscrowView(s.Escrow)}
}

func toFundView(r *contracts.FundResult) fundView {
	return fundView{
		contractSnapshotView: toSnapshotView(r.Snapshot),
		Transaction:          toEscrowTransactionView(r.Transaction),
		Replayed:             r.Replayed,
	}
}

func toCloseView(r *contracts.CloseResult) closeView {
	view := closeView{contractSnapshotView: toSnapshotView(r.Snapshot)}
	if r.Refund != nil {
		refund := toEscrowTransactionView(*r.Refund)
		view.Refund = &refund
	}
	return view
}

func toEscrowHistoryView(v *contracts.EscrowView) escrowHistoryView {
	txs := make([]escrowTransactionView, 0, len(v.Transactions))
	for _, t := range v.Transactions {
		txs = append(txs, toEscrowTransactionView(t))
	}
	return escrowHistoryView{Escrow: toEscrowView(v.Escrow), Transactions: txs}
}

func toMilestoneView(m models.Milestone) milestoneView {
	return milestoneView{
		ID:                 m.ID,
		ContractID:         m.ContractID,
		Title:              m.Title,
		Description:        m.Description,
		AcceptanceCriteria: m.AcceptanceCriteria,
		Amount:             m.Amount,
		DueDate:            m.DueDate,
		OrderIndex:         m.OrderIndex,
		Status:             m.Status,
		ReleasedAt:         m.ReleasedAt,
		CreatedAt:          m.CreatedAt,
		UpdatedAt:          m.UpdatedAt,
	}
}

func toMilestoneViews(items []models.Milestone) []milestoneView {
	out := make([]milestoneView, 0, len(items))
	for _, m := range items {
		out = append(out, toMilestoneView(m))
	}
	return out
}

func toSubmissionView(s models.MilestoneSubmission) submissionView {
	evidence := s.Evidence
	if evidence == nil {
		evidence = models.EvidenceItems{}
	}
	return submissionView{
		ID:          s.ID,
		MilestoneID: s.MilestoneID,
		Sequence:    s.Sequence,
		DeveloperID: s.DeveloperID,
		Summary:     s.Summary,
		Evidence:    evidence,
		CreatedAt:   s.CreatedAt,
	}
}

func toReviewView(r models.MilestoneReview) reviewView {
	return reviewView{
		ID:           r.ID,
		MilestoneID:  r.MilestoneID,
		SubmissionID: r.SubmissionID,
		ReviewerID:   r.ReviewerID,
		Decision:     r.Decision,
		ReasonCode:   r.ReasonCode,
		Comments:     r.Comments,
		CreatedAt:    r.CreatedAt,
	}
}

func toPayoutView(p ledger.ReleaseResult, milestone *models.Milestone) payoutView {
	view := payoutView{
		Gross:      p.Split.Gross,
		Fee:        p.Split.Fee,
		Net:        p.Split.Net,
		Percentage: p.Split.Percentage,
		Escrow:     toEscrowView(p.Account),
		Release:    toEscrowTransactionView(p.Transaction),
	}
	if p.Wallet != nil {
		id, balance := p.Wallet.ID, p.Wallet.Balance
		view.WalletID = &id
		view.Balance = &balance
	}
	if milestone != nil {
		m := toMilestoneView(*milestone)
		view.Milestone = &m
	}
	return view
}

func toReleaseView(r *reviews.ReleaseResult) payoutView {
	return toPayoutView(r.Posting, r.Milestone)
}

func toDisputeView(d models.Dispute) disputeView {
	view := disputeView{
		ID:                   d.ID,
		ContractID:           d.ContractID,
		MilestoneID:          d.MilestoneID,
		OpenedBy:             d.OpenedBy,
		Reason:               d.Reason,
		Status:               d.Status,
		Outcome:              d.Outcome,
		MilestonePriorStatus: d.MilestonePriorStatus,
		ResolutionNotes:      d.ResolutionNotes,
		ResolvedBy:           d.ResolvedBy,
		ResolvedAt:           d.ResolvedAt,
		CreatedAt:            d.CreatedAt,
	}
	if d.DeveloperAmount.Valid {
		amount := d.DeveloperAmount.Decimal
		view.DeveloperAmount = &amount
	}
	if d.RefundAmount.Valid {
		amount := d.RefundAmount.Decimal
		view.RefundAmount = &amount
	}
	return view
}

func toDisputeViews(items []models.Dispute) []disputeView {
	out := make([]disputeView, 0, len(items))
	for _, d := range items {
		out = append(out, toDisputeView(d))
	}
	return out
}

func toAuditTrailView(t *admin.AuditTrail) auditTrailView {
	view := auditTrailView{
		Activity:     make([]activityView, 0, len(t.Activity.Items)),
		NextCursor:   t.Activity.NextCursor,
		AdminActions: make([]adminActionView, 0, len(t.AdminActions)),
	}
	for _, a := range t.Activity.Items {
		view.Activity = append(view.Activity, activityView{
			ID:          a.ID,
			MilestoneID: a.MilestoneID,
			ActorID:     a.ActorID,
			ActorRole:   a.ActorRole,
			Action:      a.Action,
			Payload:     a.Payload,
			CreatedAt:   a.CreatedAt,
		})
	}
	for _, a := range t.AdminActions {
		view.AdminActions = append(view.AdminActions, adminActionView{
			ID:         a.ID,
			AdminID:    a.AdminID,
			Action:     a.Action,
			TargetType: a.TargetType,
			TargetID:   a.TargetID,
			Reason:     a.Reason,
			Payload:    a.Payload,
			CreatedAt:  a.CreatedAt,
		})
	}
	return view
}

func toReconciliationView(r *admin.Report) reconciliationView {
	discrepancies := r.Discrepancies
	if discrepancies == nil {
		discrepancies = []admin.Discrepancy{}
	}
	return reconciliationView{
		ContractID:     r.ContractID,
		CheckedAt:      r.CheckedAt,
		Consistent:     r.Consistent(),
		Escrow:         toEscrowView(r.Escrow),
		LedgerFunded:   r.Ledger.Funded,
		LedgerReleased: r.Ledger.Released,
		LedgerRefunded: r.Ledger.Refunded,
		FeeGross:       r.FeeGross,
		FeeTotal:       r.FeeTotal,
		DeveloperNet:   r.DeveloperNet,
		MilestoneTotal: r.MilestoneTotal,
		Discrepancies:  discrepancies,
	}
}
