package admin

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/gigledger-backend/internal/ledger"
	"github.com/angelmondragon/gigledger-backend/pkg/auth"
	"github.com/angelmondragon/gigledger-backend/pkg/db"
	"github.com/angelmondragon/gigledger-backend/pkg/db/models"
	"github.com/angelmondragon/gigledger-backend/pkg/enums"
)

const (
	CheckEscrowInvariant = "escrow_invariant"
	CheckFundedTotal     = "funded_total"
	CheckReleasedTotal   = "released_total"
	CheckRefundedTotal   = "refunded_total"
	CheckFeeGross        = "fee_gross"
	CheckPayoutSplit     = "payout_split"
	CheckMilestoneTotal  = "milestone_total"
)

// Reconcile compares the escrow counters with the ledger rows behind them.
// It only reads; any mismatch is reported, never repaired.
func (s *service) Reconcile(ctx context.Context, contractID uuid.UUID, actor auth.Actor) (*Report, error) {
	if err := requireOperator(actor); err != nil {
		return nil, err
	}
	contract, err := s.contractsRepo.FindByID(ctx, contractID)
	if err != nil {
		return nil, db.Classify(err, "contract not found")
	}
	account, err := s.ledgerRepo.FindAccount(ctx, contractID)
	if err != nil {
		return nil, db.Classify(err, "escrow account not found")
	}
	txns, err := s.ledgerRepo.ListEscrowTransactions(ctx, contractID)
	if err != nil {
		return nil, db.Classify(err, "list escrow transactions")
	}
	fees, err := s.ledgerRepo.ListPlatformFees(ctx, contractID)
	if err != nil {
		return nil, db.Classify(err, "list platform fees")
	}
	items, err := s.milestonesRepo.ListByContract(ctx, contractID)
	if err != nil {
		return nil, db.Classify(err, "list milestones")
	}

	report := &Report{
		ContractID: contractID,
		CheckedAt:  s.now(),
		Escrow:     *account,
		Ledger:     sumLedger(txns),
		FeeGross:   decimal.Zero,
		FeeTotal:   decimal.Zero,
	}

	if _, err := ledger.Available(*account); err != nil {
		report.add(CheckEscrowInvariant,
			"released + refunded <= funded",
			sumDecimal(account.ReleasedTotal, account.RefundedTotal).String()+" of "+account.FundedTotal.String(),
			err.Error())
	}
	report.compare(CheckFundedTotal, account.FundedTotal, report.Ledger.Funded, "funded counter differs from FUND rows")
	report.compare(CheckReleasedTotal, account.ReleasedTotal, report.Ledger.Released, "released counter differs from RELEASE rows")
	report.compare(CheckRefundedTotal, account.RefundedTotal, report.Ledger.Refunded, "refunded counter differs from REFUND rows")

	for _, fee := range fees {
		report.FeeGross = report.FeeGross.Add(fee.GrossAmount)
		report.FeeTotal = report.FeeTotal.Add(fee.Amount)
	}
	report.compare(CheckFeeGross, account.ReleasedTotal, report.FeeGross, "platform fee gross amounts differ from released total")

	references := map[uuid.UUID]struct{}{contractID: {}}
	milestoneTotal := decimal.Zero
	for _, m := range items {
		references[m.ID] = struct{}{}
		milestoneTotal = milestoneTotal.Add(m.Amount)
	}
	report.MilestoneTotal = milestoneTotal
	if contract.FundingMode == enums.FundingModeMilestoneBased && milestoneTotal.GreaterThan(contract.TotalAmount) {
		report.add(CheckMilestoneTotal, "<= "+contract.TotalAmount.String(), milestoneTotal.String(),
			"milestone amounts exceed the contract total")
	}

	if contract.DeveloperID != nil {
		net, err := s.developerNet(ctx, *contract.DeveloperID, references)
		if err != nil {
			return nil, err
		}
		report.DeveloperNet = net
		report.compare(CheckPayoutSplit, account.ReleasedTotal, report.FeeTotal.Add(net), "fees plus developer payouts differ from released total")
	}
	return report, nil
}

// developerNet totals the wallet credits that reference this contract or one
// of its milestones.
func (s *service) developerNet(ctx context.Context, developerID uuid.UUID, references map[uuid.UUID]struct{}) (decimal.Decimal, error) {
	wallet, err := s.ledgerRepo.FindWallet(ctx, developerID)
	if err != nil {
		if db.IsNotFound(err) {
			return decimal.Zero, nil
		}
		return decimal.Zero, db.Classify(err, "load developer wallet")
	}
	rows, err := s.ledgerRepo.ListCoinTransactions(ctx, wallet.ID)
	if err != nil {
		return decimal.Zero, db.Classify(err, "list wallet transactions")
	}
	total := decimal.Zero
	for _, row := range rows {
		if row.Direction != enums.CoinDirectionIn || row.ReferenceID == nil {
			continue
		}
		if _, ok := references[*row.ReferenceID]; ok {
			total = total.Add(row.Amount)
		}
	}
	return total, nil
}

func sumLedger(txns []models.EscrowTransaction) LedgerSums {
	sums := LedgerSums{Funded: decimal.Zero, Released: decimal.Zero, Refunded: decimal.Zero}
	for _, txn := range txns {
		switch txn.Type {
		case enums.EscrowTransactionFund:
			sums.Funded = sums.Funded.Add(txn.Amount)
		case enums.EscrowTransactionRelease:
			sums.Released = sums.Released.Add(txn.Amount)
		case enums.EscrowTransactionRefund:
			sums.Refunded = sums.Refunded.Add(txn.Amount)
		}
	}
	return sums
}

func (r *Report) compare(check string, expected, actual decimal.Decimal, message string) {
	if expected.Equal(actual) {
		return
	}
	r.add(check, expected.String(), actual.String(), message)
}

func (r *Report) add(check, expected, actual, message string) {
	r.Discrepancies = append(r.Discrepancies, Discrepancy{
		Check:    check,
		Expected: expected,
		Actual:   actual,
		Message:  message,
	})
}
