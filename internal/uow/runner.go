// Package uow runs escrow mutations as retried database transactions.
package uow

import (
	"context"
	"fmt"
	"time"

	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"

	"github.com/angelmondragon/gigledger-backend/pkg/db"
	pkgerrors "github.com/angelmondragon/gigledger-backend/pkg/errors"
	"github.com/angelmondragon/gigledger-backend/pkg/logger"
	"github.com/angelmondragon/gigledger-backend/pkg/metrics"
)

const codeOK = "OK"

// Runner executes fn inside a transaction. A failed attempt rolls back in full;
// attempts that lost a race against a concurrent writer are run again.
type Runner interface {
	Do(ctx context.Context, operation string, fn func(tx *gorm.DB) error) error
}

type txBeginner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Options bounds how often a conflicting transaction is replayed.
type Options struct {
	MaxRetries int
	Backoff    time.Duration
}

type runner struct {
	db      txBeginner
	logg    *logger.Logger
	metrics *metrics.UnitOfWorkMetrics
	opts    Options
}

func New(conn txBeginner, logg *logger.Logger, m *metrics.UnitOfWorkMetrics, opts Options) (Runner, error) {
	if conn == nil {
		return nil, fmt.Errorf("database required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.Backoff <= 0 {
		opts.Backoff = 25 * time.Millisecond
	}
	return &runner{db: conn, logg: logg, metrics: m, opts: opts}, nil
}

func (r *runner) Do(ctx context.Context, operation string, fn func(tx *gorm.DB) error) error {
	start := time.Now()
	attempt := 0
	backoff := retry.WithMaxRetries(uint64(r.opts.MaxRetries), retry.NewExponential(r.opts.Backoff))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if attempt > 1 {
			r.metrics.IncRetry(operation)
		}
		err := r.db.WithTx(ctx, fn)
		if err != nil && isRetryable(err) {
			return retry.RetryableError(err)
		}
		return err
	})

	r.metrics.Observe(operation, resultCode(err), time.Since(start))
	if err == nil {
		return nil
	}

	ctx = r.logg.WithFields(ctx, map[string]any{"operation": operation, "attempts": attempt})
	switch {
	case pkgerrors.IsCode(err, pkgerrors.CodeInvariantViolation):
		r.metrics.IncInvariantViolation()
		r.logg.Critical(ctx, "escrow invariant violated", err)
	case isRetryable(err):
		r.logg.Warn(ctx, "transaction retries exhausted")
	}
	return err
}

// Unique violations on these constraints come from a concurrent writer inserting
// the same row first; a rerun finds that row. Any other unique violation repeats.
var retryableUniqueConstraints = []string{
	"ux_escrow_transactions_provider_reference",
	"escrow_transactions.provider_reference",
	"ux_coin_wallets_user",
	"coin_wallets.user_id",
}

func isRetryable(err error) bool {
	if db.IsUniqueViolation(err, "") {
		for _, name := range retryableUniqueConstraints {
			if db.IsUniqueViolation(err, name) {
				return true
			}
		}
		return false
	}
	return pkgerrors.IsCode(err, pkgerrors.CodeConflict) || db.IsSerializationFailure(err)
}

func resultCode(err error) string {
	if err == nil {
		return codeOK
	}
	if typed := pkgerrors.As(err); typed != nil {
		return string(typed.Code())
	}
	return string(pkgerrors.CodeInternal)
}
