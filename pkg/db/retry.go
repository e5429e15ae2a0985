package db

import (
	"context"
	"time"

	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"

	pkgerrors "github.com/vegshop/vegshop-backend/pkg/errors"
)

// RetryPolicy bounds how often an optimistic transaction is replayed.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryPolicy mirrors the VEGSHOP_ORDERS_* defaults.
var DefaultRetryPolicy = RetryPolicy{
	MaxAttempts: 5,
	BaseDelay:   20 * time.Millisecond,
	MaxDelay:    500 * time.Millisecond,
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultRetryPolicy.MaxAttempts
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = DefaultRetryPolicy.BaseDelay
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
	}
	return p
}

func (p RetryPolicy) backoff() retry.Backoff {
	b := retry.NewExponential(p.BaseDelay)
	b = retry.WithJitterPercent(25, b)
	b = retry.WithCappedDuration(p.MaxDelay, b)
	return retry.WithMaxRetries(uint64(p.MaxAttempts-1), b)
}

// WithOptimisticTx runs fn in a fresh transaction and replays it while the
// failure is retryable (see IsRetryable). Every attempt starts from scratch so
// fn must only read state through tx. It returns the number of attempts made.
// When attempts run out the error carries CodeTransactionConflict.
func (c *Client) WithOptimisticTx(ctx context.Context, policy RetryPolicy, fn func(tx *gorm.DB) error) (int, error) {
	policy = policy.normalized()
	attempts := 0

	err := retry.Do(ctx, policy.backoff(), func(ctx context.Context) error {
		attempts++
		err := c.WithTx(ctx, fn)
		if err != nil && IsRetryable(err) {
			return retry.RetryableError(err)
		}
		return err
	})
	if err == nil {
		return attempts, nil
	}
	if IsRetryable(err) {
		return attempts, pkgerrors.Wrap(pkgerrors.CodeTransactionConflict, err, "transaction retries exhausted")
	}
	return attempts, err
}
