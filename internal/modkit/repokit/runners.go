package repokit

import (
	"context"
	"time"

	perr "laneledger/internal/platform/errors"
	"laneledger/internal/platform/logger"

	"github.com/cenkalti/backoff/v4"
)

// BeginHook runs first inside every transaction, on the tx bound Queryer
type BeginHook func(ctx context.Context, q Queryer) error

// WithBeginHooks runs hooks in order before fn; a failing hook aborts the tx
func WithBeginHooks(inner TxRunner, hooks ...BeginHook) TxRunner {
	return hookedTx{TxRunner: inner, hooks: hooks}
}

type hookedTx struct {
	TxRunner
	hooks []BeginHook
}

func (h hookedTx) Tx(ctx context.Context, fn func(q Queryer) error) error {
	return h.TxRunner.Tx(ctx, func(q Queryer) error {
		for _, hk := range h.hooks {
			if err := hk(ctx, q); err != nil {
				return err
			}
		}
		return fn(q)
	})
}

// Retry backoff bounds for transient contention
const (
	retryStart   = 50 * time.Millisecond
	retryCeiling = 500 * time.Millisecond
)

// WithRetry reruns a whole transaction up to retries more times when it fails
// with serialization failure, deadlock or lock timeout.
// fn must reset any state it accumulates, since it may run again.
func WithRetry(inner TxRunner, retries int) TxRunner {
	return retryTx{TxRunner: inner, retries: retries}
}

type retryTx struct {
	TxRunner
	retries int
}

func (r retryTx) Tx(ctx context.Context, fn func(q Queryer) error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = retryStart
	bo.MaxInterval = retryCeiling
	attempt := 0
	return backoff.Retry(func() error {
		attempt++
		err := r.TxRunner.Tx(ctx, fn)
		if err == nil || !perr.IsRetryable(err) {
			return backoff.Permanent(err)
		}
		logger.C(ctx).Warn().Err(err).Int("attempt", attempt).Msg("repokit: retrying transaction")
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(bo, uint64(max(r.retries, 0))), ctx))
}
