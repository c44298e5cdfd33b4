package service

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/dtroode/kurisync/internal/logger"
	"github.com/dtroode/kurisync/internal/model"
)

// StoreRetry bounds the retries of store writes that fail transiently.
type StoreRetry struct {
	Attempts int
	Backoff  time.Duration
}

// retryStore runs fn until it succeeds, fails with an error other than
// model.ErrStoreTransient or the attempt budget is spent.
func retryStore[T any](ctx context.Context, policy StoreRetry, log *logger.Logger, action string, fn func(ctx context.Context) (T, error)) (T, error) {
	attempts := policy.Attempts
	if attempts < 1 {
		attempts = 1
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = policy.Backoff
	exp.Multiplier = 2
	exp.RandomizationFactor = 0
	exp.MaxElapsedTime = 0

	var result T
	op := func() error {
		v, err := fn(ctx)
		if err == nil {
			result = v
			return nil
		}
		if errors.Is(err, model.ErrStoreTransient) {
			return err
		}
		return backoff.Permanent(err)
	}

	notify := func(err error, wait time.Duration) {
		log.Warn("retrying store operation", "action", action, "wait", wait, "error", err)
	}

	b := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(attempts-1)), ctx)
	if err := backoff.RetryNotify(op, b, notify); err != nil {
		var zero T
		return zero, err
	}
	return result, nil
}
