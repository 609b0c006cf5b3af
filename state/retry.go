package state

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// RetryingStore wraps a Store and retries transient failures with bounded
// exponential backoff. Validation failures (invalid scope) are permanent
// and returned immediately; once the attempt bound is exhausted the last
// error is surfaced so the workflow instance can fail.
type RetryingStore struct {
	inner       Store
	maxAttempts int
	interval    time.Duration
}

// NewRetryingStore wraps inner with the given attempt bound. maxAttempts
// counts the initial try, so 3 means one try plus two retries.
func NewRetryingStore(inner Store, maxAttempts int, interval time.Duration) *RetryingStore {
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	return &RetryingStore{
		inner:       inner,
		maxAttempts: maxAttempts,
		interval:    interval,
	}
}

func (s *RetryingStore) policy(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.interval
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(s.maxAttempts-1)), ctx)
}

func (s *RetryingStore) retry(ctx context.Context, op string, fn func() error) error {
	attempt := 0
	err := backoff.Retry(func() error {
		attempt++
		err := fn()
		if errors.Is(err, ErrInvalidScope) {
			return backoff.Permanent(err)
		}
		if err != nil && attempt < s.maxAttempts {
			slog.Warn("state store operation failed, retrying",
				"op", op,
				"attempt", attempt,
				"error", err,
			)
		}
		return err
	}, s.policy(ctx))
	return err
}

func (s *RetryingStore) Get(ctx context.Context, scope Scope, ownerID, key string) (any, bool, error) {
	var value any
	var ok bool
	err := s.retry(ctx, "get", func() error {
		var err error
		value, ok, err = s.inner.Get(ctx, scope, ownerID, key)
		return err
	})
	return value, ok, err
}

func (s *RetryingStore) Set(ctx context.Context, scope Scope, ownerID, key string, value any) error {
	return s.retry(ctx, "set", func() error {
		return s.inner.Set(ctx, scope, ownerID, key, value)
	})
}

func (s *RetryingStore) Delete(ctx context.Context, scope Scope, ownerID, key string) error {
	return s.retry(ctx, "delete", func() error {
		return s.inner.Delete(ctx, scope, ownerID, key)
	})
}

func (s *RetryingStore) ClearEphemeral(ctx context.Context, workflowInstanceID string) error {
	return s.retry(ctx, "clear_ephemeral", func() error {
		return s.inner.ClearEphemeral(ctx, workflowInstanceID)
	})
}
