package app

import (
	"context"
	"errors"
	"time"

	"neetiq-service/internal/domain"
)

const maxStoreAttempts = 3

// withRetry reruns fn on transient store errors with a short linear
// backoff. Domain sentinels and context cancellation are never retried;
// after the attempt budget the last error surfaces to the caller.
func withRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 1; attempt <= maxStoreAttempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if !isTransient(err) || attempt == maxStoreAttempts {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * 50 * time.Millisecond):
		}
	}
	return err
}

func isTransient(err error) bool {
	for _, sentinel := range []error{
		domain.ErrPollNotFound,
		domain.ErrPollAlreadyTracked,
		domain.ErrNoStats,
		domain.ErrQuestionBankEmpty,
		domain.ErrInvalidAnswerKey,
		domain.ErrInvalidSetting,
		domain.ErrUnauthorized,
		domain.ErrRelayUnavailable,
		context.Canceled,
		context.DeadlineExceeded,
	} {
		if errors.Is(err, sentinel) {
			return false
		}
	}
	return true
}
