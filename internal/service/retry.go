package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/cenkalti/backoff/v4"

	"orderdesk/internal/domain"
	"orderdesk/internal/logger"
	"orderdesk/internal/repository"
)

// runTx runs fn in a store transaction, repeating the whole attempt on
// Conflict or Timeout until maxAttempts is reached. Each attempt gets its own
// txTimeout deadline.
func (s *Service) runTx(ctx context.Context, name string, fn repository.TxFunc) error {
	attempt := 0
	operation := func() error {
		attempt++

		attemptCtx, cancel := ctx, context.CancelFunc(func() {})
		if s.txTimeout > 0 {
			attemptCtx, cancel = context.WithTimeout(ctx, s.txTimeout)
		}
		defer cancel()

		err := s.store.RunInTx(attemptCtx, fn)
		if err == nil {
			return nil
		}
		err = classify(err)
		if !domain.Retryable(err) {
			return backoff.Permanent(err)
		}

		s.log.Warn(ctx, "transaction attempt failed",
			logger.String("op", name),
			logger.Int("attempt", attempt),
			logger.String("kind", domain.KindOf(err)),
			logger.ErrorF(err),
		)
		return err
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.retryInitialInterval
	b.MaxInterval = s.retryMaxInterval
	b.MaxElapsedTime = 0

	err := backoff.Retry(operation, backoff.WithContext(backoff.WithMaxRetries(b, uint64(s.maxAttempts-1)), ctx))
	if err != nil {
		return classify(err)
	}
	return nil
}

// classify gives errors that escaped the store without a kind one.
func classify(err error) error {
	switch {
	case domain.HasKind(err):
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", domain.ErrTimeout, err)
	default:
		return fmt.Errorf("%w: %w", domain.ErrInternal, err)
	}
}
