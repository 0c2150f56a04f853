package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	errs "agropay/internal/errors"
	"agropay/internal/repositories"
)

// runWithRetry executes fn inside a SERIALIZABLE transaction, retrying
// version conflicts and serialization failures with jittered exponential
// backoff. Business errors abort immediately. On exhaustion the last error is
// surfaced as Contention, which the client may retry with the same
// idempotency key.
func (s *service) runWithRetry(ctx context.Context, operation string, fn func(repositories.LedgerRepository) error) error {
	var err error
	for attempt := 0; attempt <= s.config.VersionConflictRetries; attempt++ {
		if attempt > 0 {
			s.metrics.RecordRetry(operation)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff(s.config.VersionConflictBackoff, attempt)):
			}
		}

		attemptCtx, cancel := context.WithTimeout(ctx, s.config.TxTimeout)
		err = s.repo.WithinTransaction(attemptCtx, fn)
		cancel()

		if err == nil || !retryable(err) {
			return err
		}
	}
	return fmt.Errorf("%w: %v", errs.ErrContention, err)
}

func retryable(err error) bool {
	return errors.Is(err, repositories.ErrVersionConflict) ||
		errors.Is(err, repositories.ErrSerializationFailure)
}

// backoff doubles the base per attempt and adds up to one base of jitter so
// contending writers spread out.
func backoff(base time.Duration, attempt int) time.Duration {
	d := base << (attempt - 1)
	return d + time.Duration(rand.Int63n(int64(base)))
}
