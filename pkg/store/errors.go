package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// UnavailableError is returned when the backing store cannot be reached or
// fails to execute a statement. It is retryable by the caller and distinct
// from a commitment simply being absent.
type UnavailableError struct {
	Op  string
	Err error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("store unavailable: %s: %v", e.Op, e.Err)
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

func IsUnavailable(err error) bool {
	var unavailable *UnavailableError
	return errors.As(err, &unavailable)
}

func unavailable(op string, err error) error {
	return &UnavailableError{Op: op, Err: err}
}

// storeError reports err as an outage unless the caller's context ended
// first, in which case the context error is returned instead.
func storeError(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%s aborted: %w", op, ctxErr)
	}
	return unavailable(op, err)
}

func validateTTL(ttl time.Duration) error {
	if ttl <= 0 {
		return fmt.Errorf("ttl must be positive, got %s", ttl)
	}
	return nil
}
