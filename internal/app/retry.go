package app

import (
	"context"
	"errors"

	"github.com/jeanfrancois360/dluxes-ecommerce-sub011/internal/domain"
)

// RetryOnConflict runs fn up to attempts times while it fails with
// ErrConcurrencyConflict. Any other error is returned immediately.
func RetryOnConflict(ctx context.Context, attempts int, fn func(ctx context.Context) error) error {
	if attempts <= 0 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		err = fn(ctx)
		if !errors.Is(err, domain.ErrConcurrencyConflict) {
			return err
		}
	}
	return err
}
