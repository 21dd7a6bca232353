package mongo

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/mongo"

	"orderdesk/internal/domain"
)

const codeWriteConflict = 112

// classify maps driver errors onto domain kinds. Errors that already carry a
// kind pass through unchanged.
func classify(err error) error {
	if err == nil || domain.HasKind(err) {
		return err
	}

	var se mongo.ServerError
	if errors.As(err, &se) {
		if se.HasErrorLabel("TransientTransactionError") || se.HasErrorCode(codeWriteConflict) {
			return fmt.Errorf("%w: %w", domain.ErrConflict, err)
		}
	}
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %w", domain.ErrConflict, err)
	}
	if mongo.IsTimeout(err) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", domain.ErrTimeout, err)
	}
	return fmt.Errorf("%w: %w", domain.ErrInternal, err)
}
