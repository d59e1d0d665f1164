package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/yungbote/livechat-backend/internal/platform/apierr"
)

const (
	pgForeignKeyViolation = "23503"
	pgNotNullViolation    = "23502"
	pgCheckViolation      = "23514"
	pgStringTooLong       = "22001"
)

// classify maps driver errors onto the apierr taxonomy. Context errors pass through
// untouched so callers can still match on them.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w", op, err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgForeignKeyViolation:
			return apierr.NotFound("%s: %s", op, pgErr.Detail)
		case pgNotNullViolation, pgCheckViolation, pgStringTooLong:
			return apierr.ValidationFailed("%s: %s", op, pgErr.Message)
		}
	}
	return apierr.PersistenceFailure(fmt.Errorf("%s: %w", op, err))
}
