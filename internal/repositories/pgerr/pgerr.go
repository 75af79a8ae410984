// Package pgerr translates driver errors into the store-level sentinels.
package pgerr

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/ManuSanchez02/telegram-expenses-bot/internal/common"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

// Wrap maps sql.ErrNoRows to common.ErrNotFound and unique violations to
// common.ErrConflict. Anything else is wrapped as a db error.
func Wrap(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return common.ErrNotFound
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return fmt.Errorf("%w: %s", common.ErrConflict, pgErr.ConstraintName)
	}
	return fmt.Errorf("db error: %w", err)
}
