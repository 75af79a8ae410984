package pgerr

import (
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/ManuSanchez02/telegram-expenses-bot/internal/common"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrap(t *testing.T) {
	assert.NoError(t, Wrap(nil))
	assert.ErrorIs(t, Wrap(sql.ErrNoRows), common.ErrNotFound)
	assert.ErrorIs(t, Wrap(fmt.Errorf("scan: %w", sql.ErrNoRows)), common.ErrNotFound)

	conflict := Wrap(&pgconn.PgError{Code: "23505", ConstraintName: "api_keys_key_key"})
	require.ErrorIs(t, conflict, common.ErrConflict)
	assert.Contains(t, conflict.Error(), "api_keys_key_key")

	other := Wrap(&pgconn.PgError{Code: "23503"})
	assert.NotErrorIs(t, other, common.ErrConflict)
	assert.Contains(t, other.Error(), "db error")

	down := errors.New("db down")
	assert.ErrorIs(t, Wrap(down), down)
}
