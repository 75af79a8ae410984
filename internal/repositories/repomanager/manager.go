// Package repomanager vends repositories bound to a dbx.DBTX and applies the
// embedded goose migrations.
package repomanager

import (
	"context"
	"database/sql"

	"github.com/ManuSanchez02/telegram-expenses-bot/internal/dbx"
	"github.com/ManuSanchez02/telegram-expenses-bot/internal/repositories/apikeys"
	"github.com/ManuSanchez02/telegram-expenses-bot/internal/repositories/expenses"
	"github.com/ManuSanchez02/telegram-expenses-bot/internal/repositories/users"
)

// RepositoryManager builds repositories on top of whatever DBTX the caller
// holds: the pool, a transaction, or a request handle.
type RepositoryManager interface {
	APIKeys(db dbx.DBTX) apikeys.Repository
	Users(db dbx.DBTX) users.Repository
	Expenses(db dbx.DBTX) expenses.Repository
	RunMigrations(ctx context.Context, db *sql.DB) error
}
