package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	"github.com/ManuSanchez02/telegram-expenses-bot/internal/dbx"
	"github.com/rs/zerolog"
)

// Handle is the connection of one unit of work. It always wraps a
// transaction: Commit and Rollback end the current one and the next
// statement opens a new one. Once the unit of work is released every call
// fails with sql.ErrTxDone.
type Handle struct {
	mu       sync.Mutex
	db       *sql.DB
	tx       *sql.Tx
	done     bool
	released bool
	log      zerolog.Logger
}

func newHandle(ctx context.Context, db *sql.DB, log zerolog.Logger) (*Handle, error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &Handle{db: db, tx: tx, log: log}, nil
}

// current returns the open transaction, starting a new one after a commit or
// rollback. On failure it returns the finished transaction alongside the error.
func (h *Handle) current(ctx context.Context) (*sql.Tx, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.done && !h.released {
		tx, err := h.db.BeginTx(ctx, nil)
		if err != nil {
			return h.tx, fmt.Errorf("begin transaction: %w", err)
		}
		h.tx = tx
		h.done = false
	}
	return h.tx, nil
}

func (h *Handle) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	tx, err := h.current(ctx)
	if err != nil {
		return nil, err
	}
	return tx.ExecContext(ctx, query, args...)
}

func (h *Handle) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	tx, err := h.current(ctx)
	if err != nil {
		return nil, err
	}
	return tx.QueryContext(ctx, query, args...)
}

// QueryRowContext never returns nil. If a new transaction cannot be started
// the returned row reports sql.ErrTxDone on Scan and the cause is logged.
func (h *Handle) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	tx, err := h.current(ctx)
	if err != nil {
		h.log.Error().Err(err).Msg("Query issued without an open transaction")
	}
	return tx.QueryRowContext(ctx, query, args...)
}

// Commit commits the work done so far.
func (h *Handle) Commit(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.released {
		return sql.ErrTxDone
	}
	if h.done {
		return nil
	}

	h.done = true
	if err := h.tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Rollback discards the work done since the last commit.
func (h *Handle) Rollback() error {
	h.mu.Lock()
	defer h.mu.Unlock()

	return h.rollbackLocked()
}

func (h *Handle) rollbackLocked() error {
	if h.done {
		return nil
	}
	h.done = true
	if err := h.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

func (h *Handle) release() {
	h.mu.Lock()
	defer h.mu.Unlock()

	_ = h.rollbackLocked()
	h.released = true
}

var _ dbx.DBTX = (*Handle)(nil)
