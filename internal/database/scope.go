// Package database owns the process-wide connection pool and hands out
// request-scoped handles bound to a context.
//
// A unit of work starts with Enter (or Run) and ends when its release func is
// called. Every Handle call made with a context derived from the same unit of
// work returns the same *Handle; concurrent units of work never share one.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ManuSanchez02/telegram-expenses-bot/internal/common"
	"github.com/jackc/pgx/v5"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/rs/zerolog"
)

const (
	// DriverPostgres is the database/sql driver name registered by pgx.
	DriverPostgres = "pgx"

	defaultMaxOpenConns    = 25
	defaultMaxIdleConns    = 10
	defaultConnMaxLifetime = 5 * time.Minute
	defaultConnMaxIdleTime = time.Minute

	probeTimeout = 5 * time.Second
)

// ErrNoUnitOfWork is returned by Handle when the context was not entered
// through Enter or Run, or when the unit of work was already released.
var ErrNoUnitOfWork = errors.New("no unit of work bound to context")

// Scope manages a single connection pool and the per-request handles
// drawn from it.
type Scope struct {
	mu     sync.RWMutex
	db     *sql.DB
	driver string
	log    zerolog.Logger
}

// Option configures a Scope.
type Option func(*Scope)

// WithDriver overrides the database/sql driver name. Tests use it to run
// against an in-memory sqlite database.
func WithDriver(name string) Option {
	return func(s *Scope) {
		s.driver = name
	}
}

// WithLogger sets the logger used for lifecycle events.
func WithLogger(log zerolog.Logger) Option {
	return func(s *Scope) {
		s.log = log
	}
}

// New creates an uninitialized Scope.
func New(opts ...Option) *Scope {
	s := &Scope{
		driver: DriverPostgres,
		log:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Initialize creates the pool. Calling it again while a pool exists is a
// no-op. The connection itself is established lazily.
func (s *Scope) Initialize(ctx context.Context, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		return nil
	}

	if err := validateURL(s.driver, url); err != nil {
		return fmt.Errorf("Initialize: %w: %w", common.ErrConfiguration, err)
	}

	db, err := sql.Open(s.driver, url)
	if err != nil {
		return fmt.Errorf("Initialize: %w: open: %w", common.ErrConfiguration, err)
	}

	db.SetMaxOpenConns(defaultMaxOpenConns)
	db.SetMaxIdleConns(defaultMaxIdleConns)
	db.SetConnMaxLifetime(defaultConnMaxLifetime)
	db.SetConnMaxIdleTime(defaultConnMaxIdleTime)

	s.db = db
	s.log.Info().Str("driver", s.driver).Msg("Database pool initialized")
	return nil
}

// DB returns the underlying pool, for migrations and batch tooling.
func (s *Scope) DB() (*sql.DB, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.db == nil {
		return nil, common.ErrNotInitialized
	}
	return s.db, nil
}

// TestConnection reports whether the store answers a trivial query.
func (s *Scope) TestConnection(ctx context.Context) bool {
	db, err := s.DB()
	if err != nil {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	var one int
	if err := db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		s.log.Warn().Err(err).Msg("Database connection test failed")
		return false
	}
	return one == 1
}

// Shutdown closes the pool. Handles requested afterwards fail with
// common.ErrNotInitialized.
func (s *Scope) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db == nil {
		return nil
	}

	err := s.db.Close()
	s.db = nil
	s.log.Info().Msg("Database pool closed")
	if err != nil {
		return fmt.Errorf("Shutdown: %w", err)
	}
	return nil
}

type unitKey struct{}

type unitOfWork struct {
	mu       sync.Mutex
	scope    *Scope
	handle   *Handle
	released bool
}

// Enter starts a unit of work. The returned release func rolls back whatever
// the unit's handle has not committed and must be called exactly once.
// Entering a context that already carries a unit of work of this Scope
// returns the same unit and a no-op release.
func (s *Scope) Enter(ctx context.Context) (context.Context, func()) {
	if uow, ok := ctx.Value(unitKey{}).(*unitOfWork); ok && uow.scope == s {
		return ctx, func() {}
	}

	uow := &unitOfWork{scope: s}
	return context.WithValue(ctx, unitKey{}, uow), uow.release
}

// Handle returns the handle of the unit of work carried by ctx, opening it on
// first use.
func (s *Scope) Handle(ctx context.Context) (*Handle, error) {
	db, err := s.DB()
	if err != nil {
		return nil, err
	}

	uow, ok := ctx.Value(unitKey{}).(*unitOfWork)
	if !ok || uow.scope != s {
		return nil, ErrNoUnitOfWork
	}

	uow.mu.Lock()
	defer uow.mu.Unlock()

	if uow.released {
		return nil, ErrNoUnitOfWork
	}
	if uow.handle == nil {
		h, err := newHandle(ctx, db, s.log)
		if err != nil {
			return nil, fmt.Errorf("Handle: %w", err)
		}
		uow.handle = h
	}
	return uow.handle, nil
}

// Run executes fn inside a fresh unit of work and commits its handle when fn
// succeeds. On error or panic the handle is rolled back. When ctx already
// carries a unit of work of this Scope, fn joins it and committing is left to
// whoever entered it.
func (s *Scope) Run(ctx context.Context, fn func(ctx context.Context) error) error {
	if uow, ok := ctx.Value(unitKey{}).(*unitOfWork); ok && uow.scope == s {
		return fn(ctx)
	}

	ctx, release := s.Enter(ctx)
	defer release()

	if err := fn(ctx); err != nil {
		return err
	}

	uow := ctx.Value(unitKey{}).(*unitOfWork)
	uow.mu.Lock()
	h := uow.handle
	uow.mu.Unlock()

	if h == nil {
		return nil
	}
	return h.Commit(ctx)
}

func (u *unitOfWork) release() {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.released {
		return
	}
	u.released = true
	if u.handle != nil {
		u.handle.release()
	}
}

func validateURL(driver, url string) error {
	if url == "" {
		return errors.New("empty connection URL")
	}
	if driver != DriverPostgres {
		return nil
	}
	if _, err := pgx.ParseConfig(url); err != nil {
		return fmt.Errorf("parse connection URL: %w", err)
	}
	return nil
}
