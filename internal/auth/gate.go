// Package auth validates the API key presented by the chat connector and
// records every successful use.
package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ManuSanchez02/telegram-expenses-bot/internal/common"
	"github.com/ManuSanchez02/telegram-expenses-bot/internal/dbx"
	"github.com/ManuSanchez02/telegram-expenses-bot/internal/models"
	"github.com/ManuSanchez02/telegram-expenses-bot/internal/repositories/apikeys"
	"github.com/rs/zerolog"
)

// Handle is the unit-of-work connection the gate reads and commits through.
type Handle interface {
	dbx.DBTX
	Commit(ctx context.Context) error
}

// KeyRepositoryFactory binds the API key repository to a handle.
type KeyRepositoryFactory func(db dbx.DBTX) apikeys.Repository

// Gate authenticates API keys.
type Gate struct {
	keys KeyRepositoryFactory
	now  func() time.Time
	log  zerolog.Logger
}

// NewGate creates a Gate that uses the wall clock.
func NewGate(keys KeyRepositoryFactory, log zerolog.Logger) *Gate {
	return &Gate{keys: keys, now: time.Now, log: log}
}

// Authenticate looks token up by exact match. On success the key's
// last-used timestamp is moved forward and committed through h before the key
// is returned. An unknown token and a failed audit write both yield
// common.ErrAuthenticationRejected.
func (g *Gate) Authenticate(ctx context.Context, h Handle, token string) (*models.APIKey, error) {
	if token == "" {
		return nil, common.ErrAuthenticationRejected
	}

	repo := g.keys(h)

	key, err := repo.GetByKey(ctx, token)
	if errors.Is(err, common.ErrNotFound) {
		return nil, common.ErrAuthenticationRejected
	}
	if err != nil {
		return nil, fmt.Errorf("Authenticate: lookup: %w", err)
	}

	at, err := repo.TouchLastUsed(ctx, key.ID, nextLastUsed(g.now(), key.LastUsedAt))
	if err != nil {
		return nil, fmt.Errorf("Authenticate: %w: update last used: %w", common.ErrAuthenticationRejected, err)
	}
	if err := h.Commit(ctx); err != nil {
		return nil, fmt.Errorf("Authenticate: %w: %w", common.ErrAuthenticationRejected, err)
	}

	at = at.UTC()
	key.LastUsedAt = &at
	g.log.Debug().Int64("api_key_id", key.ID).Msg("API key authenticated")
	return key, nil
}

// nextLastUsed returns now at the store's microsecond precision, or the
// smallest later instant when the stored value is not before it.
func nextLastUsed(now time.Time, prev *time.Time) time.Time {
	now = now.UTC().Truncate(time.Microsecond)
	if prev != nil && !now.After(*prev) {
		return prev.UTC().Truncate(time.Microsecond).Add(time.Microsecond)
	}
	return now
}

type contextKey struct{}

// WithAPIKey stores the authenticated key in ctx.
func WithAPIKey(ctx context.Context, key *models.APIKey) context.Context {
	return context.WithValue(ctx, contextKey{}, key)
}

// APIKeyFromContext returns the key stored by WithAPIKey.
func APIKeyFromContext(ctx context.Context) (*models.APIKey, bool) {
	key, ok := ctx.Value(contextKey{}).(*models.APIKey)
	return key, ok
}
