package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/ManuSanchez02/telegram-expenses-bot/internal/auth"
	"github.com/ManuSanchez02/telegram-expenses-bot/internal/common"
	"github.com/ManuSanchez02/telegram-expenses-bot/internal/database"
	"github.com/ManuSanchez02/telegram-expenses-bot/internal/logger"
	"github.com/ManuSanchez02/telegram-expenses-bot/internal/metrics"
	"github.com/ManuSanchez02/telegram-expenses-bot/internal/models"
)

// APIKeyHeader is the header the connector sends its API key in.
const APIKeyHeader = "X-API-Key"

const unauthorizedMessage = "Missing or invalid API key"

// UnitOfWork opens the per-request store handle.
type UnitOfWork interface {
	Enter(ctx context.Context) (context.Context, func())
	Handle(ctx context.Context) (auth.Handle, error)
}

// Authenticator checks an API key through a handle.
type Authenticator interface {
	Authenticate(ctx context.Context, h auth.Handle, token string) (*models.APIKey, error)
}

type scopeUnitOfWork struct {
	scope *database.Scope
}

// ScopeUnitOfWork adapts a database.Scope to UnitOfWork.
func ScopeUnitOfWork(scope *database.Scope) UnitOfWork {
	return scopeUnitOfWork{scope: scope}
}

func (u scopeUnitOfWork) Enter(ctx context.Context) (context.Context, func()) {
	return u.scope.Enter(ctx)
}

func (u scopeUnitOfWork) Handle(ctx context.Context) (auth.Handle, error) {
	h, err := u.scope.Handle(ctx)
	if err != nil {
		return nil, err
	}
	return h, nil
}

// Auth opens a unit of work for the request, authenticates the X-API-Key
// header through its handle and passes the handle on in the context. The unit
// of work is released, rolling back anything uncommitted, when the handler
// returns.
func Auth(uow UnitOfWork, gate Authenticator, m *metrics.Metrics) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, release := uow.Enter(r.Context())
			defer release()

			log := logger.FromContext(ctx)

			h, err := uow.Handle(ctx)
			if err != nil {
				log.Error().Err(err).Msg("Failed to open database handle")
				internalError(w)
				return
			}

			key, err := gate.Authenticate(ctx, h, r.Header.Get(APIKeyHeader))
			if errors.Is(err, common.ErrAuthenticationRejected) {
				if m != nil {
					m.AuthFailures.Inc()
				}
				log.Warn().Err(err).Msg("API key rejected")
				WriteError(w, http.StatusUnauthorized, CodeUnauthorized, unauthorizedMessage)
				return
			}
			if err != nil {
				log.Error().Err(err).Msg("API key lookup failed")
				internalError(w)
				return
			}

			ctx = auth.WithAPIKey(ctx, key)
			ctx = WithHandle(ctx, h)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

type handleKey struct{}

// WithHandle stores the request's store handle in ctx.
func WithHandle(ctx context.Context, h auth.Handle) context.Context {
	return context.WithValue(ctx, handleKey{}, h)
}

// HandleFromContext returns the handle stored by Auth.
func HandleFromContext(ctx context.Context) (auth.Handle, bool) {
	h, ok := ctx.Value(handleKey{}).(auth.Handle)
	return h, ok
}
