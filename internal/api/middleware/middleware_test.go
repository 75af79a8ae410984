package middleware

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ManuSanchez02/telegram-expenses-bot/internal/auth"
	"github.com/ManuSanchez02/telegram-expenses-bot/internal/common"
	"github.com/ManuSanchez02/telegram-expenses-bot/internal/logger"
	"github.com/ManuSanchez02/telegram-expenses-bot/internal/metrics"
	"github.com/ManuSanchez02/telegram-expenses-bot/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubHandle struct{ *sql.DB }

func (stubHandle) Commit(ctx context.Context) error { return nil }

// MockUnitOfWork records Enter/release pairs.
type MockUnitOfWork struct {
	HandleErr error
	entered   int
	released  int
	handle    auth.Handle
}

func (m *MockUnitOfWork) Enter(ctx context.Context) (context.Context, func()) {
	m.entered++
	return ctx, func() { m.released++ }
}

func (m *MockUnitOfWork) Handle(ctx context.Context) (auth.Handle, error) {
	if m.HandleErr != nil {
		return nil, m.HandleErr
	}
	if m.handle == nil {
		m.handle = stubHandle{}
	}
	return m.handle, nil
}

// MockAuthenticator is a hand-written Authenticator.
type MockAuthenticator struct {
	AuthenticateFunc func(ctx context.Context, h auth.Handle, token string) (*models.APIKey, error)
}

func (m *MockAuthenticator) Authenticate(ctx context.Context, h auth.Handle, token string) (*models.APIKey, error) {
	return m.AuthenticateFunc(ctx, h, token)
}

func acceptToken(valid string) *MockAuthenticator {
	return &MockAuthenticator{
		AuthenticateFunc: func(ctx context.Context, h auth.Handle, token string) (*models.APIKey, error) {
			if token != valid {
				return nil, common.ErrAuthenticationRejected
			}
			return &models.APIKey{ID: 7, Key: token}, nil
		},
	}
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestAuth_RejectsMissingAndWrongKeys(t *testing.T) {
	for _, token := range []string{"", "wrong"} {
		uow := &MockUnitOfWork{}
		m := metrics.New()
		called := false
		h := Auth(uow, acceptToken("good"), m)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
		}))

		req := httptest.NewRequest(http.MethodPost, "/parse", nil)
		if token != "" {
			req.Header.Set(APIKeyHeader, token)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, ErrorResponse{Error: CodeUnauthorized, Message: "Missing or invalid API key"}, decodeError(t, rec))
		assert.False(t, called)
		assert.Equal(t, 1, uow.entered)
		assert.Equal(t, 1, uow.released)
	}
}

func TestAuth_PassesKeyAndHandle(t *testing.T) {
	uow := &MockUnitOfWork{}
	var (
		gotKey    *models.APIKey
		gotHandle auth.Handle
		released  int
	)
	h := Auth(uow, acceptToken("good"), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey, _ = auth.APIKeyFromContext(r.Context())
		gotHandle, _ = HandleFromContext(r.Context())
		released = uow.released
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodPost, "/parse", nil)
	req.Header.Set(APIKeyHeader, "good")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.NotNil(t, gotKey)
	assert.Equal(t, int64(7), gotKey.ID)
	assert.Equal(t, uow.handle, gotHandle)
	assert.Zero(t, released, "handle released before the handler ran")
	assert.Equal(t, 1, uow.released)
}

func TestAuth_StoreErrors(t *testing.T) {
	uow := &MockUnitOfWork{HandleErr: common.ErrNotInitialized}
	h := Auth(uow, acceptToken("good"), nil)(http.NotFoundHandler())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/parse", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, CodeInternal, decodeError(t, rec).Error)

	failing := &MockAuthenticator{
		AuthenticateFunc: func(ctx context.Context, h auth.Handle, token string) (*models.APIKey, error) {
			return nil, errors.New("db down")
		},
	}
	h = Auth(&MockUnitOfWork{}, failing, nil)(http.NotFoundHandler())
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/parse", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = RequestIDFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, seen, 36)
	assert.Equal(t, seen, rec.Header().Get(RequestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(RequestIDHeader, "from-client")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "from-client", seen)
}

func TestLogger_AddsRequestScopedLogger(t *testing.T) {
	buf := &bytes.Buffer{}
	log := logger.NewWithWriter(buf)

	h := Chain(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log := logger.FromContext(r.Context())
		log.Info().Msg("inside handler")
		w.WriteHeader(http.StatusTeapot)
	}), RequestID, Logger(log))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, "req-1")
	h.ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	assert.Contains(t, out, "inside handler")
	assert.Contains(t, out, `"request_id":"req-1"`)
	assert.Contains(t, out, `"status":418`)
}

func TestRecovery(t *testing.T) {
	h := Recovery(zerolog.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, CodeInternal, decodeError(t, rec).Error)
}

func TestCORS_Preflight(t *testing.T) {
	h := CORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("preflight reached the handler")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/parse", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), APIKeyHeader)
}

func TestMetrics_FoldsUnknownRoutes(t *testing.T) {
	m := metrics.New()
	h := Metrics(m, "/parse")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/parse", nil))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/random/123", nil))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	assert.Contains(t, body, `expenses_http_requests_total{method="POST",route="/parse",status="400"} 1`)
	assert.Contains(t, body, `expenses_http_requests_total{method="GET",route="other",status="400"} 1`)
	assert.NotContains(t, body, "/random/123")
}
