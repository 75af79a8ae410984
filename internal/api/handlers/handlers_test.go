package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/ManuSanchez02/telegram-expenses-bot/internal/api/middleware"
	"github.com/ManuSanchez02/telegram-expenses-bot/internal/jobs"
	"github.com/ManuSanchez02/telegram-expenses-bot/internal/jobs/inmemory"
	"github.com/ManuSanchez02/telegram-expenses-bot/internal/repositories/repomanager"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type proberFunc func(ctx context.Context) bool

func (f proberFunc) TestConnection(ctx context.Context) bool { return f(ctx) }

func TestHealthHandler_Ready(t *testing.T) {
	tests := []struct {
		up       bool
		wantCode int
		want     string
	}{
		{up: true, wantCode: http.StatusOK, want: "ok"},
		{up: false, wantCode: http.StatusServiceUnavailable, want: "unavailable"},
	}

	for _, tt := range tests {
		h := NewHealthHandler(proberFunc(func(ctx context.Context) bool { return tt.up }))
		rec := httptest.NewRecorder()
		h.Ready(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		assert.Equal(t, tt.wantCode, rec.Code)
		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, tt.want, body["status"])
	}
}

func TestHealthHandler_Live(t *testing.T) {
	h := NewHealthHandler(proberFunc(func(ctx context.Context) bool {
		t.Fatal("liveness must not touch the database")
		return false
	}))
	h.now = func() time.Time { return time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC) }

	rec := httptest.NewRecorder()
	h.Live(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"alive","timestamp":"2024-05-01T10:00:00Z"}`, rec.Body.String())
}

func TestJobsHandler(t *testing.T) {
	store := inmemory.NewStore()
	ctx := context.Background()
	require.NoError(t, store.SaveJob(ctx, &jobs.Job{JobID: "a", Type: jobs.JobTypeSyncExpense, Status: jobs.JobStatusCompleted, CreatedAt: time.Now()}))
	require.NoError(t, store.SaveJob(ctx, &jobs.Job{JobID: "b", Type: jobs.JobTypeRecordModelOutput, Status: jobs.JobStatusFailed, CreatedAt: time.Now()}))
	h := NewJobsHandler(store, zerolog.Nop())

	rec := httptest.NewRecorder()
	h.ListJobs(rec, httptest.NewRequest(http.MethodGet, "/api/jobs?status=failed", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Jobs  []*jobs.Job `json:"jobs"`
		Count int         `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Equal(t, 1, list.Count)
	assert.Equal(t, "b", list.Jobs[0].JobID)

	rec = httptest.NewRecorder()
	h.GetJob(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/a", nil), "a")
	require.Equal(t, http.StatusOK, rec.Code)
	var job jobs.Job
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &job))
	assert.Equal(t, jobs.JobTypeSyncExpense, job.Type)

	rec = httptest.NewRecorder()
	h.GetJob(rec, httptest.NewRequest(http.MethodGet, "/api/jobs/zzz", nil), "zzz")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExpensesHandler_ListExpenses(t *testing.T) {
	handle, mock := newHandle(t)
	h := NewExpensesHandler(repomanager.NewPostgresRepositoryManager())

	expectUser(mock, "555", 42)
	mock.ExpectQuery(`FROM\s+expenses`).WithArgs(int64(42), int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "description", "amount", "category", "added_at"}).
			AddRow(int64(2), int64(42), "Taxi", 12.5, "Transportation", time.Now()).
			AddRow(int64(1), int64(42), "Pizza", 20.0, "Food", time.Now()))

	req := httptest.NewRequest(http.MethodGet, "/api/expenses?telegram_id=555&limit=2", nil)
	req = req.WithContext(middleware.WithHandle(req.Context(), handle))
	rec := httptest.NewRecorder()
	h.ListExpenses(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var body struct {
		Count int `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, 2, body.Count)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestExpensesHandler_BadInput(t *testing.T) {
	h := NewExpensesHandler(repomanager.NewPostgresRepositoryManager())
	for _, target := range []string{"/api/expenses", "/api/expenses?telegram_id=1&limit=x"} {
		handle, _ := newHandle(t)
		req := httptest.NewRequest(http.MethodGet, target, nil)
		req = req.WithContext(middleware.WithHandle(req.Context(), handle))
		rec := httptest.NewRecorder()
		h.ListExpenses(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}
