package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ManuSanchez02/telegram-expenses-bot/internal/api/middleware"
	"github.com/ManuSanchez02/telegram-expenses-bot/internal/common"
	"github.com/ManuSanchez02/telegram-expenses-bot/internal/jobs"
	"github.com/ManuSanchez02/telegram-expenses-bot/internal/logger"
	"github.com/ManuSanchez02/telegram-expenses-bot/internal/metrics"
	"github.com/ManuSanchez02/telegram-expenses-bot/internal/models"
	"github.com/ManuSanchez02/telegram-expenses-bot/internal/pipeline"
	"github.com/ManuSanchez02/telegram-expenses-bot/internal/repositories/repomanager"
	"github.com/rs/zerolog"
)

// CodeUserNotFound is returned when the sender is not whitelisted.
const CodeUserNotFound = "user_not_found"

const maxBodyBytes = 64 << 10

// Extractor runs the extraction pipeline on a message.
type Extractor interface {
	Run(ctx context.Context, text string) (*pipeline.PipelineState, error)
}

// ParseRequest is the body of POST /parse.
type ParseRequest struct {
	Text       string `json:"text"`
	TelegramID string `json:"telegram_id"`
}

// ParseResponse is the success body of POST /parse.
type ParseResponse struct {
	Message string `json:"message"`
}

// ParseHandler turns a chat message into a stored expense.
type ParseHandler struct {
	repos     repomanager.RepositoryManager
	extractor Extractor
	metrics   *metrics.Metrics

	publisher   jobs.Publisher
	sideEffects []jobs.JobType
	model       string
}

// ParseOption configures a ParseHandler.
type ParseOption func(*ParseHandler)

// WithSideEffects publishes a job of each type after an expense is committed.
// Model output records are published for every extraction that reached the
// engine.
func WithSideEffects(p jobs.Publisher, types ...jobs.JobType) ParseOption {
	return func(h *ParseHandler) {
		h.publisher = p
		h.sideEffects = types
	}
}

// WithModelName sets the model name written to model output records.
func WithModelName(name string) ParseOption {
	return func(h *ParseHandler) {
		h.model = name
	}
}

// NewParseHandler creates a new parse handler.
func NewParseHandler(repos repomanager.RepositoryManager, extractor Extractor, m *metrics.Metrics, opts ...ParseOption) *ParseHandler {
	h := &ParseHandler{
		repos:     repos,
		extractor: extractor,
		metrics:   m,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Parse handles POST /parse. It must run behind middleware.Auth, which
// provides the request's handle.
func (h *ParseHandler) Parse(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	handle, ok := middleware.HandleFromContext(ctx)
	if !ok {
		log.Error().Msg("Parse called without a database handle")
		middleware.WriteError(w, http.StatusInternalServerError, middleware.CodeInternal, "Internal server error")
		return
	}

	var req ParseRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, middleware.CodeBadRequest, "Invalid request body")
		return
	}
	if strings.TrimSpace(req.Text) == "" || strings.TrimSpace(req.TelegramID) == "" {
		middleware.WriteError(w, http.StatusBadRequest, middleware.CodeBadRequest, "text and telegram_id are required")
		return
	}

	log = log.With().Str("telegram_id", req.TelegramID).Logger()

	user, err := h.repos.Users(handle).GetByTelegramID(ctx, req.TelegramID)
	if errors.Is(err, common.ErrNotFound) {
		h.outcome(metrics.OutcomeUserNotFound)
		log.Info().Msg("Sender is not whitelisted")
		middleware.WriteError(w, http.StatusForbidden, CodeUserNotFound, common.ErrAuthorizationRejected.Error())
		return
	}
	if err != nil {
		h.fail(w, log, err, "User lookup failed")
		return
	}

	start := time.Now()
	state, err := h.extractor.Run(ctx, req.Text)
	if h.metrics != nil {
		h.metrics.ExtractionLatency.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		if state != nil && state.RawOutput != "" {
			h.recordModelOutput(ctx, req, state, "engine_error", 0)
		}
		h.fail(w, log, err, "Extraction failed")
		return
	}

	switch result := state.Result.(type) {
	case pipeline.Incomplete:
		h.outcome(metrics.OutcomeIncomplete)
		h.recordModelOutput(ctx, req, state, string(result.Outcome()), 0)
		middleware.WriteError(w, http.StatusBadRequest, result.Reason(), result.Err().Error())
		return
	case pipeline.Invalid:
		h.outcome(metrics.OutcomeInvalid)
		h.recordModelOutput(ctx, req, state, string(result.Outcome()), 0)
		middleware.WriteError(w, http.StatusBadRequest, result.Reason(), result.Err().Error())
		return
	case pipeline.Complete:
		expense, err := h.repos.Expenses(handle).Create(ctx, &models.Expense{
			UserID:      user.ID,
			Description: result.Expense.Description,
			Amount:      result.Expense.Amount,
			Category:    string(result.Expense.Category),
		})
		if err != nil {
			h.fail(w, log, err, "Failed to store expense")
			return
		}
		if err := handle.Commit(ctx); err != nil {
			h.fail(w, log, err, "Failed to commit expense")
			return
		}

		h.outcome(metrics.OutcomeAdded)
		log.Info().
			Int64("expense_id", expense.ID).
			Str("category", expense.Category).
			Msg("Expense added")

		h.afterCommit(ctx, req, state, expense)
		middleware.WriteJSON(w, http.StatusOK, ParseResponse{
			Message: fmt.Sprintf("%s expense added ✅", result.Expense.Category),
		})
	default:
		h.fail(w, log, fmt.Errorf("unexpected extraction result %T", state.Result), "Extraction failed")
	}
}

func (h *ParseHandler) fail(w http.ResponseWriter, log zerolog.Logger, err error, msg string) {
	h.outcome(metrics.OutcomeError)
	log.Error().Err(err).Msg(msg)
	middleware.WriteError(w, http.StatusInternalServerError, middleware.CodeInternal, "Internal server error")
}

func (h *ParseHandler) outcome(name string) {
	if h.metrics != nil {
		h.metrics.ParseOutcomes.WithLabelValues(name).Inc()
	}
}

func (h *ParseHandler) wants(t jobs.JobType) bool {
	if h.publisher == nil {
		return false
	}
	for _, s := range h.sideEffects {
		if s == t {
			return true
		}
	}
	return false
}

// afterCommit publishes the side effects of a stored expense. Failures are
// logged; the expense is already committed.
func (h *ParseHandler) afterCommit(ctx context.Context, req ParseRequest, state *pipeline.PipelineState, expense *models.Expense) {
	if h.wants(jobs.JobTypeSyncExpense) {
		h.publish(ctx, &jobs.Job{Type: jobs.JobTypeSyncExpense, Expense: expense})
	}
	h.recordModelOutput(ctx, req, state, string(pipeline.OutcomeComplete), expense.ID)
}

func (h *ParseHandler) recordModelOutput(ctx context.Context, req ParseRequest, state *pipeline.PipelineState, outcome string, expenseID int64) {
	if !h.wants(jobs.JobTypeRecordModelOutput) {
		return
	}
	h.publish(ctx, &jobs.Job{
		Type: jobs.JobTypeRecordModelOutput,
		ModelOutput: &jobs.ModelOutput{
			RequestID:  middleware.RequestIDFromContext(ctx),
			TelegramID: req.TelegramID,
			Model:      h.model,
			Prompt:     state.Prompt,
			RawOutput:  state.RawOutput,
			Outcome:    outcome,
			ExpenseID:  expenseID,
			CreatedAt:  time.Now().UTC(),
		},
	})
}

func (h *ParseHandler) publish(ctx context.Context, job *jobs.Job) {
	// Publishing must not be cut short by the client going away.
	ctx = context.WithoutCancel(ctx)
	if err := h.publisher.Publish(ctx, job); err != nil {
		log := logger.FromContext(ctx)
		log.Warn().Err(err).Str("job_type", string(job.Type)).Msg("Failed to publish job")
	}
}

// ExpensesHandler lists stored expenses.
type ExpensesHandler struct {
	repos repomanager.RepositoryManager
}

// NewExpensesHandler creates a new expenses handler.
func NewExpensesHandler(repos repomanager.RepositoryManager) *ExpensesHandler {
	return &ExpensesHandler{repos: repos}
}

// ListExpenses handles GET /api/expenses?telegram_id=...&limit=...
// It must run behind middleware.Auth.
func (h *ExpensesHandler) ListExpenses(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := logger.FromContext(ctx)

	handle, ok := middleware.HandleFromContext(ctx)
	if !ok {
		middleware.WriteError(w, http.StatusInternalServerError, middleware.CodeInternal, "Internal server error")
		return
	}

	query := r.URL.Query()
	telegramID := query.Get("telegram_id")
	if telegramID == "" {
		middleware.WriteError(w, http.StatusBadRequest, middleware.CodeBadRequest, "telegram_id is required")
		return
	}

	limit := 0
	if limitStr := query.Get("limit"); limitStr != "" {
		n, err := strconv.Atoi(limitStr)
		if err != nil || n < 0 {
			middleware.WriteError(w, http.StatusBadRequest, middleware.CodeBadRequest, "Invalid limit")
			return
		}
		limit = n
	}

	user, err := h.repos.Users(handle).GetByTelegramID(ctx, telegramID)
	if errors.Is(err, common.ErrNotFound) {
		middleware.WriteError(w, http.StatusForbidden, CodeUserNotFound, common.ErrAuthorizationRejected.Error())
		return
	}
	if err != nil {
		log.Error().Err(err).Msg("User lookup failed")
		middleware.WriteError(w, http.StatusInternalServerError, middleware.CodeInternal, "Internal server error")
		return
	}

	expenses, err := h.repos.Expenses(handle).ListByUser(ctx, user.ID, limit)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list expenses")
		middleware.WriteError(w, http.StatusInternalServerError, middleware.CodeInternal, "Internal server error")
		return
	}
	if expenses == nil {
		expenses = []*models.Expense{}
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"expenses": expenses,
		"count":    len(expenses),
	})
}
