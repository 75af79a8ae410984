// Package jobs describes the side effects run after a parse request commits:
// mirroring the expense into Notion and recording the model output.
package jobs

import (
	"context"
	"time"

	"github.com/ManuSanchez02/telegram-expenses-bot/internal/models"
)

// JobType selects the handler of a job.
type JobType string

const (
	// JobTypeSyncExpense mirrors a committed expense into Notion.
	JobTypeSyncExpense JobType = "sync_expense"
	// JobTypeRecordModelOutput appends the extraction audit row to BigQuery.
	JobTypeRecordModelOutput JobType = "record_model_output"
)

// JobStatus is the lifecycle state of a job.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusRetrying  JobStatus = "retrying"
)

// Finished reports whether no further attempt will be made.
func (s JobStatus) Finished() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// DefaultMaxRetries is applied to jobs published without MaxRetries.
const DefaultMaxRetries = 3

// ModelOutput is the audit record of one extraction.
type ModelOutput struct {
	RequestID  string    `json:"request_id"`
	TelegramID string    `json:"telegram_id"`
	Model      string    `json:"model"`
	Prompt     string    `json:"prompt"`
	RawOutput  string    `json:"raw_output"`
	Outcome    string    `json:"outcome"`
	ExpenseID  int64     `json:"expense_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Job is a side effect of a parse request. Exactly one payload is set,
// matching Type.
type Job struct {
	JobID string  `json:"job_id"`
	Type  JobType `json:"type"`

	Expense     *models.Expense `json:"expense,omitempty"`
	ModelOutput *ModelOutput    `json:"model_output,omitempty"`

	Status      JobStatus  `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	// Error holds the last handler error.
	Error      string `json:"error,omitempty"`
	RetryCount int    `json:"retry_count"`
	MaxRetries int    `json:"max_retries"`
}

// Clone returns a copy that shares no pointers with j.
func (j *Job) Clone() *Job {
	c := *j
	if j.Expense != nil {
		e := *j.Expense
		c.Expense = &e
	}
	if j.ModelOutput != nil {
		o := *j.ModelOutput
		c.ModelOutput = &o
	}
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

// Publisher enqueues jobs.
type Publisher interface {
	Publish(ctx context.Context, job *Job) error
	Close() error
}

// Consumer runs a JobHandler over queued jobs until stopped. Stop waits for
// in-flight jobs.
type Consumer interface {
	Start(ctx context.Context, handler JobHandler) error
	Stop(ctx context.Context) error
}

// JobHandler runs one job. A returned error makes the job eligible for retry.
type JobHandler func(ctx context.Context, job *Job) error

// JobStore keeps job state for the status endpoints.
type JobStore interface {
	SaveJob(ctx context.Context, job *Job) error
	// GetJob returns common.ErrNotFound for unknown IDs.
	GetJob(ctx context.Context, jobID string) (*Job, error)
	// ListJobs returns matching jobs, newest first.
	ListJobs(ctx context.Context, filter JobFilter) ([]*Job, error)
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus, errorMsg string) error
}

// JobFilter narrows ListJobs. Zero fields match everything.
type JobFilter struct {
	Type   JobType
	Status JobStatus
	Limit  int
	Offset int
}

// Matches reports whether job passes the Type and Status criteria.
func (f JobFilter) Matches(job *Job) bool {
	if f.Type != "" && job.Type != f.Type {
		return false
	}
	return f.Status == "" || job.Status == f.Status
}
