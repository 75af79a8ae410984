package bigquery

import (
	"context"
	"fmt"

	"cloud.google.com/go/bigquery"
	"github.com/ManuSanchez02/telegram-expenses-bot/internal/jobs"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"
)

const modelOutputsTable = "model_outputs"

// ModelOutputRepository writes audit rows through a shared BigQuery client.
type ModelOutputRepository struct {
	client  *bigquery.Client
	table   string
	log     zerolog.Logger
	newID   func() string
	execute func(ctx context.Context, q *bigquery.Query) error
}

// NewModelOutputRepository creates a client for project. An empty
// credentialsFile falls back to Application Default Credentials.
func NewModelOutputRepository(ctx context.Context, project, dataset, credentialsFile string, log zerolog.Logger) (*ModelOutputRepository, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := bigquery.NewClient(ctx, project, opts...)
	if err != nil {
		return nil, fmt.Errorf("NewModelOutputRepository: creating client: %w", err)
	}

	return &ModelOutputRepository{
		client:  client,
		table:   tableRef(project, dataset),
		log:     log.With().Str("component", "bigquery").Logger(),
		newID:   uuid.NewString,
		execute: runQuery,
	}, nil
}

// Close closes the BigQuery client connection.
func (r *ModelOutputRepository) Close() error {
	if r.client != nil {
		return r.client.Close()
	}
	return nil
}

// Insert appends row. Uses DML INSERT to avoid streaming buffer issues.
func (r *ModelOutputRepository) Insert(ctx context.Context, row *ModelOutputRow) error {
	q := r.client.Query(insertModelOutputSQL(r.table))
	q.Parameters = modelOutputParams(row)

	if err := r.execute(ctx, q); err != nil {
		return fmt.Errorf("InsertModelOutput: %w", err)
	}
	return nil
}

// HandleJob is the jobs.JobHandler for jobs.JobTypeRecordModelOutput.
func (r *ModelOutputRepository) HandleJob(ctx context.Context, job *jobs.Job) error {
	if job.ModelOutput == nil {
		return fmt.Errorf("HandleJob: job %s has no model output", job.JobID)
	}

	row := NewModelOutputRow(r.newID(), job.ModelOutput)
	if err := r.Insert(ctx, row); err != nil {
		return err
	}

	r.log.Debug().
		Str("output_id", row.OutputID).
		Str("outcome", row.Outcome).
		Msg("Recorded model output")
	return nil
}

func tableRef(project, dataset string) string {
	return "`" + project + "." + dataset + "." + modelOutputsTable + "`"
}

func insertModelOutputSQL(table string) string {
	return `
		INSERT INTO ` + table + ` (
			output_id, request_id, telegram_id,
			model_name, prompt, raw_output,
			outcome, expense_id, created_ts, created_date
		)
		VALUES (
			@output_id, @request_id, @telegram_id,
			@model_name, @prompt, @raw_output,
			@outcome, @expense_id, @created_ts, @created_date
		)
	`
}

func modelOutputParams(row *ModelOutputRow) []bigquery.QueryParameter {
	return []bigquery.QueryParameter{
		{Name: "output_id", Value: row.OutputID},
		{Name: "request_id", Value: row.RequestID},
		{Name: "telegram_id", Value: row.TelegramID},
		{Name: "model_name", Value: row.ModelName},
		{Name: "prompt", Value: row.Prompt},
		{Name: "raw_output", Value: row.RawOutput},
		{Name: "outcome", Value: row.Outcome},
		{Name: "expense_id", Value: row.ExpenseID},
		{Name: "created_ts", Value: row.CreatedTS},
		{Name: "created_date", Value: row.CreatedDate},
	}
}

func runQuery(ctx context.Context, q *bigquery.Query) error {
	job, err := q.Run(ctx)
	if err != nil {
		return fmt.Errorf("running insert query: %w", err)
	}

	status, err := job.Wait(ctx)
	if err != nil {
		return fmt.Errorf("waiting for job: %w", err)
	}
	if err := status.Err(); err != nil {
		return fmt.Errorf("job error: %w", err)
	}
	return nil
}
