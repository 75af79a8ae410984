// Package bigquery appends extraction audit rows to a BigQuery table.
package bigquery

import (
	"time"

	"cloud.google.com/go/bigquery"
	"cloud.google.com/go/civil"
	"github.com/ManuSanchez02/telegram-expenses-bot/internal/jobs"
)

// ModelOutputRow is one row of the model_outputs table, partitioned by
// created_date.
type ModelOutputRow struct {
	OutputID   string              `bigquery:"output_id"`  // REQUIRED
	RequestID  bigquery.NullString `bigquery:"request_id"` // NULLABLE
	TelegramID string              `bigquery:"telegram_id"`

	ModelName string              `bigquery:"model_name"` // REQUIRED
	Prompt    bigquery.NullString `bigquery:"prompt"`
	RawOutput bigquery.NullString `bigquery:"raw_output"`

	Outcome   string             `bigquery:"outcome"`    // REQUIRED
	ExpenseID bigquery.NullInt64 `bigquery:"expense_id"` // set when the expense was stored

	CreatedTS   time.Time  `bigquery:"created_ts"`
	CreatedDate civil.Date `bigquery:"created_date"`
}

// NewModelOutputRow maps an audit record onto a table row.
func NewModelOutputRow(outputID string, o *jobs.ModelOutput) *ModelOutputRow {
	created := o.CreatedAt.UTC()

	row := &ModelOutputRow{
		OutputID:    outputID,
		RequestID:   nullString(o.RequestID),
		TelegramID:  o.TelegramID,
		ModelName:   o.Model,
		Prompt:      nullString(o.Prompt),
		RawOutput:   nullString(o.RawOutput),
		Outcome:     o.Outcome,
		CreatedTS:   created,
		CreatedDate: civil.DateOf(created),
	}
	if o.ExpenseID != 0 {
		row.ExpenseID = bigquery.NullInt64{Int64: o.ExpenseID, Valid: true}
	}
	return row
}

func nullString(s string) bigquery.NullString {
	return bigquery.NullString{StringVal: s, Valid: s != ""}
}
