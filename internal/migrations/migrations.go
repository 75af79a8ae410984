// Package migrations embeds the schema migrations: goose SQL files for the
// Postgres store and numbered DDL files for the BigQuery audit dataset.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS

// BigQuery holds files named NNNN_name.sql under bigquery/. They may use the
// {{PROJECT_ID}} and {{DATASET_ID}} placeholders.
//
//go:embed bigquery/*.sql
var BigQuery embed.FS
