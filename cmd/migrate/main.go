// Command migrate applies the BigQuery audit dataset migrations. Postgres
// migrations are applied by the API on startup and by `cli migrate`.
package main

import (
	"context"
	"crypto/sha256"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/ManuSanchez02/telegram-expenses-bot/internal/config"
	"github.com/ManuSanchez02/telegram-expenses-bot/internal/logger"
	"github.com/ManuSanchez02/telegram-expenses-bot/internal/migrations"
	"github.com/rs/zerolog"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
)

// script is one numbered file from the bigquery directory.
type script struct {
	Version  int
	Name     string
	Filename string
	SQL      string
	Checksum string
}

// appliedRecord is a row of schema_migrations.
type appliedRecord struct {
	Version   int
	Name      string
	AppliedAt time.Time
	Checksum  string
	AppliedBy string
}

// Script names look like 0001_name.sql.
var migrationFile = regexp.MustCompile(`^(\d{4})_(.+)\.sql$`)

// store is the part of BigQuery the migrator talks to.
type store interface {
	Exec(ctx context.Context, sql string, params ...bigquery.QueryParameter) error
	Applied(ctx context.Context) ([]appliedRecord, error)
}

type migrator struct {
	store     store
	project   string
	dataset   string
	appliedBy string
	log       zerolog.Logger
}

func main() {
	config.LoadDotEnv()
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	projectID := flag.String("project", cfg.BigQuery.Project, "GCP project ID (or set BIGQUERY_PROJECT)")
	datasetID := flag.String("dataset", cfg.BigQuery.Dataset, "BigQuery dataset ID")
	appliedBy := flag.String("applied-by", "migrate-cli", "Name of the tool applying migrations")
	flag.Parse()

	log, err := logger.New(cfg.LoggerOptions())
	if err != nil {
		fmt.Fprintf(os.Stderr, "init logger: %v\n", err)
		os.Exit(1)
	}

	if *projectID == "" {
		log.Fatal().Msg("Error: -project flag is required. Please specify your GCP project ID.")
	}

	ctx := context.Background()

	var opts []option.ClientOption
	if cfg.BigQuery.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.BigQuery.CredentialsFile))
	}
	client, err := bigquery.NewClient(ctx, *projectID, opts...)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery client")
	}
	defer client.Close()

	log.Info().Str("project", *projectID).Str("dataset", *datasetID).Msg("Connected to BigQuery")

	m := &migrator{
		store:     &bigQueryStore{client: client, table: fmt.Sprintf("`%s.%s.schema_migrations`", *projectID, *datasetID)},
		project:   *projectID,
		dataset:   *datasetID,
		appliedBy: *appliedBy,
		log:       log,
	}

	n, err := m.run(ctx, migrations.BigQuery)
	if err != nil {
		log.Fatal().Err(err).Msg("Migration failed")
	}
	if n == 0 {
		log.Info().Msg("No new migrations to apply. Dataset is up to date.")
	} else {
		log.Info().Int("applied", n).Msg("Successfully applied migrations")
	}
}

// run applies every migration in fsys that is not yet recorded and returns
// how many were applied.
func (m *migrator) run(ctx context.Context, fsys fs.FS) (int, error) {
	if err := m.store.Exec(ctx, m.schemaMigrationsDDL()); err != nil {
		return 0, fmt.Errorf("ensure schema_migrations table: %w", err)
	}

	pending, err := readMigrations(fsys, m.project, m.dataset, m.log)
	if err != nil {
		return 0, err
	}

	applied, err := m.store.Applied(ctx)
	if err != nil {
		return 0, fmt.Errorf("get applied migrations: %w", err)
	}

	appliedVersions := make(map[int]appliedRecord, len(applied))
	for _, am := range applied {
		appliedVersions[am.Version] = am
	}

	count := 0
	for _, mig := range pending {
		if am, ok := appliedVersions[mig.Version]; ok {
			if am.Checksum != "" && am.Checksum != mig.Checksum {
				m.log.Warn().Str("migration", mig.Filename).Msg("Applied migration was modified since it ran")
			}
			m.log.Info().Str("migration", mig.Filename).Msg("[SKIP] already applied")
			continue
		}

		m.log.Info().Str("migration", mig.Filename).Msg("[RUN]")

		if err := m.store.Exec(ctx, mig.SQL); err != nil {
			return count, fmt.Errorf("execute %s: %w", mig.Filename, err)
		}
		if err := m.record(ctx, mig); err != nil {
			return count, fmt.Errorf("record %s: %w", mig.Filename, err)
		}
		count++
	}
	return count, nil
}

func (m *migrator) schemaMigrationsDDL() string {
	return fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS `+"`%s.%s.schema_migrations`"+` (
			version       INT64 NOT NULL,
			name          STRING NOT NULL,
			applied_at    TIMESTAMP NOT NULL,
			checksum      STRING,
			applied_by    STRING
		)
	`, m.project, m.dataset)
}

func (m *migrator) record(ctx context.Context, mig script) error {
	sql := fmt.Sprintf(`
		INSERT INTO `+"`%s.%s.schema_migrations`"+`
		(version, name, applied_at, checksum, applied_by)
		VALUES (@version, @name, CURRENT_TIMESTAMP(), @checksum, @applied_by)
	`, m.project, m.dataset)

	return m.store.Exec(ctx, sql,
		bigquery.QueryParameter{Name: "version", Value: mig.Version},
		bigquery.QueryParameter{Name: "name", Value: mig.Name},
		bigquery.QueryParameter{Name: "checksum", Value: mig.Checksum},
		bigquery.QueryParameter{Name: "applied_by", Value: m.appliedBy},
	)
}

// readMigrations reads the migration files under bigquery/ in fsys, sorted
// by version. The checksum is taken before placeholders are replaced so it
// tracks the migration, not the dataset it was applied to.
func readMigrations(fsys fs.FS, project, dataset string, log zerolog.Logger) ([]script, error) {
	files, err := fs.ReadDir(fsys, "bigquery")
	if err != nil {
		return nil, fmt.Errorf("reading migrations directory: %w", err)
	}

	var out []script
	for _, file := range files {
		if file.IsDir() {
			continue
		}

		matches := migrationFile.FindStringSubmatch(file.Name())
		if matches == nil {
			log.Warn().Str("file", file.Name()).Msg("Skipping file with invalid format")
			continue
		}

		version, err := strconv.Atoi(matches[1])
		if err != nil {
			continue
		}

		content, err := fs.ReadFile(fsys, "bigquery/"+file.Name())
		if err != nil {
			return nil, fmt.Errorf("reading file %s: %w", file.Name(), err)
		}

		sql := strings.ReplaceAll(string(content), "{{PROJECT_ID}}", project)
		sql = strings.ReplaceAll(sql, "{{DATASET_ID}}", dataset)

		out = append(out, script{
			Version:  version,
			Name:     matches[2],
			Filename: file.Name(),
			SQL:      sql,
			Checksum: fmt.Sprintf("%x", sha256.Sum256(content)),
		})
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Version < out[j].Version
	})
	return out, nil
}

type bigQueryStore struct {
	client *bigquery.Client
	table  string
}

func (s *bigQueryStore) Exec(ctx context.Context, sql string, params ...bigquery.QueryParameter) error {
	query := s.client.Query(sql)
	query.Parameters = params

	job, err := query.Run(ctx)
	if err != nil {
		return fmt.Errorf("running query: %w", err)
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

func (s *bigQueryStore) Applied(ctx context.Context) ([]appliedRecord, error) {
	query := s.client.Query(`SELECT version, name, applied_at, checksum, applied_by FROM ` + s.table + ` ORDER BY version ASC`)
	it, err := query.Read(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading applied migrations: %w", err)
	}

	var applied []appliedRecord
	for {
		var row struct {
			Version   int64               `bigquery:"version"`
			Name      string              `bigquery:"name"`
			AppliedAt time.Time           `bigquery:"applied_at"`
			Checksum  bigquery.NullString `bigquery:"checksum"`
			AppliedBy bigquery.NullString `bigquery:"applied_by"`
		}

		err := it.Next(&row)
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("iterating results: %w", err)
		}

		applied = append(applied, appliedRecord{
			Version:   int(row.Version),
			Name:      row.Name,
			AppliedAt: row.AppliedAt,
			Checksum:  row.Checksum.StringVal,
			AppliedBy: row.AppliedBy.StringVal,
		})
	}
	return applied, nil
}
