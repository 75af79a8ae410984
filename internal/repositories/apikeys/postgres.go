package apikeys

import (
	"context"
	"database/sql"
	"time"

	"github.com/ManuSanchez02/telegram-expenses-bot/internal/dbx"
	"github.com/ManuSanchez02/telegram-expenses-bot/internal/models"
	"github.com/ManuSanchez02/telegram-expenses-bot/internal/repositories/pgerr"
)

type PostgresRepository struct {
	db dbx.DBTX
}

func NewPostgresRepository(db dbx.DBTX) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) GetByKey(ctx context.Context, key string) (*models.APIKey, error) {
	query :=
		`SELECT id, key, description, added_at, last_used_at FROM api_keys
		 WHERE key = $1
		 `

	var (
		k        models.APIKey
		lastUsed sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, key).Scan(&k.ID, &k.Key, &k.Description, &k.AddedAt, &lastUsed)
	if err != nil {
		return nil, pgerr.Wrap(err)
	}

	if lastUsed.Valid {
		t := lastUsed.Time
		k.LastUsedAt = &t
	}
	return &k, nil
}

// TouchLastUsed moves last_used_at to at, or one microsecond past the stored
// value when that is not earlier, and returns what was stored. Concurrent
// touches serialize on the row lock.
func (r *PostgresRepository) TouchLastUsed(ctx context.Context, id int64, at time.Time) (time.Time, error) {
	query :=
		`UPDATE api_keys
		 SET last_used_at = GREATEST($2, last_used_at + INTERVAL '1 microsecond')
		 WHERE id = $1
		 RETURNING last_used_at
		 `

	var stored time.Time
	if err := r.db.QueryRowContext(ctx, query, id, at).Scan(&stored); err != nil {
		return time.Time{}, pgerr.Wrap(err)
	}
	return stored, nil
}

func (r *PostgresRepository) Create(ctx context.Context, key *models.APIKey) (*models.APIKey, error) {
	query :=
		`INSERT INTO api_keys (key, description)
		 VALUES ($1, $2)
		 RETURNING id, added_at
		 `

	err := r.db.QueryRowContext(ctx, query, key.Key, key.Description).Scan(&key.ID, &key.AddedAt)
	if err != nil {
		return nil, pgerr.Wrap(err)
	}
	return key, nil
}

func (r *PostgresRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM api_keys`).Scan(&n); err != nil {
		return 0, pgerr.Wrap(err)
	}
	return n, nil
}

var _ Repository = (*PostgresRepository)(nil)
