package users

import (
	"context"

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

func (r *PostgresRepository) GetByTelegramID(ctx context.Context, telegramID string) (*models.User, error) {
	query :=
		`SELECT id, telegram_id, added_at FROM users
		 WHERE telegram_id = $1
		 `

	u := &models.User{}
	err := r.db.QueryRowContext(ctx, query, telegramID).Scan(&u.ID, &u.TelegramID, &u.AddedAt)
	if err != nil {
		return nil, pgerr.Wrap(err)
	}
	return u, nil
}

func (r *PostgresRepository) Create(ctx context.Context, telegramID string) (*models.User, error) {
	query :=
		`INSERT INTO users (telegram_id)
		 VALUES ($1)
		 RETURNING id, added_at
		 `

	u := &models.User{TelegramID: telegramID}
	if err := r.db.QueryRowContext(ctx, query, telegramID).Scan(&u.ID, &u.AddedAt); err != nil {
		return nil, pgerr.Wrap(err)
	}
	return u, nil
}

var _ Repository = (*PostgresRepository)(nil)
