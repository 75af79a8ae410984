package expenses

import (
	"context"
	"database/sql"
	"fmt"

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

func (r *PostgresRepository) Create(ctx context.Context, e *models.Expense) (*models.Expense, error) {
	query :=
		`INSERT INTO expenses (user_id, description, amount, category)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, added_at
		 `

	err := r.db.QueryRowContext(ctx, query, e.UserID, e.Description, e.Amount, e.Category).Scan(&e.ID, &e.AddedAt)
	if err != nil {
		return nil, pgerr.Wrap(err)
	}
	return e, nil
}

// ListByUser returns the newest expenses of a user first. A non-positive
// limit returns all of them.
func (r *PostgresRepository) ListByUser(ctx context.Context, userID int64, limit int) ([]*models.Expense, error) {
	query :=
		`SELECT id, user_id, description, amount, category, added_at FROM expenses
		 WHERE user_id = $1
		 ORDER BY added_at DESC, id DESC
		 `
	args := []any{userID}
	if limit > 0 {
		query += `LIMIT $2`
		args = append(args, limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, pgerr.Wrap(err)
	}
	return scanExpenses(rows)
}

func (r *PostgresRepository) ListAll(ctx context.Context) ([]*models.Expense, error) {
	query :=
		`SELECT id, user_id, description, amount, category, added_at FROM expenses
		 ORDER BY id
		 `

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, pgerr.Wrap(err)
	}
	return scanExpenses(rows)
}

func scanExpenses(rows *sql.Rows) ([]*models.Expense, error) {
	defer rows.Close()

	var result []*models.Expense
	for rows.Next() {
		e := &models.Expense{}
		if err := rows.Scan(&e.ID, &e.UserID, &e.Description, &e.Amount, &e.Category, &e.AddedAt); err != nil {
			return nil, fmt.Errorf("db error: %w", err)
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("db error: %w", err)
	}
	return result, nil
}

var _ Repository = (*PostgresRepository)(nil)
