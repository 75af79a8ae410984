package expenses

import (
	"context"

	"github.com/ManuSanchez02/telegram-expenses-bot/internal/models"
)

type Repository interface {
	Create(ctx context.Context, expense *models.Expense) (*models.Expense, error)
	ListByUser(ctx context.Context, userID int64, limit int) ([]*models.Expense, error)
	ListAll(ctx context.Context) ([]*models.Expense, error)
}
