package users

import (
	"context"

	"github.com/ManuSanchez02/telegram-expenses-bot/internal/models"
)

type Repository interface {
	GetByTelegramID(ctx context.Context, telegramID string) (*models.User, error)
	Create(ctx context.Context, telegramID string) (*models.User, error)
}
