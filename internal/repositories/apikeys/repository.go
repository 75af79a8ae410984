package apikeys

import (
	"context"
	"time"

	"github.com/ManuSanchez02/telegram-expenses-bot/internal/models"
)

type Repository interface {
	GetByKey(ctx context.Context, key string) (*models.APIKey, error)
	TouchLastUsed(ctx context.Context, id int64, at time.Time) (time.Time, error)
	Create(ctx context.Context, key *models.APIKey) (*models.APIKey, error)
	Count(ctx context.Context) (int64, error)
}
