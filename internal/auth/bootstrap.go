package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/ManuSanchez02/telegram-expenses-bot/internal/common"
	"github.com/ManuSanchez02/telegram-expenses-bot/internal/models"
	"github.com/ManuSanchez02/telegram-expenses-bot/internal/repositories/apikeys"
	"github.com/rs/zerolog"
)

const (
	// BootstrapDescription is stored on the key created at first start.
	BootstrapDescription = "Default API key"

	tokenBytes     = 32
	maxCreateTries = 3
)

// GenerateToken returns a URL-safe token built from 32 random bytes.
func GenerateToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("GenerateToken: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// CreateKey stores a freshly generated key. A collision with an existing
// key is retried with a new token.
func CreateKey(ctx context.Context, repo apikeys.Repository, description string) (*models.APIKey, error) {
	var lastErr error
	for i := 0; i < maxCreateTries; i++ {
		token, err := GenerateToken()
		if err != nil {
			return nil, err
		}

		key, err := repo.Create(ctx, &models.APIKey{Key: token, Description: description})
		if err == nil {
			return key, nil
		}
		if !errors.Is(err, common.ErrConflict) {
			return nil, fmt.Errorf("CreateKey: %w", err)
		}
		lastErr = err
	}
	return nil, fmt.Errorf("CreateKey: %w", lastErr)
}

// EnsureBootstrapKey creates the default key when the store has none and
// logs it so the operator can configure the connector. It reports whether a
// key was created.
func EnsureBootstrapKey(ctx context.Context, repo apikeys.Repository, log zerolog.Logger) (bool, error) {
	n, err := repo.Count(ctx)
	if err != nil {
		return false, fmt.Errorf("EnsureBootstrapKey: count keys: %w", err)
	}
	if n > 0 {
		return false, nil
	}

	key, err := CreateKey(ctx, repo, BootstrapDescription)
	if err != nil {
		return false, fmt.Errorf("EnsureBootstrapKey: %w", err)
	}

	log.Info().Str("api_key", key.Key).Msg("Created default API key")
	return true, nil
}
