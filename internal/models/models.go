package models

import "time"

// APIKey is a credential presented by the chat connector in X-API-Key.
type APIKey struct {
	ID          int64
	Key         string
	Description string
	AddedAt     time.Time
	LastUsedAt  *time.Time
}

// User is a whitelisted chat user, identified by the connector's telegram id.
type User struct {
	ID         int64
	TelegramID string
	AddedAt    time.Time
}

// Expense is a single expense recorded for a user.
type Expense struct {
	ID          int64     `json:"id"`
	UserID      int64     `json:"user_id"`
	Description string    `json:"description"`
	Amount      float64   `json:"amount"`
	Category    string    `json:"category"`
	AddedAt     time.Time `json:"added_at"`
}
