// Package connector is the chat-side client of the parse service. It turns
// service responses into the replies a chat bot sends back to the user.
package connector

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/ManuSanchez02/telegram-expenses-bot/internal/api/handlers"
	"github.com/ManuSanchez02/telegram-expenses-bot/internal/api/middleware"
	"github.com/ManuSanchez02/telegram-expenses-bot/internal/pipeline"
	"github.com/rs/zerolog"
)

// Chat replies for rejected messages.
const (
	ReplyIncomplete = "Please provide both the expense and the amount spent."
	ReplyNotAllowed = "You are not whitelisted to use this bot. Please contact the bot owner."
	ReplyFailure    = "An error occurred while processing your request. Please try again later."
)

const defaultTimeout = 30 * time.Second

// APIError is a non-2xx response the client has no reply for.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("parse service returned %d %s: %s", e.Status, e.Code, e.Message)
}

// Client calls POST /parse on behalf of chat users.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	log     zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithLogger sets the logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) {
		c.log = log
	}
}

// New creates a Client for the service at baseURL.
func New(baseURL, apiKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    &http.Client{Timeout: defaultTimeout},
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Parse submits text for telegramID. It returns the reply to send, or ok
// false when the message should be ignored. Responses without a chat reply
// are returned as *APIError.
func (c *Client) Parse(ctx context.Context, text, telegramID string) (reply string, ok bool, err error) {
	body, err := json.Marshal(handlers.ParseRequest{Text: text, TelegramID: telegramID})
	if err != nil {
		return "", false, fmt.Errorf("Parse: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/parse", bytes.NewReader(body))
	if err != nil {
		return "", false, fmt.Errorf("Parse: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(middleware.APIKeyHeader, c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", false, fmt.Errorf("Parse: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusOK {
		var out handlers.ParseResponse
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			return "", false, fmt.Errorf("Parse: decode response: %w", err)
		}
		return out.Message, true, nil
	}

	var apiErr middleware.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiErr); err != nil {
		c.log.Debug().Err(err).Int("status", resp.StatusCode).Msg("Undecodable error body")
	}
	c.log.Warn().
		Int("status", resp.StatusCode).
		Str("code", apiErr.Error).
		Str("telegram_id", telegramID).
		Msg("Parse request rejected")

	switch apiErr.Error {
	case pipeline.ReasonIncomplete:
		return ReplyIncomplete, true, nil
	case handlers.CodeUserNotFound:
		return ReplyNotAllowed, true, nil
	case pipeline.ReasonInvalid:
		return "", false, nil
	}
	return "", false, &APIError{Status: resp.StatusCode, Code: apiErr.Error, Message: apiErr.Message}
}

// ReplyFor is Parse with failures folded into ReplyFailure, for bots that
// always answer.
func (c *Client) ReplyFor(ctx context.Context, text, telegramID string) (string, bool) {
	reply, ok, err := c.Parse(ctx, text, telegramID)
	if err != nil {
		var apiErr *APIError
		if !errors.As(err, &apiErr) {
			c.log.Error().Err(err).Msg("Parse service unreachable")
		}
		return ReplyFailure, true
	}
	return reply, ok
}
