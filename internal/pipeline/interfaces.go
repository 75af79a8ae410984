package pipeline

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// Engine turns an instruction prompt into the model's raw text answer.
// This interface enables mocking and testing of the extraction pipeline.
type Engine interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// RateLimitedEngine throttles calls to the wrapped Engine. Waiting honours
// ctx, so a cancelled request stops queueing.
type RateLimitedEngine struct {
	next    Engine
	limiter *rate.Limiter
}

// NewRateLimitedEngine allows perSecond calls on average with bursts of burst.
func NewRateLimitedEngine(next Engine, perSecond float64, burst int) *RateLimitedEngine {
	if burst < 1 {
		burst = 1
	}
	return &RateLimitedEngine{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(perSecond), burst),
	}
}

func (e *RateLimitedEngine) Generate(ctx context.Context, prompt string) (string, error) {
	if err := e.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("RateLimitedEngine: %w", err)
	}
	return e.next.Generate(ctx, prompt)
}

var (
	_ Engine = (*GeminiEngine)(nil)
	_ Engine = (*RateLimitedEngine)(nil)
)
