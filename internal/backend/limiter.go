package backend

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// Limited throttles calls to an inner Backend with a token bucket.
type Limited struct {
	inner   Backend
	limiter *rate.Limiter
}

// NewLimited allows rps calls per second with the given burst. A burst below
// one is raised to one.
func NewLimited(inner Backend, rps float64, burst int) *Limited {
	if burst < 1 {
		burst = 1
	}
	return &Limited{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Generate waits for a token, then calls the inner backend.
func (l *Limited) Generate(ctx context.Context, prompt string) (string, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}
	return l.inner.Generate(ctx, prompt)
}

var _ Backend = (*Limited)(nil)
