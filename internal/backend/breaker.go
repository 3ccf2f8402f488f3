package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
)

// Default circuit breaker settings.
const (
	defaultCBMaxFailures uint32        = 5
	defaultCBTimeout     time.Duration = 30 * time.Second
	defaultCBInterval    time.Duration = 60 * time.Second
)

// BreakerConfig configures the circuit breaker behavior.
type BreakerConfig struct {
	// MaxFailures is the number of consecutive failures before the circuit opens.
	MaxFailures uint32
	// Timeout is how long the circuit stays open before a half-open probe.
	Timeout time.Duration
	// Interval clears failure counts while closed. Zero keeps the default.
	Interval time.Duration
}

// Breaker wraps a Backend with circuit breaker protection. While open, calls
// fail fast and every expert gets its error placeholder immediately.
type Breaker struct {
	name    string
	inner   Backend
	breaker *gobreaker.CircuitBreaker[string]
}

// NewBreaker wraps inner with a circuit breaker.
func NewBreaker(name string, inner Backend, cfg BreakerConfig, logger *zap.Logger) *Breaker {
	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = defaultCBMaxFailures
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultCBTimeout
	}
	interval := cfg.Interval
	if interval == 0 {
		interval = defaultCBInterval
	}

	cb := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:        "backend:" + name,
		MaxRequests: 1,
		Interval:    interval,
		Timeout:     timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		IsSuccessful: func(err error) bool {
			// The caller giving up is not a backend failure.
			return err == nil || errors.Is(err, context.Canceled)
		},
	})

	return &Breaker{name: name, inner: inner, breaker: cb}
}

// Generate implements Backend.
func (b *Breaker) Generate(ctx context.Context, prompt string) (string, error) {
	out, err := b.breaker.Execute(func() (string, error) {
		return b.inner.Generate(ctx, prompt)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", fmt.Errorf("backend %q circuit open: %w", b.name, err)
		}
		return "", err
	}
	return out, nil
}

// State returns the current circuit breaker state.
func (b *Breaker) State() gobreaker.State {
	return b.breaker.State()
}

var _ Backend = (*Breaker)(nil)
