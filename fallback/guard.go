package fallback

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// BreakerConfig configures WithBreaker. Zero values take the defaults below.
type BreakerConfig struct {
	Name string

	// MaxRequests allowed through while half-open. Default 1.
	MaxRequests uint32

	// Interval after which closed-state counts are cleared. Default 60s.
	Interval time.Duration

	// Timeout spent open before probing again. Default 30s.
	Timeout time.Duration

	// ConsecutiveFailures that trip the breaker. Default 5.
	ConsecutiveFailures uint32

	Logger logrus.FieldLogger
}

type breakerGenerator struct {
	next Generator
	cb   *gobreaker.CircuitBreaker
}

// WithBreaker opens a circuit after repeated upstream failures. While open,
// calls fail immediately with ReasonUnavailable. Missing credentials do not
// count as failures.
func WithBreaker(next Generator, config BreakerConfig) Generator {
	if config.Name == "" {
		config.Name = "fallback"
	}
	if config.MaxRequests == 0 {
		config.MaxRequests = 1
	}
	if config.Interval == 0 {
		config.Interval = 60 * time.Second
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	if config.ConsecutiveFailures == 0 {
		config.ConsecutiveFailures = 5
	}
	if config.Logger == nil {
		config.Logger = logrus.StandardLogger()
	}

	threshold := config.ConsecutiveFailures
	logger := config.Logger

	settings := gobreaker.Settings{
		Name:        config.Name,
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.WithFields(logrus.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("Fallback circuit breaker changed state")
		},
	}

	return &breakerGenerator{next: next, cb: gobreaker.NewCircuitBreaker(settings)}
}

func (b *breakerGenerator) Generate(ctx context.Context, question string) Result {
	var res Result

	_, err := b.cb.Execute(func() (interface{}, error) {
		res = b.next.Generate(ctx, question)
		switch res.Reason {
		case ReasonNone, ReasonNotConfigured, ReasonRateLimited:
			return nil, nil
		}
		if res.Err != nil {
			return nil, res.Err
		}
		return nil, fmt.Errorf("fallback failed: %s", res.Reason)
	})

	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return Fail(ReasonUnavailable, err)
	}
	return res
}

type limitedGenerator struct {
	next    Generator
	limiter *rate.Limiter
}

// WithRateLimit rejects calls beyond limiter's budget with ReasonRateLimited
// instead of queueing them.
func WithRateLimit(next Generator, limiter *rate.Limiter) Generator {
	return &limitedGenerator{next: next, limiter: limiter}
}

func (l *limitedGenerator) Generate(ctx context.Context, question string) Result {
	if !l.limiter.Allow() {
		return Fail(ReasonRateLimited, ErrRateLimited)
	}
	return l.next.Generate(ctx, question)
}
