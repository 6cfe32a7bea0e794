package llm

import (
	"context"
	"errors"
	"time"

	"github.com/frenb/accelent/application/ports"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

var _ ports.TextGenerator = (*BreakerGenerator)(nil)

// BreakerConfig holds configuration for the circuit breaker
type BreakerConfig struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold float64
	MinRequests      uint32
}

// DefaultBreakerConfig returns the breaker settings used in production
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxRequests:      5,
		Interval:         30 * time.Second,
		Timeout:          60 * time.Second,
		FailureThreshold: 0.8,
		MinRequests:      5,
	}
}

// BreakerGenerator stops calling a failing provider for a while so that
// prompt nodes fail fast instead of waiting on a dead endpoint
type BreakerGenerator struct {
	next ports.TextGenerator
	cb   *gobreaker.CircuitBreaker
}

// NewBreakerGenerator wraps next in a circuit breaker
func NewBreakerGenerator(next ports.TextGenerator, config BreakerConfig, logger *zap.Logger) *BreakerGenerator {
	if logger == nil {
		logger = zap.NewNop()
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "textgen-" + next.Name(),
		MaxRequests: config.MaxRequests,
		Interval:    config.Interval,
		Timeout:     config.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < config.MinRequests {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return failureRatio >= config.FailureThreshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		IsSuccessful: func(err error) bool {
			// a cancelled caller says nothing about the provider
			return err == nil || ctxErr(err)
		},
	})
	return &BreakerGenerator{next: next, cb: cb}
}

// Name identifies the wrapped provider
func (b *BreakerGenerator) Name() string { return b.next.Name() }

// State reports the breaker state
func (b *BreakerGenerator) State() gobreaker.State { return b.cb.State() }

// Generate calls the wrapped provider unless the breaker is open
func (b *BreakerGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Generate(ctx, prompt)
	})
	if err != nil {
		return "", err
	}
	return out.(string), nil
}

func ctxErr(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
