package provider

import (
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"go.uber.org/zap"
)

// BreakerConfig tunes the circuit breaker around remote contacts calls.
type BreakerConfig struct {
	FailureThreshold uint
	Window           uint
	Delay            time.Duration
}

// DefaultBreakerConfig opens after 5 transient failures in 10 calls and
// probes again after 30 seconds.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{FailureThreshold: 5, Window: 10, Delay: 30 * time.Second}
}

// CircuitBreaker fails fast while the remote store is unhealthy. Only
// transient failures count; duplicates and not-found answers are normal
// outcomes of a healthy provider.
type CircuitBreaker struct {
	cb circuitbreaker.CircuitBreaker[any]
}

func NewCircuitBreaker(cfg BreakerConfig, logger *zap.Logger) *CircuitBreaker {
	if cfg.Window == 0 {
		cfg = DefaultBreakerConfig()
	}
	cb := circuitbreaker.NewBuilder[any]().
		HandleIf(func(_ any, err error) bool {
			return err != nil && Classify(err) == ClassTransient
		}).
		WithFailureThresholdRatio(cfg.FailureThreshold, cfg.Window).
		WithDelay(cfg.Delay).
		WithSuccessThreshold(1).
		OnStateChanged(func(e circuitbreaker.StateChangedEvent) {
			logger.Warn("contacts circuit breaker state change",
				zap.String("from", stateName(e.OldState)),
				zap.String("to", stateName(e.NewState)),
			)
		}).
		Build()
	return &CircuitBreaker{cb: cb}
}

// Call runs fn through the breaker. An open breaker returns
// circuitbreaker.ErrOpen, which Classify reports as transient.
func (b *CircuitBreaker) Call(fn func() error) error {
	_, err := failsafe.With(b.cb).Get(func() (any, error) {
		return nil, fn()
	})
	return err
}

// IsOpen reports whether calls are currently being rejected.
func (b *CircuitBreaker) IsOpen() bool {
	return b.cb.IsOpen()
}

func stateName(s circuitbreaker.State) string {
	switch s {
	case circuitbreaker.OpenState:
		return "open"
	case circuitbreaker.HalfOpenState:
		return "half-open"
	default:
		return "closed"
	}
}
