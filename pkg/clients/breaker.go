package clients

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"

	"frameworks/pkg/logging"
)

// ErrCircuitOpen is returned when a call is rejected by an open breaker.
var ErrCircuitOpen = circuitbreaker.ErrOpen

// CircuitBreakerState represents the state of the circuit breaker.
type CircuitBreakerState int

const (
	StateClosed CircuitBreakerState = iota
	StateHalfOpen
	StateOpen
)

func (s CircuitBreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// CircuitBreakerConfig configures the circuit breaker.
type CircuitBreakerConfig struct {
	// Name identifies this circuit breaker in logs
	Name string

	// Timeout is how long the circuit stays open before probing again.
	// Default: 60 seconds.
	Timeout time.Duration

	// FailureThreshold failures within MinRequests executions trip the
	// circuit. Defaults: 3 of 5.
	FailureThreshold uint
	MinRequests      uint

	// SuccessThreshold successes in half-open close the circuit. Default: 1
	SuccessThreshold uint

	// IsFailure decides whether an error counts against the breaker. By
	// default every non-nil error does.
	IsFailure func(error) bool

	Logger        logging.Logger
	OnStateChange func(name string, from, to CircuitBreakerState)
}

// DefaultCircuitBreakerConfig returns defaults tuned for flaky upstream APIs.
func DefaultCircuitBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:             name,
		Timeout:          60 * time.Second,
		FailureThreshold: 3,
		MinRequests:      5,
		SuccessThreshold: 1,
	}
}

// CircuitBreaker wraps failsafe-go's circuit breaker. It never retries.
type CircuitBreaker struct {
	cb   circuitbreaker.CircuitBreaker[any]
	name string
}

// NewCircuitBreaker creates a new circuit breaker with the given configuration.
func NewCircuitBreaker(cfg CircuitBreakerConfig) *CircuitBreaker {
	defaults := DefaultCircuitBreakerConfig(cfg.Name)
	if cfg.Name == "" {
		cfg.Name = "circuit-breaker"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.MinRequests == 0 {
		cfg.MinRequests = defaults.MinRequests
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = defaults.FailureThreshold
	}
	if cfg.FailureThreshold > cfg.MinRequests {
		cfg.FailureThreshold = cfg.MinRequests
	}
	if cfg.SuccessThreshold == 0 {
		cfg.SuccessThreshold = defaults.SuccessThreshold
	}

	builder := circuitbreaker.NewBuilder[any]().
		WithFailureThresholdRatio(cfg.FailureThreshold, cfg.MinRequests).
		WithDelay(cfg.Timeout).
		WithSuccessThreshold(cfg.SuccessThreshold)

	if cfg.IsFailure != nil {
		isFailure := cfg.IsFailure
		builder = builder.HandleIf(func(_ any, err error) bool {
			return err != nil && isFailure(err)
		})
	}

	if cfg.OnStateChange != nil || cfg.Logger != nil {
		builder = builder.OnStateChanged(func(event circuitbreaker.StateChangedEvent) {
			from := convertState(event.OldState)
			to := convertState(event.NewState)
			if cfg.Logger != nil {
				cfg.Logger.WithFields(logging.Fields{
					"circuit_breaker": cfg.Name,
					"from_state":      from.String(),
					"to_state":        to.String(),
				}).Warn("circuit breaker state change")
			}
			if cfg.OnStateChange != nil {
				cfg.OnStateChange(cfg.Name, from, to)
			}
		})
	}

	return &CircuitBreaker{cb: builder.Build(), name: cfg.Name}
}

func convertState(state circuitbreaker.State) CircuitBreakerState {
	switch state {
	case circuitbreaker.HalfOpenState:
		return StateHalfOpen
	case circuitbreaker.OpenState:
		return StateOpen
	default:
		return StateClosed
	}
}

// Call executes fn through the breaker. When the circuit is open fn is not
// invoked and the returned error matches ErrCircuitOpen.
func (cb *CircuitBreaker) Call(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := failsafe.With(cb.cb).WithContext(ctx).Get(func() (any, error) {
		return nil, fn(ctx)
	})
	return err
}

// State returns the current state of the circuit breaker.
func (cb *CircuitBreaker) State() CircuitBreakerState {
	return convertState(cb.cb.State())
}

// Name returns the name of the circuit breaker.
func (cb *CircuitBreaker) Name() string {
	return cb.name
}

// IsOpenErr reports whether err came from an open breaker.
func IsOpenErr(err error) bool {
	return errors.Is(err, ErrCircuitOpen)
}

// BreakerSet lazily creates one breaker per key from a shared template.
type BreakerSet struct {
	template CircuitBreakerConfig

	mu       sync.Mutex
	breakers map[string]*CircuitBreaker
}

// NewBreakerSet returns a set whose breakers are built from template with
// Name replaced by the key.
func NewBreakerSet(template CircuitBreakerConfig) *BreakerSet {
	return &BreakerSet{template: template, breakers: make(map[string]*CircuitBreaker)}
}

// Get returns the breaker for key, creating it on first use.
func (s *BreakerSet) Get(key string) *CircuitBreaker {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cb, ok := s.breakers[key]; ok {
		return cb
	}
	cfg := s.template
	cfg.Name = key
	cb := NewCircuitBreaker(cfg)
	s.breakers[key] = cb
	return cb
}

// States snapshots the state of every breaker created so far.
func (s *BreakerSet) States() map[string]CircuitBreakerState {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]CircuitBreakerState, len(s.breakers))
	for name, cb := range s.breakers {
		out[name] = cb.State()
	}
	return out
}
