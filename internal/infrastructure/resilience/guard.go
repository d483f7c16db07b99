// Package resilience guards remote calls with circuit breakers. Calls are
// made exactly once; a failure goes straight back to the caller.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/sony/gobreaker/v2"
)

// Classification describes a failed call. Transient failures may succeed if
// the user tries again later. Faults count toward opening the breaker.
type Classification struct {
	Transient bool
	Fault     bool
}

type Classifier func(err error) Classification

// StateFunc receives breaker transitions as "closed", "half-open" or "open".
type StateFunc func(operation, state string)

// Guard keeps one circuit breaker per operation name.
type Guard struct {
	cfg     Config
	logger  *slog.Logger
	onState StateFunc

	mu       sync.Mutex
	breakers map[string]*gobreaker.CircuitBreaker[struct{}]
}

func NewGuard(cfg Config) *Guard {
	return &Guard{
		cfg:      cfg.withDefaults(),
		logger:   slog.Default(),
		breakers: make(map[string]*gobreaker.CircuitBreaker[struct{}]),
	}
}

func (g *Guard) WithLogger(logger *slog.Logger) *Guard {
	if logger != nil {
		g.logger = logger
	}
	return g
}

// OnStateChange registers fn for breaker transitions. It must be set before
// the first call.
func (g *Guard) OnStateChange(fn StateFunc) *Guard {
	g.onState = fn
	return g
}

// Do runs fn once. While the operation's breaker is open fn is skipped and
// the breaker error is returned.
func (g *Guard) Do(ctx context.Context, operation string, fn func(context.Context) error, classify Classifier) error {
	if fn == nil {
		return fmt.Errorf("resilience: operation callback is nil")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if !g.cfg.Enabled {
		return fn(ctx)
	}
	if classify == nil {
		classify = faultClassifier
	}

	_, err := g.breaker(operationName(operation), classify).Execute(func() (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// State reports the breaker state for operation. Unknown operations and a
// disabled guard read as closed.
func (g *Guard) State(operation string) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if breaker, ok := g.breakers[operationName(operation)]; ok {
		return breaker.State().String()
	}
	return gobreaker.StateClosed.String()
}

func (g *Guard) breaker(operation string, classify Classifier) *gobreaker.CircuitBreaker[struct{}] {
	g.mu.Lock()
	defer g.mu.Unlock()

	if breaker, ok := g.breakers[operation]; ok {
		return breaker
	}

	cfg := g.cfg
	breaker := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        operation,
		MaxRequests: cfg.HalfOpenRequests,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < cfg.MinRequests {
				return false
			}
			return float64(counts.TotalFailures)/float64(counts.Requests) >= cfg.FailureRatio
		},
		IsSuccessful: func(err error) bool {
			return err == nil || !classify(err).Fault
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			g.logger.Warn("circuit_breaker_state_change", "operation", name, "from", from.String(), "to", to.String())
			if g.onState != nil {
				g.onState(name, to.String())
			}
		},
	})
	g.breakers[operation] = breaker
	return breaker
}

func IsOpen(err error) bool {
	return errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests)
}

func operationName(operation string) string {
	if op := strings.TrimSpace(operation); op != "" {
		return op
	}
	return "unknown"
}

func faultClassifier(error) Classification {
	return Classification{Fault: true}
}
