package resilience

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
)

func TestDoMakesSingleAttemptOnTransientFailure(t *testing.T) {
	guard := NewGuard(DefaultConfig())

	attempts := 0
	errTemp := errors.New("connection reset")
	err := guard.Do(context.Background(), "nats.publish", func(context.Context) error {
		attempts++
		return errTemp
	}, func(error) Classification {
		return Classification{Transient: true, Fault: true}
	})
	if !errors.Is(err, errTemp) {
		t.Fatalf("expected the call error back, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected exactly 1 attempt, got %d", attempts)
	}
}

func TestDoSkipsCallForCancelledContext(t *testing.T) {
	guard := NewGuard(DefaultConfig())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := guard.Do(ctx, "op", func(context.Context) error {
		t.Fatalf("call must not run after cancellation")
		return nil
	}, nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestDoOpensCircuitAfterFaults(t *testing.T) {
	var transitions []string
	guard := NewGuard(Config{
		Enabled:          true,
		MinRequests:      2,
		FailureRatio:     0.5,
		OpenTimeout:      time.Minute,
		HalfOpenRequests: 1,
	}).OnStateChange(func(operation, state string) {
		transitions = append(transitions, operation+":"+state)
	})

	errRemote := errors.New("503")
	fault := func(error) Classification { return Classification{Transient: true, Fault: true} }
	for i := 0; i < 2; i++ {
		err := guard.Do(context.Background(), "gemini.generate", func(context.Context) error {
			return errRemote
		}, fault)
		if !errors.Is(err, errRemote) {
			t.Fatalf("expected remote error on call %d, got %v", i, err)
		}
	}

	err := guard.Do(context.Background(), "gemini.generate", func(context.Context) error {
		t.Fatalf("circuit should be open and must not call operation")
		return nil
	}, fault)
	if !errors.Is(err, gobreaker.ErrOpenState) || !IsOpen(err) {
		t.Fatalf("expected open state error, got %v", err)
	}
	if got := guard.State("gemini.generate"); got != "open" {
		t.Fatalf("expected open state, got %q", got)
	}
	if len(transitions) != 1 || transitions[0] != "gemini.generate:open" {
		t.Fatalf("unexpected transitions %v", transitions)
	}
	if got := guard.State("nats.publish"); got != "closed" {
		t.Fatalf("expected independent breaker per operation, got %q", got)
	}
}

func TestDoIgnoresNonFaultsForBreaker(t *testing.T) {
	guard := NewGuard(Config{Enabled: true, MinRequests: 1, FailureRatio: 0.1})

	errKey := errors.New("API key not valid")
	for i := 0; i < 5; i++ {
		_ = guard.Do(context.Background(), "gemini.validate", func(context.Context) error {
			return errKey
		}, func(error) Classification { return Classification{} })
	}
	if got := guard.State("gemini.validate"); got != "closed" {
		t.Fatalf("client errors must not open the breaker, got %q", got)
	}
}

func TestDisabledGuardCallsThrough(t *testing.T) {
	guard := NewGuard(Config{Enabled: false, MinRequests: 1, FailureRatio: 0.1})

	calls := 0
	for i := 0; i < 3; i++ {
		_ = guard.Do(context.Background(), "op", func(context.Context) error {
			calls++
			return errors.New("down")
		}, nil)
	}
	if calls != 3 {
		t.Fatalf("expected every call to run with the breaker disabled, got %d", calls)
	}
}

func TestStateChangesAreLoggedToInjectedLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	guard := NewGuard(Config{Enabled: true, MinRequests: 1, FailureRatio: 0.5}).WithLogger(logger)

	_ = guard.Do(context.Background(), "sheet.append", func(context.Context) error {
		return errors.New("locked")
	}, nil)

	out := buf.String()
	if !strings.Contains(out, `"msg":"circuit_breaker_state_change"`) || !strings.Contains(out, `"operation":"sheet.append"`) {
		t.Fatalf("expected breaker log line, got %s", out)
	}
}
