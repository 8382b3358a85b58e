package retry_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"branchward/internal/gitlab"
	"branchward/internal/retry"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newExecutor returns an executor whose sleeps are recorded instead of slept.
func newExecutor(t *testing.T, sleeps *[]time.Duration, opts ...retry.Option) *retry.Executor {
	t.Helper()
	opts = append(opts, retry.WithSleep(func(_ context.Context, d time.Duration) error {
		*sleeps = append(*sleeps, d)
		return nil
	}))
	return retry.New(discardLogger(), opts...)
}

func serverFault(code int) error {
	return &gitlab.APIError{StatusCode: code, Message: "internal error"}
}

func clientFault(code int) error {
	return &gitlab.APIError{StatusCode: code, Message: "client error"}
}

func TestDo_ServerFaultsRetryWithExponentialBackoff(t *testing.T) {
	var sleeps []time.Duration
	e := newExecutor(t, &sleeps, retry.WithMaxRetries(3), retry.WithBaseDelay(time.Second))

	attempts := 0
	err := e.Do(context.Background(), "op", func() error {
		attempts++
		if attempts <= 2 {
			return serverFault(503)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do returned error: %v", err)
	}
	if attempts != 3 {
		t.Fatalf("want 3 attempts, got %d", attempts)
	}
	want := []time.Duration{time.Second, 2 * time.Second}
	if len(sleeps) != len(want) {
		t.Fatalf("want sleeps %v, got %v", want, sleeps)
	}
	for i := range want {
		if sleeps[i] != want[i] {
			t.Fatalf("sleep %d: want %v, got %v", i, want[i], sleeps[i])
		}
	}
}

func TestDo_ClientFaultFailsFast(t *testing.T) {
	for _, code := range []int{400, 404, 409, 422} {
		var sleeps []time.Duration
		e := newExecutor(t, &sleeps, retry.WithMaxRetries(3), retry.WithBaseDelay(time.Second))

		attempts := 0
		err := e.Do(context.Background(), "op", func() error {
			attempts++
			return clientFault(code)
		})
		if err == nil {
			t.Fatalf("status %d: want error, got nil", code)
		}
		if got := gitlab.StatusCodeOf(err); got != code {
			t.Fatalf("want status %d surfaced, got %d", code, got)
		}
		if attempts != 1 {
			t.Fatalf("status %d: want 1 attempt, got %d", code, attempts)
		}
		if len(sleeps) != 0 {
			t.Fatalf("status %d: want no sleeps, got %v", code, sleeps)
		}
	}
}

func TestDo_ServerFaultExhaustsBudget(t *testing.T) {
	var sleeps []time.Duration
	e := newExecutor(t, &sleeps, retry.WithMaxRetries(3), retry.WithBaseDelay(time.Second))

	attempts := 0
	fault := serverFault(502)
	err := e.Do(context.Background(), "op", func() error {
		attempts++
		return fault
	})
	if attempts != 3 {
		t.Fatalf("want exactly 3 attempts, got %d", attempts)
	}
	if !errors.Is(err, fault) {
		t.Fatalf("want last fault surfaced, got %v", err)
	}
	// No sleep after the final attempt.
	if len(sleeps) != 2 {
		t.Fatalf("want 2 sleeps, got %v", sleeps)
	}
}

func TestDo_UnclassifiedFaultRetriesWithFixedDelay(t *testing.T) {
	var sleeps []time.Duration
	e := newExecutor(t, &sleeps, retry.WithMaxRetries(3), retry.WithBaseDelay(2*time.Second))

	attempts := 0
	err := e.Do(context.Background(), "op", func() error {
		attempts++
		if attempts <= 2 {
			return errors.New("connection reset")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do returned error: %v", err)
	}
	want := []time.Duration{2 * time.Second, 2 * time.Second}
	if len(sleeps) != 2 || sleeps[0] != want[0] || sleeps[1] != want[1] {
		t.Fatalf("want fixed delays %v, got %v", want, sleeps)
	}
}

func TestDo_SleepErrorAbortsRetries(t *testing.T) {
	canceled := context.Canceled
	e := retry.New(discardLogger(),
		retry.WithMaxRetries(3),
		retry.WithSleep(func(context.Context, time.Duration) error { return canceled }),
	)

	attempts := 0
	err := e.Do(context.Background(), "op", func() error {
		attempts++
		return serverFault(500)
	})
	if !errors.Is(err, canceled) {
		t.Fatalf("want context error surfaced, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("want no further attempts after canceled sleep, got %d", attempts)
	}
}

func TestDoValue_ReturnsValue(t *testing.T) {
	var sleeps []time.Duration
	e := newExecutor(t, &sleeps)

	attempts := 0
	got, err := retry.DoValue(context.Background(), e, "op", func() (string, error) {
		attempts++
		if attempts == 1 {
			return "", serverFault(500)
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("DoValue returned error: %v", err)
	}
	if got != "ok" {
		t.Fatalf("want ok, got %q", got)
	}
}

func TestNew_ReadsEnvTunables(t *testing.T) {
	t.Setenv("MAX_RETRIES", "5")
	t.Setenv("RETRY_DELAY", "2")

	var sleeps []time.Duration
	e := newExecutor(t, &sleeps)

	attempts := 0
	err := e.Do(context.Background(), "op", func() error {
		attempts++
		if attempts <= 4 {
			return serverFault(500)
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do returned error: %v", err)
	}
	if attempts != 5 {
		t.Fatalf("want 5 attempts under MAX_RETRIES=5, got %d", attempts)
	}
	if sleeps[0] != 2*time.Second {
		t.Fatalf("want first delay 2s under RETRY_DELAY=2, got %v", sleeps[0])
	}
}
