// Package retry executes remote operations with a bounded-retry policy.
//
// Faults are classified by the HTTP-like status code carried on the error:
// server faults (5xx) retry with deterministic exponential backoff, client
// faults (4xx) fail fast, and unclassified faults (transport errors and the
// like) retry with a fixed delay. No jitter.
package retry

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"time"

	"branchward/internal/gitlab"
)

const (
	DefaultMaxRetries = 3
	DefaultBaseDelay  = 1 * time.Second
)

// ErrMaxRetries is the defensive terminal error for the case where the retry
// loop falls through without a captured fault.
var ErrMaxRetries = errors.New("max retries exceeded")

type Executor struct {
	maxRetries int
	baseDelay  time.Duration
	log        *slog.Logger
	sleep      func(context.Context, time.Duration) error
}

type Option func(*Executor)

// WithMaxRetries overrides the attempt budget (env or default otherwise).
func WithMaxRetries(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.maxRetries = n
		}
	}
}

// WithBaseDelay overrides the base backoff delay (env or default otherwise).
func WithBaseDelay(d time.Duration) Option {
	return func(e *Executor) {
		if d > 0 {
			e.baseDelay = d
		}
	}
}

// WithSleep replaces the sleep function. Tests use this to capture computed
// delays instead of blocking.
func WithSleep(fn func(context.Context, time.Duration) error) Option {
	return func(e *Executor) {
		if fn != nil {
			e.sleep = fn
		}
	}
}

// New builds an Executor. MAX_RETRIES and RETRY_DELAY (seconds) are read once
// here; explicit options win over the environment.
func New(log *slog.Logger, opts ...Option) *Executor {
	if log == nil {
		log = slog.Default()
	}
	e := &Executor{
		maxRetries: envInt("MAX_RETRIES", DefaultMaxRetries),
		baseDelay:  envSeconds("RETRY_DELAY", DefaultBaseDelay),
		log:        log,
		sleep:      sleepCtx,
	}
	for _, apply := range opts {
		if apply != nil {
			apply(e)
		}
	}
	return e
}

// Do runs op until it succeeds or the retry budget is exhausted. name labels
// the operation in logs only.
func (e *Executor) Do(ctx context.Context, name string, op func() error) error {
	var lastErr error
	for attempt := 1; attempt <= e.maxRetries; attempt++ {
		err := op()
		if err == nil {
			return nil
		}
		lastErr = err
		code := gitlab.StatusCodeOf(err)

		switch {
		case code >= 500 && code < 600:
			if attempt >= e.maxRetries {
				e.log.Error("max retries reached for server error", "op", name, "status", code, "err", err)
				return err
			}
			// Exponential backoff for server errors.
			delay := e.baseDelay << (attempt - 1)
			e.log.Warn("server error, retrying", "op", name, "status", code, "delay", delay)
			if serr := e.sleep(ctx, delay); serr != nil {
				return serr
			}

		case code >= 400 && code < 500:
			// Client errors are never retried. 409 conflicts are expected
			// during racing creations, so keep them out of normal output.
			if code == http.StatusConflict {
				e.log.Debug("client error, not retrying", "op", name, "status", code, "err", err)
			} else {
				e.log.Info("client error, not retrying", "op", name, "status", code, "err", err)
			}
			return err

		default:
			if attempt >= e.maxRetries {
				e.log.Error("max retries reached for non-server error", "op", name, "err", err)
				return err
			}
			e.log.Warn("non-server error, retrying", "op", name, "delay", e.baseDelay)
			if serr := e.sleep(ctx, e.baseDelay); serr != nil {
				return serr
			}
		}
	}

	if lastErr != nil {
		return lastErr
	}
	e.log.Error("max retries exceeded for all error types")
	return ErrMaxRetries
}

// DoValue is Do for operations that return a value.
func DoValue[T any](ctx context.Context, e *Executor, name string, op func() (T, error)) (T, error) {
	var out T
	err := e.Do(ctx, name, func() error {
		v, err := op()
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func envInt(key string, fallback int) int {
	if raw := os.Getenv(key); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			return v
		}
	}
	return fallback
}

func envSeconds(key string, fallback time.Duration) time.Duration {
	if raw := os.Getenv(key); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			return time.Duration(v) * time.Second
		}
	}
	return fallback
}
