// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package isolate runs vision-model calls inside execution units that can be
// abandoned or killed at a hard deadline. A call that never returns control
// must not stall the page loop, so every call is bounded by the Supervisor
// regardless of whether the underlying client honours context cancellation.
package isolate

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"github.com/pdiddy/pdf2md/internal/vision"
	"github.com/pdiddy/pdf2md/pkg/types"
)

// DefaultTimeout bounds one model call when no timeout is configured.
const DefaultTimeout = 120 * time.Second

// Runner executes one request in an isolated unit. Run must return promptly
// once ctx is done.
type Runner interface {
	// Name returns the isolation kind ("process" or "inline").
	Name() string

	Run(ctx context.Context, req vision.Request) (string, error)
}

// Supervisor is a vision.Client that gives each call to its Runner a hard
// deadline. Calls that miss it fail with *vision.TimeoutError.
type Supervisor struct {
	runner  Runner
	timeout time.Duration
	logger  zerolog.Logger
}

// NewSupervisor wraps runner. A non-positive timeout selects DefaultTimeout.
func NewSupervisor(runner Runner, timeout time.Duration, logger zerolog.Logger) *Supervisor {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Supervisor{runner: runner, timeout: timeout, logger: logger}
}

// Call runs req under the deadline. Cancellation of ctx itself is returned
// as ctx.Err(), not as a timeout.
func (s *Supervisor) Call(ctx context.Context, req vision.Request) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	start := time.Now()
	text, err := s.runner.Run(cctx, req)

	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if errors.Is(cctx.Err(), context.DeadlineExceeded) {
		s.logger.Warn().
			Str("isolation", s.runner.Name()).
			Dur("timeout", s.timeout).
			Dur("elapsed", time.Since(start)).
			Msg("call terminated at deadline")
		return "", &vision.TimeoutError{After: s.timeout}
	}
	return text, err
}

// Timeout returns the per-call deadline.
func (s *Supervisor) Timeout() time.Duration { return s.timeout }

// InlineRunner calls the client on its own goroutine and stops waiting when
// ctx is done. The abandoned goroutine observes the cancelled context.
type InlineRunner struct {
	Client vision.Client
}

func (r *InlineRunner) Name() string { return string(types.IsolationInline) }

func (r *InlineRunner) Run(ctx context.Context, req vision.Request) (string, error) {
	type result struct {
		text string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		text, err := r.Client.Call(ctx, req)
		ch <- result{text, err}
	}()

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		return res.text, res.err
	}
}
