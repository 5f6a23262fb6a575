// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package executor submits units of work to a vision model under the daily
// quota, retrying quota errors with exponential backoff. Every terminal
// state is reported as a tagged types.UnitResult; nothing is returned as an
// error past this boundary.
package executor

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/pdiddy/pdf2md/internal/quota"
	"github.com/pdiddy/pdf2md/internal/vision"
	"github.com/pdiddy/pdf2md/pkg/types"
)

const (
	DefaultMaxRetries = 5
	DefaultBaseDelay  = 2 * time.Second

	// DefaultMaxBackoff caps one computed backoff wait.
	DefaultMaxBackoff = 10 * time.Minute
)

var (
	requestAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pdf2md_request_attempts_total",
		Help: "Model calls by result",
	}, []string{"outcome"})

	retryBackoffSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pdf2md_retry_backoff_seconds",
		Help:    "Backoff waited before retrying a quota error",
		Buckets: prometheus.ExponentialBuckets(1, 2, 8),
	})
)

// Acquirer admits requests against the daily ceiling. *quota.Limiter
// implements it.
type Acquirer interface {
	Acquire(ctx context.Context, interactive bool) (quota.Decision, error)
}

// Unit is one payload to transcribe. Label names it in logs and markers.
type Unit struct {
	Label   string
	Payload vision.Payload
}

// Config holds the request and retry settings.
type Config struct {
	Model       string
	Prompt      string
	Interactive bool

	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int

	// BaseDelay is the exponential backoff base. Zero selects DefaultBaseDelay.
	BaseDelay time.Duration

	// MaxBackoff caps the exponential wait, before jitter. Zero selects
	// DefaultMaxBackoff. Provider-suggested delays are not capped.
	MaxBackoff time.Duration
}

// Option configures an Executor.
type Option func(*Executor)

// WithJitter replaces the random backoff jitter.
func WithJitter(jitter func() time.Duration) Option {
	return func(e *Executor) { e.jitter = jitter }
}

// WithSleeper replaces the backoff sleep.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(e *Executor) { e.sleep = sleep }
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(e *Executor) { e.logger = logger }
}

// Executor runs the acquire, call, classify and backoff cycle for one unit.
// It is safe for concurrent use when its Acquirer and Client are.
type Executor struct {
	limiter Acquirer
	client  vision.Client
	cfg     Config

	jitter func() time.Duration
	sleep  func(ctx context.Context, d time.Duration) error
	logger zerolog.Logger
}

// New creates an Executor.
func New(limiter Acquirer, client vision.Client, cfg Config, opts ...Option) *Executor {
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = DefaultBaseDelay
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = DefaultMaxBackoff
	}
	e := &Executor{
		limiter: limiter,
		client:  client,
		cfg:     cfg,
		jitter:  func() time.Duration { return rand.N(time.Second) },
		sleep:   quota.Sleep,
		logger:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute submits u until it succeeds or reaches a terminal failure.
func (e *Executor) Execute(ctx context.Context, u Unit) types.UnitResult {
	res := types.UnitResult{Label: u.Label}
	log := e.logger.With().Str("unit", u.Label).Logger()

	attempt := 0
	for {
		dec, err := e.limiter.Acquire(ctx, e.cfg.Interactive)
		if dec.Kind == quota.Cancel {
			log.Info().Msg("cancelled before request")
			return finish(res, types.OutcomeCancelled, err)
		}
		if err != nil {
			return finish(res, types.OutcomeFailed, err)
		}

		res.Attempts++
		text, err := e.client.Call(ctx, vision.Request{
			Model:   e.cfg.Model,
			Prompt:  e.cfg.Prompt,
			Payload: u.Payload,
		})
		if err == nil {
			requestAttemptsTotal.WithLabelValues("ok").Inc()
			res.Text = text
			return finish(res, types.OutcomeOK, nil)
		}

		var quotaErr *vision.QuotaError
		var timeoutErr *vision.TimeoutError
		switch {
		case ctx.Err() != nil:
			requestAttemptsTotal.WithLabelValues("cancelled").Inc()
			return finish(res, types.OutcomeCancelled, ctx.Err())

		case errors.As(err, &timeoutErr):
			requestAttemptsTotal.WithLabelValues("timeout").Inc()
			log.Warn().Dur("after", timeoutErr.After).Msg("request timed out")
			return finish(res, types.OutcomeTimeout, err)

		case errors.As(err, &quotaErr):
			requestAttemptsTotal.WithLabelValues("quota").Inc()
			if attempt >= e.cfg.MaxRetries {
				log.Error().Err(err).Int("attempts", res.Attempts).Msg("retries exhausted")
				return finish(res, types.OutcomeRetriesExhausted, err)
			}
			attempt++
			wait := e.backoff(attempt, quotaErr.RetryAfter)
			log.Warn().
				Int("retry", attempt).
				Int("max_retries", e.cfg.MaxRetries).
				Dur("wait", wait).
				Msg("quota error, backing off")
			retryBackoffSeconds.Observe(wait.Seconds())
			if err := e.sleep(ctx, wait); err != nil {
				return finish(res, types.OutcomeCancelled, err)
			}

		default:
			requestAttemptsTotal.WithLabelValues("failed").Inc()
			log.Error().Err(err).Msg("request failed")
			return finish(res, types.OutcomeFailed, err)
		}
	}
}

// backoff returns the provider's delay when it gave one, otherwise
// min(base * 2^attempt, MaxBackoff) plus up to a second of jitter.
func (e *Executor) backoff(attempt int, retryAfter time.Duration) time.Duration {
	if retryAfter > 0 {
		return retryAfter
	}
	wait := e.cfg.MaxBackoff
	// Compare against the shifted cap so base << attempt cannot overflow.
	if attempt < 63 && e.cfg.BaseDelay <= e.cfg.MaxBackoff>>attempt {
		wait = e.cfg.BaseDelay << attempt
	}
	return wait + e.jitter()
}

func finish(res types.UnitResult, outcome types.Outcome, err error) types.UnitResult {
	res.Outcome = outcome
	res.Err = err
	return res
}
