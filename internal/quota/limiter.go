// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package quota enforces a daily request ceiling over a sliding 24h window.
//
// A Limiter records the instant of every accepted request. A request is
// admitted immediately while fewer than the ceiling fall within the trailing
// window; otherwise the caller waits until the oldest counted request ages
// out, optionally after asking the user for confirmation.
package quota

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

const (
	// Window is the length of the sliding quota window.
	Window = 24 * time.Hour

	// DefaultDailyLimit is the requests-per-day ceiling used when none is configured.
	DefaultDailyLimit = 25
)

var (
	quotaRequestsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pdf2md_quota_requests_total",
		Help: "Requests admitted by the daily quota limiter",
	})

	quotaWaitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pdf2md_quota_waits_total",
		Help: "Times a caller had to wait for the quota window to slide",
	})

	quotaWaitSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "pdf2md_quota_wait_seconds",
		Help:    "Time spent waiting for quota",
		Buckets: []float64{1, 60, 600, 3600, 6 * 3600, 24 * 3600},
	})

	quotaCancelsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pdf2md_quota_cancels_total",
		Help: "Acquisitions that ended in cancellation",
	})

	quotaUsed = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pdf2md_quota_used",
		Help: "Requests counted in the current 24h window",
	})
)

// Kind is the verdict of an Acquire call.
type Kind int

const (
	// Proceed means the request was admitted without waiting.
	Proceed Kind = iota
	// WaitThenProceed means the request was admitted after blocking.
	WaitThenProceed
	// Cancel means the caller must not make the request.
	Cancel
)

func (k Kind) String() string {
	switch k {
	case Proceed:
		return "proceed"
	case WaitThenProceed:
		return "wait_then_proceed"
	case Cancel:
		return "cancel"
	default:
		return "unknown"
	}
}

// Decision is returned by Acquire. Wait is the time blocked (WaitThenProceed)
// or the wait that was declined (Cancel).
type Decision struct {
	Kind Kind
	Wait time.Duration
}

// Notice describes an exhausted quota to a Prompter.
type Notice struct {
	Limit   int
	Wait    time.Duration
	ResetAt time.Time
}

// Prompter asks whether to wait for the quota to reset. Returning false, or
// an error, cancels the request.
type Prompter interface {
	Confirm(ctx context.Context, n Notice) (bool, error)
}

// State is a snapshot of the window.
type State struct {
	Used    int
	Limit   int
	Oldest  time.Time // zero when the window is empty
	ResetAt time.Time // zero while the window has room
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) { l.now = now }
}

// WithSleeper replaces the context-aware sleep used while waiting.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(l *Limiter) { l.sleep = sleep }
}

// WithPrompter sets the prompter used for interactive acquisitions.
func WithPrompter(p Prompter) Option {
	return func(l *Limiter) { l.prompter = p }
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(l *Limiter) { l.logger = logger }
}

// Limiter is safe for concurrent use. Create one per process and share it
// between every request path.
type Limiter struct {
	limit int

	mu     sync.Mutex
	stamps []time.Time // ascending

	// promptMu serialises prompts. approvedUntil is the latest reset instant
	// the user agreed to wait for; declinedAt is the reset instant the user
	// last refused.
	promptMu      sync.Mutex
	approvedUntil time.Time
	declinedAt    time.Time

	now      func() time.Time
	sleep    func(ctx context.Context, d time.Duration) error
	prompter Prompter
	logger   zerolog.Logger
}

// New returns a Limiter admitting at most limit requests per Window.
// A non-positive limit selects DefaultDailyLimit.
func New(limit int, opts ...Option) *Limiter {
	if limit <= 0 {
		limit = DefaultDailyLimit
	}
	l := &Limiter{
		limit:  limit,
		now:    time.Now,
		sleep:  Sleep,
		logger: zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Limit returns the configured ceiling.
func (l *Limiter) Limit() int { return l.limit }

// Acquire admits one request, waiting for the window to slide when the
// ceiling is reached. When interactive is set the configured Prompter is
// consulted before blocking. Cancelling ctx aborts a wait and returns a
// Cancel decision together with ctx.Err().
func (l *Limiter) Acquire(ctx context.Context, interactive bool) (Decision, error) {
	var waited time.Duration
	prompted := false

	for {
		if err := ctx.Err(); err != nil {
			quotaCancelsTotal.Inc()
			return Decision{Kind: Cancel}, err
		}

		wait, resetAt, ok := l.tryAcquire()
		if ok {
			quotaRequestsTotal.Inc()
			if waited > 0 {
				quotaWaitSeconds.Observe(waited.Seconds())
				return Decision{Kind: WaitThenProceed, Wait: waited}, nil
			}
			return Decision{Kind: Proceed}, nil
		}

		notice := Notice{Limit: l.limit, Wait: wait, ResetAt: resetAt}
		if interactive && !prompted {
			prompted = true
			proceed, err := l.confirm(ctx, notice)
			if err != nil || !proceed {
				quotaCancelsTotal.Inc()
				l.logger.Warn().Err(err).Msg("quota wait declined")
				return Decision{Kind: Cancel, Wait: wait}, err
			}
		}

		quotaWaitsTotal.Inc()
		l.logger.Warn().
			Int("limit", l.limit).
			Dur("wait", wait).
			Time("reset_at", resetAt).
			Msg("daily quota reached, waiting")

		if err := l.sleep(ctx, wait); err != nil {
			quotaCancelsTotal.Inc()
			return Decision{Kind: Cancel, Wait: wait}, err
		}
		waited += wait
	}
}

// tryAcquire runs prune, count and append as one critical section. When the
// window is full it returns the wait until the oldest stamp expires.
func (l *Limiter) tryAcquire() (time.Duration, time.Time, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	l.prune(now)
	defer func() { quotaUsed.Set(float64(len(l.stamps))) }()

	if len(l.stamps) < l.limit {
		l.stamps = append(l.stamps, now)
		return 0, time.Time{}, true
	}

	resetAt := l.stamps[0].Add(Window)
	if !now.Before(resetAt) {
		// The oldest stamp sits exactly on the window edge.
		l.stamps = append(l.stamps[1:], now)
		return 0, time.Time{}, true
	}
	return resetAt.Sub(now), resetAt, false
}

// prune drops stamps strictly older than Window. Caller holds mu.
func (l *Limiter) prune(now time.Time) {
	cutoff := now.Add(-Window)
	i := 0
	for i < len(l.stamps) && l.stamps[i].Before(cutoff) {
		i++
	}
	if i > 0 {
		l.stamps = append(l.stamps[:0], l.stamps[i:]...)
	}
}

func (l *Limiter) confirm(ctx context.Context, n Notice) (bool, error) {
	l.promptMu.Lock()
	defer l.promptMu.Unlock()

	if !n.ResetAt.After(l.approvedUntil) {
		return true, nil
	}
	// Callers queued behind a refused prompt for the same wait get the
	// same answer.
	if !l.declinedAt.IsZero() && !n.ResetAt.After(l.declinedAt) {
		return false, nil
	}
	if l.prompter == nil {
		return false, nil
	}

	ok, err := l.prompter.Confirm(ctx, n)
	if err != nil {
		return false, err
	}
	if !ok {
		l.declinedAt = n.ResetAt
		return false, nil
	}
	l.approvedUntil = n.ResetAt
	return true, nil
}

// State returns a snapshot of the current window.
func (l *Limiter) State() State {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.prune(l.now())
	s := State{Used: len(l.stamps), Limit: l.limit}
	if len(l.stamps) > 0 {
		s.Oldest = l.stamps[0]
	}
	if len(l.stamps) >= l.limit {
		s.ResetAt = l.stamps[0].Add(Window)
	}
	return s
}

// Sleep blocks for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
