// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package quota

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeClock is a manually advanced clock whose Sleep moves time forward.
type fakeClock struct {
	mu    sync.Mutex
	t     time.Time
	slept []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
	c.slept = append(c.slept, d)
	return nil
}

func (c *fakeClock) Slept() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.slept...)
}

// scriptedPrompter answers from a fixed list and counts calls.
type scriptedPrompter struct {
	answers []bool
	err     error
	calls   int
	notices []Notice
}

func (p *scriptedPrompter) Confirm(_ context.Context, n Notice) (bool, error) {
	p.calls++
	p.notices = append(p.notices, n)
	if p.err != nil {
		return false, p.err
	}
	if len(p.answers) == 0 {
		return false, nil
	}
	a := p.answers[0]
	p.answers = p.answers[1:]
	return a, nil
}

func newTestLimiter(limit int, clock *fakeClock, opts ...Option) *Limiter {
	opts = append([]Option{WithClock(clock.Now), WithSleeper(clock.Sleep)}, opts...)
	return New(limit, opts...)
}

func TestAcquire_TwoWithinASecondThenWait(t *testing.T) {
	clock := newFakeClock()
	start := clock.Now()
	l := newTestLimiter(2, clock)
	ctx := context.Background()

	d, err := l.Acquire(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, Decision{Kind: Proceed}, d)

	clock.Advance(500 * time.Millisecond)
	d, err = l.Acquire(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, Decision{Kind: Proceed}, d)

	clock.Advance(500 * time.Millisecond)
	d, err = l.Acquire(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, WaitThenProceed, d.Kind)
	assert.Equal(t, Window-time.Second, d.Wait)

	// The caller blocked until the first stamp aged out.
	assert.Equal(t, []time.Duration{Window - time.Second}, clock.Slept())
	assert.Equal(t, start.Add(Window), clock.Now())
}

func TestAcquire_OldestOnWindowEdgeProceeds(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(1, clock)

	_, err := l.Acquire(context.Background(), false)
	require.NoError(t, err)

	clock.Advance(Window)
	d, err := l.Acquire(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, Decision{Kind: Proceed}, d)
	assert.Empty(t, clock.Slept())
	assert.Equal(t, 1, l.State().Used)
}

func TestAcquire_PrunesExpiredStamps(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(3, clock)

	for i := 0; i < 3; i++ {
		_, err := l.Acquire(context.Background(), false)
		require.NoError(t, err)
	}
	s := l.State()
	assert.Equal(t, 3, s.Used)
	assert.Equal(t, clock.Now(), s.Oldest)
	assert.Equal(t, clock.Now().Add(Window), s.ResetAt)

	clock.Advance(Window + time.Second)
	s = l.State()
	assert.Equal(t, 0, s.Used)
	assert.True(t, s.Oldest.IsZero())
	assert.True(t, s.ResetAt.IsZero())
}

func TestAcquire_CeilingNeverExceeded(t *testing.T) {
	const limit = 4
	clock := newFakeClock()
	l := newTestLimiter(limit, clock)
	rng := rand.New(rand.NewSource(7))

	var admitted []time.Time
	for i := 0; i < 200; i++ {
		clock.Advance(time.Duration(rng.Int63n(int64(8 * time.Hour))))
		_, err := l.Acquire(context.Background(), false)
		require.NoError(t, err)
		admitted = append(admitted, clock.Now())
	}

	for i, at := range admitted {
		n := 0
		for _, other := range admitted[:i+1] {
			if other.After(at.Add(-Window)) {
				n++
			}
		}
		require.LessOrEqualf(t, n, limit, "window ending at request %d holds %d requests", i, n)
	}
}

func TestAcquire_InteractiveDeclineCancels(t *testing.T) {
	clock := newFakeClock()
	p := &scriptedPrompter{answers: []bool{false}}
	l := newTestLimiter(1, clock, WithPrompter(p))

	_, err := l.Acquire(context.Background(), true)
	require.NoError(t, err)

	clock.Advance(time.Hour)
	d, err := l.Acquire(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, Cancel, d.Kind)
	assert.Equal(t, 23*time.Hour, d.Wait)
	assert.Empty(t, clock.Slept(), "a declined wait must not block")

	require.Equal(t, 1, p.calls)
	assert.Equal(t, 1, p.notices[0].Limit)
	assert.Equal(t, 23*time.Hour, p.notices[0].Wait)
	assert.Equal(t, clock.Now().Add(23*time.Hour), p.notices[0].ResetAt)
}

func TestAcquire_DeclineCoversQueuedCallers(t *testing.T) {
	clock := newFakeClock()
	p := &scriptedPrompter{answers: []bool{false, true}}
	l := newTestLimiter(1, clock, WithPrompter(p))

	_, err := l.Acquire(context.Background(), true)
	require.NoError(t, err)

	for range 3 {
		d, err := l.Acquire(context.Background(), true)
		require.NoError(t, err)
		assert.Equal(t, Cancel, d.Kind)
	}
	assert.Equal(t, 1, p.calls, "callers waiting for the refused reset are not asked again")
	assert.Empty(t, clock.Slept())

	// A later reset instant is a new question.
	clock.Advance(Window + time.Hour)
	_, err = l.Acquire(context.Background(), true)
	require.NoError(t, err)
	d, err := l.Acquire(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, WaitThenProceed, d.Kind)
	assert.Equal(t, 2, p.calls)
}

func TestAcquire_InteractiveAcceptWaits(t *testing.T) {
	clock := newFakeClock()
	p := &scriptedPrompter{answers: []bool{true}}
	l := newTestLimiter(1, clock, WithPrompter(p))

	_, err := l.Acquire(context.Background(), true)
	require.NoError(t, err)

	d, err := l.Acquire(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, WaitThenProceed, d.Kind)
	assert.Equal(t, Window, d.Wait)
	assert.Equal(t, 1, p.calls)
}

func TestAcquire_InteractiveWithoutPrompterCancels(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(1, clock)

	_, _ = l.Acquire(context.Background(), true)
	d, err := l.Acquire(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, Cancel, d.Kind)
}

func TestAcquire_PrompterErrorCancels(t *testing.T) {
	clock := newFakeClock()
	p := &scriptedPrompter{err: context.Canceled}
	l := newTestLimiter(1, clock, WithPrompter(p))

	_, _ = l.Acquire(context.Background(), true)
	d, err := l.Acquire(context.Background(), true)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, Cancel, d.Kind)
}

func TestAcquire_ApprovalCoversEarlierResets(t *testing.T) {
	clock := newFakeClock()
	p := &scriptedPrompter{}
	l := newTestLimiter(1, clock, WithPrompter(p))
	l.approvedUntil = clock.Now().Add(2 * Window)

	ok, err := l.confirm(context.Background(), Notice{ResetAt: clock.Now().Add(Window)})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0, p.calls)
}

func TestAcquire_CancelDuringWait(t *testing.T) {
	clock := newFakeClock()
	sleepErr := errors.New("interrupted")
	l := New(1,
		WithClock(clock.Now),
		WithSleeper(func(context.Context, time.Duration) error { return sleepErr }),
	)

	_, _ = l.Acquire(context.Background(), false)
	d, err := l.Acquire(context.Background(), false)
	assert.ErrorIs(t, err, sleepErr)
	assert.Equal(t, Cancel, d.Kind)
	assert.Equal(t, 1, l.State().Used, "a cancelled wait records nothing")
}

func TestAcquire_CancelledContext(t *testing.T) {
	clock := newFakeClock()
	l := newTestLimiter(5, clock)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	d, err := l.Acquire(ctx, false)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, Cancel, d.Kind)
	assert.Equal(t, 0, l.State().Used)
}

func TestAcquire_Concurrent(t *testing.T) {
	const limit = 10
	clock := newFakeClock()
	l := newTestLimiter(limit, clock)

	var wg sync.WaitGroup
	kinds := make([]Kind, limit)
	for i := 0; i < limit; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			d, err := l.Acquire(context.Background(), false)
			assert.NoError(t, err)
			kinds[i] = d.Kind
		}(i)
	}
	wg.Wait()

	for _, k := range kinds {
		assert.Equal(t, Proceed, k)
	}
	assert.Equal(t, limit, l.State().Used)
	assert.Empty(t, clock.Slept())

	d, err := l.Acquire(context.Background(), false)
	require.NoError(t, err)
	assert.Equal(t, WaitThenProceed, d.Kind)
}

func TestNew_DefaultLimit(t *testing.T) {
	assert.Equal(t, DefaultDailyLimit, New(0).Limit())
	assert.Equal(t, 3, New(3).Limit())
}

func TestSleep(t *testing.T) {
	assert.NoError(t, Sleep(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "proceed", Proceed.String())
	assert.Equal(t, "wait_then_proceed", WaitThenProceed.String())
	assert.Equal(t, "cancel", Cancel.String())
}
