package shared

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/charmbracelet/log"
)

// defaultMaxDelay caps the exponential delay when [Backoff.Max] is unset.
const defaultMaxDelay = time.Minute

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// Sleep is the default [SleepFunc].
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Backoff is a bounded exponential retry policy.
//
// Attempt n (1-based) waits Base * 2^(n-1), capped at Max. A [RateLimitError] carrying a
// RetryAfter replaces the computed delay.
type Backoff struct {
	Attempts int
	Base     time.Duration
	Max      time.Duration
	Sleep    SleepFunc
	Logger   *log.Logger
}

// retryPolicy is a deterministic [backoff.ExponentialBackOff] that defers to the provider's
// Retry-After when the last error carried one.
type retryPolicy struct {
	exp  *backoff.ExponentialBackOff
	last error
}

func (b Backoff) policy() *retryPolicy {
	limit := b.Max
	if limit <= 0 {
		limit = defaultMaxDelay
	}
	exp := &backoff.ExponentialBackOff{
		InitialInterval:     b.Base,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         limit,
		MaxElapsedTime:      0,
		Stop:                backoff.Stop,
		Clock:               backoff.SystemClock,
	}
	exp.Reset()
	return &retryPolicy{exp: exp}
}

func (p *retryPolicy) NextBackOff() time.Duration {
	d := p.exp.NextBackOff()
	var rle *RateLimitError
	if errors.As(p.last, &rle) && rle.RetryAfter > 0 {
		return rle.RetryAfter
	}
	return d
}

func (p *retryPolicy) Reset() {
	p.exp.Reset()
	p.last = nil
}

// sleepTimer runs the retry loop's waits through a [SleepFunc].
type sleepTimer struct {
	ctx   context.Context
	sleep SleepFunc
	c     chan time.Time
}

func (t *sleepTimer) Start(d time.Duration) {
	t.c = make(chan time.Time, 1)
	if err := t.sleep(t.ctx, d); err == nil || t.ctx.Err() == nil {
		t.c <- time.Now()
	}
}

func (t *sleepTimer) Stop() {}

func (t *sleepTimer) C() <-chan time.Time {
	return t.c
}

// Retry calls fn until it succeeds, returns a non-retryable error, or attempts run out.
//
// Non-retryable errors are returned as is; the last transient error is wrapped with the
// attempt count.
func (b Backoff) Retry(ctx context.Context, op string, fn func(attempt int) error) error {
	attempts := b.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	sleep := b.Sleep
	if sleep == nil {
		sleep = Sleep
	}

	policy := b.policy()
	attempt := 0
	operation := func() error {
		attempt++
		err := fn(attempt)
		policy.last = err
		if err != nil && !IsRetryable(err) {
			return backoff.Permanent(err)
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		if b.Logger != nil {
			b.Logger.Warn("retrying", "op", op, "attempt", attempt, "of", attempts, "wait", wait, "error", err)
		}
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(attempts-1)), ctx)
	err := backoff.RetryNotifyWithTimer(operation, bo, notify, &sleepTimer{ctx: ctx, sleep: sleep})
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		return fmt.Errorf("%s interrupted: %w", op, err)
	case !IsRetryable(err):
		return err
	default:
		return fmt.Errorf("%s failed after %d attempts: %w", op, attempt, err)
	}
}
