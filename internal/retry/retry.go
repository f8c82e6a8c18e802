package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// ErrNotYetVisible marks a lookup that found nothing but may still be racing
// a creating transaction. It is the only error Do retries; everything else
// short-circuits on the first attempt.
var ErrNotYetVisible = errors.New("entity not yet visible")

// Policy is a bounded retry policy passed as configuration rather than
// hand-rolled per call site. The default delay sequence is 500ms, 1s, 2s, 4s
// across five total attempts.
type Policy struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxAttempts  int

	// Sleep is overridable so tests can observe delays without wall-clock
	// waits. Nil means a context-aware time.Sleep.
	Sleep func(ctx context.Context, d time.Duration) error
}

func DefaultPolicy() Policy {
	return Policy{
		InitialDelay: 500 * time.Millisecond,
		Multiplier:   2.0,
		MaxAttempts:  5,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Do runs op up to MaxAttempts times, sleeping between attempts along the
// policy's exponential sequence. Each attempt is a fresh call; no state is
// carried across attempts. Exhaustion returns the last ErrNotYetVisible.
func (p Policy) Do(ctx context.Context, op func(ctx context.Context) error) error {
	maxAttempts := p.MaxAttempts
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = sleepContext
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialDelay
	b.RandomizationFactor = 0
	b.Multiplier = p.Multiplier
	b.MaxInterval = time.Hour
	b.Reset()

	var err error
	for attempt := 1; ; attempt++ {
		err = op(ctx)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ErrNotYetVisible) {
			return err
		}
		if attempt >= maxAttempts {
			return err
		}
		if sleepErr := sleep(ctx, b.NextBackOff()); sleepErr != nil {
			return sleepErr
		}
	}
}
