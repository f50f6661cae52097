// Package resilience bounds calls to flaky backends: Policy retries storage
// lookups inside a single deadline, and Breaker sheds load from a backend that
// keeps failing.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/exam-question-search/pkg/errors"
)

const (
	defaultBaseDelay = 25 * time.Millisecond
	defaultMaxDelay  = 250 * time.Millisecond
	jitterFraction   = 0.1
)

// Policy bounds one logical call. Every attempt shares the Timeout budget;
// failures that Transient accepts are retried with doubling, jittered
// backoff. A nil Transient retries every error.
type Policy struct {
	Name      string
	Timeout   time.Duration
	Attempts  int
	BaseDelay time.Duration
	MaxDelay  time.Duration
	Transient func(error) bool
}

// Do runs fn until it succeeds, the attempts run out or the budget ends.
// Errors Transient rejects are returned as is. An exhausted budget wraps both
// apperrors.ErrTimeout and context.DeadlineExceeded.
func (p Policy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	p = p.withDefaults()
	parent := ctx
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}

	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			if attempt > 1 {
				slog.Default().Info("succeeded after retry", "component", "resilience", "operation", p.Name, "attempt", attempt)
			}
			return nil
		}
		if budgetErr := p.budgetErr(parent, ctx); budgetErr != nil {
			return budgetErr
		}
		if p.Transient != nil && !p.Transient(err) {
			return err
		}
		if attempt >= p.Attempts {
			return fmt.Errorf("%s: %d attempts failed: %w", p.Name, attempt, err)
		}

		delay := p.backoff(attempt)
		slog.Default().Warn("transient failure, retrying",
			"component", "resilience",
			"operation", p.Name,
			"attempt", attempt,
			"next_delay", delay,
			"error", err,
		)
		timer := time.NewTimer(delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return p.budgetErr(parent, ctx)
		}
	}
}

func (p Policy) withDefaults() Policy {
	if p.Attempts <= 0 {
		p.Attempts = 1
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = defaultBaseDelay
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = defaultMaxDelay
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
	}
	return p
}

// budgetErr distinguishes a caller cancellation from the policy's own
// deadline. It returns nil while ctx is still live.
func (p Policy) budgetErr(parent, ctx context.Context) error {
	if err := parent.Err(); err != nil {
		return fmt.Errorf("%s: %w", p.Name, err)
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w after %v: %w", p.Name, apperrors.ErrTimeout, p.Timeout, context.DeadlineExceeded)
	}
	return nil
}

func (p Policy) backoff(attempt int) time.Duration {
	d := p.MaxDelay
	if shift := attempt - 1; shift < 32 {
		d = p.BaseDelay << shift
	}
	if d <= 0 || d > p.MaxDelay {
		d = p.MaxDelay
	}
	jitter := time.Duration(float64(d) * jitterFraction * (2*rand.Float64() - 1))
	d += jitter
	if d > p.MaxDelay {
		d = p.MaxDelay
	}
	return d
}
