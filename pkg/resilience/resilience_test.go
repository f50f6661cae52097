package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Adithya-Monish-Kumar-K/exam-question-search/pkg/errors"
)

var errTransient = errors.New("connection reset")

func fastPolicy(attempts int) Policy {
	return Policy{Name: "lookup", Attempts: attempts, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func TestPolicy_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := fastPolicy(3).Do(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errTransient
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestPolicy_ExhaustsAttempts(t *testing.T) {
	calls := 0
	err := fastPolicy(2).Do(context.Background(), func(context.Context) error {
		calls++
		return errTransient
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, errTransient)
	assert.Contains(t, err.Error(), "lookup: 2 attempts failed")
	assert.Equal(t, 2, calls)
}

func TestPolicy_ZeroAttemptsRunsOnce(t *testing.T) {
	calls := 0
	err := Policy{Name: "lookup"}.Do(context.Background(), func(context.Context) error {
		calls++
		return errTransient
	})
	assert.ErrorIs(t, err, errTransient)
	assert.Equal(t, 1, calls)
}

func TestPolicy_PermanentErrorReturnedUnchanged(t *testing.T) {
	permanent := errors.New("syntax error")
	p := fastPolicy(5)
	p.Transient = func(err error) bool { return errors.Is(err, errTransient) }

	calls := 0
	err := p.Do(context.Background(), func(context.Context) error {
		calls++
		return permanent
	})
	assert.Same(t, permanent, err)
	assert.Equal(t, 1, calls)
}

func TestPolicy_CallerCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls := 0
	err := fastPolicy(5).Do(ctx, func(ctx context.Context) error {
		calls++
		return ctx.Err()
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.NotErrorIs(t, err, apperrors.ErrTimeout)
	assert.Equal(t, 1, calls)
}

func TestPolicy_TimeoutSpansAllAttempts(t *testing.T) {
	p := Policy{Name: "lookup", Timeout: 20 * time.Millisecond, Attempts: 100, BaseDelay: 5 * time.Millisecond, MaxDelay: 5 * time.Millisecond}
	start := time.Now()
	err := p.Do(context.Background(), func(context.Context) error {
		return errTransient
	})
	assert.ErrorIs(t, err, apperrors.ErrTimeout)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestPolicy_AttemptSeesDeadline(t *testing.T) {
	p := Policy{Name: "slow", Timeout: 10 * time.Millisecond}
	err := p.Do(context.Background(), func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	assert.ErrorIs(t, err, apperrors.ErrTimeout)
}

func TestPolicy_BackoffCapped(t *testing.T) {
	p := Policy{BaseDelay: time.Second, MaxDelay: 3 * time.Second}.withDefaults()
	for _, attempt := range []int{3, 10, 80} {
		d := p.backoff(attempt)
		assert.LessOrEqual(t, d, 3*time.Second)
		assert.GreaterOrEqual(t, d, time.Duration(float64(3*time.Second)*(1-jitterFraction)))
	}
	d := p.backoff(1)
	assert.InDelta(t, float64(time.Second), float64(d), float64(time.Second)*jitterFraction)
}

func TestBreaker_OpensAndRecovers(t *testing.T) {
	var transitions []string
	b := NewBreaker("redis", BreakerConfig{
		Threshold: 2,
		Cooldown:  20 * time.Millisecond,
		OnStateChange: func(name string, from, to State) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})

	fail := func() error { return errTransient }
	assert.ErrorIs(t, b.Do(fail), errTransient)
	assert.ErrorIs(t, b.Do(fail), errTransient)
	assert.Equal(t, StateOpen, b.State())
	assert.ErrorIs(t, b.Do(func() error { return nil }), ErrCircuitOpen)

	time.Sleep(30 * time.Millisecond)
	assert.NoError(t, b.Do(func() error { return nil }))
	assert.Equal(t, StateClosed, b.State())
	assert.Equal(t, []string{"closed->open", "open->half-open", "half-open->closed"}, transitions)
}

func TestBreaker_FailedTrialReopens(t *testing.T) {
	b := NewBreaker("redis", BreakerConfig{Threshold: 1, Cooldown: 10 * time.Millisecond})
	_ = b.Do(func() error { return errTransient })
	time.Sleep(15 * time.Millisecond)
	assert.ErrorIs(t, b.Do(func() error { return errTransient }), errTransient)
	assert.Equal(t, StateOpen, b.State())
	assert.ErrorIs(t, b.Do(func() error { return nil }), ErrCircuitOpen)
}

func TestBreaker_OneTrialAtATime(t *testing.T) {
	b := NewBreaker("redis", BreakerConfig{Threshold: 1, Cooldown: 5 * time.Millisecond})
	_ = b.Do(func() error { return errTransient })
	time.Sleep(10 * time.Millisecond)

	release := make(chan struct{})
	started := make(chan struct{})
	go func() {
		_ = b.Do(func() error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started
	assert.ErrorIs(t, b.Do(func() error { return nil }), ErrCircuitOpen)
	close(release)
	assert.Eventually(t, func() bool { return b.State() == StateClosed }, time.Second, time.Millisecond)
}

func TestBreaker_SuccessResetsFailureCount(t *testing.T) {
	b := NewBreaker("redis", BreakerConfig{Threshold: 2})
	_ = b.Do(func() error { return errTransient })
	_ = b.Do(func() error { return nil })
	_ = b.Do(func() error { return errTransient })
	assert.Equal(t, StateClosed, b.State())
}
