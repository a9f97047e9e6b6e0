package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errLink = errors.New("link down")

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestBreaker(clock *fakeClock, trip uint32, transitions *[]string) *Breaker {
	return New("bus", Settings{
		MaxProbes: 2,
		Timeout:   time.Second,
		ReadyToTrip: func(counts Counts) bool {
			return counts.ConsecutiveFailures >= trip
		},
		OnStateChange: func(_ string, from, to State) {
			if transitions != nil {
				*transitions = append(*transitions, from.String()+"->"+to.String())
			}
		},
		Now: clock.Now,
	})
}

func fail() error    { return errLink }
func succeed() error { return nil }

func TestBreakerStateTransitions(t *testing.T) {
	tests := []struct {
		name          string
		calls         []func() error
		expectedState State
	}{
		{
			name:          "stays closed on successes",
			calls:         []func() error{succeed, succeed, succeed},
			expectedState: StateClosed,
		},
		{
			name:          "success resets the failure streak",
			calls:         []func() error{fail, fail, succeed, fail, fail},
			expectedState: StateClosed,
		},
		{
			name:          "opens after consecutive failures",
			calls:         []func() error{fail, fail, fail},
			expectedState: StateOpen,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := &fakeClock{now: time.Unix(0, 0)}
			breaker := newTestBreaker(clock, 3, nil)

			for _, call := range tt.calls {
				_ = breaker.Do(call)
			}

			assert.Equal(t, tt.expectedState, breaker.State())
		})
	}
}

func TestBreakerFailsFastWhenOpen(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	breaker := newTestBreaker(clock, 1, nil)

	require.ErrorIs(t, breaker.Do(fail), errLink)

	called := false
	err := breaker.Do(func() error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called)
}

func TestBreakerRecovers(t *testing.T) {
	var transitions []string
	clock := &fakeClock{now: time.Unix(0, 0)}
	breaker := newTestBreaker(clock, 1, &transitions)

	_ = breaker.Do(fail)
	clock.Advance(2 * time.Second)
	assert.Equal(t, StateHalfOpen, breaker.State())

	require.NoError(t, breaker.Do(succeed))
	assert.Equal(t, StateHalfOpen, breaker.State())
	require.NoError(t, breaker.Do(succeed))
	assert.Equal(t, StateClosed, breaker.State())

	assert.Equal(t, []string{"closed->open", "open->half-open", "half-open->closed"}, transitions)
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	breaker := newTestBreaker(clock, 1, nil)

	_ = breaker.Do(fail)
	clock.Advance(2 * time.Second)

	assert.ErrorIs(t, breaker.Do(fail), errLink)
	assert.Equal(t, StateOpen, breaker.State())
}

func TestBreakerIgnoresCancellation(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	breaker := newTestBreaker(clock, 1, nil)

	err := breaker.Do(func() error { return context.Canceled })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateClosed, breaker.State())
	assert.Equal(t, uint32(1), breaker.Counts().TotalSuccesses)
}

func TestBreakerIntervalClearsCounts(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	breaker := New("bus", Settings{Interval: time.Minute, Now: clock.Now})

	_ = breaker.Do(fail)
	assert.Equal(t, uint32(1), breaker.Counts().TotalFailures)

	clock.Advance(2 * time.Minute)
	assert.Equal(t, StateClosed, breaker.State())
	assert.Equal(t, Counts{}, breaker.Counts())
}

func TestBreakerPanicCountsAsFailure(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	breaker := newTestBreaker(clock, 1, nil)

	assert.Panics(t, func() {
		_ = breaker.Do(func() error { panic("boom") })
	})
	assert.Equal(t, StateOpen, breaker.State())
}
