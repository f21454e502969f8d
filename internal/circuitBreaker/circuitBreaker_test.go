package circuitBreaker

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

func TestBreakerOpensAfterThreshold(t *testing.T) {
	clock := clockwork.NewFakeClock()
	b := New("test", 3, 10*time.Second, clock)

	for i := 0; i < 2; i++ {
		require.True(t, b.Allow())
		b.RecordFailure()
		require.Equal(t, StatusClosed, b.State().Status)
	}

	require.True(t, b.Allow())
	b.RecordFailure()

	state := b.State()
	require.Equal(t, StatusOpen, state.Status)
	require.Equal(t, 3, state.ConsecutiveFailures)
	require.False(t, b.Allow())
}

func TestBreakerSuccessResetsFailures(t *testing.T) {
	b := New("test", 3, time.Second, clockwork.NewFakeClock())

	b.RecordFailure()
	b.RecordFailure()
	b.RecordSuccess()
	b.RecordFailure()
	b.RecordFailure()

	require.Equal(t, StatusClosed, b.State().Status)
	require.Equal(t, 2, b.State().ConsecutiveFailures)
}

func TestBreakerHalfOpenAllowsSingleTrial(t *testing.T) {
	clock := clockwork.NewFakeClock()
	b := New("test", 1, 10*time.Second, clock)

	b.RecordFailure()
	require.False(t, b.Allow())

	clock.Advance(9 * time.Second)
	require.False(t, b.Allow())

	clock.Advance(time.Second)
	require.True(t, b.Allow())
	require.Equal(t, StatusHalfOpen, b.State().Status)
	require.False(t, b.Allow(), "only one trial call is permitted")

	b.RecordSuccess()
	state := b.State()
	require.Equal(t, StatusClosed, state.Status)
	require.Zero(t, state.ConsecutiveFailures)
	require.True(t, b.Allow())
}

func TestBreakerHalfOpenFailureRestartsTimer(t *testing.T) {
	clock := clockwork.NewFakeClock()
	b := New("test", 1, 10*time.Second, clock)

	b.RecordFailure()
	clock.Advance(10 * time.Second)
	require.True(t, b.Allow())

	b.RecordFailure()
	state := b.State()
	require.Equal(t, StatusOpen, state.Status)
	require.Equal(t, clock.Now(), state.LastTransitionAt)

	clock.Advance(5 * time.Second)
	require.False(t, b.Allow())

	clock.Advance(5 * time.Second)
	require.True(t, b.Allow())
}

func TestBreakerConcurrentHalfOpenAdmitsOne(t *testing.T) {
	clock := clockwork.NewFakeClock()
	b := New("test", 1, time.Second, clock)
	b.RecordFailure()
	clock.Advance(time.Second)

	var allowed atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if b.Allow() {
				allowed.Add(1)
			}
		}()
	}
	wg.Wait()

	require.EqualValues(t, 1, allowed.Load())
}

func TestBreakerConcurrentFailuresCounted(t *testing.T) {
	b := New("test", 1000, time.Second, clockwork.NewFakeClock())

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.RecordFailure()
		}()
	}
	wg.Wait()

	require.Equal(t, 100, b.State().ConsecutiveFailures)
}
