package failsafe

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestController_RaiseStartsPolling(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var polls atomic.Int32
	c := New(ctx, func(context.Context) { polls.Add(1) }, 5*time.Millisecond)

	c.Raise(ReasonFeedDown, "disconnected", false)
	assert.True(t, c.Active())

	require.Eventually(t, func() bool { return polls.Load() >= 3 }, time.Second, time.Millisecond)

	c.Clear(ReasonFeedDown)
	assert.False(t, c.Active())
	c.Wait()

	n := polls.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, n, polls.Load(), "no polls after the loop exits")
}

func TestController_StaysActiveWhileAnyReason(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := New(ctx, func(context.Context) {}, time.Millisecond)
	c.Raise(ReasonNoFeed, "", true)
	c.Raise(ReasonFeedDown, "connect error", false)

	c.Clear(ReasonFeedDown)
	assert.True(t, c.Active())
	assert.Equal(t, []Reason{ReasonNoFeed}, c.Reasons())

	c.Clear(ReasonNoFeed)
	assert.False(t, c.Active())
	c.Wait()
}

func TestController_ClearUnknownReasonIsNoop(t *testing.T) {
	c := New(context.Background(), func(context.Context) {}, time.Millisecond)
	var calls atomic.Int32
	c.Subscribe(func(bool) { calls.Add(1) })

	c.Clear(ReasonFeedDown)

	assert.False(t, c.Active())
	assert.Zero(t, calls.Load())
}

func TestController_NeverTwoLoops(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		running atomic.Int32
		overlap atomic.Bool
		polls   atomic.Int32
	)
	c := New(ctx, func(context.Context) {
		if running.Add(1) > 1 {
			overlap.Store(true)
		}
		time.Sleep(2 * time.Millisecond)
		polls.Add(1)
		running.Add(-1)
	}, time.Millisecond)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Raise(ReasonFeedDown, "flap", true)
			c.Clear(ReasonFeedDown)
			c.Raise(ReasonFeedDown, "flap", true)
		}()
	}
	wg.Wait()

	require.Eventually(t, func() bool { return polls.Load() >= 2 }, time.Second, time.Millisecond)
	c.Clear(ReasonFeedDown)
	c.Wait()

	assert.False(t, overlap.Load())
}

func TestController_SubscribeSeesTransitions(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu  sync.Mutex
		got []bool
	)
	c := New(ctx, func(context.Context) {}, time.Millisecond)
	c.Subscribe(func(active bool) {
		mu.Lock()
		got = append(got, active)
		mu.Unlock()
	})

	c.Raise(ReasonFeedDown, "", true)
	c.Raise(ReasonNoFeed, "", true)
	c.Clear(ReasonFeedDown)
	c.Clear(ReasonNoFeed)
	c.Wait()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []bool{true, false}, got)
}

func TestController_ContextStopsLoop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	c := New(ctx, func(context.Context) {}, time.Hour)

	c.Raise(ReasonNoFeed, "", true)
	cancel()

	done := make(chan struct{})
	go func() {
		c.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("loop did not stop on context cancel")
	}
}
