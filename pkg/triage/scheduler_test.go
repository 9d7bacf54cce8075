package triage

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func drainingFlush(b *Buffer, count *atomic.Int32) FlushFunc {
	return func(_ context.Context, key ConversationKey) {
		if _, ok := b.Drain(key); ok {
			count.Add(1)
		}
	}
}

func TestEnsureScheduledIsIdempotent(t *testing.T) {
	b := NewBuffer()
	var flushes atomic.Int32
	s := NewScheduler(context.Background(), b, 50*time.Millisecond, 5, drainingFlush(b, &flushes), nil)
	key := ConversationKey{ChannelID: "C1", SenderID: "U1"}

	b.Append(key, BufferedMessage{Text: "a", Arrival: time.Now()})
	assert.True(t, s.EnsureScheduled(key))
	b.Append(key, BufferedMessage{Text: "b", Arrival: time.Now()})
	assert.False(t, s.EnsureScheduled(key))
	assert.False(t, s.EnsureScheduled(key))
	assert.Equal(t, 1, s.Pending())

	require.Eventually(t, func() bool { return flushes.Load() == 1 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return !s.HasPending(key) }, time.Second, 5*time.Millisecond)

	time.Sleep(100 * time.Millisecond)
	assert.EqualValues(t, 1, flushes.Load(), "one episode, one flush")
}

func TestTimerDueFromFirstArrival(t *testing.T) {
	b := NewBuffer()
	var flushes atomic.Int32
	window := 200 * time.Millisecond
	s := NewScheduler(context.Background(), b, window, 5, drainingFlush(b, &flushes), nil)
	key := ConversationKey{ChannelID: "C1", SenderID: "U1"}

	// first message arrived most of a window ago
	b.Append(key, BufferedMessage{Text: "a", Arrival: time.Now().Add(-180 * time.Millisecond)})
	start := time.Now()
	require.True(t, s.EnsureScheduled(key))

	require.Eventually(t, func() bool { return flushes.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Less(t, time.Since(start), window, "timer counts from the first arrival, not from scheduling")
}

func TestTriggerFlushesBeforeWindow(t *testing.T) {
	b := NewBuffer()
	var flushes atomic.Int32
	s := NewScheduler(context.Background(), b, time.Hour, 2, drainingFlush(b, &flushes), nil)
	key := ConversationKey{ChannelID: "C1", SenderID: "U1"}

	b.Append(key, BufferedMessage{Text: "a", Arrival: time.Now()})
	s.EnsureScheduled(key)
	b.Append(key, BufferedMessage{Text: "b", Arrival: time.Now()})
	assert.True(t, s.Trigger(key))
	assert.False(t, s.Trigger(key), "a timer only fires once")

	require.Eventually(t, func() bool { return flushes.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.False(t, s.HasPending(key))
}

func TestTriggerWithoutPendingTimer(t *testing.T) {
	b := NewBuffer()
	s := NewScheduler(context.Background(), b, time.Hour, 2, func(context.Context, ConversationKey) {}, nil)
	assert.False(t, s.Trigger(ConversationKey{ChannelID: "C1", SenderID: "U1"}))
}

func TestTimerReleasedWhenFlushPanics(t *testing.T) {
	b := NewBuffer()
	var calls atomic.Int32
	s := NewScheduler(context.Background(), b, 10*time.Millisecond, 5, func(_ context.Context, key ConversationKey) {
		calls.Add(1)
		b.Drain(key)
		panic("classifier exploded")
	}, nil)
	key := ConversationKey{ChannelID: "C1", SenderID: "U1"}

	b.Append(key, BufferedMessage{Text: "a", Arrival: time.Now()})
	s.EnsureScheduled(key)
	require.Eventually(t, func() bool { return calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	require.Eventually(t, func() bool { return !s.HasPending(key) }, time.Second, 5*time.Millisecond)

	b.Append(key, BufferedMessage{Text: "b", Arrival: time.Now()})
	assert.True(t, s.EnsureScheduled(key), "a fresh episode can be scheduled")
	require.Eventually(t, func() bool { return calls.Load() == 2 }, time.Second, 5*time.Millisecond)
}

func TestIneligibleFireRearms(t *testing.T) {
	frozen := time.Now()
	b := NewBuffer()
	var flushes atomic.Int32
	// The frozen clock never advances, so the window never elapses by clock time.
	s := NewScheduler(context.Background(), b, 20*time.Millisecond, 5, drainingFlush(b, &flushes), func() time.Time { return frozen })
	key := ConversationKey{ChannelID: "C1", SenderID: "U1"}

	b.Append(key, BufferedMessage{Text: "a", Arrival: frozen})
	s.EnsureScheduled(key)

	time.Sleep(100 * time.Millisecond)
	assert.Zero(t, flushes.Load())
	_, size, ok := b.Peek(key)
	assert.True(t, ok)
	assert.Equal(t, 1, size)
	assert.True(t, s.HasPending(key), "a young buffer keeps a timer")

	s.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, s.Wait(ctx))
}

func TestAppendRacingFireIsFlushed(t *testing.T) {
	window := 50 * time.Millisecond
	b := NewBuffer()
	key := ConversationKey{ChannelID: "C1", SenderID: "U1"}

	var (
		mu      sync.Mutex
		drained []string
		calls   atomic.Int32
		s       *Scheduler
	)
	// The first flush behaves like two Handle calls racing it: one message lands just
	// before the drain, another right after it.
	flush := func(_ context.Context, k ConversationKey) {
		first := calls.Add(1) == 1
		if first {
			b.Append(k, BufferedMessage{Text: "m2", Arrival: time.Now()})
			s.EnsureScheduled(k)
		}
		msgs, ok := b.Drain(k)
		if ok {
			mu.Lock()
			for _, m := range msgs {
				drained = append(drained, m.Text)
			}
			mu.Unlock()
		}
		if first {
			b.Append(k, BufferedMessage{Text: "m3", Arrival: time.Now()})
			s.EnsureScheduled(k)
		}
	}
	s = NewScheduler(context.Background(), b, window, 5, flush, nil)

	b.Append(key, BufferedMessage{Text: "m1", Arrival: time.Now()})
	require.True(t, s.EnsureScheduled(key))

	require.Eventually(t, func() bool {
		mu.Lock()
		n := len(drained)
		mu.Unlock()
		return n == 3
	}, 20*window, 5*time.Millisecond, "every message reaches a flush")
	require.Eventually(t, func() bool { return !s.HasPending(key) }, 20*window, 5*time.Millisecond)

	_, _, buffered := b.Peek(key)
	assert.False(t, buffered)
	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []string{"m1", "m2", "m3"}, drained)
}

func TestFireOnDrainedBufferIsNoop(t *testing.T) {
	b := NewBuffer()
	var flushes atomic.Int32
	s := NewScheduler(context.Background(), b, 10*time.Millisecond, 5, drainingFlush(b, &flushes), nil)
	key := ConversationKey{ChannelID: "C1", SenderID: "U1"}

	b.Append(key, BufferedMessage{Text: "a", Arrival: time.Now()})
	s.EnsureScheduled(key)
	b.Drain(key)

	require.Eventually(t, func() bool { return !s.HasPending(key) }, time.Second, 5*time.Millisecond)
	assert.Zero(t, flushes.Load())
}

func TestStopAbandonsUnfiredTimers(t *testing.T) {
	b := NewBuffer()
	var flushes atomic.Int32
	s := NewScheduler(context.Background(), b, time.Hour, 5, drainingFlush(b, &flushes), nil)

	for _, sender := range []string{"U1", "U2"} {
		key := ConversationKey{ChannelID: "C1", SenderID: sender}
		b.Append(key, BufferedMessage{Text: "a", Arrival: time.Now()})
		s.EnsureScheduled(key)
	}

	assert.Equal(t, 2, s.Stop())
	assert.Equal(t, 0, s.Pending())
	assert.False(t, s.EnsureScheduled(ConversationKey{ChannelID: "C1", SenderID: "U3"}))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, s.Wait(ctx))
	assert.Zero(t, flushes.Load())
}
