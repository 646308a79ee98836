package broadcast_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rsvpkit/wedding/pkg/broadcast"
)

func receive[T any](t *testing.T, sub broadcast.Subscriber[T]) (broadcast.Message[T], bool) {
	t.Helper()
	select {
	case msg, ok := <-sub.Receive():
		return msg, ok
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return broadcast.Message[T]{}, false
	}
}

func TestMemoryBroadcaster_FanOut(t *testing.T) {
	t.Parallel()

	b := broadcast.NewMemoryBroadcaster[string](4)
	defer b.Close()

	ctx := context.Background()
	s1 := b.Subscribe(ctx)
	s2 := b.Subscribe(ctx)
	require.Equal(t, 2, b.Len())

	require.NoError(t, b.Broadcast(ctx, broadcast.Message[string]{Data: "signed_in"}))

	for _, sub := range []broadcast.Subscriber[string]{s1, s2} {
		msg, ok := receive(t, sub)
		require.True(t, ok)
		assert.Equal(t, "signed_in", msg.Data)
	}
}

func TestMemoryBroadcaster_ContextScoped(t *testing.T) {
	t.Parallel()

	b := broadcast.NewMemoryBroadcaster[int](1)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	sub := b.Subscribe(ctx)
	require.Equal(t, 1, b.Len())

	cancel()
	_, ok := receive(t, sub)
	assert.False(t, ok, "channel closes after cancel")
	assert.Eventually(t, func() bool { return b.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestMemoryBroadcaster_ExplicitClose(t *testing.T) {
	t.Parallel()

	b := broadcast.NewMemoryBroadcaster[int](1)
	defer b.Close()

	sub := b.Subscribe(context.Background())
	require.NoError(t, sub.Close())
	require.NoError(t, sub.Close())

	assert.Eventually(t, func() bool { return b.Len() == 0 }, time.Second, 5*time.Millisecond)
}

func TestMemoryBroadcaster_DropsSlowSubscriber(t *testing.T) {
	t.Parallel()

	b := broadcast.NewMemoryBroadcaster[int](1)
	defer b.Close()

	ctx := context.Background()
	slow := b.Subscribe(ctx)

	require.NoError(t, b.Broadcast(ctx, broadcast.Message[int]{Data: 1}))
	require.NoError(t, b.Broadcast(ctx, broadcast.Message[int]{Data: 2}))

	msg, ok := receive(t, slow)
	require.True(t, ok)
	assert.Equal(t, 1, msg.Data)

	_, ok = receive(t, slow)
	assert.False(t, ok, "dropped subscriber is closed")
	assert.Equal(t, 0, b.Len())
}

func TestMemoryBroadcaster_Close(t *testing.T) {
	t.Parallel()

	b := broadcast.NewMemoryBroadcaster[int](1)
	sub := b.Subscribe(context.Background())

	require.NoError(t, b.Close())
	require.NoError(t, b.Close())

	_, ok := receive(t, sub)
	assert.False(t, ok)

	late := b.Subscribe(context.Background())
	_, ok = receive(t, late)
	assert.False(t, ok)
	assert.NoError(t, b.Broadcast(context.Background(), broadcast.Message[int]{Data: 1}))
}

func TestMemoryBroadcaster_Concurrent(t *testing.T) {
	t.Parallel()

	b := broadcast.NewMemoryBroadcaster[int](128)
	defer b.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sub := b.Subscribe(ctx)
			for range 10 {
				_ = b.Broadcast(ctx, broadcast.Message[int]{Data: 1})
			}
			_ = sub.Close()
		}()
	}
	wg.Wait()
	assert.Eventually(t, func() bool { return b.Len() == 0 }, time.Second, 5*time.Millisecond)
}
