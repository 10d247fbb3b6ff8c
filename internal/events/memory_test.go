package events

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recv(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "channel closed")
		return ev
	case <-time.After(time.Second):
		t.Fatal("no event")
	}
	return Event{}
}

func TestMemoryBusFanOut(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	bus := NewMemoryBus()
	a := bus.Subscribe(ctx)
	b := bus.Subscribe(ctx)

	require.NoError(t, bus.Publish(ctx, Messages("a_b", "a", "b")))
	for _, ch := range []<-chan Event{a, b} {
		ev := recv(t, ch)
		assert.Equal(t, KindMessages, ev.Kind)
		assert.Equal(t, "a_b", ev.ChatID)
		assert.Equal(t, []string{"a", "b"}, ev.Emails)
	}
}

func TestMemoryBusUnsubscribeOnCancel(t *testing.T) {
	bus := NewMemoryBus()
	ctx, cancel := context.WithCancel(context.Background())
	ch := bus.Subscribe(ctx)
	cancel()

	select {
	case _, ok := <-ch:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("subscription not closed")
	}
	require.NoError(t, bus.Publish(context.Background(), Chats("a")))
}

func TestMemoryBusClose(t *testing.T) {
	bus := NewMemoryBus()
	ch := bus.Subscribe(context.Background())
	require.NoError(t, bus.Close())
	_, ok := <-ch
	assert.False(t, ok)

	late := bus.Subscribe(context.Background())
	_, ok = <-late
	assert.False(t, ok)
}
