package events

import (
	"context"
	"sync"

	"github.com/chatify/internal/logger"
)

const subscriberBuffer = 256

// MemoryBus - шина в памяти процесса (один инстанс API, -dev, тесты).
type MemoryBus struct {
	mu     sync.RWMutex
	subs   map[chan Event]struct{}
	closed bool
}

func NewMemoryBus() *MemoryBus {
	return &MemoryBus{subs: make(map[chan Event]struct{})}
}

// Publish рассылает событие всем подписчикам без блокировки: переполненный подписчик теряет событие.
func (b *MemoryBus) Publish(ctx context.Context, ev Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subs {
		select {
		case ch <- ev:
		default:
			logger.Errorf("events: subscriber buffer full, dropped %s", ev.Kind)
		}
	}
	return nil
}

func (b *MemoryBus) Subscribe(ctx context.Context) <-chan Event {
	ch := make(chan Event, subscriberBuffer)
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch
	}
	b.subs[ch] = struct{}{}
	b.mu.Unlock()

	go func() {
		<-ctx.Done()
		b.mu.Lock()
		if _, ok := b.subs[ch]; ok {
			delete(b.subs, ch)
			close(ch)
		}
		b.mu.Unlock()
	}()
	return ch
}

func (b *MemoryBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	for ch := range b.subs {
		delete(b.subs, ch)
		close(ch)
	}
	return nil
}
