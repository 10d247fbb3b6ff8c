package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/chatify/internal/logger"
	"github.com/redis/go-redis/v9"
)

// DefaultChannel - канал Redis pub/sub для событий между инстансами API.
const DefaultChannel = "chatify:events"

// RedisBus - шина поверх Redis pub/sub: каждый инстанс получает и свои, и чужие события.
type RedisBus struct {
	cli     *redis.Client
	channel string
}

func NewRedisBus(cli *redis.Client, channel string) *RedisBus {
	if channel == "" {
		channel = DefaultChannel
	}
	return &RedisBus{cli: cli, channel: channel}
}

func (b *RedisBus) Publish(ctx context.Context, ev Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("events.Publish marshal: %w", err)
	}
	if err := b.cli.Publish(ctx, b.channel, data).Err(); err != nil {
		return fmt.Errorf("events.Publish: %w", err)
	}
	return nil
}

func (b *RedisBus) Subscribe(ctx context.Context) <-chan Event {
	out := make(chan Event, subscriberBuffer)
	ps := b.cli.Subscribe(ctx, b.channel)
	go func() {
		defer close(out)
		defer ps.Close()
		msgs := ps.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					return
				}
				var ev Event
				if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
					logger.Errorf("events: bad payload on %s: %v", b.channel, err)
					continue
				}
				select {
				case out <- ev:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}

// Close не закрывает Redis-клиент: он общий с хранилищем сессий.
func (b *RedisBus) Close() error { return nil }
