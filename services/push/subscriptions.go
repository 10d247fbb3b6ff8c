package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chatify/internal/model"
	"github.com/chatify/internal/push"
	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix  = "push:subs:"
	maxSubsPerUser  = 10
	subscriptionTTL = 30 * 24 * time.Hour
)

// Subscriptions хранит подписки пользователя (по email).
type Subscriptions interface {
	Add(ctx context.Context, email string, sub push.Subscription) error
	Remove(ctx context.Context, email, endpoint string) error
	List(ctx context.Context, email string) ([]push.Subscription, error)
}

type redisSubscriptions struct {
	rdb *redis.Client
}

func newRedisSubscriptions(rdb *redis.Client) *redisSubscriptions {
	return &redisSubscriptions{rdb: rdb}
}

func subsKey(email string) string { return redisKeyPrefix + model.NormalizeEmail(email) }

// Add дописывает подписку; хранятся только последние maxSubsPerUser.
func (s *redisSubscriptions) Add(ctx context.Context, email string, sub push.Subscription) error {
	raw, err := json.Marshal(sub)
	if err != nil {
		return fmt.Errorf("encode subscription: %w", err)
	}
	key := subsKey(email)
	if err := s.rdb.LRem(ctx, key, 0, string(raw)).Err(); err != nil {
		return err
	}
	pipe := s.rdb.TxPipeline()
	pipe.RPush(ctx, key, string(raw))
	pipe.LTrim(ctx, key, -maxSubsPerUser, -1)
	pipe.Expire(ctx, key, subscriptionTTL)
	_, err = pipe.Exec(ctx)
	return err
}

// Remove пересобирает список без endpoint в одной MULTI-транзакции.
func (s *redisSubscriptions) Remove(ctx context.Context, email, endpoint string) error {
	key := subsKey(email)
	list, err := s.rdb.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return err
	}
	kept := make([]any, 0, len(list))
	for _, item := range list {
		var sub push.Subscription
		if json.Unmarshal([]byte(item), &sub) == nil && sub.Endpoint != endpoint {
			kept = append(kept, item)
		}
	}
	pipe := s.rdb.TxPipeline()
	pipe.Del(ctx, key)
	if len(kept) > 0 {
		pipe.RPush(ctx, key, kept...)
		pipe.Expire(ctx, key, subscriptionTTL)
	}
	_, err = pipe.Exec(ctx)
	return err
}

func (s *redisSubscriptions) List(ctx context.Context, email string) ([]push.Subscription, error) {
	list, err := s.rdb.LRange(ctx, subsKey(email), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	subs := make([]push.Subscription, 0, len(list))
	for _, item := range list {
		var sub push.Subscription
		if json.Unmarshal([]byte(item), &sub) == nil && sub.Endpoint != "" {
			subs = append(subs, sub)
		}
	}
	return subs, nil
}
