package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Rate limit входа: 10 попыток / 10 минут на email.
const (
	LoginRateLimitWindow = 600 // 10 минут
	LoginRateLimitMax    = 10
)

type Client struct {
	cli *redis.Client
}

func New(ctx context.Context, url string) (*Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis parse url: %w", err)
	}
	cli := redis.NewClient(opts)
	if err := cli.Ping(ctx).Err(); err != nil {
		if closeErr := cli.Close(); closeErr != nil {
			return nil, fmt.Errorf("redis ping: %w (close: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Client{cli: cli}, nil
}

// Wrap использует уже подключённый клиент (общий с шиной событий).
func Wrap(cli *redis.Client) *Client {
	return &Client{cli: cli}
}

func (c *Client) Close() error {
	return c.cli.Close()
}

// Redis возвращает нижележащий клиент (для pub/sub шины событий).
func (c *Client) Redis() *redis.Client {
	return c.cli
}

// SetSession сохраняет session:{id} -> uid с TTL сессии.
func (c *Client) SetSession(ctx context.Context, sessionID, uid string, ttl time.Duration) error {
	return c.cli.Set(ctx, "session:"+sessionID, uid, ttl).Err()
}

func (c *Client) GetSession(ctx context.Context, sessionID string) (string, error) {
	val, err := c.cli.Get(ctx, "session:"+sessionID).Result()
	if err == redis.Nil {
		return "", nil
	}
	return val, err
}

func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	return c.cli.Del(ctx, "session:"+sessionID).Err()
}

// CheckRateLimit проверяет login_limit:{email}: макс. LoginRateLimitMax попыток за окно. При превышении - HTTP 429.
func (c *Client) CheckRateLimit(ctx context.Context, email string) (allowed bool, err error) {
	key := "login_limit:" + email
	n, err := c.cli.Incr(ctx, key).Result()
	if err != nil {
		return false, err
	}
	if n == 1 {
		c.cli.Expire(ctx, key, LoginRateLimitWindow*time.Second)
	}
	return n <= int64(LoginRateLimitMax), nil
}
