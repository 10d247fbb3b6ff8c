package memory

import (
	"context"
	"sync"
	"time"
)

const (
	loginRateLimitWindow = 600 * time.Second
	loginRateLimitMax    = 10
)

type item struct {
	val string
	exp time.Time
}

// Client - SessionStore в памяти процесса (для -dev и тестов).
type Client struct {
	mu       sync.RWMutex
	limit    map[string][]time.Time
	sessions map[string]item
	now      func() time.Time
}

func New() *Client {
	return &Client{
		limit:    make(map[string][]time.Time),
		sessions: make(map[string]item),
		now:      time.Now,
	}
}

func (c *Client) Close() error { return nil }

func (c *Client) SetSession(ctx context.Context, sessionID, uid string, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions[sessionID] = item{val: uid, exp: c.now().Add(ttl)}
	return nil
}

func (c *Client) GetSession(ctx context.Context, sessionID string) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.sessions[sessionID]
	if !ok || c.now().After(v.exp) {
		return "", nil
	}
	return v.val, nil
}

func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.sessions, sessionID)
	return nil
}

func (c *Client) CheckRateLimit(ctx context.Context, email string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	cut := now.Add(-loginRateLimitWindow)
	var kept []time.Time
	for _, t := range c.limit[email] {
		if t.After(cut) {
			kept = append(kept, t)
		}
	}
	if len(kept) >= loginRateLimitMax {
		c.limit[email] = kept
		return false, nil
	}
	c.limit[email] = append(kept, now)
	return true, nil
}
