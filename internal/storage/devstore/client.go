package devstore

import (
	"context"
	"errors"
	"time"

	"github.com/chatify/internal/repository"
	"github.com/chatify/internal/storage/memory"
)

// Client реализует SessionStore для режима -dev: rate limit в памяти,
// сессии читаются из БД - переживают перезапуск API.
type Client struct {
	mem  *memory.Client
	repo *repository.SessionRepository
}

func New(repo *repository.SessionRepository) *Client {
	return &Client{mem: memory.New(), repo: repo}
}

func (c *Client) Close() error { return c.mem.Close() }

func (c *Client) CheckRateLimit(ctx context.Context, email string) (bool, error) {
	return c.mem.CheckRateLimit(ctx, email)
}

// SetSession - строка sessions уже создана сервисом авторизации; кэшируем в памяти.
func (c *Client) SetSession(ctx context.Context, sessionID, uid string, ttl time.Duration) error {
	return c.mem.SetSession(ctx, sessionID, uid, ttl)
}

func (c *Client) GetSession(ctx context.Context, sessionID string) (string, error) {
	if uid, _ := c.mem.GetSession(ctx, sessionID); uid != "" {
		return uid, nil
	}
	s, err := c.repo.GetByID(ctx, sessionID)
	if errors.Is(err, repository.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	if ttl := time.Until(s.ExpiresAt); ttl > 0 {
		_ = c.mem.SetSession(ctx, sessionID, s.UserID, ttl)
	}
	return s.UserID, nil
}

func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	return c.mem.DeleteSession(ctx, sessionID)
}
