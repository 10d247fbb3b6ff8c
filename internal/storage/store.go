package storage

import (
	"context"
	"time"
)

// SessionStore - активные сессии (session id -> uid) и rate limit попыток входа.
// Реализации: redis.Client, memory.Client, devstore.Client (для -dev без Redis).
type SessionStore interface {
	SetSession(ctx context.Context, sessionID, uid string, ttl time.Duration) error
	// GetSession возвращает uid сессии или "" если сессии нет (истекла/удалена).
	GetSession(ctx context.Context, sessionID string) (string, error)
	DeleteSession(ctx context.Context, sessionID string) error
	CheckRateLimit(ctx context.Context, email string) (allowed bool, err error)
	Close() error
}
