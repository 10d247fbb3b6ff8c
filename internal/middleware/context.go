package middleware

import (
	"context"

	"github.com/chatify/internal/service"
)

type contextKey string

const identityKey contextKey = "identity"

// WithIdentity кладёт аутентифицированного пользователя в контекст (SessionAuth, тесты).
func WithIdentity(ctx context.Context, id *service.Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// GetIdentity возвращает пользователя запроса или nil.
func GetIdentity(ctx context.Context) *service.Identity {
	v, _ := ctx.Value(identityKey).(*service.Identity)
	return v
}

// GetUserID возвращает uid из контекста (устанавливается SessionAuth).
func GetUserID(ctx context.Context) string {
	if id := GetIdentity(ctx); id != nil {
		return id.UID
	}
	return ""
}

func GetSessionID(ctx context.Context) string {
	if id := GetIdentity(ctx); id != nil {
		return id.SessionID
	}
	return ""
}
