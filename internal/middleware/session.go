package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/chatify/internal/logger"
	"github.com/chatify/internal/service"
)

// Authenticator проверяет bearer-токен сессии.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (*service.Identity, error)
}

// BearerToken достаёт токен из Authorization: Bearer ... или ?token= (для WebSocket из браузера).
func BearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if scheme, token, ok := strings.Cut(h, " "); ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
	}
	return r.URL.Query().Get("token")
}

// SessionAuth пропускает запрос только с живой сессией; identity кладётся в контекст.
func SessionAuth(auth Authenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" {
				unauthorized(w)
				return
			}
			id, err := auth.Authenticate(r.Context(), token)
			if err != nil {
				if !errors.Is(err, service.ErrUnauthorized) {
					logger.Errorf("session middleware: %v", err)
				}
				unauthorized(w)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), id)))
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
}
