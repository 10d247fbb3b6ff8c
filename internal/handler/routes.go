package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Handlers - набор обработчиков API; Push и Config могут быть nil.
type Handlers struct {
	Auth     *AuthHandler
	Chats    *ChatHandler
	Messages *MessageHandler
	WS       *WSHandler
	Push     *PushHandler
	Config   *ConfigHandler
}

// Mount регистрирует маршруты API. requireSession проверяет токен сессии.
func (hs *Handlers) Mount(r chi.Router, requireSession func(http.Handler) http.Handler, perUser func(http.Handler) http.Handler) {
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK); w.Write([]byte("ok")) })
	if hs.Config != nil {
		r.Get("/api/config/push", hs.Config.GetPushConfig)
	}
	r.Post("/api/auth/register", hs.Auth.Register)
	r.Post("/api/auth/login", hs.Auth.Login)

	r.Group(func(r chi.Router) {
		r.Use(requireSession)
		if perUser != nil {
			r.Use(perUser)
		}
		r.Get("/api/auth/me", hs.Auth.Me)
		r.Post("/api/auth/logout", hs.Auth.Logout)

		r.Get("/api/chats", hs.Chats.List)
		r.Post("/api/chats", hs.Chats.Start)
		r.Get("/api/chats/{id}", hs.Chats.Get)
		r.Delete("/api/chats/{id}", hs.Chats.Delete)

		r.Get("/api/chats/{id}/messages", hs.Messages.List)
		r.Post("/api/chats/{id}/messages", hs.Messages.Send)
		r.Put("/api/chats/{id}/messages/{msgId}", hs.Messages.Edit)
		r.Delete("/api/chats/{id}/messages/{msgId}", hs.Messages.Delete)
		r.Post("/api/chats/{id}/read", hs.Messages.MarkRead)
		r.Get("/api/chats/{id}/timeline", hs.Messages.Timeline)

		if hs.Push != nil {
			r.Post("/api/push/subscribe", hs.Push.Subscribe)
			r.Delete("/api/push/subscribe", hs.Push.Unsubscribe)
		}
		if hs.WS != nil {
			r.Get("/ws", hs.WS.ServeWS)
		}
	})
}
