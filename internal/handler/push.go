package handler

import (
	"net/http"

	"github.com/chatify/internal/logger"
	"github.com/chatify/internal/middleware"
	"github.com/chatify/internal/push"
)

// PushHandler обрабатывает подписку на пуш-уведомления (сессия обязательна).
type PushHandler struct {
	client *push.Client
}

func NewPushHandler(client *push.Client) *PushHandler {
	return &PushHandler{client: client}
}

type SubscribeRequest struct {
	Subscription push.Subscription `json:"subscription"`
}

type UnsubscribeRequest struct {
	Endpoint string `json:"endpoint"`
}

// Subscribe сохраняет подписку на push-сервисе для email текущего пользователя.
func (h *PushHandler) Subscribe(w http.ResponseWriter, r *http.Request) {
	if !h.client.Enabled() {
		writeError(w, http.StatusServiceUnavailable, "push notifications disabled")
		return
	}
	var req SubscribeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	sub := req.Subscription
	if sub.Endpoint == "" || sub.Keys.P256dh == "" || sub.Keys.Auth == "" {
		writeError(w, http.StatusBadRequest, "subscription.endpoint and subscription.keys required")
		return
	}
	id := middleware.GetIdentity(r.Context())
	if err := h.client.Subscribe(r.Context(), id.Email, sub); err != nil {
		logger.Errorf("push subscribe user=%s: %v", middleware.MaskEmail(id.Email), err)
		writeError(w, http.StatusBadGateway, "failed to subscribe")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *PushHandler) Unsubscribe(w http.ResponseWriter, r *http.Request) {
	if !h.client.Enabled() {
		writeError(w, http.StatusServiceUnavailable, "push notifications disabled")
		return
	}
	var req UnsubscribeRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Endpoint == "" {
		writeError(w, http.StatusBadRequest, "endpoint required")
		return
	}
	id := middleware.GetIdentity(r.Context())
	if err := h.client.Unsubscribe(r.Context(), id.Email, req.Endpoint); err != nil {
		logger.Errorf("push unsubscribe user=%s: %v", middleware.MaskEmail(id.Email), err)
		writeError(w, http.StatusBadGateway, "failed to unsubscribe")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
