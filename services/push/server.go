package main

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/go-chi/chi/v5"

	"github.com/chatify/internal/logger"
	"github.com/chatify/internal/middleware"
	"github.com/chatify/internal/push"
)

type sendFunc func(ctx context.Context, payload []byte, sub *webpush.Subscription, opts *webpush.Options) (*http.Response, error)

type Server struct {
	subs      Subscriptions
	vapid     *webpush.Options
	publicKey string
	send      sendFunc
}

func NewServer(subs Subscriptions, vapid *webpush.Options, publicKey string) *Server {
	return &Server{subs: subs, vapid: vapid, publicKey: publicKey, send: webpush.SendNotificationWithContext}
}

func (s *Server) Routes(r chi.Router) {
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK); w.Write([]byte("ok")) })
	r.Get("/api/vapid-public", s.handleVAPIDPublic)
	r.Route("/api", func(r chi.Router) {
		r.Post("/subscribe", s.handleSubscribe)
		r.Delete("/subscribe", s.handleUnsubscribe)
		r.Post("/notify", s.handleNotify)
	})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func (s *Server) handleVAPIDPublic(w http.ResponseWriter, r *http.Request) {
	if s.publicKey == "" {
		writeError(w, http.StatusServiceUnavailable, "push not configured")
		return
	}
	w.Header().Set("Content-Type", "text/plain")
	w.Write([]byte(s.publicKey))
}

func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	var req push.SubscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	sub := req.Subscription
	if req.Email == "" || sub.Endpoint == "" || sub.Keys.P256dh == "" || sub.Keys.Auth == "" {
		writeError(w, http.StatusBadRequest, "email and subscription (endpoint, keys.p256dh, keys.auth) required")
		return
	}
	if err := s.subs.Add(r.Context(), req.Email, sub); err != nil {
		logger.Errorf("subscribe user=%s: %v", middleware.MaskEmail(req.Email), err)
		writeError(w, http.StatusInternalServerError, "failed to save subscription")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	var req push.UnsubscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" || req.Endpoint == "" {
		writeError(w, http.StatusBadRequest, "email and endpoint required")
		return
	}
	if err := s.subs.Remove(r.Context(), req.Email, req.Endpoint); err != nil {
		logger.Errorf("unsubscribe user=%s: %v", middleware.MaskEmail(req.Email), err)
		writeError(w, http.StatusInternalServerError, "failed to remove subscription")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleNotify рассылает уведомление всем подпискам; подписки, на которые
// push-сервис ответил 404/410, удаляются.
func (s *Server) handleNotify(w http.ResponseWriter, r *http.Request) {
	var req push.NotifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	req.Email = strings.TrimSpace(req.Email)
	if req.Email == "" {
		writeError(w, http.StatusBadRequest, "email required")
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()
	subs, err := s.subs.List(ctx, req.Email)
	if err != nil {
		logger.Errorf("notify user=%s: %v", middleware.MaskEmail(req.Email), err)
		writeError(w, http.StatusInternalServerError, "failed to get subscriptions")
		return
	}
	if s.vapid == nil || len(subs) == 0 {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	payload, _ := json.Marshal(map[string]any{"title": req.Title, "body": req.Body, "data": req.Data})
	for _, sub := range subs {
		wpSub := &webpush.Subscription{
			Endpoint: sub.Endpoint,
			Keys:     webpush.Keys{P256dh: sub.Keys.P256dh, Auth: sub.Keys.Auth},
		}
		resp, err := s.send(ctx, payload, wpSub, s.vapid)
		if err != nil {
			logger.Errorf("send %s: %v", sub.Endpoint[:min(50, len(sub.Endpoint))], err)
			continue
		}
		resp.Body.Close()
		if resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound {
			if err := s.subs.Remove(ctx, req.Email, sub.Endpoint); err != nil {
				logger.Errorf("drop stale subscription: %v", err)
			}
		}
	}
	w.WriteHeader(http.StatusNoContent)
}
