package handler

import (
	"net/http"
	"time"

	"github.com/chatify/internal/middleware"
	"github.com/chatify/internal/service"
	"github.com/go-chi/chi/v5"
)

type MessageHandler struct {
	messages *service.MessageService
}

func NewMessageHandler(messages *service.MessageService) *MessageHandler {
	return &MessageHandler{messages: messages}
}

type TextRequest struct {
	Text string `json:"text"`
}

func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	id := middleware.GetIdentity(r.Context())
	msgs, err := h.messages.List(r.Context(), id.Email, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, "list messages", err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

// MarkRead отмечает прочитанными сообщения собеседника.
func (h *MessageHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	id := middleware.GetIdentity(r.Context())
	n, err := h.messages.MarkRead(r.Context(), id.Email, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, "mark read", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"marked": n})
}

func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	var req TextRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	id := middleware.GetIdentity(r.Context())
	msg, err := h.messages.Send(r.Context(), id.Principal, chi.URLParam(r, "id"), req.Text)
	if err != nil {
		writeServiceError(w, "send message", err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (h *MessageHandler) Edit(w http.ResponseWriter, r *http.Request) {
	var req TextRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	id := middleware.GetIdentity(r.Context())
	msg, err := h.messages.Edit(r.Context(), id.Email, chi.URLParam(r, "id"), chi.URLParam(r, "msgId"), req.Text)
	if err != nil {
		writeServiceError(w, "edit message", err)
		return
	}
	writeJSON(w, http.StatusOK, msg)
}

func (h *MessageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := middleware.GetIdentity(r.Context())
	if err := h.messages.Delete(r.Context(), id.Email, chi.URLParam(r, "id"), chi.URLParam(r, "msgId")); err != nil {
		writeServiceError(w, "delete message", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Timeline - лента с разделителями дней и статусами прочтения; ?tz=Europe/Moscow, по умолчанию UTC.
func (h *MessageHandler) Timeline(w http.ResponseWriter, r *http.Request) {
	loc := time.UTC
	if tz := r.URL.Query().Get("tz"); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			writeError(w, http.StatusBadRequest, "unknown time zone")
			return
		}
		loc = l
	}
	id := middleware.GetIdentity(r.Context())
	items, err := h.messages.Timeline(r.Context(), id.Email, chi.URLParam(r, "id"), loc)
	if err != nil {
		writeServiceError(w, "timeline", err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}
