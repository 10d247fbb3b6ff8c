package handler

import (
	"net/http"

	"github.com/chatify/internal/middleware"
	"github.com/chatify/internal/service"
	"github.com/go-chi/chi/v5"
)

type ChatHandler struct {
	chats *service.ChatService
}

func NewChatHandler(chats *service.ChatService) *ChatHandler {
	return &ChatHandler{chats: chats}
}

type StartChatRequest struct {
	Email string `json:"email"`
}

// List - чаты пользователя, новые сверху; ?q= фильтрует по имени собеседника и email.
func (h *ChatHandler) List(w http.ResponseWriter, r *http.Request) {
	id := middleware.GetIdentity(r.Context())
	chats, err := h.chats.List(r.Context(), id.Email, r.URL.Query().Get("q"))
	if err != nil {
		writeServiceError(w, "list chats", err)
		return
	}
	writeJSON(w, http.StatusOK, chats)
}

// Start находит или создаёт чат с пользователем по email: 201 новый, 200 существующий.
func (h *ChatHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req StartChatRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	id := middleware.GetIdentity(r.Context())
	chat, created, err := h.chats.Start(r.Context(), id.Principal, req.Email)
	if err != nil {
		writeServiceError(w, "start chat", err)
		return
	}
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, chat)
}

func (h *ChatHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := middleware.GetIdentity(r.Context())
	chat, err := h.chats.Get(r.Context(), id.Email, chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, "get chat", err)
		return
	}
	writeJSON(w, http.StatusOK, chat)
}

// Delete удаляет чат вместе со всеми сообщениями.
func (h *ChatHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := middleware.GetIdentity(r.Context())
	if err := h.chats.Delete(r.Context(), id.Email, chi.URLParam(r, "id")); err != nil {
		writeServiceError(w, "delete chat", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
