package handler

import (
	"net/http"

	"github.com/chatify/internal/middleware"
	"github.com/chatify/internal/service"
)

type AuthHandler struct {
	auth *service.AuthService
}

func NewAuthHandler(auth *service.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

// Register создаёт аккаунт и сразу открывает сессию.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req service.RegisterRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.auth.Register(r.Context(), req)
	if err != nil {
		writeServiceError(w, "register", err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req service.LoginRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	res, err := h.auth.Login(r.Context(), req)
	if err != nil {
		writeServiceError(w, "login", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// Me возвращает пользователя текущей сессии.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	id := middleware.GetIdentity(r.Context())
	if id == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, id)
}

// Logout отзывает текущую сессию; её WebSocket-соединения закрываются.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sessionID := middleware.GetSessionID(r.Context())
	if sessionID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	if err := h.auth.Logout(r.Context(), sessionID); err != nil {
		writeServiceError(w, "logout", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
