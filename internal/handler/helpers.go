package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/chatify/internal/logger"
	"github.com/chatify/internal/service"
)

const maxBodyBytes = 64 << 10

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Errorf("writeJSON encode: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// statusOf сопоставляет ошибку сервиса HTTP-статусу; 0 - ошибка не клиентская.
func statusOf(err error) int {
	switch {
	case errors.Is(err, service.ErrInvalidUsername),
		errors.Is(err, service.ErrInvalidEmail),
		errors.Is(err, service.ErrWeakPassword),
		errors.Is(err, service.ErrSelfChat),
		errors.Is(err, service.ErrBlankText):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrInvalidCredentials), errors.Is(err, service.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, service.ErrNotParticipant), errors.Is(err, service.ErrNotAuthor):
		return http.StatusForbidden
	case errors.Is(err, service.ErrUserNotFound),
		errors.Is(err, service.ErrChatNotFound),
		errors.Is(err, service.ErrMessageNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrUsernameTaken), errors.Is(err, service.ErrEmailInUse):
		return http.StatusConflict
	case errors.Is(err, service.ErrRateLimitExceeded):
		return http.StatusTooManyRequests
	}
	return 0
}

// writeServiceError отдаёт текст бизнес-ошибки как есть; внутренние ошибки только в лог.
func writeServiceError(w http.ResponseWriter, op string, err error) {
	if status := statusOf(err); status != 0 {
		writeError(w, status, err.Error())
		return
	}
	logger.Errorf("%s: %v", op, err)
	writeError(w, http.StatusInternalServerError, "internal error")
}
