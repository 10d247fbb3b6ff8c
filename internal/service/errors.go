package service

import (
	"errors"

	"github.com/chatify/internal/repository"
)

// Ошибки валидации и бизнес-правил; тексты уходят клиенту как есть.
var (
	ErrInvalidUsername    = errors.New("username must be 3-32 characters: letters, digits, '_' or '.'")
	ErrInvalidEmail       = errors.New("invalid email format")
	ErrWeakPassword       = errors.New("password should be at least 6 characters")
	ErrUsernameTaken      = repository.ErrUsernameTaken
	ErrEmailInUse         = repository.ErrEmailTaken
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrRateLimitExceeded  = errors.New("too many attempts, try again later")
	ErrUnauthorized       = errors.New("unauthorized")

	ErrSelfChat       = errors.New("cannot start a chat with yourself")
	ErrUserNotFound   = errors.New("user not found")
	ErrChatNotFound   = errors.New("chat not found")
	ErrNotParticipant = errors.New("not a participant of this chat")

	ErrBlankText       = errors.New("message text is empty")
	ErrMessageNotFound = errors.New("message not found")
	ErrNotAuthor       = errors.New("only the author can change this message")
)
