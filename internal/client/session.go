package client

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"sync"

	"github.com/chatify/internal/model"
	"github.com/chatify/internal/view"
)

// Session - вошедший пользователь: identity, токен и подписка на обновления.
// Создаётся только после успешного входа или регистрации; Close - единственная точка
// освобождения (выход из аккаунта, завершение программы).
type Session struct {
	api   *API
	token string
	me    model.Principal

	mu     sync.Mutex
	stream *Stream
	closed bool
}

func NewSession(api *API, token string, me model.Principal) *Session {
	return &Session{api: api, token: token, me: me}
}

// Me - пользователь сессии.
func (s *Session) Me() model.Principal { return s.me }

var ErrSessionClosed = errors.New("session closed")

// Subscribe открывает WebSocket-подписку. У сессии не больше одной подписки.
func (s *Session) Subscribe(ctx context.Context) (*Stream, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrSessionClosed
	}
	if s.stream != nil {
		return s.stream, nil
	}
	addr, err := s.api.wsURL()
	if err != nil {
		return nil, err
	}
	st, err := dialStream(ctx, addr, s.token)
	if err != nil {
		return nil, err
	}
	s.stream = st
	return st, nil
}

// Close снимает все слушатели сессии. Повторный вызов безопасен.
func (s *Session) Close() {
	s.mu.Lock()
	st := s.stream
	s.stream = nil
	s.closed = true
	s.mu.Unlock()
	if st != nil {
		st.Close()
	}
}

// Logout отзывает сессию на сервере и закрывает её локально, даже если запрос не прошёл.
func (s *Session) Logout(ctx context.Context) error {
	defer s.Close()
	return s.api.do(ctx, http.MethodPost, "/api/auth/logout", s.token, nil, nil)
}

func (s *Session) Chats(ctx context.Context, term string) ([]model.Chat, error) {
	path := "/api/chats"
	if term != "" {
		path += "?q=" + url.QueryEscape(term)
	}
	var chats []model.Chat
	err := s.api.do(ctx, http.MethodGet, path, s.token, nil, &chats)
	return chats, err
}

// StartChat находит или создаёт чат с пользователем по email.
func (s *Session) StartChat(ctx context.Context, email string) (*model.Chat, error) {
	var c model.Chat
	if err := s.api.do(ctx, http.MethodPost, "/api/chats", s.token, map[string]string{"email": email}, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *Session) DeleteChat(ctx context.Context, chatID string) error {
	return s.api.do(ctx, http.MethodDelete, "/api/chats/"+url.PathEscape(chatID), s.token, nil, nil)
}

func (s *Session) Messages(ctx context.Context, chatID string) ([]model.Message, error) {
	var msgs []model.Message
	err := s.api.do(ctx, http.MethodGet, "/api/chats/"+url.PathEscape(chatID)+"/messages", s.token, nil, &msgs)
	return msgs, err
}

func (s *Session) Timeline(ctx context.Context, chatID, tz string) ([]view.Item, error) {
	var items []view.Item
	path := "/api/chats/" + url.PathEscape(chatID) + "/timeline"
	if tz != "" {
		path += "?tz=" + url.QueryEscape(tz)
	}
	err := s.api.do(ctx, http.MethodGet, path, s.token, nil, &items)
	return items, err
}

func (s *Session) Send(ctx context.Context, chatID, text string) (*model.Message, error) {
	var m model.Message
	if err := s.api.do(ctx, http.MethodPost, "/api/chats/"+url.PathEscape(chatID)+"/messages", s.token, map[string]string{"text": text}, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Session) Edit(ctx context.Context, chatID, msgID, text string) (*model.Message, error) {
	var m model.Message
	path := "/api/chats/" + url.PathEscape(chatID) + "/messages/" + url.PathEscape(msgID)
	if err := s.api.do(ctx, http.MethodPut, path, s.token, map[string]string{"text": text}, &m); err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Session) DeleteMessage(ctx context.Context, chatID, msgID string) error {
	path := "/api/chats/" + url.PathEscape(chatID) + "/messages/" + url.PathEscape(msgID)
	return s.api.do(ctx, http.MethodDelete, path, s.token, nil, nil)
}

// MarkRead отмечает прочитанными сообщения собеседника; возвращает число изменённых.
func (s *Session) MarkRead(ctx context.Context, chatID string) (int64, error) {
	var res struct {
		Marked int64 `json:"marked"`
	}
	err := s.api.do(ctx, http.MethodPost, "/api/chats/"+url.PathEscape(chatID)+"/read", s.token, nil, &res)
	return res.Marked, err
}
