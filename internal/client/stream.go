package client

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/chatify/internal/logger"
	"github.com/chatify/internal/model"
	"github.com/chatify/internal/ws"
	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// Event - снапшот от сервера. Заполнено ровно одно из полей.
type Event struct {
	Chats    []model.Chat
	Messages *ws.MessagesPayload
	Error    string
}

// Stream - WebSocket-подписка сессии: "мои чаты" всегда и не больше одного открытого чата.
type Stream struct {
	conn   *websocket.Conn
	events chan Event
	wmu    sync.Mutex
	once   sync.Once
	done   chan struct{}
}

func dialStream(ctx context.Context, addr, token string) (*Stream, error) {
	header := http.Header{"Authorization": {"Bearer " + token}}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, addr, header)
	if err != nil {
		return nil, err
	}
	s := &Stream{conn: conn, events: make(chan Event, 64), done: make(chan struct{})}
	go s.readLoop()
	return s, nil
}

// Events закрывается, когда соединение закрыто (выход, отзыв сессии, обрыв).
func (s *Stream) Events() <-chan Event { return s.events }

func (s *Stream) readLoop() {
	defer close(s.events)
	for {
		var frame struct {
			Type    ws.EventType    `json:"type"`
			Payload json.RawMessage `json:"payload"`
		}
		if err := s.conn.ReadJSON(&frame); err != nil {
			select {
			case <-s.done:
			default:
				logger.Errorf("stream read: %v", err)
			}
			return
		}
		ev, ok := decodeEvent(frame.Type, frame.Payload)
		if !ok {
			continue
		}
		select {
		case s.events <- ev:
		case <-s.done:
			return
		}
	}
}

func decodeEvent(t ws.EventType, payload json.RawMessage) (Event, bool) {
	switch t {
	case ws.EventChats:
		var chats []model.Chat
		if err := json.Unmarshal(payload, &chats); err != nil {
			logger.Errorf("stream chats payload: %v", err)
			return Event{}, false
		}
		return Event{Chats: chats}, true
	case ws.EventMessages:
		var p ws.MessagesPayload
		if err := json.Unmarshal(payload, &p); err != nil {
			logger.Errorf("stream messages payload: %v", err)
			return Event{}, false
		}
		return Event{Messages: &p}, true
	case ws.EventError:
		var text string
		_ = json.Unmarshal(payload, &text)
		return Event{Error: text}, true
	}
	return Event{}, false
}

// OpenChat заменяет слушателя открытого чата; сервер пришлёт снапшот сообщений.
func (s *Stream) OpenChat(chatID string) error {
	return s.write(ws.IncomingMessage{Type: ws.EventOpenChat, ChatID: chatID})
}

func (s *Stream) CloseChat() error {
	return s.write(ws.IncomingMessage{Type: ws.EventCloseChat})
}

func (s *Stream) write(msg ws.IncomingMessage) error {
	s.wmu.Lock()
	defer s.wmu.Unlock()
	if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return s.conn.WriteJSON(msg)
}

func (s *Stream) Close() {
	s.once.Do(func() {
		close(s.done)
		s.wmu.Lock()
		_ = s.conn.SetWriteDeadline(time.Now().Add(time.Second))
		_ = s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		s.wmu.Unlock()
		s.conn.Close()
	})
}
