package ws

import "github.com/chatify/internal/model"

type EventType string

const (
	// клиент -> сервер
	EventOpenChat  EventType = "open_chat"
	EventCloseChat EventType = "close_chat"

	// сервер -> клиент
	EventChats    EventType = "chats"
	EventMessages EventType = "messages"
	EventError    EventType = "error"
)

// IncomingMessage - команда клиента.
type IncomingMessage struct {
	Type   EventType `json:"type"`
	ChatID string    `json:"chat_id,omitempty"`
}

// OutgoingMessage - то, что сервер отправляет клиенту.
type OutgoingMessage struct {
	Type    EventType `json:"type"`
	Payload any       `json:"payload"`
}

// MessagesPayload - полный снапшот сообщений открытого чата (по возрастанию времени).
type MessagesPayload struct {
	ChatID   string          `json:"chat_id"`
	Messages []model.Message `json:"messages"`
}
