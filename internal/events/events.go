// Package events - шина уведомлений об изменениях: кто-то записал в чат или список чатов,
// подписчики (ws-хаб каждого инстанса API) перечитывают снапшоты.
package events

import "context"

type Kind string

const (
	// KindChats - изменился список чатов участников Emails.
	KindChats Kind = "chats"
	// KindMessages - изменился журнал сообщений чата ChatID (участники - Emails).
	KindMessages Kind = "messages"
	// KindSessionRevoked - сессия SessionID завершена, её соединения закрываются.
	KindSessionRevoked Kind = "session_revoked"
)

type Event struct {
	Kind      Kind     `json:"kind"`
	ChatID    string   `json:"chat_id,omitempty"`
	Emails    []string `json:"emails,omitempty"`
	SessionID string   `json:"session_id,omitempty"`
}

// Publisher публикует событие. Ошибка публикации не откатывает уже сделанную запись.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Bus - Publisher + подписка. Канал подписки закрывается после отмены ctx.
type Bus interface {
	Publisher
	Subscribe(ctx context.Context) <-chan Event
	Close() error
}

func Chats(emails ...string) Event {
	return Event{Kind: KindChats, Emails: emails}
}

func Messages(chatID string, emails ...string) Event {
	return Event{Kind: KindMessages, ChatID: chatID, Emails: emails}
}

func SessionRevoked(sessionID string) Event {
	return Event{Kind: KindSessionRevoked, SessionID: sessionID}
}
