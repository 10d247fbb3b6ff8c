package model

import "time"

// Message - запись журнала сообщений чата. User - email автора.
type Message struct {
	ID        string     `json:"id"`
	ChatID    string     `json:"chat_id"`
	Text      string     `json:"text"`
	User      string     `json:"user"`
	Timestamp time.Time  `json:"timestamp"`
	Read      bool       `json:"read"`
	Edited    bool       `json:"edited"`
	EditedAt  *time.Time `json:"edited_at,omitempty"`
}
