package model

import (
	"sort"
	"strings"
	"time"
)

// ParticipantInfo - денормализованные данные участника для отображения в списке.
type ParticipantInfo struct {
	Username string `json:"username"`
}

type Chat struct {
	ID              string                     `json:"id"`
	Participants    []string                   `json:"participants"`
	ParticipantData map[string]ParticipantInfo `json:"participant_data"`
	LastMessage     string                     `json:"last_message"`
	LastMessageTime *time.Time                 `json:"last_message_time,omitempty"`
	CreatedAt       time.Time                  `json:"created_at"`
}

// NormalizeEmail приводит email к каноническому виду (trim + lower).
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ChatID - детерминированный id личного чата: email'ы участников в нижнем регистре,
// отсортированные и склеенные через "_". Не зависит от порядка аргументов.
func ChatID(a, b string) string {
	pair := SortedPair(a, b)
	return pair[0] + "_" + pair[1]
}

// SortedPair возвращает нормализованные email'ы по возрастанию.
func SortedPair(a, b string) []string {
	pair := []string{NormalizeEmail(a), NormalizeEmail(b)}
	sort.Strings(pair)
	return pair
}

// HasParticipant - является ли email участником чата.
func (c *Chat) HasParticipant(email string) bool {
	email = NormalizeEmail(email)
	for _, p := range c.Participants {
		if p == email {
			return true
		}
	}
	return false
}

// Counterpart возвращает email второго участника (для viewer'а), пусто если viewer не участник.
func (c *Chat) Counterpart(viewer string) string {
	viewer = NormalizeEmail(viewer)
	if !c.HasParticipant(viewer) {
		return ""
	}
	for _, p := range c.Participants {
		if p != viewer {
			return p
		}
	}
	return ""
}
