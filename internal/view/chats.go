// Package view - чистая логика представления: сортировка и поиск чатов, лента сообщений
// с разделителями дней, состояние отметок о прочтении и раскладка панелей.
// Используется и сервером (timeline), и терминальным клиентом.
package view

import (
	"sort"
	"strings"

	"github.com/chatify/internal/model"
)

// DisplayName - имя чата для viewer'а: username собеседника, иначе его email.
func DisplayName(c model.Chat, viewer string) string {
	other := c.Counterpart(viewer)
	if other == "" {
		if len(c.Participants) == 0 {
			return c.ID
		}
		other = c.Participants[0]
	}
	if info, ok := c.ParticipantData[other]; ok && strings.TrimSpace(info.Username) != "" {
		return info.Username
	}
	return other
}

// SortChats возвращает копию, отсортированную по last_message_time по убыванию.
// Чаты без сообщений идут в конце; при равенстве - по created_at по убыванию, затем по id.
func SortChats(chats []model.Chat) []model.Chat {
	out := make([]model.Chat, len(chats))
	copy(out, chats)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		switch {
		case a.LastMessageTime != nil && b.LastMessageTime == nil:
			return true
		case a.LastMessageTime == nil && b.LastMessageTime != nil:
			return false
		case a.LastMessageTime != nil && !a.LastMessageTime.Equal(*b.LastMessageTime):
			return a.LastMessageTime.After(*b.LastMessageTime)
		case !a.CreatedAt.Equal(b.CreatedAt):
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID < b.ID
	})
	return out
}

// FilterChats - поиск без учёта регистра по имени чата и email'ам участников.
// Пустой term возвращает все чаты. Порядок сохраняется.
func FilterChats(chats []model.Chat, viewer, term string) []model.Chat {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return chats
	}
	out := make([]model.Chat, 0, len(chats))
	for _, c := range chats {
		if matches(c, viewer, term) {
			out = append(out, c)
		}
	}
	return out
}

func matches(c model.Chat, viewer, term string) bool {
	if strings.Contains(strings.ToLower(DisplayName(c, viewer)), term) {
		return true
	}
	for _, p := range c.Participants {
		if strings.Contains(strings.ToLower(p), term) {
			return true
		}
	}
	return false
}
