package view

import (
	"sort"
	"time"

	"github.com/chatify/internal/model"
)

// Receipt - отметка о прочтении, как её видит viewer.
type Receipt string

const (
	// ReceiptNone - чужое сообщение, отметка не показывается.
	ReceiptNone Receipt = "none"
	// ReceiptSent - своё, ещё не прочитано собеседником.
	ReceiptSent Receipt = "sent"
	// ReceiptRead - своё, прочитано (read=true).
	ReceiptRead Receipt = "read"
)

// ReceiptFor возвращает ReceiptRead только для своих сообщений с read=true.
func ReceiptFor(m model.Message, viewer string) Receipt {
	if m.User != model.NormalizeEmail(viewer) {
		return ReceiptNone
	}
	if m.Read {
		return ReceiptRead
	}
	return ReceiptSent
}

type ItemKind string

const (
	ItemDivider ItemKind = "divider"
	ItemMessage ItemKind = "message"
)

// Item - элемент ленты: разделитель дня или сообщение.
type Item struct {
	Kind    ItemKind       `json:"kind"`
	Label   string         `json:"label,omitempty"`
	Day     string         `json:"day,omitempty"`
	Message *model.Message `json:"message,omitempty"`
	Own     bool           `json:"own,omitempty"`
	Receipt Receipt        `json:"receipt,omitempty"`
}

// SortMessages - копия по возрастанию timestamp (при равенстве - по id).
func SortMessages(msgs []model.Message) []model.Message {
	out := make([]model.Message, len(msgs))
	copy(out, msgs)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Timestamp.Equal(out[j].Timestamp) {
			return out[i].Timestamp.Before(out[j].Timestamp)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Timeline строит ленту: перед сообщением ставится разделитель, если его календарная дата
// (в loc) отличается от предыдущего; первое сообщение всегда получает разделитель.
func Timeline(msgs []model.Message, viewer string, loc *time.Location, now time.Time) []Item {
	if loc == nil {
		loc = time.UTC
	}
	viewer = model.NormalizeEmail(viewer)
	sorted := SortMessages(msgs)
	items := make([]Item, 0, len(sorted)*2)
	prevDay := ""
	for i := range sorted {
		m := &sorted[i]
		day := m.Timestamp.In(loc).Format(time.DateOnly)
		if day != prevDay {
			items = append(items, Item{Kind: ItemDivider, Day: day, Label: DayLabel(m.Timestamp, now, loc)})
			prevDay = day
		}
		items = append(items, Item{
			Kind:    ItemMessage,
			Message: m,
			Own:     m.User == viewer,
			Receipt: ReceiptFor(*m, viewer),
		})
	}
	return items
}

// DayLabel - "Today", "Yesterday" или дата вида "2 Jan 2006".
func DayLabel(t, now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	t, now = t.In(loc), now.In(loc)
	ty, tm, td := t.Date()
	ny, nm, nd := now.Date()
	day := time.Date(ty, tm, td, 0, 0, 0, 0, loc)
	today := time.Date(ny, nm, nd, 0, 0, 0, 0, loc)
	switch {
	case day.Equal(today):
		return "Today"
	case day.Equal(today.AddDate(0, 0, -1)):
		return "Yesterday"
	}
	return t.Format("2 Jan 2006")
}
