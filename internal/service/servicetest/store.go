// Package servicetest - in-memory реализации хранилищ сервисного слоя для тестов
// (service, handler, ws). Семантика повторяет pgx-репозитории.
package servicetest

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/chatify/internal/events"
	"github.com/chatify/internal/model"
	"github.com/chatify/internal/repository"
)

// Store хранит пользователей, сессии, чаты и сообщения в памяти.
type Store struct {
	mu        sync.Mutex
	users     map[string]*model.User // id -> user
	usernames map[string]string      // lower(name) -> id
	sessions  map[string]*model.Session
	chats     map[string]*model.Chat
	messages  map[string][]model.Message // chat id -> messages
	// MarkReadCalls считает вызовы MarkRead (для проверок открытия чата).
	MarkReadCalls int
}

func NewStore() *Store {
	return &Store{
		users:     make(map[string]*model.User),
		usernames: make(map[string]string),
		sessions:  make(map[string]*model.Session),
		chats:     make(map[string]*model.Chat),
		messages:  make(map[string][]model.Message),
	}
}

// Users, Sessions, Chats, Messages - представления Store под интерфейсы сервисов
// (у репозиториев пересекаются имена методов GetByID/Create/Delete).
func (s *Store) Users() *Users       { return &Users{s} }
func (s *Store) Sessions() *Sessions { return &Sessions{s} }
func (s *Store) Chats() *Chats       { return &Chats{s} }
func (s *Store) Messages() *Messages { return &Messages{s} }

type Users struct{ s *Store }

func (r *Users) CreateWithUsername(ctx context.Context, u *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	name := strings.ToLower(u.Username)
	if _, ok := r.s.usernames[name]; ok {
		return repository.ErrUsernameTaken
	}
	for _, existing := range r.s.users {
		if existing.Email == u.Email {
			return repository.ErrEmailTaken
		}
	}
	cp := *u
	r.s.users[u.ID] = &cp
	r.s.usernames[name] = u.ID
	return nil
}

func (r *Users) GetByID(ctx context.Context, id string) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *Users) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *Users) GetUsername(ctx context.Context, name string) (*model.UsernameEntry, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	key := strings.ToLower(name)
	id, ok := r.s.usernames[key]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &model.UsernameEntry{Name: key, UID: id}, nil
}

type Sessions struct{ s *Store }

func (r *Sessions) Create(ctx context.Context, sess *model.Session) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cp := *sess
	r.s.sessions[sess.ID] = &cp
	return nil
}

func (r *Sessions) RevokeByID(ctx context.Context, id string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sess, ok := r.s.sessions[id]
	if !ok || sess.RevokedAt != nil {
		return false, nil
	}
	now := time.Now()
	sess.RevokedAt = &now
	return true, nil
}

// Revoked - отозвана ли сессия.
func (r *Sessions) Revoked(id string) bool {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	sess, ok := r.s.sessions[id]
	return ok && sess.RevokedAt != nil
}

type Chats struct{ s *Store }

func copyChat(c *model.Chat) *model.Chat {
	cp := *c
	cp.Participants = append([]string(nil), c.Participants...)
	cp.ParticipantData = make(map[string]model.ParticipantInfo, len(c.ParticipantData))
	for k, v := range c.ParticipantData {
		cp.ParticipantData[k] = v
	}
	return &cp
}

func (r *Chats) CreateIfAbsent(ctx context.Context, c *model.Chat) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.chats[c.ID]; ok {
		return false, nil
	}
	r.s.chats[c.ID] = copyChat(c)
	return true, nil
}

func (r *Chats) GetByID(ctx context.Context, id string) (*model.Chat, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.chats[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return copyChat(c), nil
}

func (r *Chats) ListByParticipant(ctx context.Context, email string) ([]model.Chat, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]model.Chat, 0)
	for _, c := range r.s.chats {
		if c.HasParticipant(email) {
			out = append(out, *copyChat(c))
		}
	}
	return out, nil
}

func (r *Chats) DeleteCascade(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.chats[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.messages, id)
	delete(r.s.chats, id)
	return nil
}

type Messages struct{ s *Store }

func (r *Messages) Append(ctx context.Context, m *model.Message) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.chats[m.ChatID]
	if !ok {
		return repository.ErrNotFound
	}
	cp := *m
	cp.Read, cp.Edited, cp.EditedAt = false, false, nil
	r.s.messages[m.ChatID] = append(r.s.messages[m.ChatID], cp)
	ts := m.Timestamp
	c.LastMessage, c.LastMessageTime = m.Text, &ts
	return nil
}

func (r *Messages) ListByChat(ctx context.Context, chatID string) ([]model.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return append([]model.Message{}, r.s.messages[chatID]...), nil
}

func (r *Messages) GetByID(ctx context.Context, chatID, id string) (*model.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, m := range r.s.messages[chatID] {
		if m.ID == id {
			cp := m
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

// latest - индекс самого свежего сообщения чата или -1. Вызывается под mu.
func (r *Messages) latest(chatID string) int {
	idx := -1
	for i, m := range r.s.messages[chatID] {
		if idx < 0 {
			idx = i
			continue
		}
		best := r.s.messages[chatID][idx]
		if m.Timestamp.After(best.Timestamp) || (m.Timestamp.Equal(best.Timestamp) && m.ID > best.ID) {
			idx = i
		}
	}
	return idx
}

func (r *Messages) UpdateText(ctx context.Context, chatID, id, text string, editedAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	msgs := r.s.messages[chatID]
	for i := range msgs {
		if msgs[i].ID != id {
			continue
		}
		at := editedAt
		msgs[i].Text, msgs[i].Edited, msgs[i].EditedAt = text, true, &at
		if r.latest(chatID) == i {
			if c, ok := r.s.chats[chatID]; ok {
				c.LastMessage = text
			}
		}
		return nil
	}
	return repository.ErrNotFound
}

func (r *Messages) Delete(ctx context.Context, chatID, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	msgs := r.s.messages[chatID]
	for i := range msgs {
		if msgs[i].ID != id {
			continue
		}
		r.s.messages[chatID] = append(msgs[:i:i], msgs[i+1:]...)
		if c, ok := r.s.chats[chatID]; ok {
			c.LastMessage, c.LastMessageTime = "", nil
			if j := r.latest(chatID); j >= 0 {
				m := r.s.messages[chatID][j]
				ts := m.Timestamp
				c.LastMessage, c.LastMessageTime = m.Text, &ts
			}
		}
		return nil
	}
	return repository.ErrNotFound
}

func (r *Messages) MarkRead(ctx context.Context, chatID, viewer string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.MarkReadCalls++
	var n int64
	msgs := r.s.messages[chatID]
	for i := range msgs {
		if msgs[i].User != viewer && !msgs[i].Read {
			msgs[i].Read = true
			n++
		}
	}
	return n, nil
}

// Recorder - Publisher, запоминающий события.
type Recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *Recorder) Publish(ctx context.Context, ev events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return nil
}

func (p *Recorder) Events() []events.Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]events.Event(nil), p.events...)
}

// Kinds - виды записанных событий по порядку.
func (p *Recorder) Kinds() []events.Kind {
	var kinds []events.Kind
	for _, ev := range p.Events() {
		kinds = append(kinds, ev.Kind)
	}
	return kinds
}

func (p *Recorder) Reset() {
	p.mu.Lock()
	p.events = nil
	p.mu.Unlock()
}
