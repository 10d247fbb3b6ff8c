package service

import (
	"context"
	"errors"
	"time"

	"github.com/chatify/internal/events"
	"github.com/chatify/internal/logger"
	"github.com/chatify/internal/model"
	"github.com/chatify/internal/repository"
	"github.com/chatify/internal/view"
)

type ChatStore interface {
	CreateIfAbsent(ctx context.Context, c *model.Chat) (bool, error)
	GetByID(ctx context.Context, id string) (*model.Chat, error)
	ListByParticipant(ctx context.Context, email string) ([]model.Chat, error)
	DeleteCascade(ctx context.Context, id string) error
}

// UserLookup - поиск собеседника по email.
type UserLookup interface {
	GetByEmail(ctx context.Context, email string) (*model.User, error)
}

type ChatService struct {
	chats ChatStore
	users UserLookup
	bus   events.Publisher
	now   func() time.Time
}

func NewChatService(chats ChatStore, users UserLookup, bus events.Publisher) *ChatService {
	return &ChatService{chats: chats, users: users, bus: bus, now: time.Now}
}

// List - чаты viewer'а в порядке отображения, опционально отфильтрованные по term.
func (s *ChatService) List(ctx context.Context, viewer, term string) ([]model.Chat, error) {
	viewer = model.NormalizeEmail(viewer)
	chats, err := s.chats.ListByParticipant(ctx, viewer)
	if err != nil {
		return nil, err
	}
	return view.FilterChats(view.SortChats(chats), viewer, term), nil
}

// Get возвращает чат, если viewer его участник.
func (s *ChatService) Get(ctx context.Context, viewer, id string) (*model.Chat, error) {
	c, err := s.chats.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrChatNotFound
	}
	if err != nil {
		return nil, err
	}
	if !c.HasParticipant(viewer) {
		return nil, ErrNotParticipant
	}
	return c, nil
}

// Start открывает личный чат с target. created=false - чат уже был, возвращается существующий.
// Проверки (self-chat, существование собеседника) выполняются до любой записи.
func (s *ChatService) Start(ctx context.Context, me model.Principal, target string) (*model.Chat, bool, error) {
	myEmail := model.NormalizeEmail(me.Email)
	target = model.NormalizeEmail(target)
	if !emailRegexp.MatchString(target) {
		return nil, false, ErrInvalidEmail
	}
	if target == myEmail {
		return nil, false, ErrSelfChat
	}
	other, err := s.users.GetByEmail(ctx, target)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, false, ErrUserNotFound
	}
	if err != nil {
		return nil, false, err
	}

	c := &model.Chat{
		ID:           model.ChatID(myEmail, target),
		Participants: model.SortedPair(myEmail, target),
		ParticipantData: map[string]model.ParticipantInfo{
			myEmail: {Username: me.Username},
			target:  {Username: other.Username},
		},
		CreatedAt: s.now().UTC(),
	}
	created, err := s.chats.CreateIfAbsent(ctx, c)
	if err != nil {
		return nil, false, err
	}
	if !created {
		existing, err := s.chats.GetByID(ctx, c.ID)
		if err != nil {
			return nil, false, err
		}
		return existing, false, nil
	}
	logger.Infof("chat: created %s", c.ID)
	s.publish(ctx, events.Chats(c.Participants...))
	return c, true, nil
}

// Delete удаляет чат вместе со всеми сообщениями (участник любой из двух).
func (s *ChatService) Delete(ctx context.Context, viewer, id string) error {
	c, err := s.Get(ctx, viewer, id)
	if err != nil {
		return err
	}
	if err := s.chats.DeleteCascade(ctx, c.ID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrChatNotFound
		}
		return err
	}
	logger.Infof("chat: deleted %s by %s", c.ID, model.NormalizeEmail(viewer))
	s.publish(ctx, events.Chats(c.Participants...))
	s.publish(ctx, events.Messages(c.ID, c.Participants...))
	return nil
}

func (s *ChatService) publish(ctx context.Context, ev events.Event) {
	if err := s.bus.Publish(ctx, ev); err != nil {
		logger.Errorf("chat: publish %s: %v", ev.Kind, err)
	}
}
