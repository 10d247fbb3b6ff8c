package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/chatify/internal/events"
	"github.com/chatify/internal/logger"
	"github.com/chatify/internal/model"
	"github.com/chatify/internal/repository"
	"github.com/chatify/internal/view"
	"github.com/google/uuid"
)

type MessageStore interface {
	Append(ctx context.Context, m *model.Message) error
	ListByChat(ctx context.Context, chatID string) ([]model.Message, error)
	GetByID(ctx context.Context, chatID, id string) (*model.Message, error)
	UpdateText(ctx context.Context, chatID, id, text string, editedAt time.Time) error
	Delete(ctx context.Context, chatID, id string) error
	MarkRead(ctx context.Context, chatID, viewer string) (int64, error)
}

// Notifier - пуш собеседнику о новом сообщении.
type Notifier interface {
	Notify(ctx context.Context, email, title, body string, data map[string]string)
}

const notifyTimeout = 10 * time.Second

type MessageService struct {
	chats    *ChatService
	messages MessageStore
	bus      events.Publisher
	notifier Notifier
	now      func() time.Time
}

func NewMessageService(chats *ChatService, messages MessageStore, bus events.Publisher, notifier Notifier) *MessageService {
	return &MessageService{chats: chats, messages: messages, bus: bus, notifier: notifier, now: time.Now}
}

// List - сообщения чата по возрастанию времени.
func (s *MessageService) List(ctx context.Context, viewer, chatID string) ([]model.Message, error) {
	if _, err := s.chats.Get(ctx, viewer, chatID); err != nil {
		return nil, err
	}
	msgs, err := s.messages.ListByChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	return view.SortMessages(msgs), nil
}

// MarkRead отмечает прочитанными чужие сообщения чата. Если что-то изменилось,
// публикует событие messages, чтобы автор увидел отметку.
func (s *MessageService) MarkRead(ctx context.Context, viewer, chatID string) (int64, error) {
	c, err := s.chats.Get(ctx, viewer, chatID)
	if err != nil {
		return 0, err
	}
	n, err := s.messages.MarkRead(ctx, chatID, model.NormalizeEmail(viewer))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		logger.Debugf("message: %d marked read in %s", n, chatID)
		s.publish(ctx, events.Messages(chatID, c.Participants...))
	}
	return n, nil
}

// Send добавляет сообщение и обновляет сводку чата. Пустой текст ничего не пишет.
func (s *MessageService) Send(ctx context.Context, author model.Principal, chatID, text string) (*model.Message, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrBlankText
	}
	c, err := s.chats.Get(ctx, author.Email, chatID)
	if err != nil {
		return nil, err
	}
	m := &model.Message{
		ID:        uuid.New().String(),
		ChatID:    chatID,
		Text:      text,
		User:      model.NormalizeEmail(author.Email),
		Timestamp: s.now().UTC().Truncate(time.Microsecond),
	}
	if err := s.messages.Append(ctx, m); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrChatNotFound
		}
		return nil, err
	}
	s.publish(ctx, events.Messages(chatID, c.Participants...))
	s.publish(ctx, events.Chats(c.Participants...))
	s.notify(c, author, m)
	return m, nil
}

func (s *MessageService) notify(c *model.Chat, author model.Principal, m *model.Message) {
	if s.notifier == nil {
		return
	}
	to := c.Counterpart(author.Email)
	if to == "" {
		return
	}
	title := author.Username
	if title == "" {
		title = author.Email
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), notifyTimeout)
		defer cancel()
		s.notifier.Notify(ctx, to, title, m.Text, map[string]string{"chat_id": c.ID, "message_id": m.ID})
	}()
}

// ownMessage проверяет участие в чате и авторство сообщения.
func (s *MessageService) ownMessage(ctx context.Context, viewer, chatID, msgID string) (*model.Chat, *model.Message, error) {
	c, err := s.chats.Get(ctx, viewer, chatID)
	if err != nil {
		return nil, nil, err
	}
	m, err := s.messages.GetByID(ctx, chatID, msgID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil, ErrMessageNotFound
	}
	if err != nil {
		return nil, nil, err
	}
	if m.User != model.NormalizeEmail(viewer) {
		return nil, nil, ErrNotAuthor
	}
	return c, m, nil
}

// Edit меняет текст своего сообщения и ставит отметку edited.
func (s *MessageService) Edit(ctx context.Context, viewer, chatID, msgID, text string) (*model.Message, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrBlankText
	}
	c, m, err := s.ownMessage(ctx, viewer, chatID, msgID)
	if err != nil {
		return nil, err
	}
	editedAt := s.now().UTC().Truncate(time.Microsecond)
	if err := s.messages.UpdateText(ctx, chatID, msgID, text, editedAt); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, err
	}
	m.Text, m.Edited, m.EditedAt = text, true, &editedAt
	s.publish(ctx, events.Messages(chatID, c.Participants...))
	s.publish(ctx, events.Chats(c.Participants...))
	return m, nil
}

// Delete безвозвратно удаляет своё сообщение.
func (s *MessageService) Delete(ctx context.Context, viewer, chatID, msgID string) error {
	c, _, err := s.ownMessage(ctx, viewer, chatID, msgID)
	if err != nil {
		return err
	}
	if err := s.messages.Delete(ctx, chatID, msgID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrMessageNotFound
		}
		return err
	}
	s.publish(ctx, events.Messages(chatID, c.Participants...))
	s.publish(ctx, events.Chats(c.Participants...))
	return nil
}

// Timeline - лента для отображения в часовом поясе loc.
func (s *MessageService) Timeline(ctx context.Context, viewer, chatID string, loc *time.Location) ([]view.Item, error) {
	msgs, err := s.List(ctx, viewer, chatID)
	if err != nil {
		return nil, err
	}
	return view.Timeline(msgs, viewer, loc, s.now()), nil
}

func (s *MessageService) publish(ctx context.Context, ev events.Event) {
	if err := s.bus.Publish(ctx, ev); err != nil {
		logger.Errorf("message: publish %s: %v", ev.Kind, err)
	}
}
