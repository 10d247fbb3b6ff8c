package ws

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/chatify/internal/events"
	"github.com/chatify/internal/logger"
	"github.com/chatify/internal/middleware"
	"github.com/chatify/internal/model"
	"github.com/chatify/internal/service"
)

const snapshotTimeout = 5 * time.Second

// ChatLister - снапшот списка чатов пользователя (service.ChatService).
type ChatLister interface {
	List(ctx context.Context, viewer, term string) ([]model.Chat, error)
}

// MessageReader - снапшот сообщений и отметка прочтения (service.MessageService).
type MessageReader interface {
	List(ctx context.Context, viewer, chatID string) ([]model.Message, error)
	MarkRead(ctx context.Context, viewer, chatID string) (int64, error)
}

// Hub держит соединения по email и рассылает снапшоты по событиям шины.
type Hub struct {
	mu         sync.RWMutex
	clients    map[string]map[*Client]struct{}
	total      int
	maxConns   int
	chats      ChatLister
	messages   MessageReader
	bus        events.Bus
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
}

func NewHub(chats ChatLister, messages MessageReader, bus events.Bus, maxConns int) *Hub {
	if maxConns <= 0 {
		maxConns = 10000
	}
	return &Hub{
		clients:    make(map[string]map[*Client]struct{}),
		maxConns:   maxConns,
		chats:      chats,
		messages:   messages,
		bus:        bus,
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		done:       make(chan struct{}),
	}
}

// Run обслуживает регистрацию соединений; события шины обрабатываются
// в отдельной горутине последовательно, чтобы снапшоты не обгоняли друг друга.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	sub := h.bus.Subscribe(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for ev := range sub {
			h.Dispatch(ctx, ev)
		}
	}()
	for {
		select {
		case <-ctx.Done():
			h.shutdown()
			wg.Wait()
			return
		case client := <-h.register:
			h.addClient(client)
		case client := <-h.unregister:
			h.removeClient(client)
		}
	}
}

func (h *Hub) shutdown() {
	// Collect all clients under the lock, do NOT perform I/O under mutex.
	h.mu.Lock()
	all := make([]*Client, 0, h.total)
	for _, clients := range h.clients {
		for c := range clients {
			all = append(all, c)
		}
	}
	h.clients = make(map[string]map[*Client]struct{})
	h.total = 0
	h.mu.Unlock()

	for _, c := range all {
		c.Close()
	}
	for _, c := range all {
		c.Wait()
	}
}

func (h *Hub) addClient(c *Client) {
	h.mu.Lock()
	if h.total >= h.maxConns {
		h.mu.Unlock()
		logger.Errorf("ws connection limit reached (%d), rejecting user=%s", h.maxConns, middleware.MaskEmail(c.email))
		c.Close()
		return
	}
	if _, ok := h.clients[c.email]; !ok {
		h.clients[c.email] = make(map[*Client]struct{})
	}
	h.clients[c.email][c] = struct{}{}
	h.total++
	h.mu.Unlock()

	// слушатель "мои чаты" начинается со снапшота
	go h.sendChats(c.email, []*Client{c})
}

func (h *Hub) removeClient(c *Client) {
	h.mu.Lock()
	clients, ok := h.clients[c.email]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, exists := clients[c]; !exists {
		h.mu.Unlock()
		return
	}
	delete(clients, c)
	h.total--
	if len(clients) == 0 {
		delete(h.clients, c.email)
	}
	h.mu.Unlock()

	c.Close()
}

// HandleMessage обрабатывает команды клиента.
func (h *Hub) HandleMessage(ctx context.Context, c *Client, msg IncomingMessage) {
	switch msg.Type {
	case EventOpenChat:
		h.handleOpenChat(ctx, c, msg.ChatID)
	case EventCloseChat:
		c.setOpenChat("")
	default:
		h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: "unknown event type"})
	}
}

// handleOpenChat: слушатель ставится до чтения, чтобы события, пришедшие во время
// MarkRead/List, не терялись; затем отметка прочтения и снапшот сообщений.
func (h *Hub) handleOpenChat(ctx context.Context, c *Client, chatID string) {
	defer logger.DeferLogDuration("ws.openChat", time.Now())()
	c.setOpenChat(chatID)
	if chatID == "" {
		h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: "chat_id required"})
		return
	}
	ctx, cancel := context.WithTimeout(ctx, snapshotTimeout)
	defer cancel()

	if _, err := h.messages.MarkRead(ctx, c.email, chatID); err != nil {
		c.clearOpenChatIf(chatID)
		h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: clientError(err)})
		return
	}
	msgs, err := h.messages.List(ctx, c.email, chatID)
	if err != nil {
		c.clearOpenChatIf(chatID)
		h.sendToClient(c, OutgoingMessage{Type: EventError, Payload: clientError(err)})
		return
	}
	c.pushOpenSnapshot(chatID, OutgoingMessage{Type: EventMessages, Payload: MessagesPayload{ChatID: chatID, Messages: msgs}})
}

// Dispatch применяет событие шины к локальным соединениям.
func (h *Hub) Dispatch(ctx context.Context, ev events.Event) {
	switch ev.Kind {
	case events.KindChats:
		for _, email := range ev.Emails {
			if targets := h.clientsOf(email, nil); len(targets) > 0 {
				h.sendChats(email, targets)
			}
		}
	case events.KindMessages:
		for _, email := range ev.Emails {
			watching := h.clientsOf(email, func(c *Client) bool { return c.OpenChat() == ev.ChatID })
			if len(watching) > 0 {
				h.refreshOpenChat(ctx, email, ev.ChatID, watching)
			}
		}
	case events.KindSessionRevoked:
		h.CloseSession(ev.SessionID)
	}
}

// refreshOpenChat: у зрителя открытого чата каждый снапшот отмечает чужие сообщения
// прочитанными. Если что-то изменилось, сервис публикует новое событие messages;
// следующий проход уже ничего не меняет.
func (h *Hub) refreshOpenChat(ctx context.Context, viewer, chatID string, watching []*Client) {
	ctx, cancel := context.WithTimeout(ctx, snapshotTimeout)
	defer cancel()

	_, err := h.messages.MarkRead(ctx, viewer, chatID)
	var msgs []model.Message
	if err == nil {
		msgs, err = h.messages.List(ctx, viewer, chatID)
	}
	if errors.Is(err, service.ErrChatNotFound) || errors.Is(err, service.ErrNotParticipant) {
		// чат удалён: пустой снапшот и снятие слушателя
		for _, c := range watching {
			c.clearOpenChatIf(chatID)
			h.sendToClient(c, OutgoingMessage{Type: EventMessages, Payload: MessagesPayload{ChatID: chatID, Messages: []model.Message{}}})
		}
		return
	}
	if err != nil {
		logger.Errorf("ws messages snapshot chat=%s: %v", chatID, err)
		return
	}
	out := OutgoingMessage{Type: EventMessages, Payload: MessagesPayload{ChatID: chatID, Messages: msgs}}
	for _, c := range watching {
		c.pushRefresh(chatID, out)
	}
}

func (h *Hub) sendChats(email string, targets []*Client) {
	ctx, cancel := context.WithTimeout(context.Background(), snapshotTimeout)
	defer cancel()
	chats, err := h.chats.List(ctx, email, "")
	if err != nil {
		logger.Errorf("ws chats snapshot user=%s: %v", middleware.MaskEmail(email), err)
		return
	}
	out := OutgoingMessage{Type: EventChats, Payload: chats}
	for _, c := range targets {
		h.sendToClient(c, out)
	}
}

// CloseSession закрывает все соединения сессии (выход из аккаунта).
func (h *Hub) CloseSession(sessionID string) {
	if sessionID == "" {
		return
	}
	h.mu.RLock()
	var targets []*Client
	for _, clients := range h.clients {
		for c := range clients {
			if c.session == sessionID {
				targets = append(targets, c)
			}
		}
	}
	h.mu.RUnlock()
	for _, c := range targets {
		c.Close()
	}
	if len(targets) > 0 {
		logger.Infof("ws closed %d connection(s) of session %s", len(targets), middleware.MaskSessionID(sessionID))
	}
}

// clientsOf копирует соединения пользователя под RLock (с фильтром, если задан).
func (h *Hub) clientsOf(email string, keep func(*Client) bool) []*Client {
	h.mu.RLock()
	defer h.mu.RUnlock()
	clients := h.clients[model.NormalizeEmail(email)]
	out := make([]*Client, 0, len(clients))
	for c := range clients {
		if keep == nil || keep(c) {
			out = append(out, c)
		}
	}
	return out
}

// ConnectionCount - число активных соединений.
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.total
}

func (h *Hub) sendToClient(c *Client, msg OutgoingMessage) {
	select {
	case c.send <- msg:
	case <-c.done:
	default:
		// Backpressure: send buffer full, close slow client.
		logger.Errorf("ws send buffer full, closing slow client user=%s", middleware.MaskEmail(c.email))
		c.Close()
	}
}

func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	case <-h.done:
		c.Close()
	}
}

func (h *Hub) Unregister(c *Client) {
	select {
	case h.unregister <- c:
	case <-h.done:
	}
}

// clientError - текст ошибки для клиента; внутренние ошибки не раскрываются.
func clientError(err error) string {
	switch {
	case errors.Is(err, service.ErrChatNotFound), errors.Is(err, service.ErrNotParticipant):
		return err.Error()
	}
	logger.Errorf("ws: %v", err)
	return "internal error"
}
