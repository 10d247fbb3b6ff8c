package ws

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/chatify/internal/events"
	"github.com/chatify/internal/model"
	"github.com/chatify/internal/service"
	"github.com/chatify/internal/service/servicetest"
	"github.com/chatify/internal/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	hub   *Hub
	store *servicetest.Store
	bus   *servicetest.Recorder
	auth  *service.AuthService
	chats *service.ChatService
	msgs  *service.MessageService
}

func newFixture(t *testing.T, maxConns int) *fixture {
	t.Helper()
	f := &fixture{store: servicetest.NewStore(), bus: &servicetest.Recorder{}}
	f.auth = service.NewAuthService(f.store.Users(), f.store.Sessions(), memory.New(), f.bus, nil, "secret", time.Hour)
	f.chats = service.NewChatService(f.store.Chats(), f.store.Users(), f.bus)
	f.msgs = service.NewMessageService(f.chats, f.store.Messages(), f.bus, nil)
	f.hub = NewHub(f.chats, f.msgs, events.NewMemoryBus(), maxConns)
	return f
}

func (f *fixture) user(t *testing.T, name string) model.Principal {
	t.Helper()
	res, err := f.auth.Register(context.Background(), service.RegisterRequest{Username: name, Email: name + "@x.io", Password: "secret1"})
	require.NoError(t, err)
	return res.User
}

// connect регистрирует соединение без сети и забирает стартовый снапшот чатов.
func (f *fixture) connect(t *testing.T, p model.Principal, session string) *Client {
	t.Helper()
	c := NewClient(f.hub, nil, &service.Identity{Principal: p, SessionID: session})
	f.hub.addClient(c)
	first := next(t, c)
	require.Equal(t, EventChats, first.Type)
	return c
}

func next(t *testing.T, c *Client) OutgoingMessage {
	t.Helper()
	select {
	case msg := <-c.send:
		return msg
	case <-time.After(time.Second):
		t.Fatal("no message for client")
	}
	return OutgoingMessage{}
}

func assertQuiet(t *testing.T, c *Client) {
	t.Helper()
	select {
	case msg := <-c.send:
		t.Fatalf("unexpected message %s", msg.Type)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestChatsEventSendsSnapshot(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	alice, bob := f.user(t, "alice"), f.user(t, "bob")
	ca := f.connect(t, alice, "sa")
	cb := f.connect(t, bob, "sb")

	_, _, err := f.chats.Start(ctx, alice, bob.Email)
	require.NoError(t, err)
	f.hub.Dispatch(ctx, events.Chats(alice.Email, bob.Email))

	for _, c := range []*Client{ca, cb} {
		msg := next(t, c)
		require.Equal(t, EventChats, msg.Type)
		assert.Len(t, msg.Payload.([]model.Chat), 1)
	}
}

func TestOpenChatMarksReadAndSubscribes(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	alice, bob := f.user(t, "alice"), f.user(t, "bob")
	chat, _, err := f.chats.Start(ctx, alice, bob.Email)
	require.NoError(t, err)
	_, err = f.msgs.Send(ctx, alice, chat.ID, "hi")
	require.NoError(t, err)

	cb := f.connect(t, bob, "sb")
	f.bus.Reset()
	f.hub.HandleMessage(ctx, cb, IncomingMessage{Type: EventOpenChat, ChatID: chat.ID})

	msg := next(t, cb)
	require.Equal(t, EventMessages, msg.Type)
	payload := msg.Payload.(MessagesPayload)
	assert.Equal(t, chat.ID, payload.ChatID)
	require.Len(t, payload.Messages, 1)
	assert.True(t, payload.Messages[0].Read, "opening the chat marks it read")
	assert.Equal(t, chat.ID, cb.OpenChat())
	assert.Equal(t, []events.Kind{events.KindMessages}, f.bus.Kinds(), "read flip is announced")

	f.hub.HandleMessage(ctx, cb, IncomingMessage{Type: EventCloseChat})
	assert.Empty(t, cb.OpenChat())
	f.hub.Dispatch(ctx, events.Messages(chat.ID, alice.Email, bob.Email))
	assertQuiet(t, cb)
}

func TestMessagesEventOnlyReachesViewersOfThatChat(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	alice, bob, carol := f.user(t, "alice"), f.user(t, "bob"), f.user(t, "carol")
	withBob, _, _ := f.chats.Start(ctx, alice, bob.Email)
	withCarol, _, _ := f.chats.Start(ctx, alice, carol.Email)

	ca := f.connect(t, alice, "sa")
	f.hub.HandleMessage(ctx, ca, IncomingMessage{Type: EventOpenChat, ChatID: withBob.ID})
	require.Equal(t, EventMessages, next(t, ca).Type)

	// переключение на другой чат снимает прежнего слушателя
	f.hub.HandleMessage(ctx, ca, IncomingMessage{Type: EventOpenChat, ChatID: withCarol.ID})
	require.Equal(t, withCarol.ID, next(t, ca).Payload.(MessagesPayload).ChatID)

	_, err := f.msgs.Send(ctx, bob, withBob.ID, "ping")
	require.NoError(t, err)
	f.hub.Dispatch(ctx, events.Messages(withBob.ID, alice.Email, bob.Email))
	assertQuiet(t, ca)

	_, err = f.msgs.Send(ctx, carol, withCarol.ID, "hey")
	require.NoError(t, err)
	f.bus.Reset()
	f.hub.Dispatch(ctx, events.Messages(withCarol.ID, alice.Email, carol.Email))
	msg := next(t, ca)
	payload := msg.Payload.(MessagesPayload)
	require.Len(t, payload.Messages, 1)
	assert.True(t, payload.Messages[0].Read, "viewer with the chat open reads on delivery")
	assert.Equal(t, []events.Kind{events.KindMessages}, f.bus.Kinds())

	// повторный проход ничего не меняет и не публикует
	f.bus.Reset()
	f.hub.Dispatch(ctx, events.Messages(withCarol.ID, alice.Email, carol.Email))
	next(t, ca)
	assert.Empty(t, f.bus.Kinds())
}

func TestOpenChatRejectsOutsider(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	alice, bob, eve := f.user(t, "alice"), f.user(t, "bob"), f.user(t, "eve")
	chat, _, _ := f.chats.Start(ctx, alice, bob.Email)

	ce := f.connect(t, eve, "se")
	f.hub.HandleMessage(ctx, ce, IncomingMessage{Type: EventOpenChat, ChatID: chat.ID})
	msg := next(t, ce)
	assert.Equal(t, EventError, msg.Type)
	assert.Equal(t, service.ErrNotParticipant.Error(), msg.Payload)
	assert.Empty(t, ce.OpenChat())

	f.hub.HandleMessage(ctx, ce, IncomingMessage{Type: "bogus"})
	assert.Equal(t, EventError, next(t, ce).Type)
}

func TestDeletedChatClearsOpenListener(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	alice, bob := f.user(t, "alice"), f.user(t, "bob")
	chat, _, _ := f.chats.Start(ctx, alice, bob.Email)
	cb := f.connect(t, bob, "sb")
	f.hub.HandleMessage(ctx, cb, IncomingMessage{Type: EventOpenChat, ChatID: chat.ID})
	next(t, cb)

	require.NoError(t, f.chats.Delete(ctx, alice.Email, chat.ID))
	f.hub.Dispatch(ctx, events.Messages(chat.ID, alice.Email, bob.Email))
	msg := next(t, cb)
	require.Equal(t, EventMessages, msg.Type)
	assert.Empty(t, msg.Payload.(MessagesPayload).Messages)
	assert.Empty(t, cb.OpenChat())
}

func TestSessionRevokedClosesOnlyThatSession(t *testing.T) {
	f := newFixture(t, 0)
	alice := f.user(t, "alice")
	phone := f.connect(t, alice, "s1")
	laptop := f.connect(t, alice, "s2")

	f.hub.Dispatch(context.Background(), events.SessionRevoked("s1"))
	select {
	case <-phone.done:
	default:
		t.Fatal("revoked session still open")
	}
	select {
	case <-laptop.done:
		t.Fatal("other session closed")
	default:
	}
}

func TestConnectionLimit(t *testing.T) {
	f := newFixture(t, 1)
	alice, bob := f.user(t, "alice"), f.user(t, "bob")
	f.connect(t, alice, "s1")

	c := NewClient(f.hub, nil, &service.Identity{Principal: bob, SessionID: "s2"})
	f.hub.addClient(c)
	select {
	case <-c.done:
	case <-time.After(time.Second):
		t.Fatal("client over the limit not closed")
	}
	assert.Equal(t, 1, f.hub.ConnectionCount())
}

// racingReader вставляет новое сообщение и событие шины сразу после первого List,
// то есть между чтением снапшота открытия и его отправкой.
type racingReader struct {
	MessageReader
	once  sync.Once
	after func()
}

func (r *racingReader) List(ctx context.Context, viewer, chatID string) ([]model.Message, error) {
	msgs, err := r.MessageReader.List(ctx, viewer, chatID)
	r.once.Do(r.after)
	return msgs, err
}

func TestOpenChatKeepsEventsArrivingDuringSnapshot(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()
	alice, bob := f.user(t, "alice"), f.user(t, "bob")
	chat, _, err := f.chats.Start(ctx, alice, bob.Email)
	require.NoError(t, err)

	reader := &racingReader{MessageReader: f.msgs}
	f.hub = NewHub(f.chats, reader, events.NewMemoryBus(), 0)
	reader.after = func() {
		_, err := f.msgs.Send(ctx, alice, chat.ID, "are you there?")
		require.NoError(t, err)
		f.hub.Dispatch(ctx, events.Messages(chat.ID, alice.Email, bob.Email))
	}

	cb := f.connect(t, bob, "sb")
	f.hub.HandleMessage(ctx, cb, IncomingMessage{Type: EventOpenChat, ChatID: chat.ID})

	var last MessagesPayload
	snapshots := 0
	for {
		select {
		case msg := <-cb.send:
			require.Equal(t, EventMessages, msg.Type)
			last = msg.Payload.(MessagesPayload)
			snapshots++
			continue
		case <-time.After(100 * time.Millisecond):
		}
		break
	}
	require.NotZero(t, snapshots)
	assert.Equal(t, chat.ID, last.ChatID)
	require.Len(t, last.Messages, 1, "latest snapshot includes the message sent while opening")
	assert.True(t, last.Messages[0].Read)
	assert.Equal(t, chat.ID, cb.OpenChat())
}
