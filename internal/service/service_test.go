package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/chatify/internal/events"
	"github.com/chatify/internal/model"
	"github.com/chatify/internal/service/servicetest"
	"github.com/chatify/internal/storage/memory"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

type env struct {
	store    *servicetest.Store
	sessions *memory.Client
	bus      *servicetest.Recorder
	notes    *notifyRecorder
	auth     *AuthService
	chats    *ChatService
	msgs     *MessageService
	clock    time.Time
}

type notifyRecorder struct {
	mu   sync.Mutex
	sent []string
	done chan struct{}
}

func (n *notifyRecorder) Notify(ctx context.Context, email, title, body string, data map[string]string) {
	n.mu.Lock()
	n.sent = append(n.sent, email+"|"+title+"|"+body+"|"+data["chat_id"])
	n.mu.Unlock()
	n.done <- struct{}{}
}

func newEnv(t *testing.T) *env {
	t.Helper()
	e := &env{
		store:    servicetest.NewStore(),
		sessions: memory.New(),
		bus:      &servicetest.Recorder{},
		notes:    &notifyRecorder{done: make(chan struct{}, 16)},
		clock:    time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC),
	}
	now := func() time.Time { return e.clock }
	e.auth = NewAuthService(e.store.Users(), e.store.Sessions(), e.sessions, e.bus, nil, testSecret, time.Hour)
	e.auth.now = now
	e.chats = NewChatService(e.store.Chats(), e.store.Users(), e.bus)
	e.chats.now = now
	e.msgs = NewMessageService(e.chats, e.store.Messages(), e.bus, e.notes)
	e.msgs.now = now
	return e
}

func (e *env) tick() { e.clock = e.clock.Add(time.Second) }

func (e *env) register(t *testing.T, username, email string) model.Principal {
	t.Helper()
	res, err := e.auth.Register(context.Background(), RegisterRequest{Username: username, Email: email, Password: "secret1"})
	require.NoError(t, err)
	return res.User
}

func kindsOf(evs []events.Event) []events.Kind {
	var out []events.Kind
	for _, ev := range evs {
		out = append(out, ev.Kind)
	}
	return out
}
