package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/chatify/internal/events"
	"github.com/chatify/internal/handler"
	"github.com/chatify/internal/middleware"
	"github.com/chatify/internal/model"
	"github.com/chatify/internal/service"
	"github.com/chatify/internal/service/servicetest"
	"github.com/chatify/internal/storage/memory"
	"github.com/chatify/internal/ws"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newServer(t *testing.T) *API {
	t.Helper()
	store := servicetest.NewStore()
	bus := events.NewMemoryBus()
	auth := service.NewAuthService(store.Users(), store.Sessions(), memory.New(), bus, nil, "test-secret", time.Hour)
	chats := service.NewChatService(store.Chats(), store.Users(), bus)
	msgs := service.NewMessageService(chats, store.Messages(), bus, nil)
	hub := ws.NewHub(chats, msgs, bus, 100)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		hub.Run(ctx)
	}()

	r := chi.NewRouter()
	hs := &handler.Handlers{
		Auth:     handler.NewAuthHandler(auth),
		Chats:    handler.NewChatHandler(chats),
		Messages: handler.NewMessageHandler(msgs),
		WS:       handler.NewWSHandler(hub, "*"),
	}
	hs.Mount(r, middleware.SessionAuth(auth), nil)
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		srv.Close()
		cancel()
		<-done
	})
	return NewAPI(srv.URL + "/")
}

func nextEvent(t *testing.T, st *Stream, match func(Event) bool) Event {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-st.Events():
			require.True(t, ok, "stream closed")
			if match(ev) {
				return ev
			}
		case <-timeout:
			t.Fatal("event never arrived")
		}
	}
}

func TestPlatformErrorsAreVerbatim(t *testing.T) {
	api := newServer(t)
	ctx := context.Background()

	_, err := api.Register(ctx, "al", "al@x.io", "secret1")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, service.ErrInvalidUsername.Error(), err.Error())

	_, err = api.Login(ctx, "nobody@x.io", "secret1")
	require.Error(t, err)
	assert.Equal(t, "invalid email or password", err.Error())
}

func TestSessionRoundTrip(t *testing.T) {
	api := newServer(t)
	ctx := context.Background()

	alice, err := api.Register(ctx, "alice", "alice@x.io", "secret1")
	require.NoError(t, err)
	defer alice.Close()
	bob, err := api.Register(ctx, "bob", "bob@x.io", "secret1")
	require.NoError(t, err)
	defer bob.Close()
	assert.Equal(t, "alice", alice.Me().Username)

	st, err := alice.Subscribe(ctx)
	require.NoError(t, err)
	nextEvent(t, st, func(ev Event) bool { return ev.Chats != nil })

	chat, err := bob.StartChat(ctx, "alice@x.io")
	require.NoError(t, err)
	ev := nextEvent(t, st, func(ev Event) bool { return len(ev.Chats) == 1 })
	assert.Equal(t, chat.ID, ev.Chats[0].ID)

	require.NoError(t, st.OpenChat(chat.ID))
	nextEvent(t, st, func(ev Event) bool { return ev.Messages != nil })

	_, err = bob.Send(ctx, chat.ID, "hi")
	require.NoError(t, err)
	ev = nextEvent(t, st, func(ev Event) bool { return ev.Messages != nil && len(ev.Messages.Messages) == 1 })
	assert.True(t, ev.Messages.Messages[0].Read)

	msgs, err := bob.Messages(ctx, chat.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.True(t, msgs[0].Read, "alice had the chat open")

	_, err = bob.Send(ctx, chat.ID, "  ")
	assert.Equal(t, service.ErrBlankText.Error(), err.Error())

	require.NoError(t, alice.Logout(ctx))
	select {
	case _, ok := <-st.Events():
		for ok {
			_, ok = <-st.Events()
		}
	case <-time.After(2 * time.Second):
		t.Fatal("stream not closed after logout")
	}
	_, err = alice.Subscribe(ctx)
	assert.ErrorIs(t, err, ErrSessionClosed)
}

func TestWSURL(t *testing.T) {
	u, err := NewAPI("https://chat.example.com").wsURL()
	require.NoError(t, err)
	assert.Equal(t, "wss://chat.example.com/ws", u)
	u, err = NewAPI("http://localhost:8080/").wsURL()
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:8080/ws", u)
}

func TestStreamSendsTokenInHeader(t *testing.T) {
	seen := make(chan *http.Request, 1)
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen <- r.Clone(r.Context())
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.Close()
	}))
	defer srv.Close()

	sess := NewSession(NewAPI(srv.URL), "SECRET.JWT", model.Principal{Email: "a@x.io"})
	defer sess.Close()
	_, err := sess.Subscribe(context.Background())
	require.NoError(t, err)

	r := <-seen
	assert.Equal(t, "Bearer SECRET.JWT", r.Header.Get("Authorization"))
	assert.Empty(t, r.URL.RawQuery, "token must not travel in the URL")
	assert.NotContains(t, r.RequestURI, "SECRET.JWT")
}
