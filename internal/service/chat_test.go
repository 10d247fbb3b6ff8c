package service

import (
	"context"
	"testing"

	"github.com/chatify/internal/events"
	"github.com/chatify/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStartChatRejectsSelfBeforeWrite(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice := e.register(t, "alice", "alice@x.io")
	e.bus.Reset()

	_, _, err := e.chats.Start(ctx, alice, " ALICE@x.io")
	assert.ErrorIs(t, err, ErrSelfChat)
	chats, _ := e.chats.List(ctx, alice.Email, "")
	assert.Empty(t, chats)
	assert.Empty(t, e.bus.Events())
}

func TestStartChatUnknownTarget(t *testing.T) {
	e := newEnv(t)
	alice := e.register(t, "alice", "alice@x.io")
	_, _, err := e.chats.Start(context.Background(), alice, "ghost@x.io")
	assert.ErrorIs(t, err, ErrUserNotFound)
	_, _, err = e.chats.Start(context.Background(), alice, "not an email")
	assert.ErrorIs(t, err, ErrInvalidEmail)
}

func TestStartChatIsIdempotentPerPair(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice := e.register(t, "alice", "alice@x.io")
	bob := e.register(t, "bob", "bob@x.io")
	e.bus.Reset()

	c, created, err := e.chats.Start(ctx, alice, "bob@x.io")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, model.ChatID("alice@x.io", "bob@x.io"), c.ID)
	assert.Equal(t, "bob", c.ParticipantData["bob@x.io"].Username)
	assert.Equal(t, "alice", c.ParticipantData["alice@x.io"].Username)
	assert.Equal(t, []events.Kind{events.KindChats}, kindsOf(e.bus.Events()))

	again, created, err := e.chats.Start(ctx, bob, "Alice@x.io")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, c.ID, again.ID)

	aliceChats, _ := e.chats.List(ctx, alice.Email, "")
	bobChats, _ := e.chats.List(ctx, bob.Email, "")
	assert.Len(t, aliceChats, 1)
	assert.Len(t, bobChats, 1)
}

func TestGetChatRequiresParticipant(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice := e.register(t, "alice", "alice@x.io")
	e.register(t, "bob", "bob@x.io")
	e.register(t, "eve", "eve@x.io")
	c, _, err := e.chats.Start(ctx, alice, "bob@x.io")
	require.NoError(t, err)

	_, err = e.chats.Get(ctx, "eve@x.io", c.ID)
	assert.ErrorIs(t, err, ErrNotParticipant)
	_, err = e.chats.Get(ctx, "alice@x.io", "missing")
	assert.ErrorIs(t, err, ErrChatNotFound)
	assert.ErrorIs(t, e.chats.Delete(ctx, "eve@x.io", c.ID), ErrNotParticipant)
}

func TestListChatsSortedAndFiltered(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice := e.register(t, "alice", "alice@x.io")
	e.register(t, "bob", "bob@x.io")
	e.register(t, "carol", "carol@y.io")
	e.register(t, "dave", "dave@x.io")

	withBob, _, _ := e.chats.Start(ctx, alice, "bob@x.io")
	e.tick()
	withCarol, _, _ := e.chats.Start(ctx, alice, "carol@y.io")
	e.tick()
	withDave, _, _ := e.chats.Start(ctx, alice, "dave@x.io")
	e.tick()
	_, err := e.msgs.Send(ctx, alice, withBob.ID, "hi bob")
	require.NoError(t, err)
	e.tick()
	_, err = e.msgs.Send(ctx, alice, withCarol.ID, "hi carol")
	require.NoError(t, err)

	chats, err := e.chats.List(ctx, alice.Email, "")
	require.NoError(t, err)
	require.Len(t, chats, 3)
	assert.Equal(t, []string{withCarol.ID, withBob.ID, withDave.ID}, []string{chats[0].ID, chats[1].ID, chats[2].ID})

	chats, err = e.chats.List(ctx, alice.Email, "CAR")
	require.NoError(t, err)
	require.Len(t, chats, 1)
	assert.Equal(t, withCarol.ID, chats[0].ID)
}

func TestDeleteChatCascades(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice := e.register(t, "alice", "alice@x.io")
	bob := e.register(t, "bob", "bob@x.io")
	c, _, _ := e.chats.Start(ctx, alice, "bob@x.io")
	_, err := e.msgs.Send(ctx, alice, c.ID, "hi")
	require.NoError(t, err)
	e.bus.Reset()

	require.NoError(t, e.chats.Delete(ctx, bob.Email, c.ID))
	assert.Equal(t, []events.Kind{events.KindChats, events.KindMessages}, kindsOf(e.bus.Events()))

	for _, who := range []string{alice.Email, bob.Email} {
		chats, _ := e.chats.List(ctx, who, "")
		assert.Empty(t, chats)
	}
	left, _ := e.store.Messages().ListByChat(ctx, c.ID)
	assert.Empty(t, left)
	_, err = e.msgs.List(ctx, alice.Email, c.ID)
	assert.ErrorIs(t, err, ErrChatNotFound)
}
