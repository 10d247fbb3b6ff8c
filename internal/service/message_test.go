package service

import (
	"context"
	"testing"
	"time"

	"github.com/chatify/internal/events"
	"github.com/chatify/internal/view"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendBlankWritesNothing(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice := e.register(t, "alice", "alice@x.io")
	e.register(t, "bob", "bob@x.io")
	c, _, _ := e.chats.Start(ctx, alice, "bob@x.io")
	e.bus.Reset()

	for _, text := range []string{"", "   ", "\n\t"} {
		_, err := e.msgs.Send(ctx, alice, c.ID, text)
		assert.ErrorIs(t, err, ErrBlankText)
	}
	msgs, err := e.msgs.List(ctx, alice.Email, c.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.Empty(t, e.bus.Events())
}

func TestSendNonParticipant(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice := e.register(t, "alice", "alice@x.io")
	e.register(t, "bob", "bob@x.io")
	eve := e.register(t, "eve", "eve@x.io")
	c, _, _ := e.chats.Start(ctx, alice, "bob@x.io")

	_, err := e.msgs.Send(ctx, eve, c.ID, "hi")
	assert.ErrorIs(t, err, ErrNotParticipant)
}

// Сценарий: A пишет B, B открывает чат, A видит прочтение, A редактирует, A удаляет чат.
func TestConversationScenario(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice := e.register(t, "alice", "alice@x.io")
	bob := e.register(t, "bob", "bob@x.io")

	c, created, err := e.chats.Start(ctx, alice, "bob@x.io")
	require.NoError(t, err)
	require.True(t, created)
	list, _ := e.chats.List(ctx, alice.Email, "")
	require.Len(t, list, 1)
	assert.Equal(t, "bob", view.DisplayName(list[0], alice.Email))

	e.bus.Reset()
	m, err := e.msgs.Send(ctx, alice, c.ID, "hi")
	require.NoError(t, err)
	assert.False(t, m.Read)
	assert.Equal(t, []events.Kind{events.KindMessages, events.KindChats}, kindsOf(e.bus.Events()))

	select {
	case <-e.notes.done:
	case <-time.After(time.Second):
		t.Fatal("push not sent")
	}
	assert.Equal(t, []string{"bob@x.io|alice|hi|" + c.ID}, e.notes.sent)

	got, _ := e.chats.Get(ctx, bob.Email, c.ID)
	assert.Equal(t, "hi", got.LastMessage)
	require.NotNil(t, got.LastMessageTime)

	// свои сообщения при открытии чата не трогаются
	n, err := e.msgs.MarkRead(ctx, alice.Email, c.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	e.bus.Reset()
	n, err = e.msgs.MarkRead(ctx, bob.Email, c.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
	assert.Equal(t, []events.Kind{events.KindMessages}, kindsOf(e.bus.Events()))

	// повторное открытие ничего не меняет и не публикует
	e.bus.Reset()
	n, _ = e.msgs.MarkRead(ctx, bob.Email, c.ID)
	assert.Zero(t, n)
	assert.Empty(t, e.bus.Events())

	items, err := e.msgs.Timeline(ctx, alice.Email, c.ID, time.UTC)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Today", items[0].Label)
	assert.Equal(t, view.ReceiptRead, items[1].Receipt)

	_, err = e.msgs.Edit(ctx, bob.Email, c.ID, m.ID, "hacked")
	assert.ErrorIs(t, err, ErrNotAuthor)
	_, err = e.msgs.Edit(ctx, alice.Email, c.ID, m.ID, " ")
	assert.ErrorIs(t, err, ErrBlankText)

	e.tick()
	edited, err := e.msgs.Edit(ctx, alice.Email, c.ID, m.ID, "hello")
	require.NoError(t, err)
	assert.True(t, edited.Edited)
	require.NotNil(t, edited.EditedAt)
	msgs, _ := e.msgs.List(ctx, bob.Email, c.ID)
	require.Len(t, msgs, 1)
	assert.Equal(t, "hello", msgs[0].Text)
	assert.True(t, msgs[0].Edited)
	got, _ = e.chats.Get(ctx, alice.Email, c.ID)
	assert.Equal(t, "hello", got.LastMessage, "summary follows edit of latest message")

	require.NoError(t, e.chats.Delete(ctx, alice.Email, c.ID))
	for _, who := range []string{alice.Email, bob.Email} {
		chats, _ := e.chats.List(ctx, who, "")
		assert.Empty(t, chats)
	}
}

func TestDeleteMessageRecomputesSummary(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice := e.register(t, "alice", "alice@x.io")
	bob := e.register(t, "bob", "bob@x.io")
	c, _, _ := e.chats.Start(ctx, alice, "bob@x.io")

	first, err := e.msgs.Send(ctx, alice, c.ID, "one")
	require.NoError(t, err)
	e.tick()
	second, err := e.msgs.Send(ctx, bob, c.ID, "two")
	require.NoError(t, err)

	assert.ErrorIs(t, e.msgs.Delete(ctx, alice.Email, c.ID, second.ID), ErrNotAuthor)
	assert.ErrorIs(t, e.msgs.Delete(ctx, bob.Email, c.ID, "missing"), ErrMessageNotFound)

	require.NoError(t, e.msgs.Delete(ctx, bob.Email, c.ID, second.ID))
	got, _ := e.chats.Get(ctx, alice.Email, c.ID)
	assert.Equal(t, "one", got.LastMessage)
	require.NotNil(t, got.LastMessageTime)
	assert.True(t, got.LastMessageTime.Equal(first.Timestamp))

	require.NoError(t, e.msgs.Delete(ctx, alice.Email, c.ID, first.ID))
	got, _ = e.chats.Get(ctx, alice.Email, c.ID)
	assert.Empty(t, got.LastMessage)
	assert.Nil(t, got.LastMessageTime)
}

func TestListMessagesAscending(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	alice := e.register(t, "alice", "alice@x.io")
	e.register(t, "bob", "bob@x.io")
	c, _, _ := e.chats.Start(ctx, alice, "bob@x.io")
	for _, text := range []string{"a", "b", "c"} {
		_, err := e.msgs.Send(ctx, alice, c.ID, text)
		require.NoError(t, err)
		e.tick()
	}
	msgs, err := e.msgs.List(ctx, alice.Email, c.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 3)
	for i := 1; i < len(msgs); i++ {
		assert.False(t, msgs[i].Timestamp.Before(msgs[i-1].Timestamp))
	}
	assert.Equal(t, "c", msgs[2].Text)
}
