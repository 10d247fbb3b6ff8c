package service

import (
	"context"
	"testing"
	"time"

	"github.com/chatify/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterValidation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	cases := []struct {
		req  RegisterRequest
		want error
	}{
		{RegisterRequest{Username: "ab", Email: "a@x.io", Password: "secret1"}, ErrInvalidUsername},
		{RegisterRequest{Username: "bad name", Email: "a@x.io", Password: "secret1"}, ErrInvalidUsername},
		{RegisterRequest{Username: "alice", Email: "not-an-email", Password: "secret1"}, ErrInvalidEmail},
		{RegisterRequest{Username: "alice", Email: "a@x.io", Password: "12345"}, ErrWeakPassword},
	}
	for _, tc := range cases {
		_, err := e.auth.Register(ctx, tc.req)
		assert.ErrorIs(t, err, tc.want)
	}
}

func TestRegisterUniqueness(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	res, err := e.auth.Register(ctx, RegisterRequest{Username: "Alice", Email: " Alice@X.io ", Password: "secret1"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, "alice@x.io", res.User.Email)
	assert.Equal(t, "Alice", res.User.Username)

	_, err = e.auth.Register(ctx, RegisterRequest{Username: "alice", Email: "other@x.io", Password: "secret1"})
	assert.ErrorIs(t, err, ErrUsernameTaken, "usernames are case-insensitive")

	_, err = e.auth.Register(ctx, RegisterRequest{Username: "alice2", Email: "alice@x.io", Password: "secret1"})
	assert.ErrorIs(t, err, ErrEmailInUse)
}

func TestLoginAndAuthenticate(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.register(t, "alice", "alice@x.io")

	_, err := e.auth.Login(ctx, LoginRequest{Email: "alice@x.io", Password: "wrong"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, err = e.auth.Login(ctx, LoginRequest{Email: "nobody@x.io", Password: "secret1"})
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	res, err := e.auth.Login(ctx, LoginRequest{Email: "ALICE@x.io", Password: "secret1"})
	require.NoError(t, err)

	id, err := e.auth.Authenticate(ctx, res.Token)
	require.NoError(t, err)
	assert.Equal(t, "alice@x.io", id.Email)
	assert.Equal(t, "alice", id.Username)
	assert.NotEmpty(t, id.SessionID)

	_, err = e.auth.Authenticate(ctx, res.Token+"x")
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestAuthenticateExpiredToken(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.register(t, "alice", "alice@x.io")
	res, err := e.auth.Login(ctx, LoginRequest{Email: "alice@x.io", Password: "secret1"})
	require.NoError(t, err)

	e.clock = e.clock.Add(2 * time.Hour)
	_, err = e.auth.Authenticate(ctx, res.Token)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestLoginRateLimit(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.register(t, "alice", "alice@x.io")
	var err error
	for i := 0; i < 11; i++ {
		_, err = e.auth.Login(ctx, LoginRequest{Email: "alice@x.io", Password: "wrong"})
	}
	assert.ErrorIs(t, err, ErrRateLimitExceeded)
}

func TestLogoutRevokesSession(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	e.register(t, "alice", "alice@x.io")
	res, err := e.auth.Login(ctx, LoginRequest{Email: "alice@x.io", Password: "secret1"})
	require.NoError(t, err)
	id, err := e.auth.Authenticate(ctx, res.Token)
	require.NoError(t, err)
	e.bus.Reset()

	require.NoError(t, e.auth.Logout(ctx, id.SessionID))
	assert.True(t, e.store.Sessions().Revoked(id.SessionID))
	_, err = e.auth.Authenticate(ctx, res.Token)
	assert.ErrorIs(t, err, ErrUnauthorized)

	evs := e.bus.Events()
	require.Len(t, evs, 1)
	assert.Equal(t, events.KindSessionRevoked, evs[0].Kind)
	assert.Equal(t, id.SessionID, evs[0].SessionID)
}
