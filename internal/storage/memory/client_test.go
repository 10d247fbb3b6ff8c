package memory

import (
	"context"
	"testing"
	"time"

	"github.com/chatify/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ storage.SessionStore = (*Client)(nil)

func TestSessionLifecycle(t *testing.T) {
	ctx := context.Background()
	c := New()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	require.NoError(t, c.SetSession(ctx, "s1", "u1", time.Hour))
	uid, err := c.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "u1", uid)

	now = now.Add(2 * time.Hour)
	uid, err = c.GetSession(ctx, "s1")
	require.NoError(t, err)
	assert.Empty(t, uid, "expired session")

	require.NoError(t, c.SetSession(ctx, "s2", "u2", time.Hour))
	require.NoError(t, c.DeleteSession(ctx, "s2"))
	uid, _ = c.GetSession(ctx, "s2")
	assert.Empty(t, uid)
}

func TestCheckRateLimitWindow(t *testing.T) {
	ctx := context.Background()
	c := New()
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	for i := 0; i < loginRateLimitMax; i++ {
		ok, err := c.CheckRateLimit(ctx, "a@x.io")
		require.NoError(t, err)
		require.True(t, ok, "attempt %d", i)
	}
	ok, _ := c.CheckRateLimit(ctx, "a@x.io")
	assert.False(t, ok)

	ok, _ = c.CheckRateLimit(ctx, "b@x.io")
	assert.True(t, ok, "limits are per email")

	now = now.Add(loginRateLimitWindow + time.Second)
	ok, _ = c.CheckRateLimit(ctx, "a@x.io")
	assert.True(t, ok, "window slides")
}
