package middleware

import (
	"bytes"
	"context"
	"errors"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/chatify/internal/model"
	"github.com/chatify/internal/service"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAuth struct {
	token string
	err   error
}

func (f fakeAuth) Authenticate(ctx context.Context, token string) (*service.Identity, error) {
	if f.err != nil {
		return nil, f.err
	}
	if token != f.token {
		return nil, service.ErrUnauthorized
	}
	return &service.Identity{Principal: model.Principal{UID: "u1", Email: "a@x.io"}, SessionID: "s1"}, nil
}

func echoIdentity() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(GetUserID(r.Context()) + "/" + GetSessionID(r.Context())))
	})
}

func TestSessionAuth(t *testing.T) {
	h := SessionAuth(fakeAuth{token: "good"})(echoIdentity())

	cases := []struct {
		name   string
		setup  func(r *http.Request)
		status int
		body   string
	}{
		{"no token", func(r *http.Request) {}, http.StatusUnauthorized, ""},
		{"bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer good") }, http.StatusOK, "u1/s1"},
		{"lowercase scheme", func(r *http.Request) { r.Header.Set("Authorization", "bearer good") }, http.StatusOK, "u1/s1"},
		{"query", func(r *http.Request) { r.URL.RawQuery = "token=good" }, http.StatusOK, "u1/s1"},
		{"bad token", func(r *http.Request) { r.Header.Set("Authorization", "Bearer bad") }, http.StatusUnauthorized, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/chats", nil)
			tc.setup(req)
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tc.status, rec.Code)
			if tc.body != "" {
				assert.Equal(t, tc.body, rec.Body.String())
			}
		})
	}
}

func TestSessionAuthStoreError(t *testing.T) {
	h := SessionAuth(fakeAuth{err: errors.New("redis down")})(echoIdentity())
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer x")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRecoverJSON(t *testing.T) {
	h := RecoverJSON(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"internal server error"}`, rec.Body.String())
}

func TestRateLimiterWindow(t *testing.T) {
	rl := newRateLimiter(2, time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }

	assert.True(t, rl.allow("k"))
	assert.True(t, rl.allow("k"))
	assert.False(t, rl.allow("k"))
	assert.True(t, rl.allow("other"))

	now = now.Add(time.Minute + time.Second)
	assert.True(t, rl.allow("k"))
}

func TestInternalOnly(t *testing.T) {
	t.Setenv("INTERNAL_SECRET", "")
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	h := InternalOnly(ok)
	call := func(h http.Handler, remote string, headers map[string]string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/subscribe", nil)
		req.RemoteAddr = remote
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusNoContent, call(h, "10.0.0.5:1234", nil))
	assert.Equal(t, http.StatusForbidden, call(h, "8.8.8.8:1234", nil))
	assert.Equal(t, http.StatusForbidden, call(h, "8.8.8.8:1234", map[string]string{"X-Real-Ip": "10.0.0.1"}),
		"forwarding headers are not trusted")
	assert.Equal(t, http.StatusForbidden, call(h, "8.8.8.8:1234", map[string]string{"X-Forwarded-For": "127.0.0.1"}))

	t.Setenv("INTERNAL_SECRET", "s3cret")
	h = InternalOnly(ok)
	assert.Equal(t, http.StatusForbidden, call(h, "10.0.0.5:1234", nil), "secret required once configured")
	assert.Equal(t, http.StatusForbidden, call(h, "10.0.0.5:1234", map[string]string{"X-Internal-Secret": "wrong"}))
	assert.Equal(t, http.StatusNoContent, call(h, "8.8.8.8:1234", map[string]string{"X-Internal-Secret": "s3cret"}))
}

func TestMasking(t *testing.T) {
	assert.Equal(t, "abcd***", MaskSessionID("abcdef-123"))
	assert.Equal(t, "****", MaskSessionID("abc"))
	assert.Equal(t, "a***@x.io", MaskEmail("alice@x.io"))
	assert.Equal(t, "***", MaskEmail("nope"))
}

func TestHideQueryTokenKeepsTokenOutOfAccessLog(t *testing.T) {
	var buf bytes.Buffer
	accessLog := chimw.RequestLogger(&chimw.DefaultLogFormatter{Logger: log.New(&buf, "", 0), NoColor: true})
	h := HideQueryToken(accessLog(SessionAuth(fakeAuth{token: "SECRET.JWT"})(echoIdentity())))

	req := httptest.NewRequest(http.MethodGet, "/ws?token=SECRET.JWT&x=1", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "u1/s1", rec.Body.String(), "query token still authenticates")
	assert.Contains(t, buf.String(), "/ws?x=1")
	assert.NotContains(t, buf.String(), "SECRET.JWT")

	// явный заголовок не перезаписывается
	req = httptest.NewRequest(http.MethodGet, "/ws?token=other", nil)
	req.Header.Set("Authorization", "Bearer SECRET.JWT")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
