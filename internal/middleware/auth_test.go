package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/sessions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuth() *AuthMiddleware {
	return NewAuthMiddleware(sessions.NewCookieStore([]byte("0123456789abcdef0123456789abcdef")))
}

func TestRequireAuth_RejectsAnonymous(t *testing.T) {
	m := newAuth()
	called := false
	h := m.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/feeds", nil))

	assert.False(t, called)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"authentication required"}`, rec.Body.String())
}

func TestRequireAuth_SessionRoundTrip(t *testing.T) {
	m := newAuth()

	login := httptest.NewRecorder()
	require.NoError(t, m.SetSubscriberSession(login, httptest.NewRequest(http.MethodPost, "/session", nil), 42))
	cookies := login.Result().Cookies()
	require.NotEmpty(t, cookies)

	var seen int
	h := m.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = m.SubscriberID(r)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/feeds", nil)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 42, seen)

	logout := httptest.NewRecorder()
	require.NoError(t, m.ClearSession(logout, req))
	cleared := httptest.NewRequest(http.MethodGet, "/api/feeds", nil)
	for _, c := range logout.Result().Cookies() {
		cleared.AddCookie(c)
	}
	_, ok := m.SubscriberID(cleared)
	assert.False(t, ok)
}
