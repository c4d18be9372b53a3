package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/sessions"
)

const sessionName = "session"

type contextKey struct{}

type AuthMiddleware struct {
	store sessions.Store
}

func NewAuthMiddleware(store sessions.Store) *AuthMiddleware {
	return &AuthMiddleware{
		store: store,
	}
}

// RequireAuth rejects requests without a subscriber session and stores the
// subscriber ID in the request context for handlers.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subscriberID, ok := m.sessionSubscriberID(r)
		if !ok {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"error": "authentication required"})
			return
		}

		ctx := context.WithValue(r.Context(), contextKey{}, subscriberID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// SubscriberID returns the subscriber placed in the context by RequireAuth,
// falling back to the session cookie.
func (m *AuthMiddleware) SubscriberID(r *http.Request) (int, bool) {
	if id, ok := r.Context().Value(contextKey{}).(int); ok {
		return id, true
	}
	return m.sessionSubscriberID(r)
}

func (m *AuthMiddleware) sessionSubscriberID(r *http.Request) (int, bool) {
	session, err := m.store.Get(r, sessionName)
	if err != nil {
		return 0, false
	}

	auth, ok := session.Values["authenticated"].(bool)
	if !ok || !auth {
		return 0, false
	}

	subscriberID, ok := session.Values["subscriber_id"].(int)
	return subscriberID, ok && subscriberID > 0
}

func (m *AuthMiddleware) SetSubscriberSession(w http.ResponseWriter, r *http.Request, subscriberID int) error {
	session, err := m.store.Get(r, sessionName)
	if err != nil && session == nil {
		return err
	}

	session.Values["authenticated"] = true
	session.Values["subscriber_id"] = subscriberID

	return session.Save(r, w)
}

func (m *AuthMiddleware) ClearSession(w http.ResponseWriter, r *http.Request) error {
	session, err := m.store.Get(r, sessionName)
	if err != nil && session == nil {
		return err
	}

	session.Values["authenticated"] = false
	delete(session.Values, "subscriber_id")
	session.Options.MaxAge = -1

	return session.Save(r, w)
}
