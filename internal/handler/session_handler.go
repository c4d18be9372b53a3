package handler

import (
	"log"
	"net/http"

	"rss-scraper/internal/middleware"
	"rss-scraper/internal/service"

	"github.com/gorilla/csrf"
)

type SessionHandler struct {
	subscriberService *service.SubscriberService
	authMiddleware    *middleware.AuthMiddleware
}

func NewSessionHandler(subscriberService *service.SubscriberService, authMiddleware *middleware.AuthMiddleware) *SessionHandler {
	return &SessionHandler{
		subscriberService: subscriberService,
		authMiddleware:    authMiddleware,
	}
}

// Current reports the signed-in subscriber and hands out the CSRF token.
func (h *SessionHandler) Current(w http.ResponseWriter, r *http.Request) {
	if token := csrf.Token(r); token != "" {
		w.Header().Set("X-CSRF-Token", token)
	}

	subscriberID, ok := h.authMiddleware.SubscriberID(r)
	if !ok {
		writeMessage(w, http.StatusUnauthorized, "authentication required")
		return
	}

	sub, err := h.subscriberService.Get(r.Context(), subscriberID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	sub, err := h.subscriberService.Login(r.Context(), req.Email)
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.authMiddleware.SetSubscriberSession(w, r, sub.ID); err != nil {
		log.Printf("Failed to set session for subscriber %d: %v", sub.ID, err)
		writeMessage(w, http.StatusInternalServerError, "internal server error")
		return
	}

	log.Printf("Subscriber %s signed in", sub.Email)
	writeJSON(w, http.StatusOK, sub)
}

func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.authMiddleware.ClearSession(w, r); err != nil {
		log.Printf("Error clearing session: %v", err)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *SessionHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	subscriberID, _ := h.authMiddleware.SubscriberID(r)

	var req struct {
		EmailAlerts *bool `json:"email_alerts"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.EmailAlerts == nil {
		writeMessage(w, http.StatusBadRequest, "email_alerts is required")
		return
	}

	sub, err := h.subscriberService.SetEmailAlerts(r.Context(), subscriberID, *req.EmailAlerts)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}
