package handler

import (
	"net/http"

	"rss-scraper/internal/middleware"
	"rss-scraper/internal/service"
)

type NotificationHandler struct {
	notificationService *service.NotificationService
	authMiddleware      *middleware.AuthMiddleware
}

func NewNotificationHandler(notificationService *service.NotificationService, authMiddleware *middleware.AuthMiddleware) *NotificationHandler {
	return &NotificationHandler{
		notificationService: notificationService,
		authMiddleware:      authMiddleware,
	}
}

func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	subscriberID, _ := h.authMiddleware.SubscriberID(r)

	inbox, err := h.notificationService.List(r.Context(), subscriberID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inbox)
}

func (h *NotificationHandler) Get(w http.ResponseWriter, r *http.Request) {
	subscriberID, _ := h.authMiddleware.SubscriberID(r)
	notificationID, ok := pathID(w, r)
	if !ok {
		return
	}

	n, err := h.notificationService.Get(r.Context(), subscriberID, notificationID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}
