package handler

import (
	"encoding/json"
	"log"
	"net/http"

	"rss-scraper/internal/middleware"
	"rss-scraper/internal/service"
)

type FeedHandler struct {
	feedService    *service.FeedService
	authMiddleware *middleware.AuthMiddleware
}

func NewFeedHandler(feedService *service.FeedService, authMiddleware *middleware.AuthMiddleware) *FeedHandler {
	return &FeedHandler{
		feedService:    feedService,
		authMiddleware: authMiddleware,
	}
}

func (h *FeedHandler) subscriber(r *http.Request) int {
	id, _ := h.authMiddleware.SubscriberID(r)
	return id
}

func (h *FeedHandler) ListFeeds(w http.ResponseWriter, r *http.Request) {
	feeds, err := h.feedService.ListFeeds(r.Context(), h.subscriber(r))
	if err != nil {
		writeError(w, err)
		return
	}
	if feeds == nil {
		writeJSON(w, http.StatusOK, []struct{}{})
		return
	}
	writeJSON(w, http.StatusOK, feeds)
}

func (h *FeedHandler) FollowFeed(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL string `json:"url"`
	}
	if !decodeJSON(w, r, &req) {
		return
	}

	feed, err := h.feedService.Follow(r.Context(), h.subscriber(r), req.URL)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, feed)
}

func (h *FeedHandler) GetFeed(w http.ResponseWriter, r *http.Request) {
	feedID, ok := pathID(w, r)
	if !ok {
		return
	}

	feed, err := h.feedService.GetFeed(r.Context(), h.subscriber(r), feedID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, feed)
}

func (h *FeedHandler) DeleteFeed(w http.ResponseWriter, r *http.Request) {
	feedID, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.feedService.Unfollow(r.Context(), h.subscriber(r), feedID); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *FeedHandler) RefreshFeed(w http.ResponseWriter, r *http.Request) {
	feedID, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.feedService.RefreshFeed(r.Context(), h.subscriber(r), feedID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]int{"queued": 1})
}

func (h *FeedHandler) RefreshFeeds(w http.ResponseWriter, r *http.Request) {
	n, err := h.feedService.RefreshSubscriberFeeds(r.Context(), h.subscriber(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]int{"queued": n})
}

func (h *FeedHandler) GetItem(w http.ResponseWriter, r *http.Request) {
	itemID, ok := pathID(w, r)
	if !ok {
		return
	}

	item, err := h.feedService.ItemDetail(r.Context(), h.subscriber(r), itemID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *FeedHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	itemID, ok := pathID(w, r)
	if !ok {
		return
	}

	var update service.ItemUpdate
	if !decodeJSON(w, r, &update) {
		return
	}

	item, err := h.feedService.UpdateItem(r.Context(), h.subscriber(r), itemID, update)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, item)
}

func (h *FeedHandler) Bookmarks(w http.ResponseWriter, r *http.Request) {
	items, err := h.feedService.Bookmarks(r.Context(), h.subscriber(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *FeedHandler) BookmarksRSS(w http.ResponseWriter, r *http.Request) {
	rss, err := h.feedService.BookmarksRSS(r.Context(), h.subscriber(r))
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/rss+xml; charset=utf-8")
	w.Write([]byte(rss))
}

func (h *FeedHandler) ExportFeeds(w http.ResponseWriter, r *http.Request) {
	subs, err := h.feedService.Export(r.Context(), h.subscriber(r))
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", "attachment; filename=rss-scraper-feeds.json")
	if err := json.NewEncoder(w).Encode(subs); err != nil {
		log.Printf("Error encoding export: %v", err)
	}
}

func (h *FeedHandler) ImportFeeds(w http.ResponseWriter, r *http.Request) {
	var subs service.Subscriptions
	if !decodeJSON(w, r, &subs) {
		return
	}

	result := h.feedService.Import(r.Context(), h.subscriber(r), subs)
	status := http.StatusOK
	if result.Imported == 0 && len(result.Errors) > 0 {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, result)
}
