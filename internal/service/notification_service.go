package service

import (
	"context"
	"fmt"

	"rss-scraper/internal/domain"
	"rss-scraper/internal/repository"
)

type NotificationService struct {
	notificationRepo repository.NotificationRepository
}

func NewNotificationService(notificationRepo repository.NotificationRepository) *NotificationService {
	return &NotificationService{notificationRepo: notificationRepo}
}

type Inbox struct {
	Unread        int                   `json:"unread"`
	Notifications []domain.Notification `json:"notifications"`
}

func (s *NotificationService) List(ctx context.Context, subscriberID int) (*Inbox, error) {
	list, err := s.notificationRepo.ListBySubscriber(ctx, subscriberID)
	if err != nil {
		return nil, fmt.Errorf("failed to get notifications: %w", err)
	}

	unread, err := s.notificationRepo.CountUnread(ctx, subscriberID)
	if err != nil {
		return nil, err
	}

	if list == nil {
		list = []domain.Notification{}
	}
	return &Inbox{Unread: unread, Notifications: list}, nil
}

// Get returns one notification and marks it read.
func (s *NotificationService) Get(ctx context.Context, subscriberID, notificationID int) (*domain.Notification, error) {
	n, err := s.notificationRepo.GetForSubscriber(ctx, notificationID, subscriberID)
	if err != nil {
		return nil, err
	}

	if n.Unread {
		if err := s.notificationRepo.MarkRead(ctx, n.ID); err != nil {
			return nil, err
		}
		n.Unread = false
	}
	return n, nil
}
