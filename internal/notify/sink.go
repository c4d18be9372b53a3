package notify

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log"

	"rss-scraper/internal/domain"
	"rss-scraper/internal/repository"
	"rss-scraper/pkg/email"
)

// Sink receives refresh failures destined for a subscriber.
type Sink interface {
	Notify(ctx context.Context, subscriberID int, title, detailURL string) error
}

type SinkFunc func(ctx context.Context, subscriberID int, title, detailURL string) error

func (f SinkFunc) Notify(ctx context.Context, subscriberID int, title, detailURL string) error {
	return f(ctx, subscriberID, title, detailURL)
}

// StoreSink writes an unread Notification to the subscriber's inbox.
type StoreSink struct {
	notifications repository.NotificationRepository
}

func NewStoreSink(notifications repository.NotificationRepository) *StoreSink {
	return &StoreSink{notifications: notifications}
}

func (s *StoreSink) Notify(ctx context.Context, subscriberID int, title, detailURL string) error {
	n := &domain.Notification{
		SubscriberID: subscriberID,
		Title:        title,
		Details:      detailURL,
	}
	if err := s.notifications.Create(ctx, n); err != nil {
		return fmt.Errorf("failed to store notification: %w", err)
	}
	return nil
}

// EmailSink mails the subscriber when their profile has email alerts on.
type EmailSink struct {
	subscribers repository.SubscriberRepository
	mailer      email.Service
}

func NewEmailSink(subscribers repository.SubscriberRepository, mailer email.Service) *EmailSink {
	return &EmailSink{subscribers: subscribers, mailer: mailer}
}

func (s *EmailSink) Notify(ctx context.Context, subscriberID int, title, detailURL string) error {
	sub, err := s.subscribers.GetByID(ctx, subscriberID)
	if err != nil {
		return fmt.Errorf("failed to load subscriber: %w", err)
	}
	if !sub.Profile.EmailAlerts {
		return nil
	}

	body := fmt.Sprintf(
		`<p>%s</p><p>Feed details: <a href="%s">%s</a></p>`,
		html.EscapeString(title), html.EscapeString(detailURL), html.EscapeString(detailURL),
	)
	return s.mailer.SendEmail(sub.Email, title, body)
}

// Multi delivers to every sink, even when an earlier one fails.
type Multi []Sink

func (m Multi) Notify(ctx context.Context, subscriberID int, title, detailURL string) error {
	var errs []error
	for _, sink := range m {
		if err := sink.Notify(ctx, subscriberID, title, detailURL); err != nil {
			log.Printf("Notification sink failed for subscriber %d: %v", subscriberID, err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
