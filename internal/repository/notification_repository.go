package repository

import (
	"context"
	"database/sql"
	"fmt"

	"rss-scraper/internal/database"
	"rss-scraper/internal/domain"
)

type NotificationRepository interface {
	Create(ctx context.Context, n *domain.Notification) error
	ListBySubscriber(ctx context.Context, subscriberID int) ([]domain.Notification, error)
	GetForSubscriber(ctx context.Context, id, subscriberID int) (*domain.Notification, error)
	MarkRead(ctx context.Context, id int) error
	CountUnread(ctx context.Context, subscriberID int) (int, error)
}

type notificationRepository struct {
	store
}

func NewNotificationRepository(db *sql.DB, dialect database.Dialect) NotificationRepository {
	return &notificationRepository{store{db: db, dialect: dialect}}
}

func (r *notificationRepository) Create(ctx context.Context, n *domain.Notification) error {
	if err := n.Validate(); err != nil {
		return err
	}

	n.Unread = true
	n.CreatedAt = now()
	id, err := r.insert(ctx, r.db,
		"INSERT INTO notifications (subscriber_id, title, details, unread, created_at) VALUES (?, ?, ?, ?, ?)",
		n.SubscriberID, n.Title, n.Details, n.Unread, n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}

	n.ID = id
	return nil
}

const notificationSelect = "SELECT id, subscriber_id, title, details, unread, created_at FROM notifications"

func scanNotification(row interface{ Scan(...interface{}) error }) (domain.Notification, error) {
	var n domain.Notification
	err := row.Scan(&n.ID, &n.SubscriberID, &n.Title, &n.Details, &n.Unread, &n.CreatedAt)
	n.CreatedAt = n.CreatedAt.UTC()
	return n, err
}

// ListBySubscriber returns the newest notifications first.
func (r *notificationRepository) ListBySubscriber(ctx context.Context, subscriberID int) ([]domain.Notification, error) {
	rows, err := r.query(ctx, r.db,
		notificationSelect+" WHERE subscriber_id = ? ORDER BY id DESC",
		subscriberID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get notifications: %w", err)
	}
	defer rows.Close()

	var out []domain.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan notification: %w", err)
		}
		out = append(out, n)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notifications: %w", err)
	}

	return out, nil
}

func (r *notificationRepository) GetForSubscriber(ctx context.Context, id, subscriberID int) (*domain.Notification, error) {
	n, err := scanNotification(r.queryRow(ctx, r.db,
		notificationSelect+" WHERE id = ? AND subscriber_id = ?",
		id, subscriberID,
	))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrNotificationNotFound
		}
		return nil, fmt.Errorf("failed to get notification: %w", err)
	}
	return &n, nil
}

func (r *notificationRepository) MarkRead(ctx context.Context, id int) error {
	_, err := r.exec(ctx, r.db, "UPDATE notifications SET unread = ? WHERE id = ?", false, id)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	return nil
}

func (r *notificationRepository) CountUnread(ctx context.Context, subscriberID int) (int, error) {
	var count int
	err := r.queryRow(ctx, r.db,
		"SELECT COUNT(*) FROM notifications WHERE subscriber_id = ? AND unread = ?",
		subscriberID, true,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count notifications: %w", err)
	}
	return count, nil
}
