package repository

import (
	"context"
	"database/sql"
	"fmt"

	"rss-scraper/internal/database"
	"rss-scraper/internal/domain"
)

type SubscriberRepository interface {
	Create(ctx context.Context, email string) (*domain.Subscriber, error)
	GetByEmail(ctx context.Context, email string) (*domain.Subscriber, error)
	GetByID(ctx context.Context, id int) (*domain.Subscriber, error)
	UpdateProfile(ctx context.Context, profile domain.Profile) error
}

type subscriberRepository struct {
	store
}

func NewSubscriberRepository(db *sql.DB, dialect database.Dialect) SubscriberRepository {
	return &subscriberRepository{store{db: db, dialect: dialect}}
}

// Create inserts the subscriber and its default profile together.
func (r *subscriberRepository) Create(ctx context.Context, email string) (*domain.Subscriber, error) {
	sub := &domain.Subscriber{Email: email, CreatedAt: now()}
	if err := sub.Validate(); err != nil {
		return nil, err
	}

	err := r.withTx(ctx, func(tx *sql.Tx) error {
		id, err := r.insert(ctx, tx,
			"INSERT INTO subscribers (email, created_at) VALUES (?, ?)",
			sub.Email, sub.CreatedAt,
		)
		if err != nil {
			return err
		}
		sub.ID = id
		sub.Profile = domain.Profile{SubscriberID: id}

		_, err = r.exec(ctx, tx,
			"INSERT INTO profiles (subscriber_id, email_alerts, created_at) VALUES (?, ?, ?)",
			id, sub.Profile.EmailAlerts, sub.CreatedAt,
		)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create subscriber: %w", err)
	}

	return sub, nil
}

const subscriberColumns = `
	SELECT s.id, s.email, s.created_at, COALESCE(p.email_alerts, FALSE)
	FROM subscribers s
	LEFT JOIN profiles p ON p.subscriber_id = s.id`

func (r *subscriberRepository) GetByEmail(ctx context.Context, email string) (*domain.Subscriber, error) {
	return r.get(ctx, subscriberColumns+" WHERE s.email = ?", email)
}

func (r *subscriberRepository) GetByID(ctx context.Context, id int) (*domain.Subscriber, error) {
	return r.get(ctx, subscriberColumns+" WHERE s.id = ?", id)
}

func (r *subscriberRepository) get(ctx context.Context, query string, args ...interface{}) (*domain.Subscriber, error) {
	sub := &domain.Subscriber{}

	err := r.queryRow(ctx, r.db, query, args...).Scan(
		&sub.ID, &sub.Email, &sub.CreatedAt, &sub.Profile.EmailAlerts,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrSubscriberNotFound
		}
		return nil, fmt.Errorf("failed to get subscriber: %w", err)
	}

	sub.CreatedAt = sub.CreatedAt.UTC()
	sub.Profile.SubscriberID = sub.ID
	return sub, nil
}

func (r *subscriberRepository) UpdateProfile(ctx context.Context, profile domain.Profile) error {
	var exists int
	err := r.queryRow(ctx, r.db, "SELECT COUNT(*) FROM subscribers WHERE id = ?", profile.SubscriberID).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	if exists == 0 {
		return domain.ErrSubscriberNotFound
	}

	_, err = r.exec(ctx, r.db,
		"UPDATE profiles SET email_alerts = ? WHERE subscriber_id = ?",
		profile.EmailAlerts, profile.SubscriberID,
	)
	if err != nil {
		return fmt.Errorf("failed to update profile: %w", err)
	}
	return nil
}
