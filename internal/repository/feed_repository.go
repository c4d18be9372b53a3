package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"rss-scraper/internal/database"
	"rss-scraper/internal/domain"
)

type FeedRepository interface {
	CreateWithItems(ctx context.Context, feed *domain.Feed, items []domain.Item, createdAt time.Time) error
	GetByID(ctx context.Context, feedID int) (*domain.Feed, error)
	GetForSubscriber(ctx context.Context, feedID, subscriberID int) (*domain.Feed, error)
	ListBySubscriber(ctx context.Context, subscriberID int) ([]domain.Feed, error)
	ListAll(ctx context.Context) ([]domain.Feed, error)
	ExistsByURL(ctx context.Context, subscriberID int, url string) (bool, error)
	Delete(ctx context.Context, feedID, subscriberID int) error
	RecordError(ctx context.Context, feedID int, message string) error
}

type feedRepository struct {
	store
}

func NewFeedRepository(db *sql.DB, dialect database.Dialect) FeedRepository {
	return &feedRepository{store{db: db, dialect: dialect}}
}

// CreateWithItems stores a new feed and its first batch of items atomically.
// feed.ID and every item's ID and FeedID are filled in on success. A feed
// created without items has not been refreshed yet, so last_refreshed_at
// stays NULL.
func (r *feedRepository) CreateWithItems(ctx context.Context, feed *domain.Feed, items []domain.Item, createdAt time.Time) error {
	if err := feed.Validate(); err != nil {
		return err
	}

	createdAt = createdAt.UTC()
	var refreshedAt *time.Time
	if len(items) > 0 {
		refreshedAt = &createdAt
	}

	err := r.withTx(ctx, func(tx *sql.Tx) error {
		id, err := r.insert(ctx, tx, `
			INSERT INTO feeds (subscriber_id, title, link, description, source_url, last_refreshed_at, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			feed.SubscriberID, feed.Title, feed.Link, feed.Description, feed.SourceURL, nullTime(refreshedAt), createdAt,
		)
		if err != nil {
			return err
		}

		for i := range items {
			items[i].FeedID = id
		}
		if err := r.insertItems(ctx, tx, items, createdAt); err != nil {
			return err
		}

		feed.ID = id
		return nil
	})
	if err != nil {
		if isDuplicateError(err) {
			return domain.ErrFeedAlreadyExists
		}
		return fmt.Errorf("failed to create feed: %w", err)
	}

	feed.CreatedAt = createdAt
	feed.LastRefreshedAt = refreshedAt
	feed.LastError = ""
	feed.UnreadCount = len(items)
	return nil
}

const feedSelect = `
	SELECT f.id, f.subscriber_id, f.title, f.link, f.description, f.source_url,
		f.last_refreshed_at, f.last_error, f.created_at,
		(SELECT COUNT(*) FROM items i WHERE i.feed_id = f.id AND i.unread = ?)
	FROM feeds f`

func scanFeed(row interface{ Scan(...interface{}) error }) (domain.Feed, error) {
	var (
		feed        domain.Feed
		refreshedAt sql.NullTime
		lastError   sql.NullString
	)
	err := row.Scan(
		&feed.ID, &feed.SubscriberID, &feed.Title, &feed.Link, &feed.Description, &feed.SourceURL,
		&refreshedAt, &lastError, &feed.CreatedAt, &feed.UnreadCount,
	)
	if err != nil {
		return feed, err
	}
	feed.LastRefreshedAt = timePtr(refreshedAt)
	feed.LastError = lastError.String
	feed.CreatedAt = feed.CreatedAt.UTC()
	return feed, nil
}

func (r *feedRepository) GetByID(ctx context.Context, feedID int) (*domain.Feed, error) {
	return r.getOne(ctx, feedSelect+" WHERE f.id = ?", true, feedID)
}

func (r *feedRepository) GetForSubscriber(ctx context.Context, feedID, subscriberID int) (*domain.Feed, error) {
	return r.getOne(ctx, feedSelect+" WHERE f.id = ? AND f.subscriber_id = ?", true, feedID, subscriberID)
}

func (r *feedRepository) getOne(ctx context.Context, query string, args ...interface{}) (*domain.Feed, error) {
	feed, err := scanFeed(r.queryRow(ctx, r.db, query, args...))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrFeedNotFound
		}
		return nil, fmt.Errorf("failed to get feed: %w", err)
	}
	return &feed, nil
}

func (r *feedRepository) ListBySubscriber(ctx context.Context, subscriberID int) ([]domain.Feed, error) {
	return r.list(ctx, feedSelect+" WHERE f.subscriber_id = ? ORDER BY f.title, f.id", true, subscriberID)
}

func (r *feedRepository) ListAll(ctx context.Context) ([]domain.Feed, error) {
	return r.list(ctx, feedSelect+" ORDER BY f.id", true)
}

func (r *feedRepository) list(ctx context.Context, query string, args ...interface{}) ([]domain.Feed, error) {
	rows, err := r.query(ctx, r.db, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get feeds: %w", err)
	}
	defer rows.Close()

	var feeds []domain.Feed
	for rows.Next() {
		feed, err := scanFeed(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feed: %w", err)
		}
		feeds = append(feeds, feed)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating feeds: %w", err)
	}

	return feeds, nil
}

func (r *feedRepository) ExistsByURL(ctx context.Context, subscriberID int, url string) (bool, error) {
	var count int
	err := r.queryRow(ctx, r.db,
		"SELECT COUNT(*) FROM feeds WHERE subscriber_id = ? AND source_url = ?",
		subscriberID, url,
	).Scan(&count)

	if err != nil {
		return false, fmt.Errorf("failed to check feed existence: %w", err)
	}

	return count > 0, nil
}

// Delete removes the feed together with its items and their comments.
func (r *feedRepository) Delete(ctx context.Context, feedID, subscriberID int) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		var count int
		err := r.queryRow(ctx, tx,
			"SELECT COUNT(*) FROM feeds WHERE id = ? AND subscriber_id = ?",
			feedID, subscriberID,
		).Scan(&count)
		if err != nil {
			return fmt.Errorf("failed to delete feed: %w", err)
		}
		if count == 0 {
			return domain.ErrFeedNotFound
		}

		stmts := []string{
			"DELETE FROM comments WHERE item_id IN (SELECT id FROM items WHERE feed_id = ?)",
			"DELETE FROM items WHERE feed_id = ?",
			"DELETE FROM feeds WHERE id = ?",
		}
		for _, stmt := range stmts {
			if _, err := r.exec(ctx, tx, stmt, feedID); err != nil {
				return fmt.Errorf("failed to delete feed: %w", err)
			}
		}
		return nil
	})
}

func (r *feedRepository) RecordError(ctx context.Context, feedID int, message string) error {
	_, err := r.exec(ctx, r.db,
		"UPDATE feeds SET last_error = ? WHERE id = ?",
		nullString(message), feedID,
	)
	if err != nil {
		return fmt.Errorf("failed to record feed error: %w", err)
	}
	return nil
}
