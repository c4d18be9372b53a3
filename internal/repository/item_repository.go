package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"rss-scraper/internal/database"
	"rss-scraper/internal/domain"
)

type ItemRepository interface {
	ReplaceUnbookmarked(ctx context.Context, feedID int, items []domain.Item, refreshedAt time.Time) (int, error)
	ListByFeed(ctx context.Context, feedID int) ([]domain.Item, error)
	GetForSubscriber(ctx context.Context, itemID, subscriberID int) (*domain.Item, error)
	MarkRead(ctx context.Context, itemID int) error
	Bookmark(ctx context.Context, itemID int, bookmark bool) error
	ListBookmarked(ctx context.Context, subscriberID int) ([]domain.Item, error)
}

type itemRepository struct {
	store
}

func NewItemRepository(db *sql.DB, dialect database.Dialect) ItemRepository {
	return &itemRepository{store{db: db, dialect: dialect}}
}

// ReplaceUnbookmarked swaps every non-bookmarked item of the feed (and the
// comments attached to them) for items, in order, then stamps the feed as
// refreshed and clears its last error. All of it commits or none of it does.
// It returns how many items were removed; items get their IDs filled in.
func (r *itemRepository) ReplaceUnbookmarked(ctx context.Context, feedID int, items []domain.Item, refreshedAt time.Time) (int, error) {
	refreshedAt = refreshedAt.UTC()
	var deleted int64

	err := r.withTx(ctx, func(tx *sql.Tx) error {
		var count int
		if err := r.queryRow(ctx, tx, "SELECT COUNT(*) FROM feeds WHERE id = ?", feedID).Scan(&count); err != nil {
			return err
		}
		if count == 0 {
			return domain.ErrFeedNotFound
		}

		_, err := r.exec(ctx, tx,
			"DELETE FROM comments WHERE item_id IN (SELECT id FROM items WHERE feed_id = ? AND bookmark = ?)",
			feedID, false,
		)
		if err != nil {
			return err
		}

		res, err := r.exec(ctx, tx, "DELETE FROM items WHERE feed_id = ? AND bookmark = ?", feedID, false)
		if err != nil {
			return err
		}
		if deleted, err = res.RowsAffected(); err != nil {
			return err
		}

		for i := range items {
			items[i].FeedID = feedID
		}
		if err := r.insertItems(ctx, tx, items, refreshedAt); err != nil {
			return err
		}

		_, err = r.exec(ctx, tx,
			"UPDATE feeds SET last_refreshed_at = ?, last_error = NULL WHERE id = ?",
			refreshedAt, feedID,
		)
		return err
	})
	if err != nil {
		if err == domain.ErrFeedNotFound {
			return 0, err
		}
		return 0, fmt.Errorf("failed to replace items: %w", err)
	}

	return int(deleted), nil
}

// insertBatchSize keeps a multi-row insert under every dialect's
// placeholder limit.
const insertBatchSize = 500

const itemColumns = "(feed_id, title, link, description, summary, unread, bookmark, published_at, created_at)"

// insertItems writes items in document order and fills in their IDs. Dialects
// with RETURNING get one multi-row INSERT per batch; MySQL inserts row by row
// because LastInsertId only reports the first id of a batch.
func (s store) insertItems(ctx context.Context, q querier, items []domain.Item, createdAt time.Time) error {
	for i := range items {
		if err := items[i].Validate(); err != nil {
			return err
		}
	}

	if !s.dialect.SupportsReturning() {
		for i := range items {
			id, err := s.insert(ctx, q, "INSERT INTO items "+itemColumns+" VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
				itemArgs(&items[i], createdAt)...)
			if err != nil {
				return fmt.Errorf("failed to insert item %d: %w", i, err)
			}
			items[i].ID = id
			items[i].CreatedAt = createdAt
		}
		return nil
	}

	for start := 0; start < len(items); start += insertBatchSize {
		end := min(start+insertBatchSize, len(items))
		if err := s.insertBatch(ctx, q, items[start:end], createdAt); err != nil {
			return fmt.Errorf("failed to insert items %d-%d: %w", start, end-1, err)
		}
	}
	return nil
}

func (s store) insertBatch(ctx context.Context, q querier, batch []domain.Item, createdAt time.Time) error {
	var sb strings.Builder
	sb.WriteString("INSERT INTO items " + itemColumns + " VALUES ")

	args := make([]interface{}, 0, len(batch)*9)
	for i := range batch {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(?, ?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args, itemArgs(&batch[i], createdAt)...)
	}
	sb.WriteString(" RETURNING id")

	rows, err := s.query(ctx, q, sb.String(), args...)
	if err != nil {
		return err
	}
	defer rows.Close()

	ids := make([]int, 0, len(batch))
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if len(ids) != len(batch) {
		return fmt.Errorf("inserted %d rows, got %d ids", len(batch), len(ids))
	}

	// RETURNING order is unspecified but ids are allocated in VALUES order.
	sort.Ints(ids)
	for i := range batch {
		batch[i].ID = ids[i]
		batch[i].CreatedAt = createdAt
	}
	return nil
}

func itemArgs(item *domain.Item, createdAt time.Time) []interface{} {
	return []interface{}{
		item.FeedID,
		nullStringPtr(item.Title),
		nullStringPtr(item.Link),
		nullStringPtr(item.Description),
		nullStringPtr(item.Summary),
		item.Unread,
		item.Bookmark,
		nullTime(item.PublishedAt),
		createdAt,
	}
}

const itemSelect = `
	SELECT i.id, i.feed_id, i.title, i.link, i.description, i.summary,
		i.unread, i.bookmark, i.published_at, i.created_at
	FROM items i`

func scanItem(row interface{ Scan(...interface{}) error }) (domain.Item, error) {
	var (
		item                              domain.Item
		title, link, description, summary sql.NullString
		publishedAt                       sql.NullTime
	)
	err := row.Scan(
		&item.ID, &item.FeedID, &title, &link, &description, &summary,
		&item.Unread, &item.Bookmark, &publishedAt, &item.CreatedAt,
	)
	if err != nil {
		return item, err
	}
	item.Title = stringPtr(title)
	item.Link = stringPtr(link)
	item.Description = stringPtr(description)
	item.Summary = stringPtr(summary)
	item.PublishedAt = timePtr(publishedAt)
	item.CreatedAt = item.CreatedAt.UTC()
	return item, nil
}

// ListByFeed returns items in insertion order, which for one refresh is the
// order the entries appeared in the document.
func (r *itemRepository) ListByFeed(ctx context.Context, feedID int) ([]domain.Item, error) {
	return r.list(ctx, itemSelect+" WHERE i.feed_id = ? ORDER BY i.id", feedID)
}

func (r *itemRepository) ListBookmarked(ctx context.Context, subscriberID int) ([]domain.Item, error) {
	return r.list(ctx, itemSelect+`
		JOIN feeds f ON f.id = i.feed_id
		WHERE f.subscriber_id = ? AND i.bookmark = ?
		ORDER BY i.id DESC`,
		subscriberID, true,
	)
}

func (r *itemRepository) list(ctx context.Context, query string, args ...interface{}) ([]domain.Item, error) {
	rows, err := r.query(ctx, r.db, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get items: %w", err)
	}
	defer rows.Close()

	var items []domain.Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, item)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating items: %w", err)
	}

	return items, nil
}

func (r *itemRepository) GetForSubscriber(ctx context.Context, itemID, subscriberID int) (*domain.Item, error) {
	item, err := scanItem(r.queryRow(ctx, r.db, itemSelect+`
		JOIN feeds f ON f.id = i.feed_id
		WHERE i.id = ? AND f.subscriber_id = ?`,
		itemID, subscriberID,
	))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, domain.ErrItemNotFound
		}
		return nil, fmt.Errorf("failed to get item: %w", err)
	}
	return &item, nil
}

func (r *itemRepository) MarkRead(ctx context.Context, itemID int) error {
	return r.update(ctx, "UPDATE items SET unread = ? WHERE id = ?", false, itemID)
}

func (r *itemRepository) Bookmark(ctx context.Context, itemID int, bookmark bool) error {
	return r.update(ctx, "UPDATE items SET bookmark = ? WHERE id = ?", bookmark, itemID)
}

func (r *itemRepository) update(ctx context.Context, query string, value bool, itemID int) error {
	var count int
	if err := r.queryRow(ctx, r.db, "SELECT COUNT(*) FROM items WHERE id = ?", itemID).Scan(&count); err != nil {
		return fmt.Errorf("failed to update item: %w", err)
	}
	if count == 0 {
		return domain.ErrItemNotFound
	}

	if _, err := r.exec(ctx, r.db, query, value, itemID); err != nil {
		return fmt.Errorf("failed to update item: %w", err)
	}
	return nil
}
