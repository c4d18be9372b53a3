package pipeline

import (
	"context"
	"time"

	"rss-scraper/internal/domain"
	"rss-scraper/internal/feedparser"
	"rss-scraper/internal/repository"
	"rss-scraper/pkg/datetime"
)

// BuildItems turns parsed entries into fresh, unread, unbookmarked items for
// feedID, keeping the document order.
func BuildItems(feedID int, entries []feedparser.Entry) []domain.Item {
	items := make([]domain.Item, 0, len(entries))
	for _, e := range entries {
		item := domain.NewItem(feedID)
		item.Title = e.Title
		item.Link = e.Link
		item.Description = e.Description
		item.Summary = e.Summary
		if e.Published != nil {
			item.PublishedAt = datetime.Normalize(*e.Published)
		}
		items = append(items, item)
	}
	return items
}

// Reconciler applies a successful parse to a feed's stored items. At most one
// reconciliation per feed runs at a time.
type Reconciler struct {
	items repository.ItemRepository
	locks *keyLock
	now   func() time.Time
}

func NewReconciler(items repository.ItemRepository) *Reconciler {
	return &Reconciler{
		items: items,
		locks: newKeyLock(),
		now:   time.Now,
	}
}

// Reconcile replaces the feed's non-bookmarked items with entries and returns
// how many items were written. An empty entry list changes nothing. Once
// started it runs to completion even if ctx is cancelled.
func (r *Reconciler) Reconcile(ctx context.Context, feedID int, entries []feedparser.Entry) (int, error) {
	if len(entries) == 0 {
		return 0, nil
	}

	items := BuildItems(feedID, entries)

	r.locks.Lock(feedID)
	defer r.locks.Unlock(feedID)

	if _, err := r.items.ReplaceUnbookmarked(context.WithoutCancel(ctx), feedID, items, r.now()); err != nil {
		return 0, err
	}
	return len(items), nil
}
