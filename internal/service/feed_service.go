package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"rss-scraper/internal/domain"
	"rss-scraper/internal/feedparser"
	"rss-scraper/internal/fetch"
	"rss-scraper/internal/pipeline"
	"rss-scraper/internal/repository"
	"rss-scraper/pkg/datetime"
	"rss-scraper/pkg/ratelimit"

	"github.com/PuerkitoBio/goquery"
	"github.com/gorilla/feeds"
)

const excerptLength = 300

// Refresher queues background refreshes.
type Refresher interface {
	RefreshFeed(feedID int) error
	RefreshFeeds(feedIDs []int) error
	RefreshAllFeeds(ctx context.Context) (int, error)
}

// RateLimits caps interactive follow and refresh requests per subscriber.
// A zero Max disables the limit.
type RateLimits struct {
	Max    int
	Window time.Duration
}

type FeedService struct {
	feedRepo      repository.FeedRepository
	itemRepo      repository.ItemRepository
	commentRepo   repository.CommentRepository
	fetcher       fetch.Fetcher
	refresher     Refresher
	limiter       *ratelimit.Limiter
	limits        RateLimits
	dateFormatter *datetime.Formatter
	appURL        string
}

func NewFeedService(
	repos *repository.Repositories,
	fetcher fetch.Fetcher,
	refresher Refresher,
	limiter *ratelimit.Limiter,
	limits RateLimits,
	dateFormatter *datetime.Formatter,
	appURL string,
) *FeedService {
	return &FeedService{
		feedRepo:      repos.Feeds,
		itemRepo:      repos.Items,
		commentRepo:   repos.Comments,
		fetcher:       fetcher,
		refresher:     refresher,
		limiter:       limiter,
		limits:        limits,
		dateFormatter: dateFormatter,
		appURL:        strings.TrimRight(appURL, "/"),
	}
}

type followRequest struct {
	URL string `validate:"required,http_url"`
}

func (s *FeedService) allow(action string, subscriberID int) error {
	if s.limiter == nil {
		return nil
	}
	if !s.limiter.Allow(ratelimit.Key(action, subscriberID), s.limits.Max, s.limits.Window) {
		return domain.ErrRateLimited
	}
	return nil
}

// Follow validates candidateURL with one fetch and parse, then stores the
// feed together with its first items. Nothing is retried.
func (s *FeedService) Follow(ctx context.Context, subscriberID int, candidateURL string) (*domain.Feed, error) {
	if err := s.allow("follow", subscriberID); err != nil {
		return nil, err
	}
	return s.follow(ctx, subscriberID, candidateURL)
}

func (s *FeedService) follow(ctx context.Context, subscriberID int, candidateURL string) (*domain.Feed, error) {
	req := followRequest{URL: strings.TrimSpace(candidateURL)}
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	exists, err := s.feedRepo.ExistsByURL(ctx, subscriberID, req.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to check feed existence: %w", err)
	}
	if exists {
		return nil, domain.ErrFeedAlreadyExists
	}

	res := s.fetcher.Fetch(ctx, req.URL)
	if !res.OK() {
		return nil, domain.NewValidationError("url", "could not fetch feed: %v", res.Cause)
	}

	parsed, err := feedparser.Parse(res.Body)
	if err != nil {
		return nil, err
	}

	feed := &domain.Feed{
		Title:        parsed.Title,
		Link:         parsed.Link,
		Description:  parsed.Description,
		SourceURL:    req.URL,
		SubscriberID: subscriberID,
	}
	items := pipeline.BuildItems(0, parsed.Entries)
	if err := s.feedRepo.CreateWithItems(ctx, feed, items, time.Now()); err != nil {
		if errors.Is(err, domain.ErrFeedAlreadyExists) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to create feed: %w", err)
	}

	log.Printf("Subscriber %d followed %s (%d items)", subscriberID, req.URL, len(items))
	return feed, nil
}

// RefreshFeed queues a background refresh of one of the subscriber's feeds.
func (s *FeedService) RefreshFeed(ctx context.Context, subscriberID, feedID int) error {
	if err := s.allow("refresh", subscriberID); err != nil {
		return err
	}
	if _, err := s.feedRepo.GetForSubscriber(ctx, feedID, subscriberID); err != nil {
		return err
	}
	return s.refresher.RefreshFeed(feedID)
}

// RefreshSubscriberFeeds queues a refresh of every feed the subscriber follows.
func (s *FeedService) RefreshSubscriberFeeds(ctx context.Context, subscriberID int) (int, error) {
	if err := s.allow("refresh", subscriberID); err != nil {
		return 0, err
	}

	feeds, err := s.feedRepo.ListBySubscriber(ctx, subscriberID)
	if err != nil {
		return 0, fmt.Errorf("failed to get feeds: %w", err)
	}

	ids := make([]int, 0, len(feeds))
	for _, f := range feeds {
		ids = append(ids, f.ID)
	}
	if err := s.refresher.RefreshFeeds(ids); err != nil {
		return 0, err
	}

	log.Printf("Queued refresh of %d feeds for subscriber %d", len(ids), subscriberID)
	return len(ids), nil
}

func (s *FeedService) RefreshAll(ctx context.Context) (int, error) {
	return s.refresher.RefreshAllFeeds(ctx)
}

func (s *FeedService) Unfollow(ctx context.Context, subscriberID, feedID int) error {
	if err := s.feedRepo.Delete(ctx, feedID, subscriberID); err != nil {
		if errors.Is(err, domain.ErrFeedNotFound) {
			return err
		}
		return fmt.Errorf("failed to delete feed: %w", err)
	}
	return nil
}

func (s *FeedService) ListFeeds(ctx context.Context, subscriberID int) ([]domain.Feed, error) {
	feeds, err := s.feedRepo.ListBySubscriber(ctx, subscriberID)
	if err != nil {
		return nil, fmt.Errorf("failed to get feeds: %w", err)
	}
	return feeds, nil
}

// ItemView is an Item prepared for display.
type ItemView struct {
	domain.Item
	Excerpt   string           `json:"excerpt"`
	Published string           `json:"published,omitempty"`
	Comments  []domain.Comment `json:"comments,omitempty"`
}

type FeedView struct {
	domain.Feed
	Items []ItemView `json:"items"`
}

func (s *FeedService) view(item domain.Item) ItemView {
	v := ItemView{Item: item}
	if item.Description != nil {
		v.Excerpt = excerpt(stripHTMLTags(*item.Description))
	} else if item.Summary != nil {
		v.Excerpt = excerpt(stripHTMLTags(*item.Summary))
	}
	if item.PublishedAt != nil {
		v.Published = s.dateFormatter.FormatForDisplay(*item.PublishedAt)
	}
	return v
}

func (s *FeedService) GetFeed(ctx context.Context, subscriberID, feedID int) (*FeedView, error) {
	feed, err := s.feedRepo.GetForSubscriber(ctx, feedID, subscriberID)
	if err != nil {
		return nil, err
	}

	items, err := s.itemRepo.ListByFeed(ctx, feedID)
	if err != nil {
		return nil, fmt.Errorf("failed to get items: %w", err)
	}

	fv := &FeedView{Feed: *feed, Items: make([]ItemView, 0, len(items))}
	for _, item := range items {
		fv.Items = append(fv.Items, s.view(item))
	}
	return fv, nil
}

// ItemDetail returns the item with its comments and marks it read.
func (s *FeedService) ItemDetail(ctx context.Context, subscriberID, itemID int) (*ItemView, error) {
	item, err := s.itemRepo.GetForSubscriber(ctx, itemID, subscriberID)
	if err != nil {
		return nil, err
	}

	if item.Unread {
		if err := s.itemRepo.MarkRead(ctx, item.ID); err != nil {
			return nil, fmt.Errorf("failed to mark item read: %w", err)
		}
		item.Unread = false
	}

	return s.withComments(ctx, *item)
}

func (s *FeedService) withComments(ctx context.Context, item domain.Item) (*ItemView, error) {
	comments, err := s.commentRepo.ListByItem(ctx, item.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to get comments: %w", err)
	}

	v := s.view(item)
	v.Comments = comments
	return &v, nil
}

// ItemUpdate is a partial change to an item. A non-empty Comment also
// bookmarks the item so the comment survives later refreshes.
type ItemUpdate struct {
	Bookmark *bool  `json:"bookmark"`
	Comment  string `json:"comment"`
}

func (s *FeedService) UpdateItem(ctx context.Context, subscriberID, itemID int, update ItemUpdate) (*ItemView, error) {
	item, err := s.itemRepo.GetForSubscriber(ctx, itemID, subscriberID)
	if err != nil {
		return nil, err
	}

	bookmark := item.Bookmark
	if update.Bookmark != nil {
		bookmark = *update.Bookmark
	}

	text := strings.TrimSpace(update.Comment)
	if text != "" {
		comment := &domain.Comment{ItemID: item.ID, Text: text}
		if err := s.commentRepo.Create(ctx, comment); err != nil {
			return nil, err
		}
		bookmark = true
	}

	if bookmark != item.Bookmark {
		if err := s.itemRepo.Bookmark(ctx, item.ID, bookmark); err != nil {
			return nil, fmt.Errorf("failed to update bookmark: %w", err)
		}
		item.Bookmark = bookmark
	}

	return s.withComments(ctx, *item)
}

func (s *FeedService) Bookmarks(ctx context.Context, subscriberID int) ([]ItemView, error) {
	items, err := s.itemRepo.ListBookmarked(ctx, subscriberID)
	if err != nil {
		return nil, fmt.Errorf("failed to get bookmarks: %w", err)
	}

	views := make([]ItemView, 0, len(items))
	for _, item := range items {
		views = append(views, s.view(item))
	}
	return views, nil
}

// BookmarksRSS renders the subscriber's bookmarks as an RSS 2.0 document.
func (s *FeedService) BookmarksRSS(ctx context.Context, subscriberID int) (string, error) {
	items, err := s.itemRepo.ListBookmarked(ctx, subscriberID)
	if err != nil {
		return "", fmt.Errorf("failed to get bookmarks: %w", err)
	}

	out := &feeds.Feed{
		Title:       "Bookmarks",
		Link:        &feeds.Link{Href: s.appURL + "/api/bookmarks"},
		Description: "Bookmarked items",
		Created:     time.Now().UTC(),
	}
	for _, item := range items {
		entry := &feeds.Item{
			Title:   item.DisplayTitle(),
			Created: item.CreatedAt,
			Id:      fmt.Sprintf("%s/api/items/%d", s.appURL, item.ID),
		}
		if item.Link != nil {
			entry.Link = &feeds.Link{Href: *item.Link}
		} else {
			entry.Link = &feeds.Link{Href: entry.Id}
		}
		if item.Description != nil {
			entry.Description = *item.Description
		}
		if item.PublishedAt != nil {
			entry.Created = *item.PublishedAt
		}
		out.Items = append(out.Items, entry)
	}

	rss, err := out.ToRss()
	if err != nil {
		return "", fmt.Errorf("failed to render bookmarks: %w", err)
	}
	return rss, nil
}

// Subscriptions is the import/export document.
type Subscriptions struct {
	Feeds []Subscription `json:"feeds"`
}

type Subscription struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type ImportResult struct {
	Imported int      `json:"imported"`
	Errors   []string `json:"errors"`
}

func (s *FeedService) Export(ctx context.Context, subscriberID int) (*Subscriptions, error) {
	list, err := s.feedRepo.ListBySubscriber(ctx, subscriberID)
	if err != nil {
		return nil, fmt.Errorf("failed to export feeds: %w", err)
	}

	out := &Subscriptions{Feeds: make([]Subscription, 0, len(list))}
	for _, f := range list {
		out.Feeds = append(out.Feeds, Subscription{Name: f.Title, URL: f.SourceURL})
	}
	return out, nil
}

// Import follows every listed URL and collects one message per failure.
func (s *FeedService) Import(ctx context.Context, subscriberID int, subs Subscriptions) ImportResult {
	result := ImportResult{Errors: []string{}}

	for _, sub := range subs.Feeds {
		label := sub.Name
		if label == "" {
			label = sub.URL
		}

		if _, err := s.follow(ctx, subscriberID, sub.URL); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", label, err))
			continue
		}
		result.Imported++
	}

	return result
}

func stripHTMLTags(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}

	text := doc.Text()
	text = strings.Join(strings.Fields(text), " ")
	return strings.TrimSpace(text)
}

func excerpt(text string) string {
	if utf8.RuneCountInString(text) <= excerptLength {
		return text
	}
	runes := []rune(text)
	return strings.TrimSpace(string(runes[:excerptLength])) + "..."
}
