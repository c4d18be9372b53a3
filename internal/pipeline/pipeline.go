package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"rss-scraper/internal/domain"
	"rss-scraper/internal/feedparser"
	"rss-scraper/internal/fetch"
	"rss-scraper/internal/notify"
	"rss-scraper/internal/repository"
)

// Report describes how one feed refresh ended.
type Report struct {
	FeedID int
	State  State
	Items  int
	Err    error
}

type Config struct {
	Policy    Policy
	Workers   int
	QueueSize int

	// AppURL prefixes the refresh link carried by failure notifications.
	AppURL string
	Logger *log.Logger
	OnDone func(Report)
}

// Pipeline runs fetch, parse and reconcile for feeds on a worker pool.
type Pipeline struct {
	feeds      repository.FeedRepository
	fetcher    fetch.Fetcher
	reconciler *Reconciler
	sink       notify.Sink
	policy     Policy
	pool       *Pool
	appURL     string
	logger     *log.Logger
	onDone     func(Report)
}

func New(cfg Config, feeds repository.FeedRepository, items repository.ItemRepository, fetcher fetch.Fetcher, sink notify.Sink) *Pipeline {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	queue := cfg.QueueSize
	if queue <= 0 {
		queue = 256
	}

	return &Pipeline{
		feeds:      feeds,
		fetcher:    fetcher,
		reconciler: NewReconciler(items),
		sink:       sink,
		policy:     cfg.Policy,
		pool:       NewPool(cfg.Workers, queue, logger),
		appURL:     strings.TrimRight(cfg.AppURL, "/"),
		logger:     logger,
		onDone:     cfg.OnDone,
	}
}

func (p *Pipeline) Start() { p.pool.Start() }

func (p *Pipeline) Stop() { p.pool.Stop() }

// Wait blocks until every queued refresh has reached a terminal state.
func (p *Pipeline) Wait() { p.pool.Wait() }

// RefreshFeed queues a refresh of one feed and returns immediately.
func (p *Pipeline) RefreshFeed(feedID int) error {
	attempt := NewAttempt(feedID)
	return p.pool.Submit(func(ctx context.Context) Step {
		attempt = p.step(ctx, attempt.Start())
		if attempt.State == Retrying {
			return Step{Retry: true, After: attempt.Delay}
		}
		return Step{}
	})
}

func (p *Pipeline) RefreshFeeds(feedIDs []int) error {
	for _, id := range feedIDs {
		if err := p.RefreshFeed(id); err != nil {
			return fmt.Errorf("failed to queue refresh of feed %d: %w", id, err)
		}
	}
	return nil
}

// RefreshAllFeeds queues one independent refresh per stored feed.
func (p *Pipeline) RefreshAllFeeds(ctx context.Context) (int, error) {
	feeds, err := p.feeds.ListAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list feeds: %w", err)
	}

	ids := make([]int, 0, len(feeds))
	for _, f := range feeds {
		ids = append(ids, f.ID)
	}
	if err := p.RefreshFeeds(ids); err != nil {
		return 0, err
	}

	p.logger.Printf("Queued refresh of %d feeds", len(ids))
	return len(ids), nil
}

// DetailURL is the link placed in a failure notification for feedID. It
// points at the feed itself, which shows last_error and can be retried from
// there.
func (p *Pipeline) DetailURL(feedID int) string {
	return fmt.Sprintf("%s/api/feeds/%d", p.appURL, feedID)
}

func (p *Pipeline) step(ctx context.Context, a Attempt) Attempt {
	feed, err := p.feeds.GetByID(ctx, a.FeedID)
	if err != nil {
		if !errors.Is(err, domain.ErrFeedNotFound) {
			p.logger.Printf("Error loading feed %d: %v", a.FeedID, err)
		}
		// unfollowed while queued; nothing left to refresh
		p.done(Report{FeedID: a.FeedID, State: a.State, Err: err})
		return a
	}

	a = p.policy.Next(a, p.fetcher.Fetch(ctx, feed.SourceURL))

	switch a.State {
	case Retrying:
		p.logger.Printf("Fetch of feed %d failed: %v; retry %d/%d in %s",
			feed.ID, a.Cause, a.Retries, p.policy.MaxRetries, a.Delay)
	case Exhausted:
		p.exhausted(ctx, feed, a)
	case Succeeded:
		p.succeeded(ctx, feed, a)
	}
	return a
}

func (p *Pipeline) exhausted(ctx context.Context, feed *domain.Feed, a Attempt) {
	p.logger.Printf("Giving up on feed %d after %d retries: %v", feed.ID, a.Retries, a.Cause)

	title := feed.Title
	if title == "" {
		title = feed.SourceURL
	}
	err := p.sink.Notify(ctx, feed.SubscriberID, "Failed to update feed: "+title, p.DetailURL(feed.ID))
	if err != nil {
		p.logger.Printf("Warning: failed to notify subscriber %d: %v", feed.SubscriberID, err)
	}

	if recErr := p.feeds.RecordError(ctx, feed.ID, fmt.Sprintf("fetch failed after %d retries: %v", a.Retries, a.Cause)); recErr != nil {
		p.logger.Printf("Warning: %v", recErr)
	}

	p.done(Report{FeedID: feed.ID, State: Exhausted, Err: a.Cause})
}

func (p *Pipeline) succeeded(ctx context.Context, feed *domain.Feed, a Attempt) {
	parsed, err := feedparser.Parse(a.Body)
	if err != nil {
		// not transient, so neither retried nor notified
		p.logger.Printf("Feed %d returned an invalid document: %v", feed.ID, err)
		if recErr := p.feeds.RecordError(ctx, feed.ID, err.Error()); recErr != nil {
			p.logger.Printf("Warning: %v", recErr)
		}
		p.done(Report{FeedID: feed.ID, State: Succeeded, Err: err})
		return
	}

	n, err := p.reconciler.Reconcile(ctx, feed.ID, parsed.Entries)
	if err != nil {
		p.logger.Printf("Error reconciling feed %d: %v", feed.ID, err)
		p.done(Report{FeedID: feed.ID, State: Succeeded, Err: err})
		return
	}

	p.logger.Printf("Refreshed feed %d with %d items", feed.ID, n)
	p.done(Report{FeedID: feed.ID, State: Succeeded, Items: n})
}

func (p *Pipeline) done(r Report) {
	if p.onDone != nil {
		p.onDone(r)
	}
}
