package pipeline

import (
	"context"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"rss-scraper/internal/database"
	"rss-scraper/internal/domain"
	"rss-scraper/internal/feedparser"
	"rss-scraper/internal/fetch"
	"rss-scraper/internal/notify"
	"rss-scraper/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const abcFeed = `<?xml version="1.0"?>
<rss version="2.0"><channel>
	<title>T</title><link>L</link><description>D</description>
	<item><title>A</title><pubDate>Mon, 02 Jan 2006 15:04:05 GMT</pubDate></item>
	<item><title>B</title></item>
	<item><title>C</title></item>
</channel></rss>`

const emptyFeed = `<rss version="2.0"><channel><title>T</title><link>L</link><description>D</description></channel></rss>`

type fetcherFunc func(ctx context.Context, url string) fetch.Result

func (f fetcherFunc) Fetch(ctx context.Context, url string) fetch.Result { return f(ctx, url) }

func body(doc string) fetcherFunc {
	return func(context.Context, string) fetch.Result {
		return fetch.Result{Outcome: fetch.Success, Body: []byte(doc), StatusCode: 200}
	}
}

type harness struct {
	repos    *repository.Repositories
	pipeline *Pipeline
	sub      *domain.Subscriber
	feed     *domain.Feed
	fetches  int32

	mu      sync.Mutex
	reports []Report
}

var refreshTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newHarness(t *testing.T, fetcher fetcherFunc, seed ...string) *harness {
	t.Helper()
	m, err := database.NewMemory()
	require.NoError(t, err)
	t.Cleanup(func() { m.Close() })

	h := &harness{repos: repository.New(m.DB, m.Dialect)}
	ctx := context.Background()

	h.sub, err = h.repos.Subscribers.Create(ctx, "reader@example.com")
	require.NoError(t, err)

	var items []domain.Item
	for _, title := range seed {
		item := domain.NewItem(0)
		item.Title = strp(title)
		items = append(items, item)
	}
	h.feed = &domain.Feed{Title: "T", Link: "L", Description: "D", SourceURL: "http://feeds.test/rss", SubscriberID: h.sub.ID}
	require.NoError(t, h.repos.Feeds.CreateWithItems(ctx, h.feed, items, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)))

	counted := fetcherFunc(func(ctx context.Context, url string) fetch.Result {
		atomic.AddInt32(&h.fetches, 1)
		return fetcher(ctx, url)
	})

	h.pipeline = New(Config{
		Policy:  Policy{MaxRetries: 3, Base: 2, Unit: time.Millisecond},
		Workers: 2,
		AppURL:  "http://localhost:8080/",
		Logger:  quietLogger(),
		OnDone: func(r Report) {
			h.mu.Lock()
			h.reports = append(h.reports, r)
			h.mu.Unlock()
		},
	}, h.repos.Feeds, h.repos.Items, counted, notify.NewStoreSink(h.repos.Notifications))
	h.pipeline.reconciler.now = func() time.Time { return refreshTime }

	h.pipeline.Start()
	t.Cleanup(h.pipeline.Stop)
	return h
}

func strp(s string) *string { return &s }

func (h *harness) refresh(t *testing.T) Report {
	t.Helper()
	require.NoError(t, h.pipeline.RefreshFeed(h.feed.ID))
	h.pipeline.Wait()

	h.mu.Lock()
	defer h.mu.Unlock()
	require.NotEmpty(t, h.reports)
	return h.reports[len(h.reports)-1]
}

func (h *harness) items(t *testing.T) []domain.Item {
	t.Helper()
	items, err := h.repos.Items.ListByFeed(context.Background(), h.feed.ID)
	require.NoError(t, err)
	return items
}

func (h *harness) storedFeed(t *testing.T) *domain.Feed {
	t.Helper()
	f, err := h.repos.Feeds.GetByID(context.Background(), h.feed.ID)
	require.NoError(t, err)
	return f
}

func (h *harness) notifications(t *testing.T) []domain.Notification {
	t.Helper()
	list, err := h.repos.Notifications.ListBySubscriber(context.Background(), h.sub.ID)
	require.NoError(t, err)
	return list
}

func titles(items []domain.Item) []string {
	var out []string
	for _, i := range items {
		out = append(out, i.DisplayTitle())
	}
	return out
}

func TestPipeline_KeepsBookmarkedAndReplacesTheRest(t *testing.T) {
	h := newHarness(t, body(abcFeed), "keep", "drop")

	before := h.items(t)
	require.NoError(t, h.repos.Items.Bookmark(context.Background(), before[0].ID, true))

	report := h.refresh(t)
	assert.Equal(t, Succeeded, report.State)
	assert.Equal(t, 3, report.Items)
	assert.NoError(t, report.Err)

	after := h.items(t)
	assert.Equal(t, []string{"keep", "A", "B", "C"}, titles(after))
	assert.Equal(t, before[0].ID, after[0].ID)
	assert.True(t, after[0].Bookmark)
	for _, item := range after[1:] {
		assert.True(t, item.Unread)
		assert.False(t, item.Bookmark)
	}

	require.NotNil(t, after[1].PublishedAt)
	assert.Equal(t, time.Date(2006, 1, 2, 15, 4, 5, 0, time.UTC), after[1].PublishedAt.UTC())
	assert.Nil(t, after[2].PublishedAt)

	feed := h.storedFeed(t)
	require.NotNil(t, feed.LastRefreshedAt)
	assert.True(t, refreshTime.Equal(*feed.LastRefreshedAt))
	assert.Equal(t, int32(1), atomic.LoadInt32(&h.fetches))
	assert.Empty(t, h.notifications(t))
}

func TestReconciler_BookmarkedPlusNew(t *testing.T) {
	cases := []struct {
		name       string
		existing   int
		bookmarked int
		parsed     int
	}{
		{"no existing items", 0, 0, 2},
		{"none bookmarked", 4, 0, 3},
		{"some bookmarked", 5, 2, 1},
		{"all bookmarked", 3, 3, 2},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var seed []string
			for i := 0; i < tc.existing; i++ {
				seed = append(seed, "old")
			}
			h := newHarness(t, body(emptyFeed), seed...)
			ctx := context.Background()

			existing := h.items(t)
			bookmarked := map[int]bool{}
			for i := 0; i < tc.bookmarked; i++ {
				require.NoError(t, h.repos.Items.Bookmark(ctx, existing[i].ID, true))
				bookmarked[existing[i].ID] = true
			}

			var entries []feedparser.Entry
			for i := 0; i < tc.parsed; i++ {
				entries = append(entries, feedparser.Entry{Title: strp("new")})
			}

			n, err := h.pipeline.reconciler.Reconcile(ctx, h.feed.ID, entries)
			require.NoError(t, err)
			assert.Equal(t, tc.parsed, n)

			after := h.items(t)
			assert.Len(t, after, tc.bookmarked+tc.parsed)

			survivors, fresh := 0, 0
			for _, item := range after {
				if bookmarked[item.ID] {
					survivors++
					continue
				}
				fresh++
				assert.Equal(t, "new", *item.Title)
				assert.True(t, item.Unread)
				assert.False(t, item.Bookmark)
			}
			assert.Equal(t, tc.bookmarked, survivors)
			assert.Equal(t, tc.parsed, fresh)
		})
	}
}

func TestReconciler_EmptyEntriesIsNoop(t *testing.T) {
	h := newHarness(t, body(emptyFeed), "one", "two")
	before := h.storedFeed(t)

	n, err := h.pipeline.reconciler.Reconcile(context.Background(), h.feed.ID, nil)
	require.NoError(t, err)
	assert.Zero(t, n)

	assert.Len(t, h.items(t), 2)
	assert.Equal(t, before.LastRefreshedAt, h.storedFeed(t).LastRefreshedAt)

	report := h.refresh(t)
	assert.Equal(t, Succeeded, report.State)
	assert.Zero(t, report.Items)
	assert.Len(t, h.items(t), 2)
	assert.Equal(t, before.LastRefreshedAt, h.storedFeed(t).LastRefreshedAt)
}

func TestReconciler_RunsAfterCancellation(t *testing.T) {
	h := newHarness(t, body(emptyFeed), "old")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	n, err := h.pipeline.reconciler.Reconcile(ctx, h.feed.ID, []feedparser.Entry{{Title: strp("new")}})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []string{"new"}, titles(h.items(t)))
}

func TestPipeline_ExhaustionNotifiesOnce(t *testing.T) {
	h := newHarness(t, func(context.Context, string) fetch.Result {
		return fetch.Result{Outcome: fetch.TransientFailure, StatusCode: 503, Cause: assert.AnError}
	}, "one", "two")
	before := h.storedFeed(t)
	itemsBefore := h.items(t)

	report := h.refresh(t)
	assert.Equal(t, Exhausted, report.State)
	assert.ErrorIs(t, report.Err, assert.AnError)

	assert.Equal(t, int32(4), atomic.LoadInt32(&h.fetches))

	notes := h.notifications(t)
	require.Len(t, notes, 1)
	assert.Equal(t, "Failed to update feed: T", notes[0].Title)
	assert.Equal(t, "http://localhost:8080/api/feeds/"+strconv.Itoa(h.feed.ID), notes[0].Details)
	assert.True(t, notes[0].Unread)

	assert.Equal(t, itemsBefore, h.items(t))
	after := h.storedFeed(t)
	assert.Equal(t, before.LastRefreshedAt, after.LastRefreshedAt)
	assert.Contains(t, after.LastError, "fetch failed after 3 retries")
}

func TestPipeline_RecoversAfterTransientFailures(t *testing.T) {
	var calls int32
	h := newHarness(t, func(context.Context, string) fetch.Result {
		if atomic.AddInt32(&calls, 1) <= 2 {
			return fetch.Result{Outcome: fetch.TransientFailure, Cause: assert.AnError}
		}
		return fetch.Result{Outcome: fetch.Success, Body: []byte(abcFeed)}
	}, "old")

	report := h.refresh(t)
	assert.Equal(t, Succeeded, report.State)
	assert.Equal(t, []string{"A", "B", "C"}, titles(h.items(t)))
	assert.Equal(t, int32(3), atomic.LoadInt32(&h.fetches))
	assert.Empty(t, h.notifications(t))
}

func TestPipeline_InvalidDocumentRecordsError(t *testing.T) {
	h := newHarness(t, body("<invalid>xml</broken>"), "one")
	before := h.storedFeed(t)

	report := h.refresh(t)
	assert.Equal(t, Succeeded, report.State)
	assert.ErrorIs(t, report.Err, feedparser.ErrInvalidFeed)

	assert.Equal(t, int32(1), atomic.LoadInt32(&h.fetches))
	assert.Empty(t, h.notifications(t))
	assert.Equal(t, []string{"one"}, titles(h.items(t)))

	after := h.storedFeed(t)
	assert.Contains(t, after.LastError, "malformed")
	assert.Equal(t, before.LastRefreshedAt, after.LastRefreshedAt)

	// a later good document clears the diagnostic
	h.pipeline.fetcher = body(abcFeed)
	h.refresh(t)
	assert.Empty(t, h.storedFeed(t).LastError)
}

func TestPipeline_FeedGoneWhileQueued(t *testing.T) {
	h := newHarness(t, body(abcFeed))
	require.NoError(t, h.repos.Feeds.Delete(context.Background(), h.feed.ID, h.sub.ID))

	report := h.refresh(t)
	assert.ErrorIs(t, report.Err, domain.ErrFeedNotFound)
	assert.Zero(t, atomic.LoadInt32(&h.fetches))
}

func TestPipeline_RefreshAllFeeds(t *testing.T) {
	h := newHarness(t, body(abcFeed))
	ctx := context.Background()

	second := &domain.Feed{Title: "U", Link: "L", Description: "D", SourceURL: "http://feeds.test/other", SubscriberID: h.sub.ID}
	require.NoError(t, h.repos.Feeds.CreateWithItems(ctx, second, nil, time.Now()))

	n, err := h.pipeline.RefreshAllFeeds(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	h.pipeline.Wait()

	assert.Equal(t, int32(2), atomic.LoadInt32(&h.fetches))
	items, err := h.repos.Items.ListByFeed(ctx, second.ID)
	require.NoError(t, err)
	assert.Len(t, items, 3)
}

func TestPipeline_RefreshBeforeStart(t *testing.T) {
	p := New(Config{Policy: DefaultPolicy(), Logger: quietLogger()}, nil, nil, nil, nil)
	assert.ErrorIs(t, p.RefreshFeed(1), ErrPoolNotRunning)
	assert.Error(t, p.RefreshFeeds([]int{1}))
}

func TestBuildItems(t *testing.T) {
	entries := []feedparser.Entry{
		{Title: strp("A"), Link: strp("https://example.com/a"), Published: strp("Sat, 04 Jul 2020 01:43:00 +0200")},
		{Description: strp("d"), Summary: strp("s"), Published: strp("not a date")},
	}

	items := BuildItems(9, entries)
	require.Len(t, items, 2)

	assert.Equal(t, 9, items[0].FeedID)
	assert.True(t, items[0].Unread)
	assert.False(t, items[0].Bookmark)
	require.NotNil(t, items[0].PublishedAt)
	assert.Equal(t, time.Date(2020, 7, 3, 23, 43, 0, 0, time.UTC), items[0].PublishedAt.UTC())

	assert.Nil(t, items[1].Title)
	assert.Equal(t, "s", *items[1].Summary)
	assert.Nil(t, items[1].PublishedAt)
}

type countingRefresher struct {
	calls int32
}

func (c *countingRefresher) RefreshAllFeeds(context.Context) (int, error) {
	atomic.AddInt32(&c.calls, 1)
	return 0, nil
}

func TestPoller_TicksUntilCancelled(t *testing.T) {
	target := &countingRefresher{}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		NewPoller(target, 5*time.Millisecond, quietLogger()).Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return atomic.LoadInt32(&target.calls) >= 3 }, time.Second, time.Millisecond)
	cancel()
	<-done
}

func TestPoller_Disabled(t *testing.T) {
	target := &countingRefresher{}
	NewPoller(target, 0, quietLogger()).Run(context.Background())
	assert.Zero(t, atomic.LoadInt32(&target.calls))
}
