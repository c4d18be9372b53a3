package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Outcome classifies a single fetch attempt.
type Outcome int

const (
	Success Outcome = iota
	TransientFailure
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case TransientFailure:
		return "transient_failure"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

const (
	DefaultTimeout   = 10 * time.Second
	DefaultUserAgent = "rss-scraper/1.0 (+https://github.com/rss-scraper)"
	MaxBodySize      = 10 << 20

	acceptHeader = "application/rss+xml, application/atom+xml, application/xml;q=0.9, text/xml;q=0.8, */*;q=0.5"
)

// Result is the tagged outcome of one GET. Body is set only on Success and Cause
// only on TransientFailure.
type Result struct {
	Outcome    Outcome
	Body       []byte
	StatusCode int
	Cause      error
}

func (r Result) OK() bool {
	return r.Outcome == Success
}

func failure(status int, format string, args ...interface{}) Result {
	return Result{Outcome: TransientFailure, StatusCode: status, Cause: fmt.Errorf(format, args...)}
}

// Fetcher is the single-attempt retrieval contract the refresh pipeline depends on.
type Fetcher interface {
	Fetch(ctx context.Context, url string) Result
}

type Client struct {
	httpClient *http.Client
	timeout    time.Duration
	userAgent  string
}

type Option func(*Client)

func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

func NewClient(timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Client{
		httpClient: &http.Client{Timeout: timeout},
		timeout:    timeout,
		userAgent:  DefaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch performs exactly one GET of url. It never retries and never returns a
// Go error: every way the request can go wrong is reported as TransientFailure.
func (c *Client) Fetch(ctx context.Context, url string) Result {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return failure(0, "failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", acceptHeader)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return failure(0, "failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return failure(resp.StatusCode, "unexpected status %d from %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodySize+1))
	if err != nil {
		return failure(resp.StatusCode, "failed to read body from %s: %w", url, err)
	}
	if len(body) > MaxBodySize {
		return failure(resp.StatusCode, "body from %s exceeds %d bytes", url, MaxBodySize)
	}

	return Result{Outcome: Success, Body: body, StatusCode: resp.StatusCode}
}
