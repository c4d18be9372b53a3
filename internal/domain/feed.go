package domain

import "time"

// Feed is a followed RSS/Atom source. Title, Link and Description come from the
// channel block of the first successful parse.
type Feed struct {
	ID              int        `json:"id"`
	Title           string     `json:"title"`
	Link            string     `json:"link"`
	Description     string     `json:"description"`
	SourceURL       string     `json:"source_url"`
	SubscriberID    int        `json:"subscriber_id"`
	LastRefreshedAt *time.Time `json:"last_refreshed_at"`
	LastError       string     `json:"last_error,omitempty"`
	UnreadCount     int        `json:"unread_count"`
	CreatedAt       time.Time  `json:"created_at"`
}

func (f *Feed) Validate() error {
	if f.SourceURL == "" {
		return ErrInvalidFeedURL
	}
	if f.SubscriberID <= 0 {
		return ErrInvalidSubscriberID
	}
	return nil
}

// Refreshed reports whether the feed has completed at least one reconciliation.
func (f *Feed) Refreshed() bool {
	return f.LastRefreshedAt != nil
}
