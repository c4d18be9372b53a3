package domain

import "time"

// Item is one entry of a Feed. Any of the text fields may be absent because an
// RSS entry only has to carry a title or a description.
type Item struct {
	ID          int        `json:"id"`
	FeedID      int        `json:"feed_id"`
	Title       *string    `json:"title"`
	Link        *string    `json:"link"`
	Description *string    `json:"description"`
	Summary     *string    `json:"summary"`
	Unread      bool       `json:"unread"`
	Bookmark    bool       `json:"bookmark"`
	PublishedAt *time.Time `json:"published_at"`
	CreatedAt   time.Time  `json:"created_at"`
}

// NewItem returns an unread, unbookmarked item for feedID.
func NewItem(feedID int) Item {
	return Item{FeedID: feedID, Unread: true}
}

func (i *Item) Validate() error {
	if i.FeedID <= 0 {
		return ErrInvalidFeedID
	}
	return nil
}

// DisplayTitle falls back to the link when the entry had no title.
func (i *Item) DisplayTitle() string {
	if i.Title != nil && *i.Title != "" {
		return *i.Title
	}
	if i.Link != nil {
		return *i.Link
	}
	return ""
}

// Comment is free text a subscriber attached to an Item.
type Comment struct {
	ID        int       `json:"id"`
	ItemID    int       `json:"item_id"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

func (c *Comment) Validate() error {
	if c.Text == "" {
		return ErrEmptyComment
	}
	return nil
}
