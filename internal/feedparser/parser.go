// Package feedparser validates raw feed documents against the minimal RSS
// contract and turns them into a ParsedFeed.
package feedparser

import (
	"bytes"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/mmcdole/gofeed"
	"golang.org/x/net/html/charset"
)

// Reason classifies why a document was rejected.
type Reason string

const (
	ReasonMalformed            Reason = "malformed"
	ReasonMissingChannelFields Reason = "missing_channel_fields"
	ReasonMissingEntryFields   Reason = "missing_entry_fields"
)

var utf8BOM = []byte("\xef\xbb\xbf")

// ErrInvalidFeed matches every *InvalidFeedError via errors.Is.
var ErrInvalidFeed = errors.New("invalid feed")

// InvalidFeedError is returned by Parse for any document it refuses.
type InvalidFeedError struct {
	Reason Reason
	Detail string
}

func (e *InvalidFeedError) Error() string {
	return fmt.Sprintf("invalid feed (%s): %s", e.Reason, e.Detail)
}

func (e *InvalidFeedError) Is(target error) bool {
	return target == ErrInvalidFeed
}

// Channel is the feed-level metadata block. All three fields are required.
type Channel struct {
	Title       string
	Link        string
	Description string
}

// Entry is one raw entry. A nil field was absent from the document.
type Entry struct {
	Title       *string
	Link        *string
	Description *string
	Summary     *string
	Published   *string
}

// ParsedFeed is the result of a successful Parse. Entries keep document order.
type ParsedFeed struct {
	Channel
	FeedType string
	Entries  []Entry
}

// Parse validates raw and returns the parsed document. It performs no I/O.
func Parse(raw []byte) (*ParsedFeed, error) {
	raw = bytes.TrimPrefix(raw, utf8BOM)
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil, &InvalidFeedError{Reason: ReasonMalformed, Detail: "document is empty"}
	}
	if err := checkWellFormed(raw); err != nil {
		return nil, &InvalidFeedError{Reason: ReasonMalformed, Detail: err.Error()}
	}

	feed, err := gofeed.NewParser().Parse(bytes.NewReader(raw))
	if err != nil {
		return nil, &InvalidFeedError{Reason: ReasonMalformed, Detail: err.Error()}
	}
	if feed.FeedType != "rss" && feed.FeedType != "atom" {
		return nil, &InvalidFeedError{
			Reason: ReasonMalformed,
			Detail: fmt.Sprintf("unsupported feed type %q", feed.FeedType),
		}
	}

	channel := Channel{
		Title:       strings.TrimSpace(feed.Title),
		Link:        strings.TrimSpace(feed.Link),
		Description: strings.TrimSpace(feed.Description),
	}
	if missing := channel.missing(); len(missing) > 0 {
		return nil, &InvalidFeedError{
			Reason: ReasonMissingChannelFields,
			Detail: "channel is missing " + strings.Join(missing, ", "),
		}
	}

	parsed := &ParsedFeed{
		Channel:  channel,
		FeedType: feed.FeedType,
		Entries:  make([]Entry, 0, len(feed.Items)),
	}
	for i, item := range feed.Items {
		entry := convertItem(item)
		if entry.Title == nil && entry.Description == nil {
			return nil, &InvalidFeedError{
				Reason: ReasonMissingEntryFields,
				Detail: fmt.Sprintf("entry %d has neither title nor description", i+1),
			}
		}
		parsed.Entries = append(parsed.Entries, entry)
	}

	return parsed, nil
}

// checkWellFormed walks every token of raw with a strict decoder. gofeed's
// own XML reader recovers from mismatched tags and bare ampersands.
func checkWellFormed(raw []byte) error {
	d := xml.NewDecoder(bytes.NewReader(raw))
	d.Strict = true
	d.CharsetReader = charset.NewReaderLabel

	for {
		_, err := d.Token()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
	}
}

func (c Channel) missing() []string {
	var fields []string
	if c.Title == "" {
		fields = append(fields, "title")
	}
	if c.Link == "" {
		fields = append(fields, "link")
	}
	if c.Description == "" {
		fields = append(fields, "description")
	}
	return fields
}

func convertItem(item *gofeed.Item) Entry {
	entry := Entry{
		Title:       optional(item.Title),
		Link:        optional(item.Link),
		Description: optional(item.Description),
		Published:   optional(item.Published),
	}

	// Atom entries may carry only <content>.
	if entry.Description == nil {
		entry.Description = optional(item.Content)
	}
	if entry.Published == nil {
		entry.Published = optional(item.Updated)
	}

	entry.Summary = entry.Description
	if item.ITunesExt != nil {
		if summary := optional(item.ITunesExt.Summary); summary != nil {
			entry.Summary = summary
		}
	}

	return entry
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
