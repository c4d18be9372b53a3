package domain

import "time"

// Notification is an inbox message for a subscriber. Only the refresh pipeline
// creates them.
type Notification struct {
	ID           int       `json:"id"`
	SubscriberID int       `json:"subscriber_id"`
	Title        string    `json:"title"`
	Details      string    `json:"details"`
	Unread       bool      `json:"unread"`
	CreatedAt    time.Time `json:"created_at"`
}

func (n *Notification) Validate() error {
	if n.SubscriberID <= 0 {
		return ErrInvalidSubscriberID
	}
	return nil
}
