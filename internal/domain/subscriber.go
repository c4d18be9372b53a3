package domain

import (
	"strings"
	"time"
)

type Subscriber struct {
	ID        int       `json:"id"`
	Email     string    `json:"email"`
	Profile   Profile   `json:"profile"`
	CreatedAt time.Time `json:"created_at"`
}

// Profile is created together with its Subscriber and never on its own.
type Profile struct {
	SubscriberID int  `json:"subscriber_id"`
	EmailAlerts  bool `json:"email_alerts"`
}

func (s *Subscriber) Validate() error {
	if s.Email == "" || !strings.Contains(s.Email, "@") {
		return ErrInvalidEmail
	}
	return nil
}
