package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidEmail        = errors.New("invalid email address")
	ErrSubscriberNotFound  = errors.New("subscriber not found")
	ErrInvalidSubscriberID = errors.New("invalid subscriber ID")

	ErrInvalidFeedURL    = errors.New("invalid feed URL")
	ErrInvalidFeedID     = errors.New("invalid feed ID")
	ErrFeedNotFound      = errors.New("feed not found")
	ErrFeedAlreadyExists = errors.New("feed already exists for this subscriber")

	ErrItemNotFound = errors.New("item not found")
	ErrEmptyComment = errors.New("comment text is empty")

	ErrNotificationNotFound = errors.New("notification not found")

	ErrRateLimited = errors.New("too many requests")
)

// ValidationError is returned to interactive callers when their input, or the
// resource it points at, cannot be accepted.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func NewValidationError(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}
