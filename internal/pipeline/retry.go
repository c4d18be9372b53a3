package pipeline

import (
	"fmt"
	"math"
	"time"

	"rss-scraper/internal/fetch"
)

// State is where one feed refresh currently stands.
type State int

const (
	Pending State = iota
	Attempting
	Succeeded
	Retrying
	Exhausted
)

var stateNames = map[State]string{
	Pending:    "pending",
	Attempting: "attempting",
	Succeeded:  "succeeded",
	Retrying:   "retrying",
	Exhausted:  "exhausted",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Terminal reports whether no further fetch will be made.
func (s State) Terminal() bool {
	return s == Succeeded || s == Exhausted
}

// Policy bounds the retries of a single refresh. It knows nothing about what
// happens once a refresh succeeds or gives up.
type Policy struct {
	MaxRetries int
	Base       float64
	Unit       time.Duration
}

func DefaultPolicy() Policy {
	return Policy{MaxRetries: 3, Base: 2, Unit: time.Second}
}

// Delay is the wait before the retry that follows retries-so-far = n, i.e. Base^n units.
func (p Policy) Delay(n int) time.Duration {
	if n < 0 {
		n = 0
	}
	return time.Duration(math.Pow(p.Base, float64(n)) * float64(p.Unit))
}

// Attempt is the state of one feed refresh between fetches.
type Attempt struct {
	FeedID  int
	State   State
	Retries int
	Delay   time.Duration
	Cause   error
	Body    []byte
}

func NewAttempt(feedID int) Attempt {
	return Attempt{FeedID: feedID, State: Pending}
}

// Start moves a Pending or Retrying attempt to Attempting.
func (a Attempt) Start() Attempt {
	if a.State == Pending || a.State == Retrying {
		a.State = Attempting
		a.Delay = 0
	}
	return a
}

// Next applies the outcome of one fetch to an Attempting attempt.
func (p Policy) Next(a Attempt, res fetch.Result) Attempt {
	if a.State != Attempting {
		return a
	}

	if res.Outcome == fetch.Success {
		a.State = Succeeded
		a.Body = res.Body
		a.Cause = nil
		return a
	}

	a.Cause = res.Cause
	if a.Retries < p.MaxRetries {
		a.State = Retrying
		a.Delay = p.Delay(a.Retries)
		a.Retries++
		return a
	}

	a.State = Exhausted
	a.Delay = 0
	return a
}
