package datetime

import (
	"strings"
	"time"
)

type Formatter struct{}

func NewFormatter() *Formatter {
	return &Formatter{}
}

var rssDateFormats = []string{
	time.RFC1123Z,    // "Mon, 02 Jan 2006 15:04:05 -0700"
	time.RFC1123,     // "Mon, 02 Jan 2006 15:04:05 MST"
	time.RFC822Z,     // "02 Jan 06 15:04 -0700"
	time.RFC822,      // "02 Jan 06 15:04 MST"
	time.RFC3339,     // "2006-01-02T15:04:05Z07:00"
	time.RFC3339Nano, // "2006-01-02T15:04:05.999999999Z07:00"
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 -07:00",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"Mon, 2 Jan 2006 15:04 -0700",
	"Mon, 2 Jan 2006 15:04 MST",
	"Mon, 2 Jan 06 15:04:05 -0700",
	"Mon, 2 Jan 06 15:04:05 MST",
	"Mon, 2 Jan 06 15:04 -0700",
	"Mon, 2 Jan 06 15:04 MST",
	"Mon, 2 January 2006 15:04:05 -0700",
	"Mon, 2 January 2006 15:04:05 MST",
	"Monday, 2 Jan 2006 15:04:05 -0700",
	"Monday, 2 Jan 2006 15:04:05 MST",
	"2 Jan 2006 15:04:05 -0700",
	"2 Jan 2006 15:04:05 -07:00",
	"2 Jan 2006 15:04:05 MST",
	"2 Jan 2006 15:04 -0700",
	"2 Jan 2006 15:04 MST",
	"2 Jan 2006 15:04:05",
	"2006-01-02T15:04:05-0700",
	"2006-01-02T15:04:05.000-07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05 -0700",
	"2006-01-02 15:04:05 -07:00",
	"2006-01-02 15:04:05",
	"January 2, 2006 15:04:05",
	"January 2, 2006, 15:04:05",
	"Jan 2, 2006 15:04:05",
	"Jan 2, 2006, 15:04:05",
	"2006/01/02 15:04:05",
	"2006-01-02",
}

// rfc822Zones holds the named zones RFC 822 allows. time.Parse only knows the
// offset of an abbreviation when it matches the local zone, otherwise it
// silently assumes UTC.
var rfc822Zones = map[string]int{
	"UT":  0,
	"GMT": 0,
	"UTC": 0,
	"Z":   0,
	"EST": -5 * 3600,
	"EDT": -4 * 3600,
	"CST": -6 * 3600,
	"CDT": -5 * 3600,
	"MST": -7 * 3600,
	"MDT": -6 * 3600,
	"PST": -8 * 3600,
	"PDT": -7 * 3600,
}

// Normalize converts an RSS date string into a timestamp. It returns nil for
// empty input and for input no known layout accepts; published dates are
// optional, so neither case is an error.
func (f *Formatter) Normalize(dateStr string) *time.Time {
	return Normalize(dateStr)
}

// Normalize is the package-level form of Formatter.Normalize.
func Normalize(dateStr string) *time.Time {
	dateStr = strings.Join(strings.Fields(dateStr), " ")
	if dateStr == "" {
		return nil
	}

	for _, format := range rssDateFormats {
		parsedTime, err := time.Parse(format, dateStr)
		if err != nil {
			continue
		}
		parsedTime = fixNamedZone(parsedTime)
		return &parsedTime
	}

	return nil
}

func fixNamedZone(t time.Time) time.Time {
	name, offset := t.Zone()
	known, ok := rfc822Zones[strings.ToUpper(name)]
	if !ok || offset == known {
		return t
	}
	// t carries the wall clock of the named zone with a zero offset.
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(),
		t.Nanosecond(), time.FixedZone(name, known))
}

func (f *Formatter) FormatForDisplay(t time.Time) string {
	local := t.Local()
	now := time.Now()

	if isSameDay(local, now) {
		return "Today"
	}

	yesterday := now.AddDate(0, 0, -1)
	if isSameDay(local, yesterday) {
		return "Yesterday"
	}

	weekAgo := now.AddDate(0, 0, -7)
	if local.After(weekAgo) {
		return local.Format("Monday")
	}

	if local.Year() == now.Year() {
		return local.Format("January 2")
	}

	return local.Format("January 2, 2006")
}

func (f *Formatter) NormalizeToUTC(t time.Time) time.Time {
	return t.UTC()
}

func isSameDay(t1, t2 time.Time) bool {
	y1, m1, d1 := t1.Date()
	y2, m2, d2 := t2.Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}
