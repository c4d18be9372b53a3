package datetime

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalize_RoundTrip(t *testing.T) {
	tests := []struct {
		input  string
		layout string
	}{
		{"Sat, 04 Jul 2020 01:43:00 +0200", time.RFC1123Z},
		{"Mon, 06 Sep 2021 16:45:00 -0700", time.RFC1123Z},
		{"Wed, 02 Oct 2002 08:00:00 EST", time.RFC1123},
		{"Wed, 02 Oct 2002 13:00:00 GMT", time.RFC1123},
		{"02 Oct 02 08:00 -0400", time.RFC822Z},
		{"02 Oct 02 08:00 PDT", time.RFC822},
		{"Wed, 02 Oct 2002 08:00 +0100", "Mon, 02 Jan 2006 15:04 -0700"},
		{"2020-07-04T01:43:00+02:00", time.RFC3339},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := Normalize(tt.input)
			require.NotNil(t, got)
			assert.Equal(t, tt.input, got.Format(tt.layout))
		})
	}
}

func TestNormalize_NamedZoneOffsets(t *testing.T) {
	got := Normalize("Wed, 02 Oct 2002 08:00:00 EST")
	require.NotNil(t, got)
	assert.Equal(t, time.Date(2002, 10, 2, 13, 0, 0, 0, time.UTC), got.UTC())

	got = Normalize("Wed, 02 Oct 2002 08:00:00 PDT")
	require.NotNil(t, got)
	assert.Equal(t, time.Date(2002, 10, 2, 15, 0, 0, 0, time.UTC), got.UTC())
}

func TestNormalize_Invalid(t *testing.T) {
	for _, input := range []string{"", "   ", "foo", "32 Foo 2020", "yesterday-ish"} {
		assert.Nil(t, Normalize(input), "input %q", input)
	}
}

func TestNormalize_CollapsesWhitespace(t *testing.T) {
	got := Normalize("  Sat, 04 Jul 2020   01:43:00 +0200\n")
	require.NotNil(t, got)
	assert.Equal(t, "Sat, 04 Jul 2020 01:43:00 +0200", got.Format(time.RFC1123Z))
}

func TestFormatter_Normalize(t *testing.T) {
	f := NewFormatter()
	got := f.Normalize("2020-07-04")
	require.NotNil(t, got)
	assert.Equal(t, time.Date(2020, 7, 4, 0, 0, 0, 0, time.UTC), f.NormalizeToUTC(*got))
}

func TestFormatter_FormatForDisplay(t *testing.T) {
	f := NewFormatter()
	now := time.Now()

	assert.Equal(t, "Today", f.FormatForDisplay(now))
	assert.Equal(t, "Yesterday", f.FormatForDisplay(now.AddDate(0, 0, -1)))

	old := time.Date(1999, 3, 14, 12, 0, 0, 0, time.Local)
	assert.Equal(t, "March 14, 1999", f.FormatForDisplay(old))
}
