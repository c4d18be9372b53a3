package feedparser

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:itunes="http://www.itunes.com/dtds/podcast-1.0.dtd">
  <channel>
    <title>Test Feed</title>
    <link>https://example.com</link>
    <description>Testing...</description>
    <item>
      <title>First</title>
      <link>https://example.com/1</link>
      <description>first entry</description>
      <pubDate>Sat, 04 Jul 2020 01:43:00 +0200</pubDate>
    </item>
    <item>
      <title>Second</title>
    </item>
    <item>
      <description>only a description</description>
      <itunes:summary>podcast summary</itunes:summary>
    </item>
  </channel>
</rss>`

const validAtom = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Atom Feed</title>
  <subtitle>An Atom feed</subtitle>
  <link href="https://example.org/"/>
  <updated>2020-07-04T01:43:00Z</updated>
  <id>urn:uuid:60a76c80-d399-11d9-b93C-0003939e0af6</id>
  <entry>
    <title>Atom Entry</title>
    <link href="https://example.org/entry"/>
    <id>urn:uuid:1225c695-cfb8-4ebb-aaaa-80da344efa6a</id>
    <updated>2020-07-04T01:43:00Z</updated>
    <summary>Some text.</summary>
  </entry>
</feed>`

func requireInvalid(t *testing.T, err error, reason Reason) *InvalidFeedError {
	t.Helper()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidFeed))

	var invalid *InvalidFeedError
	require.True(t, errors.As(err, &invalid))
	assert.Equal(t, reason, invalid.Reason)
	return invalid
}

func TestParse_ValidRSS(t *testing.T) {
	feed, err := Parse([]byte(validRSS))
	require.NoError(t, err)

	assert.Equal(t, "rss", feed.FeedType)
	assert.Equal(t, "Test Feed", feed.Title)
	assert.Equal(t, "https://example.com", feed.Link)
	assert.Equal(t, "Testing...", feed.Description)

	require.Len(t, feed.Entries, 3)

	first := feed.Entries[0]
	require.NotNil(t, first.Title)
	assert.Equal(t, "First", *first.Title)
	require.NotNil(t, first.Link)
	assert.Equal(t, "https://example.com/1", *first.Link)
	require.NotNil(t, first.Description)
	assert.Equal(t, "first entry", *first.Description)
	require.NotNil(t, first.Summary)
	assert.Equal(t, "first entry", *first.Summary)
	require.NotNil(t, first.Published)
	assert.Equal(t, "Sat, 04 Jul 2020 01:43:00 +0200", *first.Published)

	second := feed.Entries[1]
	assert.Equal(t, "Second", *second.Title)
	assert.Nil(t, second.Link)
	assert.Nil(t, second.Description)
	assert.Nil(t, second.Summary)
	assert.Nil(t, second.Published)

	third := feed.Entries[2]
	assert.Nil(t, third.Title)
	assert.Equal(t, "only a description", *third.Description)
	assert.Equal(t, "podcast summary", *third.Summary)
}

func TestParse_PreservesEntryOrder(t *testing.T) {
	doc := `<rss version="2.0"><channel>
		<title>T</title><link>L</link><description>D</description>
		<item><title>C</title></item>
		<item><title>A</title></item>
		<item><title>B</title></item>
	</channel></rss>`

	feed, err := Parse([]byte(doc))
	require.NoError(t, err)

	var titles []string
	for _, e := range feed.Entries {
		titles = append(titles, *e.Title)
	}
	assert.Equal(t, []string{"C", "A", "B"}, titles)
}

func TestParse_ValidAtom(t *testing.T) {
	feed, err := Parse([]byte(validAtom))
	require.NoError(t, err)

	assert.Equal(t, "atom", feed.FeedType)
	assert.Equal(t, "Atom Feed", feed.Title)
	assert.Equal(t, "https://example.org/", feed.Link)
	assert.Equal(t, "An Atom feed", feed.Description)

	require.Len(t, feed.Entries, 1)
	assert.Equal(t, "Atom Entry", *feed.Entries[0].Title)
	assert.Equal(t, "Some text.", *feed.Entries[0].Description)
	require.NotNil(t, feed.Entries[0].Published)
}

func TestParse_NoEntries(t *testing.T) {
	doc := `<rss version="2.0"><channel><title>T</title><link>L</link><description>D</description></channel></rss>`

	feed, err := Parse([]byte(doc))
	require.NoError(t, err)
	assert.Empty(t, feed.Entries)
}

func TestParse_Malformed(t *testing.T) {
	for _, doc := range []string{
		"",
		"   \n",
		"foo",
		"<invalid>xml</broken>",
		"<?xml version='1.0'?><root><item>not a feed</item></root>",
		`{"version": "https://jsonfeed.org/version/1", "title": "json", "items": []}`,
		`<rss version="2.0"><channel><title>T</title><link>L</link><description>D</description><item><title>A</titel></item></channel></rss>`,
		`<rss version="2.0"><channel><title>T & U</title><link>L</link><description>D</description><item><title>A</title></item></channel></rss>`,
		`<rss version="2.0"><channel><title>T</title><link>L</link><description>D</description>`,
	} {
		_, err := Parse([]byte(doc))
		invalid := requireInvalid(t, err, ReasonMalformed)
		assert.NotEmpty(t, invalid.Detail, "document %q", doc)
	}
}

func TestParse_WellFormedVariants(t *testing.T) {
	tests := map[string]string{
		"escaped markup": `<rss version="2.0"><channel><title>T &amp; U</title><link>L</link><description>D</description>` +
			`<item><title>A</title><description>&lt;p&gt;hi&lt;/p&gt;</description></item></channel></rss>`,
		"cdata": `<rss version="2.0"><channel><title>T &amp; U</title><link>L</link><description>D</description>` +
			`<item><title>A</title><description><![CDATA[<p>a & b</p>]]></description></item></channel></rss>`,
		"byte order mark": "\xef\xbb\xbf" + `<?xml version="1.0" encoding="UTF-8"?><rss version="2.0"><channel>` +
			`<title>T &amp; U</title><link>L</link><description>D</description><item><title>A</title></item></channel></rss>`,
	}

	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			feed, err := Parse([]byte(doc))
			require.NoError(t, err)
			assert.Equal(t, "T & U", feed.Title)
			require.Len(t, feed.Entries, 1)
		})
	}
}

func TestParse_DeclaredCharset(t *testing.T) {
	doc := "<?xml version=\"1.0\" encoding=\"ISO-8859-1\"?><rss version=\"2.0\"><channel>" +
		"<title>Caf\xe9</title><link>L</link><description>D</description>" +
		"<item><title>A</title></item></channel></rss>"

	feed, err := Parse([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, "Café", feed.Title)
}

func TestParse_MissingChannelFields(t *testing.T) {
	tests := map[string]string{
		"title":       `<rss version="2.0"><channel><link>L</link><description>D</description></channel></rss>`,
		"link":        `<rss version="2.0"><channel><title>T</title><description>D</description></channel></rss>`,
		"description": `<rss version="2.0"><channel><title>T</title><link>L</link></channel></rss>`,
	}

	for field, doc := range tests {
		t.Run(field, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			invalid := requireInvalid(t, err, ReasonMissingChannelFields)
			assert.Contains(t, invalid.Detail, field)
		})
	}
}

func TestParse_MissingEntryFieldsFailsWholeDocument(t *testing.T) {
	doc := `<rss version="2.0"><channel>
		<title>T</title><link>L</link><description>D</description>
		<item><title>ok</title></item>
		<item><link>https://example.com/no-title</link></item>
		<item><title>also ok</title><description>fine</description></item>
	</channel></rss>`

	feed, err := Parse([]byte(doc))
	assert.Nil(t, feed)
	invalid := requireInvalid(t, err, ReasonMissingEntryFields)
	assert.Contains(t, invalid.Detail, "entry 2")
}

func TestInvalidFeedError_Error(t *testing.T) {
	err := &InvalidFeedError{Reason: ReasonMalformed, Detail: "boom"}
	assert.Equal(t, "invalid feed (malformed): boom", err.Error())
}
