package database

import "strings"

type columnTypes struct {
	pk        string
	timestamp string
	text      string
	key       string
}

func typesFor(d Dialect) columnTypes {
	switch d {
	case SQLite:
		return columnTypes{
			pk:        "INTEGER PRIMARY KEY AUTOINCREMENT",
			timestamp: "DATETIME",
			text:      "TEXT",
			key:       "TEXT",
		}
	case MySQL:
		return columnTypes{
			pk:        "INT AUTO_INCREMENT PRIMARY KEY",
			timestamp: "DATETIME(6)",
			text:      "TEXT",
			key:       "VARCHAR(512)",
		}
	default:
		return columnTypes{
			pk:        "SERIAL PRIMARY KEY",
			timestamp: "TIMESTAMP WITH TIME ZONE",
			text:      "TEXT",
			key:       "TEXT",
		}
	}
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS subscribers (
		id {pk},
		email {key} NOT NULL UNIQUE,
		created_at {timestamp} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS profiles (
		subscriber_id INTEGER PRIMARY KEY REFERENCES subscribers(id) ON DELETE CASCADE,
		email_alerts BOOLEAN NOT NULL DEFAULT FALSE,
		created_at {timestamp} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS feeds (
		id {pk},
		subscriber_id INTEGER NOT NULL REFERENCES subscribers(id) ON DELETE CASCADE,
		title {text} NOT NULL,
		link {text} NOT NULL,
		description {text} NOT NULL,
		source_url {key} NOT NULL,
		last_refreshed_at {timestamp} NULL,
		last_error {text} NULL,
		created_at {timestamp} NOT NULL,
		UNIQUE (subscriber_id, source_url)
	)`,
	`CREATE TABLE IF NOT EXISTS items (
		id {pk},
		feed_id INTEGER NOT NULL REFERENCES feeds(id) ON DELETE CASCADE,
		title {text} NULL,
		link {text} NULL,
		description {text} NULL,
		summary {text} NULL,
		unread BOOLEAN NOT NULL DEFAULT TRUE,
		bookmark BOOLEAN NOT NULL DEFAULT FALSE,
		published_at {timestamp} NULL,
		created_at {timestamp} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS comments (
		id {pk},
		item_id INTEGER NOT NULL REFERENCES items(id) ON DELETE CASCADE,
		text {text} NOT NULL,
		created_at {timestamp} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS notifications (
		id {pk},
		subscriber_id INTEGER NOT NULL REFERENCES subscribers(id) ON DELETE CASCADE,
		title {text} NOT NULL,
		details {text} NOT NULL,
		unread BOOLEAN NOT NULL DEFAULT TRUE,
		created_at {timestamp} NOT NULL
	)`,
}

var indexes = []struct{ name, table, columns string }{
	{"idx_items_feed_id", "items", "feed_id"},
	{"idx_items_feed_bookmark", "items", "feed_id, bookmark"},
	{"idx_comments_item_id", "comments", "item_id"},
	{"idx_feeds_subscriber_id", "feeds", "subscriber_id"},
	{"idx_notifications_subscriber_unread", "notifications", "subscriber_id, unread"},
}

func migrations(d Dialect) []string {
	types := typesFor(d)
	r := strings.NewReplacer(
		"{pk}", types.pk,
		"{timestamp}", types.timestamp,
		"{text}", types.text,
		"{key}", types.key,
	)

	out := make([]string, 0, len(schema)+len(indexes))
	for _, stmt := range schema {
		out = append(out, r.Replace(stmt))
	}
	for _, idx := range indexes {
		out = append(out, createIndex(d, idx.name, idx.table, idx.columns))
	}
	return out
}

func createIndex(d Dialect, name, table, columns string) string {
	// mysql has no IF NOT EXISTS here; duplicates are tolerated in runMigrations
	if d == MySQL {
		return "CREATE INDEX " + name + " ON " + table + "(" + columns + ")"
	}
	return "CREATE INDEX IF NOT EXISTS " + name + " ON " + table + "(" + columns + ")"
}
