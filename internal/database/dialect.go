package database

import (
	"database/sql"
	"strconv"
	"strings"
)

// Dialect hides the differences between the collector's three backends.
// Repositories write queries with ? placeholders and let the dialect adjust them.
type Dialect interface {
	DriverName() string
	DSN(config DialectConfig) string

	// RewriteQuery converts ? placeholders to the driver's syntax
	RewriteQuery(query string) string

	// SupportsLastInsertId is false when new ids must be read back with RETURNING
	SupportsLastInsertId() bool

	ConfigureConnection(db *sql.DB) error

	// MigrationsSubdir names the directory under the migrations path holding this backend's schema
	MigrationsSubdir() string
	CreateMigrationsTableQuery() string

	// BoolValue renders a boolean literal, used for the homework_assignments.active filter
	BoolValue(b bool) string
}

// DialectConfig holds the connection settings. SQLite uses Path, the servers use URL.
type DialectConfig struct {
	Path string
	URL  string
}

// numberPlaceholders rewrites ? to $1, $2, ... leaving ? inside quoted literals alone
func numberPlaceholders(query string) string {
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	var quote byte
	for i := 0; i < len(query); i++ {
		ch := query[i]
		switch {
		case quote != 0:
			if ch == quote {
				quote = 0
			}
		case ch == '\'' || ch == '"':
			quote = ch
		case ch == '?':
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(ch)
	}
	return b.String()
}
