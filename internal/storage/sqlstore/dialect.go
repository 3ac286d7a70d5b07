package sqlstore

import (
	"strconv"
	"strings"
)

// Dialect captures the differences between the supported SQL engines.
type Dialect struct {
	// Name identifies the dialect in logs and errors.
	Name string

	// Driver is the database/sql driver name.
	Driver string

	// PayloadType is the column type holding encoded records.
	PayloadType string

	numbered bool
}

var (
	SQLite   = Dialect{Name: "sqlite", Driver: "sqlite", PayloadType: "TEXT"}
	Postgres = Dialect{Name: "postgres", Driver: "pgx", PayloadType: "JSONB", numbered: true}
)

// rebind rewrites ? placeholders into $n for dialects that need it.
func (d Dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
