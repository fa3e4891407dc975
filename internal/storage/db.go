package storage

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// dialect captures the per-engine SQL differences. Queries in this package
// are written with "?" placeholders and rebound for engines that number them.
type dialect struct {
	name string
	// openAlert is the predicate selecting unresolved rows, used in the
	// partial unique index and its conflict target.
	openAlert string
	// dayBucket truncates created_at to a calendar day for trend queries.
	dayBucket string
	numbered  bool
}

var (
	sqliteDialect = dialect{
		name:      "sqlite3",
		openAlert: "is_resolved = 0",
		dayBucket: "strftime('%Y-%m-%d', created_at)",
	}
	postgresDialect = dialect{
		name:      "postgres",
		openAlert: "NOT is_resolved",
		dayBucket: "to_char(created_at, 'YYYY-MM-DD')",
		numbered:  true,
	}
)

func dialectFor(driver string) (dialect, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "sqlite3", "sqlite":
		return sqliteDialect, nil
	case "postgres", "postgresql":
		return postgresDialect, nil
	default:
		return dialect{}, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// Open opens a database handle for one of the supported drivers.
func Open(driver, dsn string) (*sql.DB, error) {
	d, err := dialectFor(driver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(d.name, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// rebind rewrites "?" placeholders to "$n" for engines that number them.
func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
