package query

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

type Dialect string

const (
	Postgres Dialect = "postgres"
	MySQL    Dialect = "mysql"
	SQLite   Dialect = "sqlite"
)

// ParseDialect accepts dialect and common driver names ("pgx", "sqlite3", ...)
func ParseDialect(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "postgres", "postgresql", "pgx", "pq":
		return Postgres, nil
	case "mysql", "mariadb":
		return MySQL, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	}
	return "", errors.Wrapf(ErrUnknownDialect, "%q", name)
}

// Placeholder returns the n-th (1-based) positional parameter marker
func (d Dialect) Placeholder(n int) string {
	if d == Postgres {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

func (d Dialect) Quote(identifier string) string {
	if d == MySQL {
		return "`" + identifier + "`"
	}
	return `"` + identifier + `"`
}

// SupportsReturning reports whether INSERT ... RETURNING can hand back generated keys
func (d Dialect) SupportsReturning() bool {
	return d == Postgres || d == SQLite
}

var validIdentifierRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

func isValidIdentifier(s string) bool {
	return len(s) <= 128 && validIdentifierRe.MatchString(s)
}
