package session

import "regexp"

var autoincrementInsertQuery = regexp.MustCompile(`(?is)^\s*INSERT\s+INTO\s.+\sRETURNING\s+\S+\s*;?\s*$`)

// IsAutoincrementInsertQuery reports whether query is an INSERT that returns
// its generated key, so it has to be read back as a row.
func IsAutoincrementInsertQuery(query string) bool {
	return autoincrementInsertQuery.MatchString(query)
}
