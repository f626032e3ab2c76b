package query

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateAlias   = errors.New("query: duplicate alias")
	ErrMalformedPath    = errors.New("query: malformed association path")
	ErrUnboundParameter = errors.New("query: unbound parameter")
	ErrUnknownDialect   = errors.New("query: unknown dialect")
)

// MalformedPathError is returned by the compiler when a join or predicate
// references something the mapping cannot express
type MalformedPathError struct {
	Path   string
	Reason string
}

func (e *MalformedPathError) Error() string {
	return fmt.Sprintf("query: malformed path %q: %s", e.Path, e.Reason)
}

func (e *MalformedPathError) Is(err error) bool {
	return err == ErrMalformedPath
}

func malformed(path, format string, args ...any) error {
	return &MalformedPathError{Path: path, Reason: fmt.Sprintf(format, args...)}
}
