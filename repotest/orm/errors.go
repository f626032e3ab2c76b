package orm

import "github.com/pkg/errors"

var (
	ErrNotTransactional  = errors.New("orm: session cannot begin a transaction")
	ErrTransactionActive = errors.New("orm: transaction already active")
	ErrNoTransaction     = errors.New("orm: no active transaction")
	ErrNoResult          = errors.New("orm: no result")
	ErrNonUniqueResult   = errors.New("orm: more than one result")
)
