package session

import (
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

// Atomic runs callback inside a transaction opened on s. The transaction is
// committed when callback succeeds and rolled back otherwise.
func Atomic(s Transactional, callback SessionCallback) error {
	tx, err := s.Begin()
	if err != nil {
		return err
	}
	err = callback(tx)
	if err != nil {
		if txErr := tx.Rollback(); txErr != nil {
			return multierror.Append(err, txErr)
		}
		return err
	}
	if txErr := tx.Commit(); txErr != nil {
		return errors.Wrap(txErr, "failed to commit transaction")
	}
	return nil
}
