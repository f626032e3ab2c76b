package sql

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krew-solutions/ascetic-ddd-repotest/repotest/session"
)

func newMockSession(t *testing.T) (*Session, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewSession(context.Background(), db), mock
}

func TestSessionExec(t *testing.T) {
	s, mock := newMockSession(t)
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE "posts" SET "title" = $1`)).
		WithArgs("T").
		WillReturnResult(sqlmock.NewResult(0, 3))

	res, err := s.Connection().Exec(`UPDATE "posts" SET "title" = $1`, "T")
	require.NoError(t, err)
	n, err := res.RowsAffected()
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionInsertReturningReadsID(t *testing.T) {
	s, mock := newMockSession(t)
	q := `INSERT INTO "posts" ("title") VALUES ($1) RETURNING "id"`
	mock.ExpectQuery(regexp.QuoteMeta(q)).
		WithArgs("T").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(42))

	res, err := s.Connection().Exec(q, "T")
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	assert.Equal(t, int64(42), id)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionQuery(t *testing.T) {
	s, mock := newMockSession(t)
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT "s"."title" FROM "posts" "s"`)).
		WillReturnRows(sqlmock.NewRows([]string{"title"}).AddRow("a").AddRow("b"))

	rows, err := s.Connection().Query(`SELECT "s"."title" FROM "posts" "s"`)
	require.NoError(t, err)
	defer rows.Close()
	var titles []string
	for rows.Next() {
		var title string
		require.NoError(t, rows.Scan(&title))
		titles = append(titles, title)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []string{"a", "b"}, titles)
}

func TestSessionQueryError(t *testing.T) {
	s, mock := newMockSession(t)
	boom := errors.New("boom")
	mock.ExpectQuery("SELECT").WillReturnError(boom)

	rows, err := s.Connection().Query("SELECT 1")
	assert.Nil(t, rows)
	assert.ErrorIs(t, err, boom)
}

func TestSessionAtomicCommits(t *testing.T) {
	s, mock := newMockSession(t)
	mock.ExpectBegin()
	mock.ExpectExec("DELETE").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := s.Atomic(func(tx session.Session) error {
		_, err := tx.(session.DbSession).Connection().Exec(`DELETE FROM "posts"`)
		return err
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionAtomicRollsBackOnError(t *testing.T) {
	s, mock := newMockSession(t)
	mock.ExpectBegin()
	mock.ExpectRollback()
	boom := errors.New("boom")

	err := s.Atomic(func(session.Session) error { return boom })
	assert.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestSessionAtomicJoinsRollbackError(t *testing.T) {
	s, mock := newMockSession(t)
	mock.ExpectBegin()
	rollbackErr := errors.New("rollback failed")
	mock.ExpectRollback().WillReturnError(rollbackErr)
	boom := errors.New("boom")

	err := s.Atomic(func(session.Session) error { return boom })
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, err, rollbackErr)
}

func TestSessionBeginRollback(t *testing.T) {
	s, mock := newMockSession(t)
	mock.ExpectBegin()
	mock.ExpectExec("INSERT").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectRollback()

	tx, err := s.Begin()
	require.NoError(t, err)
	_, err = tx.Connection().Exec(`INSERT INTO "posts" DEFAULT VALUES`)
	require.NoError(t, err)
	require.NoError(t, tx.Rollback())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTxSessionNestedBeginUnsupported(t *testing.T) {
	s, mock := newMockSession(t)
	mock.ExpectBegin()

	tx, err := s.Begin()
	require.NoError(t, err)
	_, err = tx.(session.Transactional).Begin()
	assert.ErrorIs(t, err, ErrSavepointUnsupported)
}

func TestSessionQueryEvents(t *testing.T) {
	s, mock := newMockSession(t)
	mock.ExpectExec("DELETE").WillReturnResult(sqlmock.NewResult(0, 0))

	var started []string
	var ended []session.QueryEndedEvent
	s.OnQueryStarted().Attach(func(e session.QueryStartedEvent) error {
		started = append(started, e.Query)
		return nil
	}, "started")
	s.OnQueryEnded().Attach(func(e session.QueryEndedEvent) error {
		ended = append(ended, e)
		return nil
	}, "ended")

	_, err := s.Connection().Exec(`DELETE FROM "posts" WHERE "id" = $1`, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{`DELETE FROM "posts" WHERE "id" = $1`}, started)
	require.Len(t, ended, 1)
	assert.Equal(t, []any{1}, ended[0].Params)
	assert.Same(t, s, ended[0].Session)
	assert.NoError(t, ended[0].Err)
}

func TestSessionStartedObserverErrorAbortsQuery(t *testing.T) {
	s, mock := newMockSession(t)
	veto := errors.New("veto")
	s.OnQueryStarted().Attach(func(session.QueryStartedEvent) error { return veto }, "veto")

	_, err := s.Connection().Exec(`DELETE FROM "posts"`)
	assert.ErrorIs(t, err, veto)
	require.NoError(t, mock.ExpectationsWereMet())
}
