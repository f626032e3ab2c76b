package pg_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krew-solutions/ascetic-ddd-repotest/repotest/session"
	"github.com/krew-solutions/ascetic-ddd-repotest/repotest/session/pg"
	"github.com/krew-solutions/ascetic-ddd-repotest/repotest/utils/testutils"
)

func newPool(t *testing.T) *pg.SessionPool {
	t.Helper()
	if !testutils.PgConfigured() {
		t.Skip("DB_HOST is not set")
	}
	pool, err := testutils.NewPgSessionPool()
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	return pool
}

func TestSessionInsertReturning(t *testing.T) {
	pool := newPool(t)
	s := pool.Shared(context.Background())

	tx, err := s.Begin()
	require.NoError(t, err)
	defer func() { _ = tx.Rollback() }()

	conn := tx.Connection()
	_, err = conn.Exec(`CREATE TEMPORARY TABLE repotest_posts (id SERIAL PRIMARY KEY, title TEXT)`)
	require.NoError(t, err)

	res, err := conn.Exec(`INSERT INTO repotest_posts (title) VALUES ($1) RETURNING id`, "Hello")
	require.NoError(t, err)
	id, err := res.LastInsertId()
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	var title string
	require.NoError(t, conn.QueryRow(`SELECT title FROM repotest_posts WHERE id = $1`, id).Scan(&title))
	assert.Equal(t, "Hello", title)
}

func TestSessionSavepoint(t *testing.T) {
	pool := newPool(t)
	s := pool.Shared(context.Background())

	tx, err := s.Begin()
	require.NoError(t, err)
	defer func() { _ = tx.Rollback() }()
	_, err = tx.Connection().Exec(`CREATE TEMPORARY TABLE repotest_tags (name TEXT)`)
	require.NoError(t, err)

	boom := errors.New("boom")
	err = tx.Atomic(func(nested session.Session) error {
		_, err := nested.(session.DbSession).Connection().Exec(`INSERT INTO repotest_tags VALUES ('discarded')`)
		require.NoError(t, err)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var n int64
	require.NoError(t, tx.Connection().QueryRow(`SELECT COUNT(*) FROM repotest_tags`).Scan(&n))
	assert.Equal(t, int64(0), n)
}

func TestSessionPoolCallback(t *testing.T) {
	pool := newPool(t)
	err := pool.Session(context.Background(), func(s session.Session) error {
		var one int
		return s.(session.DbSession).Connection().QueryRow(`SELECT 1`).Scan(&one)
	})
	assert.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, pool.Session(ctx, func(session.Session) error { return nil }), context.Canceled)
}
