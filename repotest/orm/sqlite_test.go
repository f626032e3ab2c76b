package orm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krew-solutions/ascetic-ddd-repotest/repotest/query"
	"github.com/krew-solutions/ascetic-ddd-repotest/repotest/utils/testutils"
)

var sqliteSchema = []string{
	`CREATE TABLE authors (id INTEGER PRIMARY KEY AUTOINCREMENT, email TEXT)`,
	`CREATE TABLE posts (id INTEGER PRIMARY KEY AUTOINCREMENT, title TEXT, deleted_at TEXT, author_id INTEGER REFERENCES authors (id))`,
	`CREATE TABLE tags (id TEXT PRIMARY KEY, name TEXT)`,
}

func newSqliteManager(t *testing.T) *EntityManager {
	t.Helper()
	s, err := testutils.NewSqliteSession(sqliteSchema...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.DB().Close() })
	return NewEntityManager("default", s, schema(), query.SQLite)
}

func count(t *testing.T, em *EntityManager, entity string, params query.Params) int64 {
	t.Helper()
	repo, err := em.Repository(entity)
	require.NoError(t, err)
	qb := repo.CreateQueryBuilder("s")
	require.NoError(t, query.NewAssociationBuilder(em.Metadata()).Build(qb, entity, "s", params))
	n, err := repo.Count(qb)
	require.NoError(t, err)
	return n
}

func TestSqliteInsertAndQuery(t *testing.T) {
	em := newSqliteManager(t)

	authorID, err := em.Insert("Author", query.P("email", "a@b.com"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), authorID)

	p := &post{Title: "Hello", Author: authorID}
	require.NoError(t, em.Persist(p, nil))
	require.NoError(t, em.Flush())
	assert.Equal(t, int64(1), p.ID)

	assert.Equal(t, int64(1), count(t, em, "Post", query.P("title", "Hello")))
	assert.Equal(t, int64(1), count(t, em, "Post", query.P("author", query.P("email", "a@b.com"))))
	assert.Equal(t, int64(0), count(t, em, "Post", query.P("author", query.P("email", "other"))))
	assert.Equal(t, int64(1), count(t, em, "Post", query.P("author", authorID, "deletedAt", nil)))

	repo, err := em.Repository("Post")
	require.NoError(t, err)
	qb := repo.CreateQueryBuilder("s").Select("s.title")
	v, err := repo.SingleScalar(qb)
	require.NoError(t, err)
	assert.Equal(t, "Hello", v)
}

func TestSqliteClientIdentifier(t *testing.T) {
	em := newSqliteManager(t)
	id, err := em.Insert("Tag", query.P("name", "go"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), count(t, em, "Tag", query.P("id", id)))
}

func TestSqliteRollbackDiscardsRows(t *testing.T) {
	em := newSqliteManager(t)
	require.NoError(t, em.Begin())
	_, err := em.Insert("Author", query.P("email", "tmp@b.com"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), count(t, em, "Author", query.Params{}))

	require.NoError(t, em.Rollback())
	assert.Equal(t, int64(0), count(t, em, "Author", query.Params{}))
}
