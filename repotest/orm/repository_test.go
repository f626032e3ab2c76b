package orm

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krew-solutions/ascetic-ddd-repotest/repotest/metadata"
	"github.com/krew-solutions/ascetic-ddd-repotest/repotest/query"
)

func TestRepositoryCount(t *testing.T) {
	em, stub := newStubManager(query.Postgres)
	stub.AddRows([]any{int64(3)})

	repo, err := em.Repository("Post")
	require.NoError(t, err)
	assert.Equal(t, "Post", repo.EntityName())
	qb := repo.CreateQueryBuilder("s")
	require.NoError(t, query.NewAssociationBuilder(schema()).Build(qb, "Post", "s", query.P("title", "T")))

	n, err := repo.Count(qb)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	assert.Equal(t, `SELECT COUNT(*) FROM "posts" "s" WHERE "s"."title" = $1`, stub.ActualQuery)
	assert.Equal(t, []any{"T"}, stub.ActualParams)
}

func TestRepositorySingleScalar(t *testing.T) {
	cases := []struct {
		name string
		rows [][]any
		want any
		err  error
	}{
		{"single", [][]any{{"a@b.com"}}, "a@b.com", nil},
		{"bytes become string", [][]any{{[]byte("x")}}, "x", nil},
		{"none", nil, nil, ErrNoResult},
		{"many", [][]any{{"a"}, {"b"}}, nil, ErrNonUniqueResult},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			em, stub := newStubManager(query.SQLite)
			stub.AddRows(tc.rows...)
			repo, err := em.Repository("Post")
			require.NoError(t, err)
			qb := repo.CreateQueryBuilder("s").Select("s.title")

			v, err := repo.SingleScalar(qb)
			if tc.err != nil {
				assert.ErrorIs(t, err, tc.err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, v)
			assert.Equal(t, `SELECT "s"."title" FROM "posts" "s" LIMIT 2`, stub.ActualQuery)
		})
	}
}

func TestRepositoryCompileError(t *testing.T) {
	em, stub := newStubManager(query.Postgres)
	repo, err := em.Repository("Post")
	require.NoError(t, err)
	qb := repo.CreateQueryBuilder("s")
	qb.InnerJoin("s.title", "title")

	_, err = repo.Count(qb)
	assert.True(t, errors.Is(err, query.ErrMalformedPath))
	assert.Empty(t, stub.Queries)
}

func TestRepositoryUnknownEntity(t *testing.T) {
	em, _ := newStubManager(query.Postgres)
	_, err := em.Repository("Ghost")
	assert.True(t, errors.Is(err, metadata.ErrUnknownEntity))
}

func TestRepositoryStub(t *testing.T) {
	em, stub := newStubManager(query.Postgres)
	sqlRepo, err := em.Repository("Post")
	require.NoError(t, err)

	fake := NewRepositoryStub(sqlRepo, RepositoryMethods{
		Count: func(*query.Builder) (int64, error) { return 42, nil },
	})
	em.SetRepository("Post", fake)

	repo, err := em.Repository("Post")
	require.NoError(t, err)
	assert.Same(t, fake, repo)
	assert.Equal(t, "Post", repo.EntityName())

	n, err := repo.Count(repo.CreateQueryBuilder("s"))
	require.NoError(t, err)
	assert.Equal(t, int64(42), n)
	assert.Empty(t, stub.Queries)

	stub.AddRows([]any{"t"})
	v, err := repo.SingleScalar(repo.CreateQueryBuilder("s").Select("s.title"))
	require.NoError(t, err)
	assert.Equal(t, "t", v)
	assert.Len(t, stub.Queries, 1)
}
