package orm

import (
	"github.com/krew-solutions/ascetic-ddd-repotest/repotest/metadata"
	"github.com/krew-solutions/ascetic-ddd-repotest/repotest/query"
)

type Repository interface {
	EntityName() string
	CreateQueryBuilder(alias string) *query.Builder
	// Count returns the number of rows matching qb
	Count(qb *query.Builder) (int64, error)
	// SingleScalar returns the only value of the first selected column.
	SingleScalar(qb *query.Builder) (any, error)
}

// SQLRepository executes builders through its EntityManager's current session.
type SQLRepository struct {
	em     *EntityManager
	entity *metadata.Entity
}

func (r *SQLRepository) EntityName() string {
	return r.entity.Name
}

func (r *SQLRepository) CreateQueryBuilder(alias string) *query.Builder {
	return query.NewBuilder(r.entity.Name, alias)
}

func (r *SQLRepository) Count(qb *query.Builder) (int64, error) {
	sql, args, err := query.CompileCount(qb, r.em.provider, r.em.dialect)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := r.em.Connection().QueryRow(sql, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// SingleScalar reads at most two rows to tell a unique result from a
// non-unique one. It sets the builder's max results accordingly.
func (r *SQLRepository) SingleScalar(qb *query.Builder) (any, error) {
	qb.SetMaxResults(2)
	sql, args, err := query.Compile(qb, r.em.provider, r.em.dialect)
	if err != nil {
		return nil, err
	}
	rows, err := r.em.Connection().Query(sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var values []any
	for rows.Next() {
		var v any
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		values = append(values, normalize(v))
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	switch len(values) {
	case 0:
		return nil, ErrNoResult
	case 1:
		return values[0], nil
	default:
		return nil, ErrNonUniqueResult
	}
}

// normalize turns driver byte slices into strings
func normalize(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}

// RepositoryMethods replaces selected repository methods. Nil fields keep the
// behavior of the repository being stubbed.
type RepositoryMethods struct {
	CreateQueryBuilder func(alias string) *query.Builder
	Count              func(qb *query.Builder) (int64, error)
	SingleScalar       func(qb *query.Builder) (any, error)
}

type RepositoryStub struct {
	repo    Repository
	methods RepositoryMethods
}

func NewRepositoryStub(repo Repository, methods RepositoryMethods) *RepositoryStub {
	return &RepositoryStub{repo: repo, methods: methods}
}

func (s *RepositoryStub) EntityName() string {
	return s.repo.EntityName()
}

func (s *RepositoryStub) CreateQueryBuilder(alias string) *query.Builder {
	if s.methods.CreateQueryBuilder != nil {
		return s.methods.CreateQueryBuilder(alias)
	}
	return s.repo.CreateQueryBuilder(alias)
}

func (s *RepositoryStub) Count(qb *query.Builder) (int64, error) {
	if s.methods.Count != nil {
		return s.methods.Count(qb)
	}
	return s.repo.Count(qb)
}

func (s *RepositoryStub) SingleScalar(qb *query.Builder) (any, error) {
	if s.methods.SingleScalar != nil {
		return s.methods.SingleScalar(qb)
	}
	return s.repo.SingleScalar(qb)
}
