package module

import (
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"

	"github.com/krew-solutions/ascetic-ddd-repotest/repotest/orm"
	"github.com/krew-solutions/ascetic-ddd-repotest/repotest/query"
)

// Scope runs the DSL verbs on one connection.
type Scope struct {
	module     *Module
	connection string
}

func (s *Scope) entityManager() (*orm.EntityManager, error) {
	return s.module.EntityManager(s.connection)
}

// FlushToDatabase writes every row queued with Persist.
func (s *Scope) FlushToDatabase() error {
	em, err := s.entityManager()
	if err != nil {
		return err
	}
	return em.Flush()
}

// PersistEntity saves obj right away. values override fields of obj.
func (s *Scope) PersistEntity(obj orm.Entity, values query.Params) error {
	em, err := s.entityManager()
	if err != nil {
		return err
	}
	if err := em.Persist(obj, values); err != nil {
		return err
	}
	return em.Flush()
}

// HaveFakeRepository replaces methods of the entity's repository until After.
// Rows queued but not flushed are dropped.
func (s *Scope) HaveFakeRepository(entity string, methods orm.RepositoryMethods) error {
	em, err := s.entityManager()
	if err != nil {
		return err
	}
	repo, err := em.Repository(entity)
	if err != nil {
		return err
	}
	em.Clear()
	em.SetRepository(entity, orm.NewRepositoryStub(repo, methods))
	return nil
}

// HaveInRepository inserts a row built from data and returns its id.
func (s *Scope) HaveInRepository(entity string, data query.Params) (any, error) {
	em, err := s.entityManager()
	if err != nil {
		return nil, err
	}
	row := orm.NewRow(entity, data)
	if err := em.Persist(row, nil); err != nil {
		return nil, err
	}
	if err := em.Flush(); err != nil {
		return nil, err
	}
	s.module.logger.Debug(entity+" entity created", "id", row.ID, "connection", em.Name())
	return row.ID, nil
}

// Exists flushes pending rows and reports whether a row of entity matches params.
func (s *Scope) Exists(entity string, params query.Params) (bool, error) {
	em, err := s.entityManager()
	if err != nil {
		return false, err
	}
	if err := em.Flush(); err != nil {
		return false, err
	}
	repo, qb, err := s.queryBuilder(em, entity, params)
	if err != nil {
		return false, err
	}
	n, err := repo.Count(qb)
	if err != nil {
		return false, errors.Wrapf(err, "query %s", entity)
	}
	return n > 0, nil
}

// SeeInRepository fails t unless a row of entity matches params.
func (s *Scope) SeeInRepository(t assert.TestingT, entity string, params query.Params) bool {
	if h, ok := t.(interface{ Helper() }); ok {
		h.Helper()
	}
	found, err := s.Exists(entity, params)
	if !assert.NoError(t, err) {
		return false
	}
	return assert.True(t, found, describe(entity, params))
}

// DontSeeInRepository fails t if a row of entity matches params.
func (s *Scope) DontSeeInRepository(t assert.TestingT, entity string, params query.Params) bool {
	if h, ok := t.(interface{ Helper() }); ok {
		h.Helper()
	}
	found, err := s.Exists(entity, params)
	if !assert.NoError(t, err) {
		return false
	}
	return assert.False(t, found, describe(entity, params))
}

// GrabFromRepository returns field of the single row of entity matching params.
func (s *Scope) GrabFromRepository(entity, field string, params query.Params) (any, error) {
	em, err := s.entityManager()
	if err != nil {
		return nil, err
	}
	if err := em.Flush(); err != nil {
		return nil, err
	}
	repo, err := em.Repository(entity)
	if err != nil {
		return nil, err
	}
	qb := repo.CreateQueryBuilder(query.RootAlias)
	qb.Select(query.RootAlias + "." + field)
	if err := s.build(em, qb, entity, params); err != nil {
		return nil, err
	}
	v, err := repo.SingleScalar(qb)
	if err != nil {
		return nil, errors.Wrapf(err, "grab %s.%s", entity, field)
	}
	return v, nil
}

func (s *Scope) queryBuilder(em *orm.EntityManager, entity string, params query.Params) (orm.Repository, *query.Builder, error) {
	repo, err := em.Repository(entity)
	if err != nil {
		return nil, nil, err
	}
	qb := repo.CreateQueryBuilder(query.RootAlias)
	if err := s.build(em, qb, entity, params); err != nil {
		return nil, nil, err
	}
	return repo, qb, nil
}

func (s *Scope) build(em *orm.EntityManager, qb *query.Builder, entity string, params query.Params) error {
	if err := query.NewAssociationBuilder(em.Metadata()).Build(qb, entity, query.RootAlias, params); err != nil {
		return err
	}
	s.module.logger.Debug(qb.DQL(), "connection", em.Name())
	return nil
}

func describe(entity string, params query.Params) string {
	return entity + " with " + params.String()
}

// Verbs of the default connection

func (m *Module) FlushToDatabase() error {
	return m.On("").FlushToDatabase()
}

func (m *Module) PersistEntity(obj orm.Entity, values query.Params) error {
	return m.On("").PersistEntity(obj, values)
}

func (m *Module) HaveFakeRepository(entity string, methods orm.RepositoryMethods) error {
	return m.On("").HaveFakeRepository(entity, methods)
}

func (m *Module) HaveInRepository(entity string, data query.Params) (any, error) {
	return m.On("").HaveInRepository(entity, data)
}

func (m *Module) SeeInRepository(t assert.TestingT, entity string, params query.Params) bool {
	if h, ok := t.(interface{ Helper() }); ok {
		h.Helper()
	}
	return m.On("").SeeInRepository(t, entity, params)
}

func (m *Module) DontSeeInRepository(t assert.TestingT, entity string, params query.Params) bool {
	if h, ok := t.(interface{ Helper() }); ok {
		h.Helper()
	}
	return m.On("").DontSeeInRepository(t, entity, params)
}

func (m *Module) GrabFromRepository(entity, field string, params query.Params) (any, error) {
	return m.On("").GrabFromRepository(entity, field, params)
}
