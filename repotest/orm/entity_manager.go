package orm

import (
	"github.com/pkg/errors"

	"github.com/krew-solutions/ascetic-ddd-repotest/repotest/fixture"
	"github.com/krew-solutions/ascetic-ddd-repotest/repotest/metadata"
	"github.com/krew-solutions/ascetic-ddd-repotest/repotest/query"
	"github.com/krew-solutions/ascetic-ddd-repotest/repotest/session"
)

// Entity is a fixture object that can be written as one row.
type Entity interface {
	EntityName() string
	Values() query.Params
}

// IdentityAssigner receives the primary key generated on Flush
type IdentityAssigner interface {
	AssignIdentity(id any)
}

// Row is an Entity given as plain values. Its ID is filled in on Flush.
type Row struct {
	Name string
	Data query.Params
	ID   any
}

func NewRow(entity string, data query.Params) *Row {
	return &Row{Name: entity, Data: data}
}

func (r *Row) EntityName() string {
	return r.Name
}

func (r *Row) Values() query.Params {
	return r.Data
}

func (r *Row) AssignIdentity(id any) {
	r.ID = id
}

type pendingRow struct {
	entity Entity
	name   string
	values query.Params
}

// EntityManager writes fixture rows and runs repository queries on one session.
// It is not safe for concurrent use.
type EntityManager struct {
	name         string
	root         session.DbSession
	tx           session.Transaction
	provider     metadata.Provider
	dialect      query.Dialect
	faker        *fixture.Faker
	pending      []pendingRow
	repositories map[string]Repository
}

func NewEntityManager(name string, s session.DbSession, provider metadata.Provider, dialect query.Dialect) *EntityManager {
	return &EntityManager{
		name:         name,
		root:         s,
		provider:     provider,
		dialect:      dialect,
		faker:        fixture.Default,
		repositories: make(map[string]Repository),
	}
}

// WithFaker replaces the generators used for unset fixture columns.
func (em *EntityManager) WithFaker(f *fixture.Faker) *EntityManager {
	em.faker = f
	return em
}

func (em *EntityManager) Name() string {
	return em.name
}

func (em *EntityManager) Dialect() query.Dialect {
	return em.dialect
}

func (em *EntityManager) Metadata() metadata.Provider {
	return em.provider
}

// Session is the active transaction, or the root session outside of one.
func (em *EntityManager) Session() session.DbSession {
	if em.tx != nil {
		return em.tx
	}
	return em.root
}

func (em *EntityManager) Connection() session.DbConnection {
	return em.Session().Connection()
}

func (em *EntityManager) ClassMetadata(entity string) (*metadata.Entity, error) {
	return em.provider.Metadata(entity)
}

// Persist queues entity for the next Flush. overrides replace the entity's own
// values key by key.
func (em *EntityManager) Persist(entity Entity, overrides query.Params) error {
	name := entity.EntityName()
	if _, err := em.provider.Metadata(name); err != nil {
		return err
	}
	values := entity.Values().Clone()
	for _, o := range overrides {
		values = values.Set(o.Key, o.Value)
	}
	em.pending = append(em.pending, pendingRow{entity: entity, name: name, values: values})
	return nil
}

// Flush inserts queued rows in the order they were persisted. Rows written
// before a failure are dropped from the queue.
func (em *EntityManager) Flush() error {
	for len(em.pending) > 0 {
		row := em.pending[0]
		id, err := em.Insert(row.name, row.values)
		if err != nil {
			return errors.Wrapf(err, "flush %s", row.name)
		}
		if assigner, ok := row.entity.(IdentityAssigner); ok {
			assigner.AssignIdentity(id)
		}
		em.pending = em.pending[1:]
	}
	em.pending = nil
	return nil
}

// Pending reports the number of rows waiting for Flush
func (em *EntityManager) Pending() int {
	return len(em.pending)
}

// Insert writes one row and returns its primary key. Missing keys and faked
// columns are generated first.
func (em *EntityManager) Insert(entity string, values query.Params) (any, error) {
	md, err := em.provider.Metadata(entity)
	if err != nil {
		return nil, err
	}
	values, err = em.faker.Identity(md, values)
	if err != nil {
		return nil, err
	}
	values, err = em.faker.Fill(md, values)
	if err != nil {
		return nil, err
	}

	if id, ok := values.Get(md.Identifier); ok && id != nil {
		sql, args, err := query.CompileInsert(md, values, em.dialect, false)
		if err != nil {
			return nil, err
		}
		if _, err := em.Connection().Exec(sql, args...); err != nil {
			return nil, err
		}
		return id, nil
	}

	sql, args, err := query.CompileInsert(md, without(values, md.Identifier), em.dialect, true)
	if err != nil {
		return nil, err
	}
	res, err := em.Connection().Exec(sql, args...)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, errors.Wrapf(err, "read %s identifier", entity)
	}
	return id, nil
}

func without(values query.Params, key string) query.Params {
	out := make(query.Params, 0, len(values))
	for _, v := range values {
		if v.Key != key {
			out = append(out, v)
		}
	}
	return out
}

// Clear drops rows queued by Persist that were not flushed yet.
func (em *EntityManager) Clear() {
	em.pending = nil
}

// ResetRepositories forgets every repository set with SetRepository.
func (em *EntityManager) ResetRepositories() {
	em.repositories = make(map[string]Repository)
}

func (em *EntityManager) Repository(entity string) (Repository, error) {
	if repo, ok := em.repositories[entity]; ok {
		return repo, nil
	}
	md, err := em.provider.Metadata(entity)
	if err != nil {
		return nil, err
	}
	return &SQLRepository{em: em, entity: md}, nil
}

// SetRepository makes Repository return repo for entity until ResetRepositories.
func (em *EntityManager) SetRepository(entity string, repo Repository) {
	em.repositories[entity] = repo
}

func (em *EntityManager) Begin() error {
	if em.tx != nil {
		return ErrTransactionActive
	}
	t, ok := em.root.(session.Transactional)
	if !ok {
		return ErrNotTransactional
	}
	tx, err := t.Begin()
	if err != nil {
		return err
	}
	em.tx = tx
	return nil
}

func (em *EntityManager) Commit() error {
	if em.tx == nil {
		return ErrNoTransaction
	}
	tx := em.tx
	em.tx = nil
	return tx.Commit()
}

func (em *EntityManager) Rollback() error {
	if em.tx == nil {
		return ErrNoTransaction
	}
	tx := em.tx
	em.tx = nil
	return tx.Rollback()
}

func (em *EntityManager) InTransaction() bool {
	return em.tx != nil
}
