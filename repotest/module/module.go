// Package module is a test DSL over one or more EntityManagers: seed rows,
// assert their presence through association queries and roll everything back
// after each test.
//
//	m := module.New(module.DefaultConfig(), module.Registry{"default": em})
//	m.Setup(t)
//	id, _ := m.HaveInRepository("Author", query.P("email", "a@b.com"))
//	m.SeeInRepository(t, "Post", query.P("author", query.P("email", "a@b.com")))
package module

import (
	"fmt"
	"log/slog"
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krew-solutions/ascetic-ddd-repotest/repotest/config"
	"github.com/krew-solutions/ascetic-ddd-repotest/repotest/orm"
	"github.com/krew-solutions/ascetic-ddd-repotest/repotest/session"
	"github.com/krew-solutions/ascetic-ddd-repotest/repotest/signals"
)

var (
	ErrMissingDependency    = errors.New("module: no entity manager provider")
	ErrModuleConfig         = errors.New("module: invalid configuration")
	ErrInvalidEntityManager = errors.New("module: invalid entity manager")
)

type EntityManagerProvider interface {
	EntityManager(name string) (*orm.EntityManager, error)
}

// Registry provides EntityManagers registered by hand.
type Registry map[string]*orm.EntityManager

func (r Registry) EntityManager(name string) (*orm.EntityManager, error) {
	em, ok := r[name]
	if !ok || em == nil {
		return nil, errors.Errorf("entity manager %q is not registered", name)
	}
	return em, nil
}

type Config struct {
	// Cleanup wraps every test in a transaction that is rolled back afterwards
	Cleanup        bool
	EntityManagers []string
}

func DefaultConfig() Config {
	return Config{Cleanup: true, EntityManagers: []string{config.DefaultConnection}}
}

func FromConfig(c config.Config) Config {
	return Config{Cleanup: c.Cleanup, EntityManagers: c.EntityManagers}
}

type Option func(*Module)

func WithLogger(logger *slog.Logger) Option {
	return func(m *Module) {
		m.logger = logger
	}
}

type Module struct {
	cfg      Config
	provider EntityManagerProvider
	ems      map[string]*orm.EntityManager
	detach   []signals.Detach
	logger   *slog.Logger
}

func New(cfg Config, provider EntityManagerProvider, opts ...Option) *Module {
	m := &Module{
		cfg:      cfg,
		provider: provider,
		ems:      make(map[string]*orm.EntityManager),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// BeforeSuite checks that every configured EntityManager can be retrieved.
func (m *Module) BeforeSuite() error {
	return m.retrieveEntityManagers()
}

// Before retrieves the EntityManagers and, with cleanup enabled, opens a
// transaction on each of them.
func (m *Module) Before() error {
	if err := m.retrieveEntityManagers(); err != nil {
		return err
	}
	var begun []*orm.EntityManager
	for _, name := range m.cfg.EntityManagers {
		em := m.ems[name]
		m.observe(em)
		if m.cfg.Cleanup && !em.InTransaction() {
			if err := em.Begin(); err != nil {
				return m.abort(begun, errors.Wrapf(err, "begin transaction on %q", name))
			}
			begun = append(begun, em)
		}
	}
	return nil
}

// abort rolls back the transactions begun by a failed Before and detaches its observers.
func (m *Module) abort(begun []*orm.EntityManager, cause error) error {
	result := multierror.Append(nil, cause)
	for _, em := range begun {
		if err := em.Rollback(); err != nil {
			result = multierror.Append(result, errors.Wrapf(err, "rollback %q", em.Name()))
		}
	}
	m.detachObservers()
	return result.ErrorOrNil()
}

func (m *Module) detachObservers() {
	for _, detach := range m.detach {
		detach()
	}
	m.detach = nil
}

// After rolls back the transactions opened by Before and forgets queued rows
// and fake repositories. Every EntityManager is cleaned even when one fails.
func (m *Module) After() error {
	var result error
	for _, name := range m.cfg.EntityManagers {
		em, ok := m.ems[name]
		if !ok {
			continue
		}
		if m.cfg.Cleanup && em.InTransaction() {
			if err := em.Rollback(); err != nil {
				result = multierror.Append(result, errors.Wrapf(err, "rollback %q", name))
			}
		}
		em.Clear()
		em.ResetRepositories()
	}
	m.detachObservers()
	return result
}

// Setup runs Before and registers After as a cleanup of t.
func (m *Module) Setup(t testing.TB) {
	t.Helper()
	require.NoError(t, m.Before())
	t.Cleanup(func() {
		assert.NoError(t, m.After())
	})
}

// EntityManager returns the manager of connection, "" meaning the default one.
func (m *Module) EntityManager(connection string) (*orm.EntityManager, error) {
	if connection == "" {
		connection = config.DefaultConnection
	}
	if !m.configured(connection) {
		return nil, errors.Wrapf(ErrInvalidEntityManager,
			"%q, check your entity_managers configuration first", connection)
	}
	if em, ok := m.ems[connection]; ok {
		return em, nil
	}
	if err := m.retrieveEntityManagers(); err != nil {
		return nil, err
	}
	return m.ems[connection], nil
}

// On scopes the DSL verbs to connection
func (m *Module) On(connection string) *Scope {
	return &Scope{module: m, connection: connection}
}

func (m *Module) configured(connection string) bool {
	for _, name := range m.cfg.EntityManagers {
		if name == connection {
			return true
		}
	}
	return false
}

func (m *Module) retrieveEntityManagers() error {
	if m.provider == nil {
		return ErrMissingDependency
	}
	for _, name := range m.cfg.EntityManagers {
		em, err := m.provider.EntityManager(name)
		if err != nil {
			return multierror.Append(errors.Wrapf(ErrModuleConfig,
				"entity manager %q cannot be retrieved, check the entity_managers option", name), err)
		}
		if em == nil {
			return errors.Wrapf(ErrModuleConfig, "entity manager %q is nil", name)
		}
		m.ems[name] = em
	}
	return nil
}

// observe logs every statement of em at debug level until After.
func (m *Module) observe(em *orm.EntityManager) {
	observable, ok := em.Session().(session.QueryObservable)
	if !ok {
		return
	}
	logger := m.logger.With("connection", em.Name())
	id := fmt.Sprintf("repotest.module.query.%s.%p", em.Name(), m)
	m.detach = append(m.detach, observable.OnQueryEnded().Attach(func(e session.QueryEndedEvent) error {
		logger.Debug("query", "sql", e.Query, "params", e.Params, "duration", e.ResponseTime, "error", e.Err)
		return nil
	}, id))
}
