// Package bootstrap opens the configured connections and builds one
// EntityManager per connection.
package bootstrap

import (
	"context"
	"database/sql"
	"log/slog"
	"sort"
	"strings"

	_ "github.com/go-sql-driver/mysql"
	"github.com/hashicorp/go-multierror"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/lib/pq"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"

	"github.com/krew-solutions/ascetic-ddd-repotest/repotest/config"
	"github.com/krew-solutions/ascetic-ddd-repotest/repotest/metadata"
	"github.com/krew-solutions/ascetic-ddd-repotest/repotest/orm"
	"github.com/krew-solutions/ascetic-ddd-repotest/repotest/query"
	"github.com/krew-solutions/ascetic-ddd-repotest/repotest/session"
	pgsession "github.com/krew-solutions/ascetic-ddd-repotest/repotest/session/pg"
	sqlsession "github.com/krew-solutions/ascetic-ddd-repotest/repotest/session/sql"
)

var (
	ErrUnknownDriver     = errors.New("bootstrap: unknown driver")
	ErrUnknownConnection = errors.New("bootstrap: unknown connection")
	ErrNoSchema          = errors.New("bootstrap: no entity schema configured")
)

// database/sql driver names by configured driver
var sqlDrivers = map[string]string{
	"postgres": "postgres",
	"pq":       "postgres",
	"mysql":    "mysql",
	"sqlite":   "sqlite",
	"sqlite3":  "sqlite",
}

// Environment owns the opened connections.
type Environment struct {
	managers map[string]*orm.EntityManager
	closers  []func() error
	logger   *slog.Logger
}

// Open connects every configured connection. provider may be nil, in which
// case the schema file named by cfg is loaded.
func Open(ctx context.Context, cfg config.Config, provider metadata.Provider, logger *slog.Logger) (*Environment, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if provider == nil {
		if cfg.Schema == "" {
			return nil, ErrNoSchema
		}
		registry, err := metadata.LoadFile(cfg.Schema)
		if err != nil {
			return nil, err
		}
		provider = registry
	}

	env := &Environment{managers: make(map[string]*orm.EntityManager), logger: logger}
	for _, name := range cfg.ConnectionNames() {
		conn := cfg.Connections[name]
		em, err := env.open(ctx, name, conn, provider)
		if err != nil {
			return nil, multierror.Append(errors.Wrapf(err, "connection %q", name), env.Close())
		}
		env.managers[name] = em
		logger.Debug("repotest connection opened", "connection", name, "driver", conn.Driver, "dialect", em.Dialect())
	}
	return env, nil
}

func (env *Environment) open(ctx context.Context, name string, conn config.Connection, provider metadata.Provider) (*orm.EntityManager, error) {
	dialectName := conn.Dialect
	if dialectName == "" {
		dialectName = conn.Driver
	}
	dialect, err := query.ParseDialect(dialectName)
	if err != nil {
		return nil, err
	}

	var s session.DbSession
	driver := strings.ToLower(conn.Driver)
	if driver == "pgx" {
		pool, err := pgxpool.New(ctx, conn.DSN)
		if err != nil {
			return nil, err
		}
		env.closers = append(env.closers, func() error { pool.Close(); return nil })
		if err := pool.Ping(ctx); err != nil {
			return nil, err
		}
		s = pgsession.NewSessionPool(pool).Shared(ctx)
	} else {
		sqlDriver, ok := sqlDrivers[driver]
		if !ok {
			return nil, errors.Wrapf(ErrUnknownDriver, "%q", conn.Driver)
		}
		db, err := sql.Open(sqlDriver, conn.DSN)
		if err != nil {
			return nil, err
		}
		env.closers = append(env.closers, db.Close)
		if sqlDriver == "sqlite" && strings.Contains(conn.DSN, ":memory:") {
			db.SetMaxOpenConns(1)
		}
		if err := db.PingContext(ctx); err != nil {
			return nil, err
		}
		s = sqlsession.NewSession(ctx, db)
	}
	return orm.NewEntityManager(name, s, provider, dialect), nil
}

// EntityManager returns the manager of the named connection
func (env *Environment) EntityManager(name string) (*orm.EntityManager, error) {
	em, ok := env.managers[name]
	if !ok {
		return nil, errors.Wrapf(ErrUnknownConnection, "%q", name)
	}
	return em, nil
}

func (env *Environment) Names() []string {
	names := make([]string, 0, len(env.managers))
	for name := range env.managers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close closes every connection, reporting all failures.
func (env *Environment) Close() error {
	var result error
	for i := len(env.closers) - 1; i >= 0; i-- {
		if err := env.closers[i](); err != nil {
			result = multierror.Append(result, err)
		}
	}
	env.closers = nil
	return result
}
