package bootstrap

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/krew-solutions/ascetic-ddd-repotest/repotest/config"
	"github.com/krew-solutions/ascetic-ddd-repotest/repotest/metadata"
	"github.com/krew-solutions/ascetic-ddd-repotest/repotest/query"
	"github.com/krew-solutions/ascetic-ddd-repotest/repotest/utils/testutils"
)

func sqliteConfig(names ...string) config.Config {
	cfg := config.Default()
	for _, name := range names {
		cfg.Connections[name] = config.Connection{Driver: "sqlite", DSN: ":memory:"}
	}
	return cfg
}

func TestOpenSqlite(t *testing.T) {
	provider := metadata.NewRegistry(metadata.NewEntity("Post").Column("title"))
	env, err := Open(context.Background(), sqliteConfig("default", "audit"), provider, nil)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, env.Close()) })

	assert.Equal(t, []string{"audit", "default"}, env.Names())
	em, err := env.EntityManager("default")
	require.NoError(t, err)
	assert.Equal(t, "default", em.Name())
	assert.Equal(t, query.SQLite, em.Dialect())

	_, err = em.Connection().Exec(`CREATE TABLE posts (id INTEGER PRIMARY KEY, title TEXT)`)
	require.NoError(t, err)
	id, err := em.Insert("Post", query.P("title", "x"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	_, err = env.EntityManager("missing")
	assert.True(t, errors.Is(err, ErrUnknownConnection))
}

func TestOpenLoadsSchemaFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "schema.yaml")
	require.NoError(t, os.WriteFile(path, []byte("entities:\n  - name: Post\n    fields:\n      - name: title\n"), 0o600))
	cfg := sqliteConfig("default")
	cfg.Schema = path

	env, err := Open(context.Background(), cfg, nil, nil)
	require.NoError(t, err)
	defer env.Close()
	em, err := env.EntityManager("default")
	require.NoError(t, err)
	md, err := em.ClassMetadata("Post")
	require.NoError(t, err)
	assert.Equal(t, "posts", md.Table)
}

func TestOpenErrors(t *testing.T) {
	provider := metadata.NewRegistry()

	t.Run("no schema", func(t *testing.T) {
		_, err := Open(context.Background(), sqliteConfig("default"), nil, nil)
		assert.True(t, errors.Is(err, ErrNoSchema))
	})

	t.Run("unknown driver", func(t *testing.T) {
		cfg := config.Default()
		cfg.Connections["default"] = config.Connection{Driver: "oracle", Dialect: "postgres"}
		_, err := Open(context.Background(), cfg, provider, nil)
		assert.True(t, errors.Is(err, ErrUnknownDriver))
	})

	t.Run("unknown dialect", func(t *testing.T) {
		cfg := config.Default()
		cfg.Connections["default"] = config.Connection{Driver: "oracle"}
		_, err := Open(context.Background(), cfg, provider, nil)
		assert.True(t, errors.Is(err, query.ErrUnknownDialect))
	})
}

func TestOpenPostgres(t *testing.T) {
	if !testutils.PgConfigured() {
		t.Skip("DB_HOST is not set")
	}
	for _, driver := range []string{"pgx", "postgres"} {
		t.Run(driver, func(t *testing.T) {
			cfg := config.Default()
			cfg.Connections["default"] = config.Connection{Driver: driver, DSN: testutils.PgConnString() + "?sslmode=disable"}
			env, err := Open(context.Background(), cfg, metadata.NewRegistry(), nil)
			require.NoError(t, err)
			defer env.Close()
			em, err := env.EntityManager("default")
			require.NoError(t, err)
			assert.Equal(t, query.Postgres, em.Dialect())
			require.NoError(t, em.Begin())
			require.NoError(t, em.Rollback())
		})
	}
}
