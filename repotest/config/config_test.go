package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDefaults(t *testing.T) {
	cfg, err := Parse(strings.NewReader(""))
	require.NoError(t, err)
	assert.True(t, cfg.Cleanup)
	assert.Equal(t, []string{"default"}, cfg.EntityManagers)
	assert.False(t, cfg.Debug)
	assert.Empty(t, cfg.Connections)
}

func TestParse(t *testing.T) {
	t.Setenv("REPOTEST_DB_HOST", "db.local")
	doc := `
cleanup: false
debug: true
schema: schema.yaml
entity_managers: [default, audit]
connections:
  default:
    driver: pgx
    dsn: postgres://u:p@${REPOTEST_DB_HOST}/app
  audit:
    driver: sqlite
    dsn: ":memory:"
    dialect: sqlite
`
	cfg, err := Parse(strings.NewReader(doc))
	require.NoError(t, err)
	assert.False(t, cfg.Cleanup)
	assert.True(t, cfg.Debug)
	assert.Equal(t, "schema.yaml", cfg.Schema)
	assert.Equal(t, []string{"default", "audit"}, cfg.EntityManagers)
	assert.Equal(t, Connection{Driver: "pgx", DSN: "postgres://u:p@db.local/app"}, cfg.Connections["default"])
	assert.Equal(t, "sqlite", cfg.Connections["audit"].Dialect)
	assert.Equal(t, []string{"audit", "default"}, cfg.ConnectionNames())
}

func TestParseInvalid(t *testing.T) {
	cases := map[string]string{
		"empty managers": "entity_managers: []",
		"blank manager":  `entity_managers: [""]`,
		"repeated":       "entity_managers: [a, a]",
		"missing driver": "connections:\n  default:\n    dsn: x",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(doc))
			assert.True(t, errors.Is(err, ErrInvalidConfig), err)
		})
	}

	_, err := Parse(strings.NewReader("cleanup: [1"))
	assert.Error(t, err)
}

func TestLoadResolvesSchemaPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "repotest.yaml")
	require.NoError(t, os.WriteFile(path, []byte("schema: schema.yaml\n"), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "schema.yaml"), cfg.Schema)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
