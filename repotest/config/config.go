// Package config reads the repotest settings file.
//
// Example:
//
//	cleanup: true
//	debug: false
//	schema: schema.yaml
//	entity_managers: [default, audit]
//	connections:
//	  default:
//	    driver: pgx
//	    dsn: postgres://${DB_USERNAME}:${DB_PASSWORD}@${DB_HOST}/app
//	  audit:
//	    driver: sqlite
//	    dsn: "file:audit.db"
package config

import (
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const DefaultConnection = "default"

var ErrInvalidConfig = errors.New("config: invalid configuration")

type Connection struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
	// Dialect overrides the SQL dialect derived from Driver
	Dialect string `yaml:"dialect,omitempty"`
}

type Config struct {
	Cleanup        bool                  `yaml:"cleanup"`
	EntityManagers []string              `yaml:"entity_managers"`
	Debug          bool                  `yaml:"debug"`
	Schema         string                `yaml:"schema"`
	Connections    map[string]Connection `yaml:"connections"`
}

func Default() Config {
	return Config{
		Cleanup:        true,
		EntityManagers: []string{DefaultConnection},
		Connections:    map[string]Connection{},
	}
}

// Parse reads a configuration document. Omitted keys keep their defaults and
// environment variables in DSNs are expanded.
func Parse(r io.Reader) (Config, error) {
	cfg := Default()
	if err := yaml.NewDecoder(r).Decode(&cfg); err != nil && err != io.EOF {
		return Config{}, errors.Wrap(err, "config: decode")
	}
	for name, conn := range cfg.Connections {
		conn.DSN = os.ExpandEnv(conn.DSN)
		cfg.Connections[name] = conn
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load reads the file at path. A relative schema path is resolved against the
// directory of the file.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "config: open")
	}
	defer f.Close()

	cfg, err := Parse(f)
	if err != nil {
		return Config{}, errors.Wrapf(err, "%s", path)
	}
	if cfg.Schema != "" && !filepath.IsAbs(cfg.Schema) {
		cfg.Schema = filepath.Join(filepath.Dir(path), cfg.Schema)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if len(c.EntityManagers) == 0 {
		return errors.Wrap(ErrInvalidConfig, "entity_managers must not be empty")
	}
	seen := make(map[string]bool, len(c.EntityManagers))
	for _, name := range c.EntityManagers {
		if name == "" {
			return errors.Wrap(ErrInvalidConfig, "entity manager name must not be empty")
		}
		if seen[name] {
			return errors.Wrapf(ErrInvalidConfig, "entity manager %q listed twice", name)
		}
		seen[name] = true
	}
	for name, conn := range c.Connections {
		if conn.Driver == "" {
			return errors.Wrapf(ErrInvalidConfig, "connection %q has no driver", name)
		}
	}
	return nil
}

// ConnectionNames returns the configured connection names sorted
func (c Config) ConnectionNames() []string {
	names := make([]string, 0, len(c.Connections))
	for name := range c.Connections {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
