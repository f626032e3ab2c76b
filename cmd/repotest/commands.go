package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"

	"github.com/pkg/errors"
	flag "github.com/spf13/pflag"

	"github.com/krew-solutions/ascetic-ddd-repotest/repotest/bootstrap"
	"github.com/krew-solutions/ascetic-ddd-repotest/repotest/config"
	"github.com/krew-solutions/ascetic-ddd-repotest/repotest/metadata"
	"github.com/krew-solutions/ascetic-ddd-repotest/repotest/module"
	"github.com/krew-solutions/ascetic-ddd-repotest/repotest/orm"
	"github.com/krew-solutions/ascetic-ddd-repotest/repotest/query"
)

type queryFlags struct {
	entity     string
	params     string
	connection string
	dialect    string
	field      string
}

func newQueryFlagSet(name string, ui *ui) (*flag.FlagSet, *queryFlags) {
	var qf queryFlags
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(ui.err)
	fs.StringVarP(&qf.entity, "entity", "e", "", "Root entity name")
	fs.StringVarP(&qf.params, "params", "p", "{}", "Parameter map as a JSON object")
	return fs, &qf
}

func (qf *queryFlags) parse() (query.Params, error) {
	if qf.entity == "" {
		return nil, errors.New("--entity is required")
	}
	return query.ParseJSON([]byte(qf.params))
}

// loadConfig reads the configuration file. A missing default file yields the
// default configuration.
func loadConfig(g globals) (config.Config, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		if _, statErr := os.Stat(g.configPath); !os.IsNotExist(statErr) {
			return config.Config{}, err
		}
		cfg = config.Default()
	}
	if g.schemaPath != "" {
		cfg.Schema = g.schemaPath
	}
	if g.debug {
		cfg.Debug = true
	}
	return cfg, nil
}

func loadSchema(cfg config.Config) (*metadata.Registry, error) {
	if cfg.Schema == "" {
		return nil, bootstrap.ErrNoSchema
	}
	return metadata.LoadFile(cfg.Schema)
}

func build(provider metadata.Provider, entity string, params query.Params) (*query.Builder, error) {
	qb := query.NewBuilder(entity, query.RootAlias)
	if err := query.NewAssociationBuilder(provider).Build(qb, entity, query.RootAlias, params); err != nil {
		return nil, err
	}
	return qb, nil
}

func runDQL(args []string, g globals, ui *ui) int {
	fs, qf := newQueryFlagSet("dql", ui)
	if err := fs.Parse(args); err != nil {
		return 2
	}
	params, err := qf.parse()
	if err != nil {
		ui.Errorf("%v", err)
		return 2
	}
	cfg, err := loadConfig(g)
	if err != nil {
		ui.Errorf("%v", err)
		return 1
	}
	schema, err := loadSchema(cfg)
	if err != nil {
		ui.Errorf("%v", err)
		return 1
	}
	qb, err := build(schema, qf.entity, params)
	if err != nil {
		ui.Errorf("%v", err)
		return 1
	}
	ui.Println(qb.DQL())
	for _, b := range qb.Bindings() {
		value, _ := json.Marshal(b.Value)
		ui.Println(ui.Label(":"+b.Name), string(value))
	}
	return 0
}

func runSQL(args []string, g globals, ui *ui) int {
	fs, qf := newQueryFlagSet("sql", ui)
	fs.StringVarP(&qf.dialect, "dialect", "d", string(query.Postgres), "SQL dialect: postgres, mysql or sqlite")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	params, err := qf.parse()
	if err != nil {
		ui.Errorf("%v", err)
		return 2
	}
	dialect, err := query.ParseDialect(qf.dialect)
	if err != nil {
		ui.Errorf("%v", err)
		return 2
	}
	cfg, err := loadConfig(g)
	if err != nil {
		ui.Errorf("%v", err)
		return 1
	}
	schema, err := loadSchema(cfg)
	if err != nil {
		ui.Errorf("%v", err)
		return 1
	}
	qb, err := build(schema, qf.entity, params)
	if err != nil {
		ui.Errorf("%v", err)
		return 1
	}
	sql, sqlArgs, err := query.Compile(qb, schema, dialect)
	if err != nil {
		ui.Errorf("%v", err)
		return 1
	}
	ui.Println(sql)
	encoded, _ := json.Marshal(sqlArgs)
	ui.Println(ui.Label("args"), string(encoded))
	return 0
}

// openModule connects the configured databases. The caller closes the environment.
func openModule(g globals) (*module.Module, *bootstrap.Environment, error) {
	cfg, err := loadConfig(g)
	if err != nil {
		return nil, nil, err
	}
	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	env, err := bootstrap.Open(context.Background(), cfg, nil, logger)
	if err != nil {
		return nil, nil, err
	}
	// read only commands run without a cleanup transaction
	moduleCfg := module.FromConfig(cfg)
	moduleCfg.Cleanup = false
	m := module.New(moduleCfg, env, module.WithLogger(logger))
	if err := m.Before(); err != nil {
		_ = env.Close()
		return nil, nil, err
	}
	return m, env, nil
}

func runSee(args []string, g globals, ui *ui) int {
	fs, qf := newQueryFlagSet("see", ui)
	fs.StringVarP(&qf.connection, "connection", "c", "", "Entity manager name (default \"default\")")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	params, err := qf.parse()
	if err != nil {
		ui.Errorf("%v", err)
		return 2
	}
	m, env, err := openModule(g)
	if err != nil {
		ui.Errorf("%v", err)
		return 1
	}
	defer env.Close()

	found, err := m.On(qf.connection).Exists(qf.entity, params)
	if err != nil {
		ui.Errorf("%v", err)
		return 1
	}
	if !found {
		ui.Failf("%s with %s not found", qf.entity, params)
		return 1
	}
	ui.Successf("%s with %s found", qf.entity, params)
	return 0
}

func runGrab(args []string, g globals, ui *ui) int {
	fs, qf := newQueryFlagSet("grab", ui)
	fs.StringVarP(&qf.connection, "connection", "c", "", "Entity manager name (default \"default\")")
	fs.StringVarP(&qf.field, "field", "f", "", "Field to select")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	params, err := qf.parse()
	if err != nil {
		ui.Errorf("%v", err)
		return 2
	}
	if qf.field == "" {
		ui.Errorf("--field is required")
		return 2
	}
	m, env, err := openModule(g)
	if err != nil {
		ui.Errorf("%v", err)
		return 1
	}
	defer env.Close()

	v, err := m.On(qf.connection).GrabFromRepository(qf.entity, qf.field, params)
	if errors.Is(err, orm.ErrNoResult) {
		ui.Failf("%s with %s not found", qf.entity, params)
		return 1
	}
	if err != nil {
		ui.Errorf("%v", err)
		return 1
	}
	ui.Infof("%v", v)
	return 0
}
