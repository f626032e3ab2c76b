// Command repotest inspects the queries built from a parameter map and runs
// them against a configured database.
//
// Usage:
//
//	repotest [--config repotest.yaml] dql  --entity Post --params '{"author":{"email":"a@b.com"}}'
//	repotest [--config repotest.yaml] sql  --entity Post --params '{...}' [--dialect postgres]
//	repotest [--config repotest.yaml] see  --entity Post --params '{...}' [--connection default]
//	repotest [--config repotest.yaml] grab --entity Post --field title --params '{...}'
package main

import (
	"io"
	"os"

	flag "github.com/spf13/pflag"
)

type globals struct {
	configPath string
	schemaPath string
	noColor    bool
	debug      bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("repotest", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.SetInterspersed(false)

	var g globals
	fs.StringVar(&g.configPath, "config", "repotest.yaml", "Path to the configuration file")
	fs.StringVar(&g.schemaPath, "schema", "", "Path to the entity schema (overrides the configuration)")
	fs.BoolVar(&g.noColor, "no-color", false, "Disable colored output")
	fs.BoolVar(&g.debug, "debug", false, "Log executed queries")
	fs.Usage = func() {
		writeUsage(stderr)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return 2
	}
	initColors(g.noColor)

	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	ui := newUI(stdout, stderr)
	command, cmdArgs := fs.Arg(0), fs.Args()[1:]
	switch command {
	case "dql":
		return runDQL(cmdArgs, g, ui)
	case "sql":
		return runSQL(cmdArgs, g, ui)
	case "see":
		return runSee(cmdArgs, g, ui)
	case "grab":
		return runGrab(cmdArgs, g, ui)
	default:
		ui.Errorf("Unknown command: %s", command)
		fs.Usage()
		return 2
	}
}

func writeUsage(w io.Writer) {
	_, _ = io.WriteString(w, `repotest - association queries for database tests

Usage:
  repotest [global options] <command> [options]

Commands:
  dql    Print the query built for a parameter map
  sql    Print the SQL and arguments for a dialect
  see    Exit 0 when a matching row exists, 1 otherwise
  grab   Print one field of the single matching row

Global Options:
`)
}
