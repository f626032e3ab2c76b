package testutils

import (
	"context"
	"database/sql"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "modernc.org/sqlite"

	pgsession "github.com/krew-solutions/ascetic-ddd-repotest/repotest/session/pg"
	sqlsession "github.com/krew-solutions/ascetic-ddd-repotest/repotest/session/sql"
)

// PgConfigured reports whether a PostgreSQL server was provided through DB_HOST
func PgConfigured() bool {
	_, ok := os.LookupEnv("DB_HOST")
	return ok
}

func PgConnString() string {
	var db_username string = getEnv("DB_USERNAME", "devel")
	var db_password string = getEnv("DB_PASSWORD", "devel")
	var db_host string = getEnv("DB_HOST", "localhost")
	var db_port string = getEnv("DB_PORT", "5432")
	var db_basename string = getEnv("DB_DATABASE", "devel_repotest")

	return "postgres://" + db_username + ":" + db_password + "@" + db_host + ":" + db_port + "/" + db_basename
}

func NewPgSessionPool() (*pgsession.SessionPool, error) {
	pool, err := pgxpool.New(context.Background(), PgConnString())
	if err != nil {
		return nil, err
	}

	return pgsession.NewSessionPool(pool), nil
}

// NewSqliteSession opens a private in-memory database. A single connection is
// kept so that every statement sees the same database.
func NewSqliteSession(schema ...string) (*sqlsession.Session, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	for _, stmt := range schema {
		if _, err := db.Exec(stmt); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	return sqlsession.NewSession(context.Background(), db), nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}

	return fallback
}
