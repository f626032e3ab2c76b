package sql

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/krew-solutions/ascetic-ddd-repotest/repotest/session"
	"github.com/krew-solutions/ascetic-ddd-repotest/repotest/session/result"
	"github.com/krew-solutions/ascetic-ddd-repotest/repotest/signals"
)

// ErrSavepointUnsupported is returned by Begin on a transaction.
// See https://github.com/golang/go/issues/7898
var ErrSavepointUnsupported = errors.New("session/sql: savepoints are not supported")

func NewSession(ctx context.Context, db *sql.DB) *Session {
	return &Session{
		ctx:    ctx,
		db:     db,
		events: session.NewQueryEvents(),
	}
}

type Session struct {
	ctx    context.Context
	db     *sql.DB
	events *session.QueryEvents
}

func (s *Session) Context() context.Context {
	return s.ctx
}

func (s *Session) DB() *sql.DB {
	return s.db
}

func (s *Session) Connection() session.DbConnection {
	return s.events.Observe(&connection{ctx: s.ctx, exec: s.db}, s)
}

func (s *Session) Begin() (session.Transaction, error) {
	tx, err := s.db.BeginTx(s.ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "unable to start transaction")
	}
	return &TxSession{ctx: s.ctx, tx: tx, events: s.events}, nil
}

func (s *Session) Atomic(callback session.SessionCallback) error {
	return session.Atomic(s, callback)
}

func (s *Session) OnQueryStarted() signals.Signal[session.QueryStartedEvent] {
	return s.events.OnQueryStarted()
}

func (s *Session) OnQueryEnded() signals.Signal[session.QueryEndedEvent] {
	return s.events.OnQueryEnded()
}

type TxSession struct {
	ctx    context.Context
	tx     *sql.Tx
	events *session.QueryEvents
}

func (s *TxSession) Context() context.Context {
	return s.ctx
}

func (s *TxSession) Connection() session.DbConnection {
	return s.events.Observe(&connection{ctx: s.ctx, exec: s.tx}, s)
}

func (s *TxSession) Begin() (session.Transaction, error) {
	return nil, ErrSavepointUnsupported
}

func (s *TxSession) Atomic(callback session.SessionCallback) error {
	return session.Atomic(s, callback)
}

func (s *TxSession) Commit() error {
	return errors.Wrap(s.tx.Commit(), "failed to commit tx")
}

func (s *TxSession) Rollback() error {
	return errors.Wrap(s.tx.Rollback(), "failed to rollback tx")
}

func (s *TxSession) OnQueryStarted() signals.Signal[session.QueryStartedEvent] {
	return s.events.OnQueryStarted()
}

func (s *TxSession) OnQueryEnded() signals.Signal[session.QueryEndedEvent] {
	return s.events.OnQueryEnded()
}

type DbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type connection struct {
	ctx  context.Context
	exec DbExecutor
}

func (c *connection) Exec(query string, args ...any) (session.Result, error) {
	if session.IsAutoincrementInsertQuery(query) {
		return c.insert(query, args...)
	}
	return c.exec.ExecContext(c.ctx, query, args...)
}

func (c *connection) insert(query string, args ...any) (session.Result, error) {
	var id int64
	err := c.exec.QueryRowContext(c.ctx, query, args...).Scan(&id)
	if err != nil {
		return nil, err
	}
	return result.NewResult(id, 0), nil
}

func (c *connection) Query(query string, args ...any) (session.Rows, error) {
	rows, err := c.exec.QueryContext(c.ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (c *connection) QueryRow(query string, args ...any) session.Row {
	return c.exec.QueryRowContext(c.ctx, query, args...)
}
