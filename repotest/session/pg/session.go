package pg

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pkg/errors"

	"github.com/krew-solutions/ascetic-ddd-repotest/repotest/session"
	"github.com/krew-solutions/ascetic-ddd-repotest/repotest/session/result"
	"github.com/krew-solutions/ascetic-ddd-repotest/repotest/signals"
)

// executor interface for *pgxpool.Pool, *pgxpool.Conn and pgx.Tx
type executor interface {
	Exec(ctx context.Context, query string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, query string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, query string, args ...any) pgx.Row
}

// Db is anything that can run statements and open a transaction.
type Db interface {
	executor
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Session represents a database session without transaction
type Session struct {
	ctx    context.Context
	db     Db
	events *session.QueryEvents
}

func NewSession(ctx context.Context, db Db) *Session {
	return &Session{
		ctx:    ctx,
		db:     db,
		events: session.NewQueryEvents(),
	}
}

func (s *Session) Context() context.Context {
	return s.ctx
}

func (s *Session) Connection() session.DbConnection {
	return s.events.Observe(&connection{ctx: s.ctx, exec: s.db}, s)
}

func (s *Session) Begin() (session.Transaction, error) {
	tx, err := s.db.Begin(s.ctx)
	if err != nil {
		return nil, errors.Wrap(err, "unable to start transaction")
	}
	return newTxSession(s.ctx, tx, s.events), nil
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

// TxSession represents a session inside transaction. Begin on it opens a savepoint.
type TxSession struct {
	ctx    context.Context
	tx     pgx.Tx
	events *session.QueryEvents
}

func newTxSession(ctx context.Context, tx pgx.Tx, events *session.QueryEvents) *TxSession {
	return &TxSession{ctx: ctx, tx: tx, events: events}
}

func (s *TxSession) Context() context.Context {
	return s.ctx
}

func (s *TxSession) Connection() session.DbConnection {
	return s.events.Observe(&connection{ctx: s.ctx, exec: s.tx}, s)
}

func (s *TxSession) Begin() (session.Transaction, error) {
	nested, err := s.tx.Begin(s.ctx)
	if err != nil {
		return nil, errors.Wrap(err, "unable to start savepoint")
	}
	return newTxSession(s.ctx, nested, s.events), nil
}

func (s *TxSession) Atomic(callback session.SessionCallback) error {
	return session.Atomic(s, callback)
}

func (s *TxSession) Commit() error {
	return s.tx.Commit(s.ctx)
}

func (s *TxSession) Rollback() error {
	return s.tx.Rollback(s.ctx)
}

func (s *TxSession) OnQueryStarted() signals.Signal[session.QueryStartedEvent] {
	return s.events.OnQueryStarted()
}

func (s *TxSession) OnQueryEnded() signals.Signal[session.QueryEndedEvent] {
	return s.events.OnQueryEnded()
}

// connection implements session.DbConnection
type connection struct {
	ctx  context.Context
	exec executor
}

func (c *connection) Exec(query string, args ...any) (session.Result, error) {
	if session.IsAutoincrementInsertQuery(query) {
		return c.insert(query, args...)
	}

	tag, err := c.exec.Exec(c.ctx, query, args...)
	if err != nil {
		return nil, err
	}

	return result.NewResult(0, tag.RowsAffected()), nil
}

func (c *connection) insert(query string, args ...any) (session.Result, error) {
	var id int64
	err := c.exec.QueryRow(c.ctx, query, args...).Scan(&id)
	if err != nil {
		return nil, err
	}

	return result.NewResult(id, 0), nil
}

func (c *connection) Query(query string, args ...any) (session.Rows, error) {
	rows, err := c.exec.Query(c.ctx, query, args...)
	if err != nil {
		return nil, err
	}
	return &rowsAdapter{rows: rows}, nil
}

func (c *connection) QueryRow(query string, args ...any) session.Row {
	row := c.exec.QueryRow(c.ctx, query, args...)
	return &rowAdapter{row: row}
}
