package testutils

import (
	"context"
	"database/sql"
	"errors"

	"github.com/krew-solutions/ascetic-ddd-repotest/repotest/session"
	"github.com/krew-solutions/ascetic-ddd-repotest/repotest/session/result"
	"github.com/krew-solutions/ascetic-ddd-repotest/repotest/signals"
)

// Query is one statement received by a DbSessionStub
type Query struct {
	SQL    string
	Params []any
}

func NewDbSessionStub(rows ...*RowsStub) *DbSessionStub {
	stub := &DbSessionStub{
		results: rows,
		events:  session.NewQueryEvents(),
	}
	stub.conn = &connectionStub{session: stub}
	return stub
}

// DbSessionStub records every statement and answers queries with canned rows
// in the order they were given. Inserts report NextID as their generated key.
type DbSessionStub struct {
	Queries      []Query
	ActualQuery  string
	ActualParams []any
	NextID       int64
	ExecErr      error
	Began        int
	Committed    int
	RolledBack   int
	results      []*RowsStub
	conn         *connectionStub
	events       *session.QueryEvents
}

func (s *DbSessionStub) Context() context.Context {
	return context.Background()
}

func (s *DbSessionStub) Atomic(callback session.SessionCallback) error {
	return session.Atomic(s, callback)
}

func (s *DbSessionStub) Connection() session.DbConnection {
	return s.events.Observe(s.conn, s)
}

// Begin returns a transaction that shares the recorded queries of the stub.
func (s *DbSessionStub) Begin() (session.Transaction, error) {
	s.Began++
	return &txStub{DbSessionStub: s}, nil
}

func (s *DbSessionStub) OnQueryStarted() signals.Signal[session.QueryStartedEvent] {
	return s.events.OnQueryStarted()
}

func (s *DbSessionStub) OnQueryEnded() signals.Signal[session.QueryEndedEvent] {
	return s.events.OnQueryEnded()
}

// AddRows queues rows for the next Query/QueryRow call
func (s *DbSessionStub) AddRows(rows ...[]any) *RowsStub {
	r := NewRowsStub(rows...)
	s.results = append(s.results, r)
	return r
}

func (s *DbSessionStub) record(query string, args []any) {
	s.ActualQuery = query
	s.ActualParams = args
	s.Queries = append(s.Queries, Query{SQL: query, Params: args})
}

func (s *DbSessionStub) nextRows() *RowsStub {
	if len(s.results) == 0 {
		return NewRowsStub()
	}
	r := s.results[0]
	s.results = s.results[1:]
	return r
}

type txStub struct {
	*DbSessionStub
	done bool
}

func (t *txStub) Connection() session.DbConnection {
	return t.events.Observe(t.conn, t)
}

func (t *txStub) Commit() error {
	if t.done {
		return errors.New("transaction already closed")
	}
	t.done = true
	t.Committed++
	return nil
}

func (t *txStub) Rollback() error {
	if t.done {
		return errors.New("transaction already closed")
	}
	t.done = true
	t.RolledBack++
	return nil
}

type connectionStub struct {
	session *DbSessionStub
}

func (c *connectionStub) Exec(query string, args ...any) (session.Result, error) {
	c.session.record(query, args)
	if c.session.ExecErr != nil {
		return nil, c.session.ExecErr
	}
	if session.IsAutoincrementInsertQuery(query) {
		return result.NewResult(c.session.NextID, 0), nil
	}
	return execResult{lastInsertID: c.session.NextID, rowsAffected: 1}, nil
}

// execResult answers both questions like database/sql drivers do
type execResult struct {
	lastInsertID int64
	rowsAffected int64
}

func (r execResult) LastInsertId() (int64, error) {
	return r.lastInsertID, nil
}

func (r execResult) RowsAffected() (int64, error) {
	return r.rowsAffected, nil
}

func (c *connectionStub) Query(query string, args ...any) (session.Rows, error) {
	c.session.record(query, args)
	return c.session.nextRows(), nil
}

func (c *connectionStub) QueryRow(query string, args ...any) session.Row {
	c.session.record(query, args)
	return &RowStub{rows: c.session.nextRows()}
}

func NewRowsStub(rows ...[]any) *RowsStub {
	return &RowsStub{
		rows:   rows,
		idx:    -1,
		Closed: false,
	}
}

type RowsStub struct {
	rows   [][]any
	idx    int
	Closed bool
}

func (r *RowsStub) Close() error {
	r.Closed = true
	return nil
}

func (r *RowsStub) Err() error {
	return nil
}

func (r *RowsStub) Next() bool {
	r.idx++
	return r.idx < len(r.rows)
}

func (r *RowsStub) Scan(dest ...any) error {
	if r.idx < 0 || r.idx >= len(r.rows) {
		return errors.New("no current row")
	}

	row := r.rows[r.idx]
	for i, val := range row {
		if i >= len(dest) {
			break
		}

		switch d := dest[i].(type) {
		case *any:
			*d = val
		case *int:
			*d = toInt(val)
		case *int64:
			*d = toInt64(val)
		case *string:
			*d = val.(string)
		case *bool:
			*d = val.(bool)
		case *[]byte:
			*d = val.([]byte)
		case *float64:
			*d = toFloat64(val)
		case sql.Scanner:
			if err := d.Scan(val); err != nil {
				return err
			}
		default:
			return errors.New("unsupported scan type")
		}
	}
	return nil
}

type RowStub struct {
	rows *RowsStub
}

func (r *RowStub) Err() error {
	return nil
}

func (r *RowStub) Scan(dest ...any) error {
	if !r.rows.Next() {
		return sql.ErrNoRows
	}
	return r.rows.Scan(dest...)
}

func toInt(val any) int {
	switch v := val.(type) {
	case int:
		return v
	case int64:
		return int(v)
	case int32:
		return int(v)
	default:
		panic("cannot convert to int")
	}
}

func toInt64(val any) int64 {
	switch v := val.(type) {
	case int:
		return int64(v)
	case int64:
		return v
	case int32:
		return int64(v)
	default:
		panic("cannot convert to int64")
	}
}

func toFloat64(val any) float64 {
	switch v := val.(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		panic("cannot convert to float64")
	}
}
