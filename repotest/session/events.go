package session

import (
	"time"

	"github.com/krew-solutions/ascetic-ddd-repotest/repotest/signals"
)

type QueryStartedEvent struct {
	Query   string
	Params  []any
	Sender  any
	Session DbSession
}

type QueryEndedEvent struct {
	Query        string
	Params       []any
	Sender       any
	Session      DbSession
	ResponseTime time.Duration
	Err          error
}

type QueryObservable interface {
	OnQueryStarted() signals.Signal[QueryStartedEvent]
	OnQueryEnded() signals.Signal[QueryEndedEvent]
}

// QueryEvents holds the query signals shared by a session and the
// transactions opened from it.
type QueryEvents struct {
	onQueryStarted signals.Signal[QueryStartedEvent]
	onQueryEnded   signals.Signal[QueryEndedEvent]
}

func NewQueryEvents() *QueryEvents {
	return &QueryEvents{
		onQueryStarted: signals.NewSignal[QueryStartedEvent](),
		onQueryEnded:   signals.NewSignal[QueryEndedEvent](),
	}
}

func (e *QueryEvents) OnQueryStarted() signals.Signal[QueryStartedEvent] {
	return e.onQueryStarted
}

func (e *QueryEvents) OnQueryEnded() signals.Signal[QueryEndedEvent] {
	return e.onQueryEnded
}

// Observe wraps conn so that every statement is reported on e.
func (e *QueryEvents) Observe(conn DbConnection, sess DbSession) DbConnection {
	return &observedConnection{conn: conn, session: sess, events: e}
}

type observedConnection struct {
	conn    DbConnection
	session DbSession
	events  *QueryEvents
}

func (c *observedConnection) started(query string, args []any) (time.Time, error) {
	err := c.events.onQueryStarted.Notify(QueryStartedEvent{
		Query: query, Params: args, Sender: c, Session: c.session,
	})
	return time.Now(), err
}

func (c *observedConnection) ended(query string, args []any, start time.Time, queryErr error) error {
	return c.events.onQueryEnded.Notify(QueryEndedEvent{
		Query: query, Params: args, Sender: c, Session: c.session,
		ResponseTime: time.Since(start), Err: queryErr,
	})
}

func (c *observedConnection) Exec(query string, args ...any) (Result, error) {
	start, err := c.started(query, args)
	if err != nil {
		return nil, err
	}
	res, err := c.conn.Exec(query, args...)
	if endedErr := c.ended(query, args, start, err); err == nil && endedErr != nil {
		return nil, endedErr
	}
	return res, err
}

func (c *observedConnection) Query(query string, args ...any) (Rows, error) {
	start, err := c.started(query, args)
	if err != nil {
		return nil, err
	}
	rows, err := c.conn.Query(query, args...)
	if endedErr := c.ended(query, args, start, err); err == nil && endedErr != nil {
		_ = rows.Close()
		return nil, endedErr
	}
	return rows, err
}

func (c *observedConnection) QueryRow(query string, args ...any) Row {
	start, err := c.started(query, args)
	if err != nil {
		return errorRow{err}
	}
	row := c.conn.QueryRow(query, args...)
	if endedErr := c.ended(query, args, start, nil); endedErr != nil {
		return errorRow{endedErr}
	}
	return row
}

type errorRow struct {
	err error
}

func (r errorRow) Err() error {
	return r.err
}

func (r errorRow) Scan(...any) error {
	return r.err
}
