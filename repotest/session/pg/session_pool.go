package pg

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/krew-solutions/ascetic-ddd-repotest/repotest/session"
)

// SessionPool hands out a Session bound to one acquired connection per callback.
type SessionPool struct {
	pool *pgxpool.Pool
}

func NewSessionPool(pool *pgxpool.Pool) *SessionPool {
	return &SessionPool{pool: pool}
}

// Session acquires a connection for the duration of callback.
func (p *SessionPool) Session(ctx context.Context, callback session.SessionPoolCallback) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	return callback(NewSession(ctx, conn))
}

// Shared returns a Session that runs each statement on any pooled connection.
// Transactions opened from it stay on one connection until they end.
func (p *SessionPool) Shared(ctx context.Context) *Session {
	return NewSession(ctx, p.pool)
}

func (p *SessionPool) Close() {
	p.pool.Close()
}
