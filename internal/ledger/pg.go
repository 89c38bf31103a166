package ledger

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schema is applied once at startup. CREATE TABLE IF NOT EXISTS keeps
// repeated startups against the same database idempotent.
const schema = `
CREATE TABLE IF NOT EXISTS depot_transfers (
	id         BIGSERIAL PRIMARY KEY,
	remote_id  TEXT NOT NULL,
	wire_path  TEXT NOT NULL,
	direction  TEXT NOT NULL,
	size_bytes BIGINT NOT NULL,
	digest     TEXT NOT NULL DEFAULT '',
	outcome    TEXT NOT NULL,
	error_code TEXT NOT NULL DEFAULT '',
	occurred_at TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS depot_transfers_remote_id_idx ON depot_transfers (remote_id);
CREATE INDEX IF NOT EXISTS depot_transfers_occurred_at_idx ON depot_transfers (occurred_at);
`

// PGLedger appends transfer entries to a PostgreSQL table via pgx's
// connection pool.
type PGLedger struct {
	pool *pgxpool.Pool
}

// NewPGLedger connects to dsn, applies the ledger schema, and returns a
// ready-to-use PGLedger. The caller must Close it on shutdown.
func NewPGLedger(ctx context.Context, dsn string) (*PGLedger, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("ledger: connecting to audit database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ledger: pinging audit database: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ledger: applying schema: %w", err)
	}
	return &PGLedger{pool: pool}, nil
}

// Record inserts e as a single row. Callers treat a ledger write
// failure as non-fatal to the transfer it describes; logging the error
// is the caller's responsibility.
func (l *PGLedger) Record(ctx context.Context, e Entry) error {
	_, err := l.pool.Exec(ctx, `
		INSERT INTO depot_transfers
			(remote_id, wire_path, direction, size_bytes, digest, outcome, error_code, occurred_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		e.RemoteID, e.WirePath, string(e.Direction), e.Size, e.Digest, string(e.Outcome), e.ErrorCode, e.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("ledger: inserting transfer row: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (l *PGLedger) Close() error {
	l.pool.Close()
	return nil
}
