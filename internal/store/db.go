package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PoolOptions sizes the Postgres connection pool.
type PoolOptions struct {
	MaxConns int
	// ConnectWait is how long Open retries the initial ping. Zero pings once.
	ConnectWait time.Duration
}

const connectRetryInterval = time.Second

// Open connects to Postgres through the pgx database/sql driver, retrying
// the first ping until opts.ConnectWait elapses.
func Open(ctx context.Context, databaseURL string, opts PoolOptions) (*sql.DB, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	maxConns := opts.MaxConns
	if maxConns <= 0 {
		maxConns = 20
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(maxConns / 2)
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := pingUntil(ctx, db, opts.ConnectWait); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func pingUntil(ctx context.Context, db *sql.DB, wait time.Duration) error {
	deadline := time.Now().Add(wait)
	for {
		err := db.PingContext(ctx)
		if err == nil {
			return nil
		}
		if time.Now().Add(connectRetryInterval).After(deadline) {
			return fmt.Errorf("ping db: %w", err)
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("ping db: %w", ctx.Err())
		case <-time.After(connectRetryInterval):
		}
	}
}
