package db

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewPool opens the read-write pool used by the lifecycle writers.
func NewPool(ctx context.Context, connStr string) (*pgxpool.Pool, error) {
	if connStr == "" {
		return nil, fmt.Errorf("DATABASE_URL environment variable not set")
	}

	config, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to parse DATABASE_URL: %w", err)
	}
	return connect(ctx, config)
}

// NewReadOnlyPool opens a pool whose sessions refuse writes and which prefers a
// standby when the connection string lists several hosts.
func NewReadOnlyPool(ctx context.Context, connStr string) (*pgxpool.Pool, error) {
	if connStr == "" {
		return nil, fmt.Errorf("AUDIT_DATABASE_URL or DATABASE_URL environment variable not set")
	}

	config, err := pgxpool.ParseConfig(PreferStandby(connStr))
	if err != nil {
		return nil, fmt.Errorf("unable to parse audit database url: %w", err)
	}
	config.ConnConfig.RuntimeParams["default_transaction_read_only"] = "on"
	config.MaxConns = 2
	return connect(ctx, config)
}

// PreferStandby adds target_session_attrs=prefer-standby unless the connection
// string already sets target_session_attrs. Both URL and keyword/value forms are
// accepted.
func PreferStandby(connStr string) string {
	if strings.Contains(connStr, "target_session_attrs") {
		return connStr
	}
	if strings.HasPrefix(connStr, "postgres://") || strings.HasPrefix(connStr, "postgresql://") {
		u, err := url.Parse(connStr)
		if err != nil {
			return connStr
		}
		q := u.Query()
		q.Set("target_session_attrs", "prefer-standby")
		u.RawQuery = q.Encode()
		return u.String()
	}
	return strings.TrimSpace(connStr) + " target_session_attrs=prefer-standby"
}

func connect(ctx context.Context, config *pgxpool.Config) (*pgxpool.Pool, error) {
	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("unable to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("unable to ping database: %w", err)
	}

	return pool, nil
}
