package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewPool opens and pings a pgx connection pool.
func NewPool(ctx context.Context, databaseURL string, development bool) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(normalizeDSN(databaseURL, development))
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	poolCfg.MaxConns = 25
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("open database pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}

// normalizeDSN disables SSL for local development and, elsewhere, switches to
// the simple query protocol so transaction poolers like pgbouncer work.
func normalizeDSN(dsn string, development bool) string {
	if development && !strings.Contains(dsn, "sslmode") {
		dsn = appendDSNParam(dsn, "sslmode=disable")
	}
	if !development && !strings.Contains(dsn, "default_query_exec_mode") {
		dsn = appendDSNParam(dsn, "default_query_exec_mode=simple_protocol")
	}
	return dsn
}

func appendDSNParam(dsn, param string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		if strings.Contains(dsn, "?") {
			return dsn + "&" + param
		}
		return dsn + "?" + param
	}
	return dsn + " " + param
}
