// Package database manages the PostgreSQL connection pool and schema
// migrations for the pgvector backend.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvec "github.com/pgvector/pgvector-go/pgx"

	"github.com/wildvoice/wildrag/internal/log"
)

const (
	maxConns    = 10
	minConns    = 2
	pingTimeout = 5 * time.Second
)

// Open creates a connection pool and verifies connectivity. The pgvector
// types are registered on every new connection.
func Open(ctx context.Context, connString string, logger log.Logger) (*pgxpool.Pool, error) {
	if logger == nil {
		logger = log.NewNop()
	}

	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}
	cfg.MaxConns = maxConns
	cfg.MinConns = minConns
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return pgxvec.RegisterTypes(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	logger.Debug("database pool ready",
		"max_conns", maxConns,
		"min_conns", minConns)
	return pool, nil
}
