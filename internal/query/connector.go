package query

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wildvoice/wildrag/internal/database"
	"github.com/wildvoice/wildrag/internal/log"
	"github.com/wildvoice/wildrag/internal/storage"
)

// LocalConnector opens local snapshot containers under a base directory.
type LocalConnector struct {
	BaseDir string
	Logger  log.Logger
}

func (c *LocalConnector) Connect(ctx context.Context, db, container string) (Storage, error) {
	return storage.Load(ctx, storage.Options{
		Backend:   storage.BackendLocal,
		Database:  db,
		Container: container,
		BaseDir:   c.BaseDir,
	}, c.Logger)
}

// PostgresConnector opens containers over a fresh connection pool per
// query. The pool lives for the duration of one query.
type PostgresConnector struct {
	ConnString string
	Logger     log.Logger
}

func (c *PostgresConnector) Connect(ctx context.Context, db, container string) (Storage, error) {
	pool, err := database.Open(ctx, c.ConnString, c.Logger)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	sc, err := storage.Load(ctx, storage.Options{
		Backend:   storage.BackendPostgres,
		Database:  db,
		Container: container,
		Pool:      pool,
	}, c.Logger)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return &pooledStorage{Context: sc, pool: pool}, nil
}

// pooledStorage closes its pool together with the storage context.
type pooledStorage struct {
	*storage.Context
	pool *pgxpool.Pool
}

func (p *pooledStorage) Close(ctx context.Context) error {
	err := p.Context.Close(ctx)
	p.pool.Close()
	return err
}
