// Package infra holds process-level resources shared by the adapters.
package infra

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgxvector "github.com/pgvector/pgvector-go/pgx"

	"ragbench/internal/domain"
)

// PoolConfig holds tunable parameters for the PostgreSQL connection pool.
type PoolConfig struct {
	DSN      string
	MaxConns int
	MinConns int
	// Vector enables the pgvector extension and registers its types on every connection.
	Vector bool
}

// NewPostgresDB opens a pool and pings it.
func NewPostgresDB(ctx context.Context, cfg PoolConfig) (*pgxpool.Pool, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("%w: postgres dsn is empty", domain.ErrConfiguration)
	}
	config, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to parse dsn: %w", domain.ErrConfiguration, err)
	}

	config.MaxConns = 10
	if cfg.MaxConns > 0 {
		config.MaxConns = int32(cfg.MaxConns)
	}
	config.MinConns = 2
	if cfg.MinConns > 0 {
		config.MinConns = int32(min(cfg.MinConns, int(config.MaxConns)))
	}
	config.MaxConnLifetime = 1 * time.Hour
	config.MaxConnIdleTime = 30 * time.Minute

	if cfg.Vector {
		config.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
			if _, err := conn.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
				return fmt.Errorf("enable pgvector: %w", err)
			}
			return pgxvector.RegisterTypes(ctx, conn)
		}
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	return pool, nil
}
