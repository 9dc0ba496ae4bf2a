package postgres

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schema string

type Options struct {
	MaxConns   int32
	MinConns   int32
	SearchPath string
}

func Connect(ctx context.Context, dsn string, opts ...Options) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	cfg.MaxConns = 8
	cfg.MinConns = 1
	if len(opts) > 0 {
		if opts[0].MaxConns > 0 {
			cfg.MaxConns = opts[0].MaxConns
		}
		if opts[0].MinConns > 0 {
			cfg.MinConns = opts[0].MinConns
		}
		if opts[0].SearchPath != "" {
			cfg.ConnConfig.RuntimeParams["search_path"] = opts[0].SearchPath
		}
	}
	cfg.HealthCheckPeriod = 30 * time.Second
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// Migrate creates the storefront tables when they are missing. Every
// statement is idempotent.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

// Schema exposes the DDL for tooling and tests.
func Schema() string { return schema }
