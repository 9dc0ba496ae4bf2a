// Package pgtest hands repository tests a migrated, empty database.
package pgtest

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-storefront-orders/internal/postgres"
)

// EnvDSN names the database the tests may use. Tests skip when it is unset.
const EnvDSN = "POSTGRES_TEST_DSN"

// Pool connects to a schema of its own, so packages tested in parallel do
// not see each other's rows, and empties it.
func Pool(t testing.TB, schema string) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv(EnvDSN)
	if dsn == "" {
		t.Skipf("%s not set", EnvDSN)
	}
	ctx := context.Background()

	conn, err := pgx.Connect(ctx, dsn)
	require.NoError(t, err)
	_, err = conn.Exec(ctx, `CREATE SCHEMA IF NOT EXISTS `+pgx.Identifier{schema}.Sanitize())
	require.NoError(t, err)
	require.NoError(t, conn.Close(ctx))

	pool, err := postgres.Connect(ctx, dsn, postgres.Options{MaxConns: 4, SearchPath: schema})
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, postgres.Migrate(ctx, pool))
	_, err = pool.Exec(ctx, `TRUNCATE reservations, order_items, orders, product_stock, products RESTART IDENTITY`)
	require.NoError(t, err)
	return pool
}
