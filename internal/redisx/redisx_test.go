package redisx

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-storefront-orders/internal/cart"
	"github.com/ariefcatur/go-storefront-orders/internal/catalog"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestCartStorageRoundTrip(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newRedis(t)
	st := NewCartStorage(rdb, "s1", time.Hour)

	b, err := st.Load(ctx)
	require.NoError(t, err)
	assert.Nil(t, b)

	p := catalog.Product{
		ID: 1, Name: "Remera", Price: decimal.RequireFromString("100"),
		Variants: []catalog.Variant{{Color: "Negro", StockBySize: catalog.StockBySize{{Size: "M", Qty: 5}}}},
	}
	c := cart.Open(ctx, st)
	c.Add(ctx, p, catalog.Selection{Color: "Negro", Size: "M"}, 2)

	assert.True(t, mr.Exists("cart:s1"))
	assert.Equal(t, time.Hour, mr.TTL("cart:s1"))

	reopened := cart.Open(ctx, st)
	require.Len(t, reopened.Lines(), 1)
	assert.Equal(t, 2, reopened.Lines()[0].Quantity)

	reopened.Clear(ctx)
	assert.False(t, mr.Exists("cart:s1"))
}

func TestCartStorageCorruptValueOpensEmpty(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newRedis(t)
	require.NoError(t, mr.Set("cart:s2", "{not json"))

	c := cart.Open(ctx, NewCartStorage(rdb, "s2", time.Hour), cart.WithLogf(func(string, ...any) {}))
	assert.True(t, c.Empty())
}

func TestCartStorageUnavailableFailsOpen(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newRedis(t)
	mr.Close()

	var persistErrs int
	c := cart.Open(ctx, NewCartStorage(rdb, "s3", time.Hour),
		cart.WithLogf(func(string, ...any) {}),
		cart.WithPersistHook(func(err error) {
			if err != nil {
				persistErrs++
			}
		}))
	c.Add(ctx, catalog.Product{ID: 2, Name: "Gorra", Price: decimal.NewFromInt(50)}, catalog.Selection{}, 1)
	assert.Equal(t, 1, c.ItemCount())
	assert.Equal(t, 1, persistErrs)
}

func TestCartStorageConcurrentRequestsKeepEveryLine(t *testing.T) {
	ctx := context.Background()
	_, rdb := newRedis(t)

	var wg sync.WaitGroup
	for i := 0; i < 6; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			c := cart.Open(ctx, NewCartStorage(rdb, "s4", time.Hour))
			c.Add(ctx, catalog.Product{ID: id, Name: "Media", Price: decimal.NewFromInt(10)}, catalog.Selection{}, 1)
		}(int64(i + 1))
	}
	wg.Wait()

	c := cart.Open(ctx, NewCartStorage(rdb, "s4", time.Hour))
	assert.Len(t, c.Lines(), 6)
	assert.Equal(t, 6, c.ItemCount())
}

func TestCartStorageUpdateWithoutChangeWritesNothing(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newRedis(t)
	c := cart.Open(ctx, NewCartStorage(rdb, "s5", time.Hour))
	c.Remove(ctx, cart.KeyOf(1, "", ""))
	assert.False(t, mr.Exists("cart:s5"))
}

func TestCartStorageKeepsColorKeyOnColorlessLines(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newRedis(t)
	c := cart.Open(ctx, NewCartStorage(rdb, "s6", time.Hour))
	c.Add(ctx, catalog.Product{ID: 3, Name: "Gorra", Price: decimal.NewFromInt(50)}, catalog.Selection{}, 1)

	raw, err := mr.Get("cart:s6")
	require.NoError(t, err)
	var stored []map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &stored))
	require.Len(t, stored, 1)
	assert.Contains(t, stored[0], "color")
	assert.Equal(t, "", stored[0]["color"])
	assert.Equal(t, catalog.DefaultSize, stored[0]["talle"])
}

func TestStatusCache(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newRedis(t)
	c := &StatusCache{Client: rdb}

	_, ok := c.GetStatus(ctx, 9)
	assert.False(t, ok)

	require.NoError(t, c.SetStatus(ctx, 9, orders.StatusShipped))
	st, ok := c.GetStatus(ctx, 9)
	assert.True(t, ok)
	assert.Equal(t, orders.StatusShipped, st)
	assert.Equal(t, TTLStatusCache, mr.TTL("order_status:9"))

	require.NoError(t, mr.Set("order_status:10", "CREATED"))
	_, ok = c.GetStatus(ctx, 10)
	assert.False(t, ok)

	mr.FastForward(TTLStatusCache + time.Second)
	_, ok = c.GetStatus(ctx, 9)
	assert.False(t, ok)
}

func TestClaim(t *testing.T) {
	ctx := context.Background()
	_, rdb := newRedis(t)

	ok, err := Claim(ctx, rdb, "dedup:inventory:e1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = Claim(ctx, rdb, "dedup:inventory:e1", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReplayIndex(t *testing.T) {
	ctx := context.Background()
	mr, rdb := newRedis(t)
	x := &ReplayIndex{Client: rdb}

	_, ok := x.Lookup(ctx, "k1")
	assert.False(t, ok)

	require.NoError(t, x.Remember(ctx, "k1", 42))
	id, ok := x.Lookup(ctx, "k1")
	assert.True(t, ok)
	assert.Equal(t, int64(42), id)
	assert.Equal(t, TTLIdempotency, mr.TTL("idem:order:create:k1"))

	require.NoError(t, mr.Set("idem:order:create:bad", "x"))
	_, ok = x.Lookup(ctx, "bad")
	assert.False(t, ok)
}
