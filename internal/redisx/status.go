package redisx

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/ariefcatur/go-storefront-orders/internal/orders"
)

// StatusCache is a short-lived copy of each order's status. Postgres stays
// the source of truth; misses and errors fall through to it.
type StatusCache struct{ Client redis.Cmdable }

var _ orders.StatusCache = (*StatusCache)(nil)

func (c *StatusCache) SetStatus(ctx context.Context, id int64, s orders.Status) error {
	return c.Client.Set(ctx, fmt.Sprintf(KeyOrderStatus, id), string(s), TTLStatusCache).Err()
}

func (c *StatusCache) GetStatus(ctx context.Context, id int64) (orders.Status, bool) {
	v, err := c.Client.Get(ctx, fmt.Sprintf(KeyOrderStatus, id)).Result()
	if err != nil {
		return "", false
	}
	st := orders.Status(v)
	if !st.Valid() {
		return "", false
	}
	return st, true
}
