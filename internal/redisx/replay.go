package redisx

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"

	"github.com/ariefcatur/go-storefront-orders/internal/orders"
)

// ReplayIndex maps an Idempotency-Key to the order it created. The unique
// external_id column stays authoritative; this only answers retries early.
type ReplayIndex struct{ Client redis.Cmdable }

var _ orders.ReplayIndex = (*ReplayIndex)(nil)

func (x *ReplayIndex) Lookup(ctx context.Context, externalID string) (int64, bool) {
	v, err := x.Client.Get(ctx, fmt.Sprintf(KeyIdemOrderCreate, externalID)).Result()
	if err != nil {
		return 0, false
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

func (x *ReplayIndex) Remember(ctx context.Context, externalID string, orderID int64) error {
	return x.Client.Set(ctx, fmt.Sprintf(KeyIdemOrderCreate, externalID), orderID, TTLIdempotency).Err()
}
