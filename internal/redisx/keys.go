package redisx

import "time"

const (
	// Cart lines per browser session: cart:{session} -> JSON array
	KeyCart = "cart:%s"

	// Idempotent order create: idem:order:create:{external_id} -> order_id
	KeyIdemOrderCreate = "idem:order:create:%s"

	// Order status cache: order_status:{order_id} -> status
	KeyOrderStatus = "order_status:%d"

	// Event dedup: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)
