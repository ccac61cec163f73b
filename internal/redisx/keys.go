package redisx

import "time"

const (
	// Idempotent order creation: idem:order:create:{key} -> "pending" | order id
	KeyIdemOrderCreate = "idem:order:create:%s"

	// Order read model: order:summary:{order_id} -> JSON orders.Order
	KeyOrderSummary = "order:summary:%s"

	// Dedup event processing: dedup:{consumer}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLOrderCache  = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)
