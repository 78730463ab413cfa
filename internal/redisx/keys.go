package redisx

import "time"

const (
	// Order status cache: order_status:{order_id} -> status string
	KeyOrderStatus = "order_status:%d"

	// Intake idempotency: idem:order:create:{external_ref} -> order_id
	KeyIdemOrderCreate = "idem:order:create:%s"
)

var (
	TTLStatusCache = 5 * time.Minute
	TTLIdempotency = 24 * time.Hour
)
