package redisx

import "time"

const (
	// Lock rekonsiliasi per order: lock:{key} -> token (uuid)
	KeyLock = "lock:%s"

	// Cache status order: order_status:{order_id} -> {"status": "...", "updated_at": "..."}
	KeyOrderStatus = "order_status:%s"

	// Dedup event processing: dedup:{service}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
	TTLLock        = 15 * time.Second
)
