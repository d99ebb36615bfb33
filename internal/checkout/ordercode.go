package checkout

import (
	"sync/atomic"
	"time"
)

var orderCodeSeq uint32

// NextOrderCode returns a numeric order code for the gateway correlation key.
// Millisecond timestamp scaled by 1000 plus a per-process sequence keeps
// concurrent checkouts in one process from colliding; the unique constraint
// on transactions.order_code catches the cross-process case, and the caller
// retries once with a fresh code on conflict.
func NextOrderCode() int64 {
	seq := atomic.AddUint32(&orderCodeSeq, 1) % 1000
	return time.Now().UnixMilli()*1000 + int64(seq)
}
