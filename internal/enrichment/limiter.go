package enrichment

import (
	"context"
	"time"
)

// tokenBucket refills to capacity at each wall-clock second. Only the
// dispatcher goroutine touches it, so no locking is needed; the clock is
// injected so tests can step time.
type tokenBucket struct {
	capacity int
	tokens   int
	lastSec  int64
	clock    Clock
}

func newTokenBucket(perSecond int, clock Clock) *tokenBucket {
	return &tokenBucket{capacity: perSecond, tokens: perSecond, clock: clock}
}

func (tb *tokenBucket) allow() bool {
	nowSec := tb.clock.Now().Unix()
	if tb.lastSec != nowSec {
		tb.lastSec = nowSec
		tb.tokens = tb.capacity
	}
	if tb.tokens > 0 {
		tb.tokens--
		return true
	}
	return false
}

// wait blocks until a token is available or the context ends.
func (tb *tokenBucket) wait(ctx context.Context) error {
	for !tb.allow() {
		select {
		case <-tb.clock.After(50 * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}
