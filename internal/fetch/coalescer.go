package fetch

import (
	"context"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

// Coalescer guarantees at most one in-flight fetch per cache key. Built on
// singleflight.Group the way the teacher's bulk helpers (internal/core/helpers.go)
// hand-roll a channel semaphore for parallel fan-out; singleflight already
// gives the "late joiners still get the write-back" property for free: a
// call is shared across all callers and completes independently of any one
// caller's context being cancelled, and Do itself runs the shared call on a
// non-cancelling context.
type Coalescer struct {
	group singleflight.Group
}

// NewCoalescer creates an empty coalescer.
func NewCoalescer() *Coalescer {
	return &Coalescer{}
}

// Do executes fn for key if no call for that key is in flight, or attaches
// to the existing call otherwise. Result.Shared reports whether the result
// was shared with another caller (useful for coalescing tests);
// Result.CallID identifies this caller's Do invocation for log correlation.
func (c *Coalescer) Do(ctx context.Context, key string, fn func(ctx context.Context) (any, error)) (Result, error) {
	callID := uuid.NewString()
	// fn runs on context.WithoutCancel(ctx): singleflight invokes the
	// leader's closure exactly once and shares its result with every
	// joined caller, so the call must outlive whichever one of those
	// callers happens to be the leader. A leader that cancels its own
	// context (request abandoned, client disconnected) must not cut the
	// fetch out from under callers who joined afterward; fn still bounds
	// its own lifetime with a deadline (see metadataTimeout).
	detached := context.WithoutCancel(ctx)
	v, err, shared := c.group.Do(key, func() (any, error) {
		return fn(detached)
	})
	return Result{Value: v, Shared: shared, CallID: callID}, err
}

// Result wraps a coalesced call's outcome.
type Result struct {
	Value  any
	Shared bool
	CallID string
}

// Forget removes key from the in-flight table so the next Do call starts a
// fresh fetch instead of waiting on a stale outcome.
func (c *Coalescer) Forget(key string) {
	c.group.Forget(key)
}
