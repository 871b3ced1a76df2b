package logging

import (
	"context"
	"time"
)

// DetachContext returns a context that survives cancellation of its parent.
//
// Mood bookkeeping runs after the response has already been delivered; the
// request context is frequently cancelled by then, and the ledger write
// must still complete.
func DetachContext(parent context.Context) context.Context {
	return context.WithoutCancel(parent)
}

// DetachContextWithTimeout detaches from the parent and applies a fresh
// deadline, so background writes cannot hang forever either.
//
//	ctx, cancel := logging.DetachContextWithTimeout(reqCtx, 5*time.Second)
//	defer cancel()
//	err := ledger.Append(ctx, obs)
func DetachContextWithTimeout(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(parent), timeout)
}
