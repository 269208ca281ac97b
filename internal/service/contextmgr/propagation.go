package contextmgr

import (
	"context"

	"github.com/davidleathers/tenant-isolation-core/internal/domain/isolation"
)

type contextKey struct{}

// With returns a context.Context carrying the isolation context. This is the
// propagation path for concurrent units of work: each request chain carries
// its own value and never observes another chain's context.
func With(ctx context.Context, ic *isolation.Context) context.Context {
	return context.WithValue(ctx, contextKey{}, ic)
}

// From extracts the isolation context carried by ctx, if any
func From(ctx context.Context) (*isolation.Context, bool) {
	ic, ok := ctx.Value(contextKey{}).(*isolation.Context)
	return ic, ok && ic != nil
}
