package vfs

import (
	"context"
	"log/slog"

	"github.com/ZanzyTHEbar/uvfs/uvfs/paths"
	"github.com/ZanzyTHEbar/uvfs/uvfs/rpc"
)

// CacheInterceptor answers a call from the attributes already attached to its
// first parameter. When that parameter is a *paths.Path with a non-empty
// attribute bag, the bag is the result and proceed is never invoked. Any other
// call is handed to proceed untouched.
func CacheInterceptor(ctx context.Context, call *rpc.Call, proceed rpc.Invoker) (any, error) {
	if p, ok := call.Param(0).(*paths.Path); ok && p != nil && p.HasAttributes() {
		slog.Debug("Serving call from path attributes",
			"call_id", call.ID.String(),
			"method", call.FullMethod(),
			"uri", p.URI())
		return p.Attributes(), nil
	}
	return proceed(ctx, call)
}

var _ rpc.Interceptor = CacheInterceptor
