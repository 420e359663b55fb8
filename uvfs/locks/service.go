package locks

import (
	"context"
	"fmt"

	"github.com/ZanzyTHEbar/uvfs/uvfs/paths"
	"github.com/ZanzyTHEbar/uvfs/uvfs/rpc"
)

const (
	ServiceName    = "locks"
	MethodLock     = "lock"
	MethodUnlock   = "unlock"
	MethodIsLocked = "isLocked"
	MethodLocksFor = "locksUnder"
)

// Bind exposes m on the dispatcher. lock and unlock take (path, owner);
// isLocked and locksUnder take a path.
func Bind(d *rpc.Dispatcher, m *Manager) error {
	handlers := map[string]rpc.Invoker{
		MethodLock: func(ctx context.Context, call *rpc.Call) (any, error) {
			content, owner, err := pathAndOwner(call)
			if err != nil {
				return nil, err
			}
			return m.Lock(ctx, content, owner)
		},
		MethodUnlock: func(ctx context.Context, call *rpc.Call) (any, error) {
			content, owner, err := pathAndOwner(call)
			if err != nil {
				return nil, err
			}
			return nil, m.Unlock(ctx, content, owner)
		},
		MethodIsLocked: func(ctx context.Context, call *rpc.Call) (any, error) {
			content, ok := call.Param(0).(*paths.Path)
			if !ok || content == nil {
				return nil, fmt.Errorf("%s: %w: path parameter", call.FullMethod(), paths.ErrInvalidArgument)
			}
			return m.IsLocked(content), nil
		},
		MethodLocksFor: func(ctx context.Context, call *rpc.Call) (any, error) {
			dir, ok := call.Param(0).(*paths.Path)
			if !ok || dir == nil {
				return nil, fmt.Errorf("%s: %w: path parameter", call.FullMethod(), paths.ErrInvalidArgument)
			}
			return m.LocksUnder(dir)
		},
	}

	for _, method := range []string{MethodLock, MethodUnlock, MethodIsLocked, MethodLocksFor} {
		if err := d.Register(ServiceName, method, handlers[method]); err != nil {
			return fmt.Errorf("failed to bind lock service: %w", err)
		}
	}
	return nil
}

func pathAndOwner(call *rpc.Call) (*paths.Path, string, error) {
	content, ok := call.Param(0).(*paths.Path)
	if !ok || content == nil {
		return nil, "", fmt.Errorf("%s: %w: path parameter", call.FullMethod(), paths.ErrInvalidArgument)
	}
	owner, ok := call.Param(1).(string)
	if !ok {
		return nil, "", fmt.Errorf("%s: %w: owner parameter", call.FullMethod(), paths.ErrInvalidArgument)
	}
	return content, owner, nil
}
