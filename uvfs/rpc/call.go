// Package rpc is the call dispatch boundary of the backend. A remote operation
// arrives as a Call, travels through a chain of interceptors and ends in the
// handler registered for its service method. Interceptors may answer a call
// themselves without ever reaching the handler.
package rpc

import (
	"context"
	"slices"

	"github.com/google/uuid"
)

// Call is a single remote invocation.
type Call struct {
	ID      uuid.UUID
	Service string
	Method  string
	params  []any
}

// NewCall creates a call with a fresh ID.
func NewCall(service, method string, params ...any) *Call {
	return &Call{
		ID:      uuid.New(),
		Service: service,
		Method:  method,
		params:  slices.Clone(params),
	}
}

// Parameters returns a copy of the call's parameters.
func (c *Call) Parameters() []any {
	return slices.Clone(c.params)
}

// Param returns the i-th parameter, or nil when out of range.
func (c *Call) Param(i int) any {
	if i < 0 || i >= len(c.params) {
		return nil
	}
	return c.params[i]
}

// NumParams returns the number of parameters.
func (c *Call) NumParams() int {
	return len(c.params)
}

// FullMethod is the registry key of the call.
func (c *Call) FullMethod() string {
	return methodKey(c.Service, c.Method)
}

// Invoker runs a call and returns its result.
type Invoker func(ctx context.Context, call *Call) (any, error)

// Interceptor wraps an Invoker. It either returns a result of its own or
// hands the call to proceed.
type Interceptor func(ctx context.Context, call *Call, proceed Invoker) (any, error)

// Chain composes interceptors around final. The first interceptor is the
// outermost one.
func Chain(final Invoker, interceptors ...Interceptor) Invoker {
	next := final
	for i := len(interceptors) - 1; i >= 0; i-- {
		interceptor, proceed := interceptors[i], next
		next = func(ctx context.Context, call *Call) (any, error) {
			return interceptor(ctx, call, proceed)
		}
	}
	return next
}

func methodKey(service, method string) string {
	return service + "." + method
}
