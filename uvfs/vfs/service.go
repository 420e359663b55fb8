// Package vfs binds the virtual file system service to the call dispatcher
// and provides the attribute cache interceptor.
package vfs

import (
	"context"
	"errors"
	"fmt"

	"github.com/ZanzyTHEbar/uvfs/uvfs/paths"
	"github.com/ZanzyTHEbar/uvfs/uvfs/rpc"
)

const (
	ServiceName          = "vfs"
	MethodReadAttributes = "readAttributes"
	MethodList           = "list"
)

// ErrUnexpectedResult is returned when a call answers with a value of the wrong type.
var ErrUnexpectedResult = errors.New("unexpected result type")

// Service is implemented by VFS backends.
type Service interface {
	// ReadAttributes returns the metadata of p.
	ReadAttributes(ctx context.Context, p *paths.Path) (map[string]any, error)
	// List returns the entries of dir. Entries may carry their attributes so
	// that later ReadAttributes calls can be answered by CacheInterceptor.
	List(ctx context.Context, dir *paths.Path) ([]*paths.Path, error)
}

// BindOptions controls how Bind registers the service.
type BindOptions struct {
	// CacheAttributes installs CacheInterceptor on readAttributes.
	CacheAttributes bool
}

// Bind registers svc on d.
func Bind(d *rpc.Dispatcher, svc Service, opts BindOptions) error {
	var readInterceptors []rpc.Interceptor
	if opts.CacheAttributes {
		readInterceptors = append(readInterceptors, CacheInterceptor)
	}

	err := d.Register(ServiceName, MethodReadAttributes, func(ctx context.Context, call *rpc.Call) (any, error) {
		p, err := pathParam(call, 0)
		if err != nil {
			return nil, err
		}
		return svc.ReadAttributes(ctx, p)
	}, readInterceptors...)
	if err != nil {
		return fmt.Errorf("failed to bind vfs service: %w", err)
	}

	err = d.Register(ServiceName, MethodList, func(ctx context.Context, call *rpc.Call) (any, error) {
		dir, err := pathParam(call, 0)
		if err != nil {
			return nil, err
		}
		return svc.List(ctx, dir)
	})
	if err != nil {
		return fmt.Errorf("failed to bind vfs service: %w", err)
	}
	return nil
}

func pathParam(call *rpc.Call, i int) (*paths.Path, error) {
	p, ok := call.Param(i).(*paths.Path)
	if !ok || p == nil {
		return nil, fmt.Errorf("%s: parameter %d: %w", call.FullMethod(), i, paths.ErrInvalidArgument)
	}
	return p, nil
}

// Client calls the vfs service through a dispatcher.
type Client struct {
	dispatcher *rpc.Dispatcher
}

func NewClient(d *rpc.Dispatcher) *Client {
	return &Client{dispatcher: d}
}

// ReadAttributes asks the service for the attributes of p. When p already
// carries attributes and the cache interceptor is installed, no service call
// is made.
func (c *Client) ReadAttributes(ctx context.Context, p *paths.Path) (map[string]any, error) {
	result, err := c.dispatcher.Invoke(ctx, rpc.NewCall(ServiceName, MethodReadAttributes, p))
	if err != nil {
		return nil, err
	}
	attrs, ok := result.(map[string]any)
	if !ok && result != nil {
		return nil, fmt.Errorf("%w: %T", ErrUnexpectedResult, result)
	}
	return attrs, nil
}

// List returns the entries of dir.
func (c *Client) List(ctx context.Context, dir *paths.Path) ([]*paths.Path, error) {
	result, err := c.dispatcher.Invoke(ctx, rpc.NewCall(ServiceName, MethodList, dir))
	if err != nil {
		return nil, err
	}
	entries, ok := result.([]*paths.Path)
	if !ok && result != nil {
		return nil, fmt.Errorf("%w: %T", ErrUnexpectedResult, result)
	}
	return entries, nil
}
