package rpc

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"
)

var (
	ErrUnknownMethod   = errors.New("unknown method")
	ErrDuplicateMethod = errors.New("method already registered")
	ErrNilCall         = errors.New("call cannot be nil")
)

// DefaultMaxConcurrency bounds InvokeAll when no option overrides it.
const DefaultMaxConcurrency = 8

type registeredMethod struct {
	handler      Invoker
	interceptors []Interceptor
}

// Dispatcher routes calls to registered handlers through global and
// per-method interceptors. It is safe for concurrent use.
type Dispatcher struct {
	mu             sync.RWMutex
	methods        map[string]registeredMethod
	interceptors   []Interceptor
	logger         zerolog.Logger
	maxConcurrency int
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithMaxConcurrency bounds the number of calls InvokeAll runs at once.
func WithMaxConcurrency(n int) Option {
	return func(d *Dispatcher) {
		if n > 0 {
			d.maxConcurrency = n
		}
	}
}

// WithInterceptors installs global interceptors.
func WithInterceptors(interceptors ...Interceptor) Option {
	return func(d *Dispatcher) {
		d.interceptors = append(d.interceptors, interceptors...)
	}
}

// NewDispatcher creates an empty dispatcher.
func NewDispatcher(logger zerolog.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		methods:        make(map[string]registeredMethod),
		logger:         logger.With().Str("component", "dispatcher").Logger(),
		maxConcurrency: DefaultMaxConcurrency,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Register binds handler to service.method. Interceptors given here only
// apply to this method and run inside the global ones.
func (d *Dispatcher) Register(service, method string, handler Invoker, interceptors ...Interceptor) error {
	if service == "" || method == "" {
		return fmt.Errorf("service and method cannot be empty")
	}
	if handler == nil {
		return fmt.Errorf("handler for %s cannot be nil", methodKey(service, method))
	}

	key := methodKey(service, method)

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, exists := d.methods[key]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateMethod, key)
	}
	d.methods[key] = registeredMethod{handler: handler, interceptors: interceptors}

	d.logger.Debug().Str("method", key).Int("interceptors", len(interceptors)).Msg("method registered")
	return nil
}

// Use appends global interceptors. They wrap every method.
func (d *Dispatcher) Use(interceptors ...Interceptor) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.interceptors = append(d.interceptors, interceptors...)
}

// Methods lists the registered method keys in sorted order.
func (d *Dispatcher) Methods() []string {
	d.mu.RLock()
	defer d.mu.RUnlock()

	keys := make([]string, 0, len(d.methods))
	for key := range d.methods {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Invoke dispatches a single call.
func (d *Dispatcher) Invoke(ctx context.Context, call *Call) (any, error) {
	if call == nil {
		return nil, ErrNilCall
	}

	key := call.FullMethod()

	d.mu.RLock()
	m, ok := d.methods[key]
	chain := make([]Interceptor, 0, len(d.interceptors)+len(m.interceptors))
	chain = append(chain, d.interceptors...)
	d.mu.RUnlock()

	if !ok {
		d.logger.Warn().Str("call_id", call.ID.String()).Str("method", key).Msg("call to unknown method")
		return nil, fmt.Errorf("%w: %s", ErrUnknownMethod, key)
	}
	chain = append(chain, m.interceptors...)

	start := time.Now()
	result, err := Chain(m.handler, chain...)(ctx, call)

	event := d.logger.Debug()
	if err != nil {
		event = d.logger.Warn().Err(err)
	}
	event.Str("call_id", call.ID.String()).
		Str("method", key).
		Dur("elapsed", time.Since(start)).
		Msg("call dispatched")

	return result, err
}

// Result is the outcome of one call in a batch.
type Result struct {
	Call  *Call
	Value any
	Err   error
}

// InvokeAll dispatches calls concurrently, bounded by the configured maximum.
// Results keep the order of calls; a failing call does not stop the others.
// The returned error is only set when ctx ended before every call started;
// calls that never started carry ctx.Err() in their Result.
func (d *Dispatcher) InvokeAll(ctx context.Context, calls []*Call) ([]Result, error) {
	results := make([]Result, len(calls))
	if len(calls) == 0 {
		return results, nil
	}

	var skipped atomic.Bool
	p := pool.New().WithMaxGoroutines(d.maxConcurrency).WithContext(ctx)
	for i, call := range calls {
		p.Go(func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				skipped.Store(true)
				results[i] = Result{Call: call, Err: err}
				return nil
			}
			value, err := d.Invoke(ctx, call)
			results[i] = Result{Call: call, Value: value, Err: err}
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return results, err
	}

	if skipped.Load() {
		return results, ctx.Err()
	}
	return results, nil
}
