// Package backend assembles the VFS backend: configuration, logging, lock
// store, lock manager, cluster coordination and the call dispatcher with
// every service bound to it.
package backend

import (
	"context"
	"fmt"

	internal "github.com/ZanzyTHEbar/uvfs/uvfs"
	"github.com/ZanzyTHEbar/uvfs/uvfs/cluster"
	"github.com/ZanzyTHEbar/uvfs/uvfs/config"
	"github.com/ZanzyTHEbar/uvfs/uvfs/db"
	"github.com/ZanzyTHEbar/uvfs/uvfs/locks"
	"github.com/ZanzyTHEbar/uvfs/uvfs/rpc"
	"github.com/ZanzyTHEbar/uvfs/uvfs/usermanagement"
	"github.com/ZanzyTHEbar/uvfs/uvfs/vfs"

	"github.com/rs/zerolog"
)

// Backend is the assembled VFS backend.
type Backend struct {
	// Core services
	Dispatcher *rpc.Dispatcher
	Locks      *locks.Manager
	VFS        *vfs.Client

	// System components
	store          db.LockStore
	clusterService cluster.Service
	logger         zerolog.Logger
	config         *config.Config
}

type options struct {
	logger         *zerolog.Logger
	vfsService     vfs.Service
	userService    usermanagement.Service
	clusterFactory func() cluster.ServiceFactory
	store          db.LockStore
}

// Option customizes New.
type Option func(*options)

// WithLogger replaces the logger built from the log configuration.
func WithLogger(logger zerolog.Logger) Option {
	return func(o *options) { o.logger = &logger }
}

// WithVFSService binds a VFS backend implementation.
func WithVFSService(svc vfs.Service) Option {
	return func(o *options) { o.vfsService = svc }
}

// WithUserService replaces the in-memory user management service.
func WithUserService(svc usermanagement.Service) Option {
	return func(o *options) { o.userService = svc }
}

// WithClusterFactory supplies the cluster service factory lookup. It is
// consulted only when cluster.enabled is set.
func WithClusterFactory(build func() cluster.ServiceFactory) Option {
	return func(o *options) { o.clusterFactory = build }
}

// WithLockStore replaces the lock store selected by configuration.
func WithLockStore(store db.LockStore) Option {
	return func(o *options) { o.store = store }
}

// New creates a backend from cfg. A nil cfg uses config.Default().
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Backend, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	logger := internal.GetLogger(cfg.Log.Level)
	if o.logger != nil {
		logger = *o.logger
	}

	store := o.store
	if store == nil {
		var err error
		store, err = openLockStore(cfg.Locks.Database)
		if err != nil {
			return nil, err
		}
	}

	b := &Backend{store: store, logger: logger, config: cfg}

	var managerOpts locks.Options
	managerOpts.Exclude = cfg.Locks.Exclude
	if cfg.Cluster.Enabled {
		producer := cluster.NewFactoryProducer(o.clusterFactory)
		if service := producer.Service(); service != nil {
			b.clusterService = service
			managerOpts.Cluster = service
		} else {
			logger.Warn().Msg("cluster enabled but no cluster service factory is available")
		}
	}

	manager, err := locks.NewManager(store, managerOpts)
	if err != nil {
		b.Close()
		return nil, err
	}
	if err := manager.Load(ctx); err != nil {
		b.Close()
		return nil, err
	}
	b.Locks = manager

	b.Dispatcher = rpc.NewDispatcher(logger, rpc.WithMaxConcurrency(cfg.Dispatch.MaxConcurrency))
	if err := locks.Bind(b.Dispatcher, manager); err != nil {
		b.Close()
		return nil, err
	}

	userService := o.userService
	if userService == nil {
		userService = usermanagement.NewMemoryService()
	}
	if err := usermanagement.Bind(b.Dispatcher, userService); err != nil {
		b.Close()
		return nil, err
	}

	if o.vfsService != nil {
		if err := vfs.Bind(b.Dispatcher, o.vfsService, vfs.BindOptions{CacheAttributes: cfg.Dispatch.CacheAttributes}); err != nil {
			b.Close()
			return nil, err
		}
		b.VFS = vfs.NewClient(b.Dispatcher)
	}

	logger.Info().
		Str("lock_store", cfg.Locks.Database.Type).
		Int("locks", len(manager.Locks())).
		Bool("cache_attributes", cfg.Dispatch.CacheAttributes).
		Bool("clustered", b.clusterService != nil).
		Strs("methods", b.Dispatcher.Methods()).
		Msg("backend ready")

	return b, nil
}

func openLockStore(cfg config.DatabaseConfig) (db.LockStore, error) {
	switch cfg.Type {
	case config.StoreLibSQL:
		store, err := db.NewSQLLockStore(cfg.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to open lock store: %w", err)
		}
		return store, nil
	default:
		return db.NewMemoryLockStore(), nil
	}
}

// Close releases the lock store and the cluster service.
func (b *Backend) Close() error {
	if b.clusterService != nil {
		b.clusterService.Dispose()
		b.clusterService = nil
	}
	if b.store == nil {
		return nil
	}
	err := b.store.Close()
	b.store = nil
	return err
}

// Config returns the configuration the backend was built from.
func (b *Backend) Config() *config.Config {
	return b.config
}
