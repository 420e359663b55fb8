package backend

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ZanzyTHEbar/uvfs/uvfs/cluster"
	"github.com/ZanzyTHEbar/uvfs/uvfs/config"
	"github.com/ZanzyTHEbar/uvfs/uvfs/db"
	"github.com/ZanzyTHEbar/uvfs/uvfs/locks"
	"github.com/ZanzyTHEbar/uvfs/uvfs/paths"
	"github.com/ZanzyTHEbar/uvfs/uvfs/rpc"
)

type fakeVFS struct {
	mu    sync.Mutex
	reads int
}

func (f *fakeVFS) ReadAttributes(context.Context, *paths.Path) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reads++
	return map[string]any{"source": "remote"}, nil
}

func (f *fakeVFS) List(context.Context, *paths.Path) ([]*paths.Path, error) {
	return nil, nil
}

type fakeCluster struct {
	mu       sync.Mutex
	critical int
	disposed bool
}

func (c *fakeCluster) Lock(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.critical++
	return nil
}

func (c *fakeCluster) Unlock(context.Context) error { return nil }

func (c *fakeCluster) Dispose() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disposed = true
}

type fakeFactory struct {
	service *fakeCluster
	builds  int
}

func (f *fakeFactory) Build(cluster.MessageHandler) cluster.Service {
	f.builds++
	return f.service
}

func mustPath(t *testing.T, uri string) *paths.Path {
	t.Helper()
	p, err := paths.NewPath("file.txt", uri)
	require.NoError(t, err)
	return p
}

func TestNewWithDefaults(t *testing.T) {
	b, err := New(context.Background(), nil, WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	defer b.Close()

	assert.Nil(t, b.VFS, "no vfs service bound")
	assert.Equal(t, config.StoreMemory, b.Config().Locks.Database.Type)
	methods := b.Dispatcher.Methods()
	assert.Contains(t, methods, "locks.lock")
	assert.Contains(t, methods, "locks.locksUnder")
	assert.Contains(t, methods, "users.getUsers")
	assert.NotContains(t, methods, "vfs.readAttributes")

	content := mustPath(t, "default://master@repo/file.txt")
	_, err = b.Dispatcher.Invoke(context.Background(), rpc.NewCall(locks.ServiceName, locks.MethodLock, content, "alice"))
	require.NoError(t, err)
	assert.True(t, b.Locks.IsLocked(content))
}

func TestNewWithVFSService(t *testing.T) {
	ctx := context.Background()

	t.Run("cached attributes", func(t *testing.T) {
		svc := &fakeVFS{}
		b, err := New(ctx, nil, WithLogger(zerolog.Nop()), WithVFSService(svc))
		require.NoError(t, err)
		defer b.Close()
		require.NotNil(t, b.VFS)

		withAttrs, err := paths.NewPathWithAttributes("file.txt", "default://master@repo/file.txt", map[string]any{"source": "cache"})
		require.NoError(t, err)
		attrs, err := b.VFS.ReadAttributes(ctx, withAttrs)
		require.NoError(t, err)
		assert.Equal(t, "cache", attrs["source"])
		assert.Equal(t, 0, svc.reads)

		attrs, err = b.VFS.ReadAttributes(ctx, mustPath(t, "default://master@repo/file.txt"))
		require.NoError(t, err)
		assert.Equal(t, "remote", attrs["source"])
		assert.Equal(t, 1, svc.reads)
	})

	t.Run("cache disabled", func(t *testing.T) {
		cfg := config.Default()
		cfg.Dispatch.CacheAttributes = false
		svc := &fakeVFS{}
		b, err := New(ctx, cfg, WithLogger(zerolog.Nop()), WithVFSService(svc))
		require.NoError(t, err)
		defer b.Close()

		withAttrs, err := paths.NewPathWithAttributes("file.txt", "default://master@repo/file.txt", map[string]any{"source": "cache"})
		require.NoError(t, err)
		attrs, err := b.VFS.ReadAttributes(ctx, withAttrs)
		require.NoError(t, err)
		assert.Equal(t, "remote", attrs["source"])
		assert.Equal(t, 1, svc.reads)
	})
}

func TestNewWithCluster(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()
	cfg.Cluster.Enabled = true

	t.Run("factory available", func(t *testing.T) {
		factory := &fakeFactory{service: &fakeCluster{}}
		b, err := New(ctx, cfg, WithLogger(zerolog.Nop()), WithClusterFactory(func() cluster.ServiceFactory { return factory }))
		require.NoError(t, err)

		_, err = b.Locks.Lock(ctx, mustPath(t, "default://master@repo/file.txt"), "alice")
		require.NoError(t, err)
		assert.Equal(t, 1, factory.service.critical)

		assert.Equal(t, 1, factory.builds, "the initializing build provides the service")

		require.NoError(t, b.Close())
		assert.True(t, factory.service.disposed)
		require.NoError(t, b.Close(), "close is idempotent")
	})

	t.Run("factory missing", func(t *testing.T) {
		b, err := New(ctx, cfg, WithLogger(zerolog.Nop()))
		require.NoError(t, err)
		defer b.Close()

		_, err = b.Locks.Lock(ctx, mustPath(t, "default://master@repo/file.txt"), "alice")
		assert.NoError(t, err)
	})

	t.Run("disabled ignores factory", func(t *testing.T) {
		factory := &fakeFactory{service: &fakeCluster{}}
		b, err := New(ctx, config.Default(), WithLogger(zerolog.Nop()), WithClusterFactory(func() cluster.ServiceFactory { return factory }))
		require.NoError(t, err)
		defer b.Close()
		assert.Equal(t, 0, factory.builds)
	})
}

func TestNewLoadsExistingLocks(t *testing.T) {
	ctx := context.Background()
	store := db.NewMemoryLockStore()

	seed, err := locks.NewManager(store, locks.Options{})
	require.NoError(t, err)
	content := mustPath(t, "default://master@repo/docs/a.txt")
	_, err = seed.Lock(ctx, content, "alice")
	require.NoError(t, err)

	b, err := New(ctx, nil, WithLogger(zerolog.Nop()), WithLockStore(store))
	require.NoError(t, err)
	defer b.Close()

	held, found := b.Locks.Get(content)
	require.True(t, found)
	assert.Equal(t, "alice", held.Owner)
}

func TestNewWithLibSQLStore(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping libsql lock store in short mode")
	}
	ctx := context.Background()
	cfg := config.Default()
	cfg.Locks.Database.Type = config.StoreLibSQL
	cfg.Locks.Database.DSN = "file:" + filepath.Join(t.TempDir(), "uvfs", "locks.db")

	b, err := New(ctx, cfg, WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	content := mustPath(t, "default://master@repo/file.txt")
	_, err = b.Locks.Lock(ctx, content, "alice")
	require.NoError(t, err)
	require.NoError(t, b.Close())

	reopened, err := New(ctx, cfg, WithLogger(zerolog.Nop()))
	require.NoError(t, err)
	defer reopened.Close()
	assert.True(t, reopened.Locks.IsLocked(content))
}

func TestNewInvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Locks.Database.Type = "postgres"
	_, err := New(context.Background(), cfg, WithLogger(zerolog.Nop()))
	assert.Error(t, err)

	cfg = config.Default()
	cfg.Dispatch.MaxConcurrency = 0
	_, err = New(context.Background(), cfg, WithLogger(zerolog.Nop()))
	assert.Error(t, err)
}
