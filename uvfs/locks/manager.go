// Package locks tracks locks on VFS content paths. Every lock is addressed by
// the lock path derived from its content path, so locks on one repository and
// branch share a common URI prefix and can be listed with a prefix walk.
package locks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/armon/go-radix"
	"github.com/google/uuid"
	ignore "github.com/sabhiram/go-gitignore"

	"github.com/ZanzyTHEbar/uvfs/uvfs/cluster"
	"github.com/ZanzyTHEbar/uvfs/uvfs/db"
	"github.com/ZanzyTHEbar/uvfs/uvfs/paths"
)

var (
	ErrLocked      = errors.New("path is locked by another owner")
	ErrNotLocked   = errors.New("path is not locked")
	ErrNotOwner    = errors.New("lock is held by another owner")
	ErrNotLockable = errors.New("path is excluded from locking")
)

// Lock is a lock held on a content path.
type Lock struct {
	ID         uuid.UUID
	Path       *paths.Path
	Content    *paths.Path
	Owner      string
	AcquiredAt time.Time
}

// Options configures a Manager.
type Options struct {
	// Exclude holds gitignore-style patterns matched against the path of the
	// content inside its repository. Matching paths cannot be locked.
	Exclude []string
	// Cluster, when set, guards every mutation with a cluster-wide critical section.
	Cluster cluster.Service
	// Now overrides the clock.
	Now func() time.Time
}

// Manager keeps the lock index in memory and persists it through a LockStore.
type Manager struct {
	store   db.LockStore
	mu      sync.RWMutex
	index   *radix.Tree // lock URI -> *Lock
	exclude *ignore.GitIgnore
	cluster cluster.Service
	now     func() time.Time
}

// NewManager creates a manager with an empty index. Call Load to pick up
// locks already persisted in store.
func NewManager(store db.LockStore, opts Options) (*Manager, error) {
	if store == nil {
		return nil, fmt.Errorf("lock store cannot be nil")
	}

	m := &Manager{
		store:   store,
		index:   radix.New(),
		cluster: opts.Cluster,
		now:     opts.Now,
	}
	if m.now == nil {
		m.now = time.Now
	}
	if len(opts.Exclude) > 0 {
		m.exclude = ignore.CompileIgnoreLines(opts.Exclude...)
	}
	return m, nil
}

// Load rebuilds the index from the store. Content paths are recovered from
// the stored lock URIs; records whose URI is not a lock URI are skipped.
func (m *Manager) Load(ctx context.Context) error {
	records, err := m.store.ListLocks(ctx)
	if err != nil {
		return fmt.Errorf("failed to load locks: %w", err)
	}

	index := radix.New()
	for _, rec := range records {
		lock, err := lockFromRecord(rec)
		if err != nil {
			slog.Warn("Skipping invalid lock record", "lock_uri", rec.LockURI, "error", err)
			continue
		}
		index.Insert(rec.LockURI, lock)
	}

	m.mu.Lock()
	m.index = index
	m.mu.Unlock()

	slog.Debug("Lock index loaded", "locks", index.Len())
	return nil
}

func lockFromRecord(rec *db.LockRecord) (*Lock, error) {
	lockPath, err := paths.NewPath(rec.FileName, rec.LockURI)
	if err != nil {
		return nil, err
	}
	content, err := paths.FromLock(lockPath)
	if err != nil {
		return nil, err
	}
	return &Lock{
		ID:         rec.ID,
		Path:       lockPath,
		Content:    content,
		Owner:      rec.Owner,
		AcquiredAt: rec.AcquiredAt,
	}, nil
}

// Excluded reports whether content matches one of the exclude patterns.
func (m *Manager) Excluded(content *paths.Path) bool {
	if m.exclude == nil || content == nil {
		return false
	}
	loc, err := paths.ParseLocation(content.URI())
	if err != nil {
		return false
	}
	rel := loc.RelativePath()
	return rel != "" && m.exclude.MatchesPath(rel)
}

// Lock acquires the lock on content for owner. Locking a path the owner
// already holds returns the existing lock.
func (m *Manager) Lock(ctx context.Context, content *paths.Path, owner string) (*Lock, error) {
	if owner == "" {
		return nil, fmt.Errorf("%w: owner cannot be empty", paths.ErrInvalidArgument)
	}
	lockPath, err := paths.NewLock(content)
	if err != nil {
		return nil, err
	}
	if m.Excluded(content) {
		return nil, fmt.Errorf("%w: %s", ErrNotLockable, content.URI())
	}

	var acquired *Lock
	err = m.critical(ctx, func() error {
		m.mu.Lock()
		defer m.mu.Unlock()

		if existing, found := m.index.Get(lockPath.URI()); found {
			held := existing.(*Lock)
			if held.Owner != owner {
				return fmt.Errorf("%w: %s held by %s", ErrLocked, content.URI(), held.Owner)
			}
			acquired = held
			return nil
		}

		lock := &Lock{
			ID:         uuid.New(),
			Path:       lockPath,
			Content:    content,
			Owner:      owner,
			AcquiredAt: m.now(),
		}
		rec := &db.LockRecord{
			ID:         lock.ID,
			LockURI:    lockPath.URI(),
			FileName:   lockPath.FileName(),
			ContentURI: content.URI(),
			Owner:      owner,
			AcquiredAt: lock.AcquiredAt,
		}
		if err := m.store.InsertLock(ctx, rec); err != nil {
			if errors.Is(err, db.ErrLockExists) {
				return fmt.Errorf("%w: %s", ErrLocked, content.URI())
			}
			return fmt.Errorf("failed to persist lock: %w", err)
		}
		m.index.Insert(rec.LockURI, lock)
		acquired = lock
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Debug("Lock acquired", "content", content.URI(), "lock", lockPath.URI(), "owner", owner)
	return acquired, nil
}

// Unlock releases the lock owner holds on content.
func (m *Manager) Unlock(ctx context.Context, content *paths.Path, owner string) error {
	lockPath, err := paths.NewLock(content)
	if err != nil {
		return err
	}

	return m.critical(ctx, func() error {
		m.mu.Lock()
		defer m.mu.Unlock()

		existing, found := m.index.Get(lockPath.URI())
		if !found {
			return fmt.Errorf("%w: %s", ErrNotLocked, content.URI())
		}
		if held := existing.(*Lock); held.Owner != owner {
			return fmt.Errorf("%w: %s held by %s", ErrNotOwner, content.URI(), held.Owner)
		}

		if err := m.store.DeleteLock(ctx, lockPath.URI()); err != nil && !errors.Is(err, db.ErrLockNotFound) {
			return fmt.Errorf("failed to delete lock: %w", err)
		}
		m.index.Delete(lockPath.URI())

		slog.Debug("Lock released", "content", content.URI(), "owner", owner)
		return nil
	})
}

// Get returns the lock held on content, if any.
func (m *Manager) Get(content *paths.Path) (*Lock, bool) {
	lockPath, err := paths.NewLock(content)
	if err != nil {
		return nil, false
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	value, found := m.index.Get(lockPath.URI())
	if !found {
		return nil, false
	}
	return value.(*Lock), true
}

// IsLocked reports whether content is locked by anyone.
func (m *Manager) IsLocked(content *paths.Path) bool {
	_, found := m.Get(content)
	return found
}

// LocksUnder returns the locks on dir and everything below it, ordered by
// lock URI. dir may be a repository root such as default://master@repo.
func (m *Manager) LocksUnder(dir *paths.Path) ([]*Lock, error) {
	lockDir, err := paths.NewLockPath(dir)
	if err != nil {
		return nil, err
	}
	prefix := lockDir.URI()

	m.mu.RLock()
	defer m.mu.RUnlock()

	var locks []*Lock
	m.index.WalkPrefix(prefix, func(key string, value interface{}) bool {
		rest := key[len(prefix):]
		if rest == paths.LockFileExtension || strings.HasPrefix(rest, "/") || strings.HasPrefix(rest, "\\") {
			locks = append(locks, value.(*Lock))
		}
		return false
	})
	return locks, nil
}

// Locks returns every lock in the index ordered by lock URI.
func (m *Manager) Locks() []*Lock {
	m.mu.RLock()
	defer m.mu.RUnlock()

	locks := make([]*Lock, 0, m.index.Len())
	m.index.Walk(func(key string, value interface{}) bool {
		locks = append(locks, value.(*Lock))
		return false
	})
	return locks
}

// critical runs fn inside the cluster critical section when one is configured.
func (m *Manager) critical(ctx context.Context, fn func() error) error {
	if m.cluster == nil {
		return fn()
	}
	if err := m.cluster.Lock(ctx); err != nil {
		return fmt.Errorf("failed to enter cluster critical section: %w", err)
	}
	defer func() {
		if err := m.cluster.Unlock(ctx); err != nil {
			slog.Error("Failed to leave cluster critical section", "error", err)
		}
	}()
	return fn()
}
