package db

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrLockExists   = errors.New("lock already exists")
	ErrLockNotFound = errors.New("lock not found")
)

// LockRecord is the persisted form of a held lock.
type LockRecord struct {
	ID         uuid.UUID
	LockURI    string
	FileName   string
	ContentURI string
	Owner      string
	AcquiredAt time.Time
}

// LockStore persists lock records keyed by lock URI.
type LockStore interface {
	Close() error
	InitSchema() error
	InsertLock(ctx context.Context, rec *LockRecord) error
	GetLock(ctx context.Context, lockURI string) (*LockRecord, error)
	DeleteLock(ctx context.Context, lockURI string) error
	ListLocks(ctx context.Context) ([]*LockRecord, error)
}
