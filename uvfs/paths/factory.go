package paths

import (
	"fmt"
	"maps"
	"strings"

	"github.com/spf13/cast"
)

// NewPath creates a path without attributes.
func NewPath(fileName, uri string) (*Path, error) {
	if err := checkNotEmpty(fileName, uri); err != nil {
		return nil, err
	}
	return &Path{fileName: fileName, uri: uri, attributes: map[string]any{}}, nil
}

// NewPathWithAttributes creates a path carrying a copy of attrs. The reserved
// VersionAttribute key is removed from the copy and becomes the version flag;
// attrs itself is left untouched.
func NewPathWithAttributes(fileName, uri string, attrs map[string]any) (*Path, error) {
	if err := checkNotEmpty(fileName, uri); err != nil {
		return nil, err
	}

	p := &Path{fileName: fileName, uri: uri, attributes: map[string]any{}}
	if len(attrs) == 0 {
		return p, nil
	}

	stored := maps.Clone(attrs)
	if raw, ok := stored[VersionAttribute]; ok {
		delete(stored, VersionAttribute)
		versioned, err := cast.ToBoolE(raw)
		if err != nil {
			return nil, invalidArgument("attributes."+VersionAttribute, fmt.Sprintf("not a boolean: %v", raw))
		}
		p.hasVersionSupport = versioned
	}
	if len(stored) > 0 {
		p.attributes = stored
	}
	return p, nil
}

// NewPathBasedOn creates a path that inherits only the version flag of base.
func NewPathBasedOn(fileName, uri string, base *Path) (*Path, error) {
	if err := checkNotEmpty(fileName, uri); err != nil {
		return nil, err
	}
	if base == nil {
		return nil, invalidArgument("path", "must not be nil")
	}
	return &Path{
		fileName:          fileName,
		uri:               uri,
		attributes:        map[string]any{},
		hasVersionSupport: base.hasVersionSupport,
	}, nil
}

// NewLockPath returns the lock namespace path for p, without the lock file
// extension.
//
//	default://master@repo/some/path/to/file.txt
//	default://locks@system/repo/master/some/path/to/file.txt
//
//	file:\master@repo\some\path\to\file.txt
//	file:\locks@system\repo\master\some\path\to\file.txt
//
// A URI without a branch@repository segment yields ErrMalformedLockURI.
func NewLockPath(p *Path) (*Path, error) {
	if p == nil {
		return nil, invalidArgument("path", "must not be nil")
	}
	loc, err := ParseLocation(p.uri)
	if err != nil {
		return nil, err
	}
	return NewPath("/", loc.LockURI())
}

// NewLock returns the lock file path for p: both its file name and URI carry
// LockFileExtension.
func NewLock(p *Path) (*Path, error) {
	lockPath, err := NewLockPath(p)
	if err != nil {
		return nil, err
	}
	return NewPath(p.fileName+LockFileExtension, lockPath.uri+LockFileExtension)
}

// FromLock returns the content path a lock was derived from. It accepts the
// output of both NewLock and NewLockPath.
//
//	default://locks@system/repo/master/some/path/to/file.txt.ulock
//	default://master@repo/some/path/to/file.txt
func FromLock(lock *Path) (*Path, error) {
	if lock == nil {
		return nil, invalidArgument("path", "must not be nil")
	}
	loc, err := ParseLockLocation(strings.TrimSuffix(lock.uri, LockFileExtension))
	if err != nil {
		return nil, err
	}
	return NewPath(strings.TrimSuffix(lock.fileName, LockFileExtension), loc.String())
}

// IsLock reports whether p lives in the lock namespace.
func IsLock(p *Path) bool {
	if p == nil {
		return false
	}
	_, err := ParseLockLocation(p.uri)
	return err == nil
}

func checkNotEmpty(fileName, uri string) error {
	if fileName == "" {
		return invalidArgument("fileName", "must not be empty")
	}
	if uri == "" {
		return invalidArgument("uri", "must not be empty")
	}
	return nil
}
