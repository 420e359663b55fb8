// Package paths implements the virtual path addressing scheme of the VFS:
// immutable Path values identified by a scheme-qualified URI, and the
// reversible mapping between a content path and its lock path.
//
// A content URI has the shape
//
//	<scheme>://<branch>@<repository>/<rest...>
//
// where either '/' or '\' separates segments. The lock for such a path lives
// in the reserved locks@system namespace:
//
//	default://master@repo/some/file.txt
//	default://locks@system/repo/master/some/file.txt.ulock
//
// The tokens "locks" (branch position) and "system" (repository position) are
// reserved and must not be used by real content.
package paths

import (
	"fmt"
	"maps"
	"strings"
)

const (
	// LockFileExtension is appended to both the file name and the URI of a lock.
	LockFileExtension = ".ulock"
	// VersionAttribute is consumed at construction and folded into HasVersionSupport.
	VersionAttribute = "hasVersionSupport"
	// LockBranch and LockRepository form the lock namespace marker.
	LockBranch     = "locks"
	LockRepository = "system"
)

// Path is an immutable location in the virtual file system.
// Identity, equality and ordering are defined by the URI only.
type Path struct {
	fileName          string
	uri               string
	attributes        map[string]any
	hasVersionSupport bool
}

// FileName returns the display name of the path.
func (p *Path) FileName() string {
	return p.fileName
}

// URI returns the canonical location string.
func (p *Path) URI() string {
	return p.uri
}

// Attributes returns a copy of the attribute bag. It is never nil.
func (p *Path) Attributes() map[string]any {
	if len(p.attributes) == 0 {
		return map[string]any{}
	}
	return maps.Clone(p.attributes)
}

// Attribute looks up a single attribute.
func (p *Path) Attribute(key string) (any, bool) {
	v, ok := p.attributes[key]
	return v, ok
}

// HasAttributes reports whether the path carries any attribute.
func (p *Path) HasAttributes() bool {
	return len(p.attributes) > 0
}

// HasVersionSupport reports whether the path was created with version support.
func (p *Path) HasVersionSupport() bool {
	return p.hasVersionSupport
}

// Compare orders paths lexicographically by URI. A nil path sorts before any
// other path.
func (p *Path) Compare(other *Path) int {
	switch {
	case p == nil && other == nil:
		return 0
	case p == nil:
		return -1
	case other == nil:
		return 1
	}
	return strings.Compare(p.uri, other.uri)
}

// Equal reports whether both paths share the same URI. A nil path is only
// equal to another nil path.
func (p *Path) Equal(other *Path) bool {
	if p == nil || other == nil {
		return p == other
	}
	return p.uri == other.uri
}

// Key returns the value to use when paths are stored in maps.
func (p *Path) Key() string {
	return p.uri
}

func (p *Path) String() string {
	return fmt.Sprintf("Path{uri=%q, fileName=%q, attrs=%v}", p.uri, p.fileName, p.attributes)
}

// WithAttributes derives a new path with the same name, URI and version flag
// carrying attrs. The reserved version key is consumed the same way as in
// NewPathWithAttributes.
func (p *Path) WithAttributes(attrs map[string]any) (*Path, error) {
	derived, err := NewPathWithAttributes(p.fileName, p.uri, attrs)
	if err != nil {
		return nil, err
	}
	if _, ok := attrs[VersionAttribute]; !ok {
		derived.hasVersionSupport = p.hasVersionSupport
	}
	return derived, nil
}
