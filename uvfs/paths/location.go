package paths

import (
	"strings"
)

// lockMarker is the namespace segment every lock URI carries.
const lockMarker = LockBranch + "@" + LockRepository

// Location is a content URI split around its branch@repository segment.
//
//	default://master@repo/some/file.txt
//	Prefix="default:/" Separator='/' Branch="master" Repository="repo" Rest="/some/file.txt"
type Location struct {
	Prefix     string
	Separator  byte
	Branch     string
	Repository string
	Rest       string
}

func isSeparator(c byte) bool {
	return c == '/' || c == '\\'
}

// segmentEnd returns the index of the next separator at or after start, or len(s).
func segmentEnd(s string, start int) int {
	for i := start; i < len(s); i++ {
		if isSeparator(s[i]) {
			return i
		}
	}
	return len(s)
}

// ParseLocation locates the first segment of uri that holds a branch@repository
// token pair. The token pair ends at the next separator of either kind; when a
// segment carries more than one '@' the last one splits branch from repository.
func ParseLocation(uri string) (Location, error) {
	if uri == "" {
		return Location{}, invalidArgument("uri", "must not be empty")
	}

	for i := 0; i < len(uri); i++ {
		if !isSeparator(uri[i]) {
			continue
		}
		end := segmentEnd(uri, i+1)
		segment := uri[i+1 : end]
		at := strings.LastIndexByte(segment, '@')
		if at < 0 {
			i = end - 1
			continue
		}

		loc := Location{
			Prefix:     uri[:i],
			Separator:  uri[i],
			Branch:     segment[:at],
			Repository: segment[at+1:],
			Rest:       uri[end:],
		}
		if loc.Branch == "" || loc.Repository == "" {
			return Location{}, malformedLockURI("uri", "empty branch or repository in "+uri)
		}
		return loc, nil
	}

	return Location{}, malformedLockURI("uri", "no branch@repository segment in "+uri)
}

// ParseLockLocation is the inverse of Location.LockURI: it finds the
// locks@system segment and reads the repository and branch segments after it.
func ParseLockLocation(uri string) (Location, error) {
	if uri == "" {
		return Location{}, invalidArgument("uri", "must not be empty")
	}

	for offset := 0; offset < len(uri); {
		rel := strings.Index(uri[offset:], lockMarker)
		if rel < 0 {
			break
		}
		idx := offset + rel
		after := idx + len(lockMarker)
		offset = after

		if idx == 0 || !isSeparator(uri[idx-1]) {
			continue
		}
		if after >= len(uri) || !isSeparator(uri[after]) {
			continue
		}

		repoEnd := segmentEnd(uri, after+1)
		if repoEnd >= len(uri) {
			return Location{}, malformedLockURI("uri", "missing branch segment in "+uri)
		}
		branchEnd := segmentEnd(uri, repoEnd+1)

		loc := Location{
			Prefix:     uri[:idx-1],
			Separator:  uri[idx-1],
			Repository: uri[after+1 : repoEnd],
			Branch:     uri[repoEnd+1 : branchEnd],
			Rest:       uri[branchEnd:],
		}
		if loc.Branch == "" || loc.Repository == "" {
			return Location{}, malformedLockURI("uri", "empty branch or repository in "+uri)
		}
		return loc, nil
	}

	return Location{}, malformedLockURI("uri", "no "+lockMarker+" segment in "+uri)
}

// String reassembles the content URI.
func (l Location) String() string {
	var b strings.Builder
	b.Grow(len(l.Prefix) + len(l.Branch) + len(l.Repository) + len(l.Rest) + 2)
	b.WriteString(l.Prefix)
	b.WriteByte(l.Separator)
	b.WriteString(l.Branch)
	b.WriteByte('@')
	b.WriteString(l.Repository)
	b.WriteString(l.Rest)
	return b.String()
}

// LockURI builds the lock namespace form of the location, reusing its separator.
func (l Location) LockURI() string {
	sep := string(l.Separator)
	return l.Prefix + sep + lockMarker + sep + l.Repository + sep + l.Branch + l.Rest
}

// RelativePath returns Rest with forward slashes and no leading separator.
func (l Location) RelativePath() string {
	rel := strings.ReplaceAll(l.Rest, "\\", "/")
	return strings.TrimLeft(rel, "/")
}
