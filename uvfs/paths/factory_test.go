package paths

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPathValidation(t *testing.T) {
	tests := []struct {
		name      string
		fileName  string
		uri       string
		wantField string
	}{
		{name: "empty file name", fileName: "", uri: "uri", wantField: "fileName"},
		{name: "empty uri", fileName: "name", uri: "", wantField: "uri"},
		{name: "both empty", fileName: "", uri: "", wantField: "fileName"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			constructors := map[string]func() (*Path, error){
				"NewPath": func() (*Path, error) { return NewPath(tt.fileName, tt.uri) },
				"NewPathWithAttributes": func() (*Path, error) {
					return NewPathWithAttributes(tt.fileName, tt.uri, map[string]any{"k": 1})
				},
				"NewPathBasedOn": func() (*Path, error) {
					return NewPathBasedOn(tt.fileName, tt.uri, &Path{fileName: "b", uri: "b"})
				},
			}
			for ctor, fn := range constructors {
				p, err := fn()
				require.Error(t, err, ctor)
				assert.Nil(t, p, ctor)
				assert.ErrorIs(t, err, ErrInvalidArgument, ctor)

				var argErr *ArgumentError
				require.True(t, errors.As(err, &argErr), ctor)
				assert.Equal(t, tt.wantField, argErr.Field, ctor)
			}
		})
	}
}

func TestNewPathWithAttributes(t *testing.T) {
	t.Run("reserved key is consumed", func(t *testing.T) {
		attrs := map[string]any{VersionAttribute: true, "x": 1}
		p, err := NewPathWithAttributes("f", "default://master@repo/f", attrs)
		require.NoError(t, err)

		assert.True(t, p.HasVersionSupport())
		assert.Equal(t, map[string]any{"x": 1}, p.Attributes())
		_, found := p.Attribute(VersionAttribute)
		assert.False(t, found)
		assert.Contains(t, attrs, VersionAttribute, "caller's map must not be modified")
	})

	t.Run("nil attributes", func(t *testing.T) {
		p, err := NewPathWithAttributes("f", "default://master@repo/f", nil)
		require.NoError(t, err)
		assert.NotNil(t, p.Attributes())
		assert.Empty(t, p.Attributes())
		assert.False(t, p.HasVersionSupport())
	})

	t.Run("only reserved key leaves empty bag", func(t *testing.T) {
		p, err := NewPathWithAttributes("f", "default://master@repo/f", map[string]any{VersionAttribute: false})
		require.NoError(t, err)
		assert.False(t, p.HasVersionSupport())
		assert.False(t, p.HasAttributes())
	})

	t.Run("reserved value coercion", func(t *testing.T) {
		for _, raw := range []any{"true", 1, true} {
			p, err := NewPathWithAttributes("f", "u", map[string]any{VersionAttribute: raw})
			require.NoError(t, err, "value %v", raw)
			assert.True(t, p.HasVersionSupport(), "value %v", raw)
		}

		_, err := NewPathWithAttributes("f", "u", map[string]any{VersionAttribute: "maybe"})
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrInvalidArgument)
		assert.Contains(t, err.Error(), "attributes."+VersionAttribute)
	})
}

func TestNewPathBasedOn(t *testing.T) {
	base, err := NewPathWithAttributes("base", "default://master@repo/base", map[string]any{
		VersionAttribute: true,
		"size":           42,
	})
	require.NoError(t, err)

	p, err := NewPathBasedOn("child", "default://master@repo/child", base)
	require.NoError(t, err)
	assert.True(t, p.HasVersionSupport())
	assert.Empty(t, p.Attributes(), "attributes are never inherited")
	assert.Equal(t, "child", p.FileName())
	assert.False(t, p.Equal(base))

	_, err = NewPathBasedOn("child", "default://master@repo/child", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	assert.Contains(t, err.Error(), "path")
}

func TestNewLockPath(t *testing.T) {
	tests := []struct {
		name    string
		uri     string
		wantURI string
	}{
		{
			name:    "forward slash",
			uri:     "default://master@repo/some/path/to/file.txt",
			wantURI: "default://locks@system/repo/master/some/path/to/file.txt",
		},
		{
			name:    "backslash",
			uri:     "file:\\master@repo\\some\\path\\to\\file.txt",
			wantURI: "file:\\locks@system\\repo\\master\\some\\path\\to\\file.txt",
		},
		{
			name:    "double backslash authority",
			uri:     `file:\\master@repo\some\path\to\file.txt`,
			wantURI: `file:\\locks@system\repo\master\some\path\to\file.txt`,
		},
		{
			name:    "repository root",
			uri:     "git://dev@space",
			wantURI: "git://locks@system/space/dev",
		},
		{
			name:    "only first match is rewritten",
			uri:     "default://master@repo/dir/a@b/file.txt",
			wantURI: "default://locks@system/repo/master/dir/a@b/file.txt",
		},
		{
			name:    "last at sign splits branch from repository",
			uri:     "default://feature@x@repo/file.txt",
			wantURI: "default://locks@system/repo/feature@x/file.txt",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lockPath, err := NewLockPath(mustPath(t, "file.txt", tt.uri))
			require.NoError(t, err)
			assert.Equal(t, tt.wantURI, lockPath.URI())
			assert.Equal(t, "/", lockPath.FileName())
			assert.True(t, IsLock(lockPath))
		})
	}
}

func TestNewLockPathMalformed(t *testing.T) {
	tests := []struct {
		name string
		uri  string
	}{
		{name: "no at sign", uri: "default://repo/some/file.txt"},
		{name: "no separator", uri: "master@repo"},
		{name: "empty branch", uri: "default://@repo/file.txt"},
		{name: "empty repository", uri: "default://master@/file.txt"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := mustPath(t, "file.txt", tt.uri)

			_, err := NewLockPath(p)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMalformedLockURI)

			_, err = NewLock(p)
			assert.ErrorIs(t, err, ErrMalformedLockURI)
		})
	}

	_, err := NewLockPath(nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = NewLock(nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestNewLock(t *testing.T) {
	uris := []string{
		"default://master@repo/some/path/to/file.txt",
		"file:\\master@repo\\some\\path\\to\\file.txt",
		"default://dev@other/file.txt",
		"default://master@repo/dir/nested.ulock",
	}

	for _, uri := range uris {
		t.Run(uri, func(t *testing.T) {
			p := mustPath(t, uri[strings.LastIndexAny(uri, "/\\")+1:], uri)

			lock, err := NewLock(p)
			require.NoError(t, err)
			assert.Equal(t, p.FileName()+LockFileExtension, lock.FileName())
			assert.True(t, strings.HasSuffix(lock.URI(), LockFileExtension))

			lockPath, err := NewLockPath(p)
			require.NoError(t, err)
			assert.Equal(t, lockPath.URI()+LockFileExtension, lock.URI())
		})
	}

	lock, err := NewLock(mustPath(t, "file.txt", "default://master@repo/some/path/to/file.txt"))
	require.NoError(t, err)
	assert.Equal(t, "default://locks@system/repo/master/some/path/to/file.txt.ulock", lock.URI())
	assert.Equal(t, "file.txt.ulock", lock.FileName())
}

func TestFromLock(t *testing.T) {
	t.Run("round trip", func(t *testing.T) {
		uris := []string{
			"default://master@repo/some/path/to/file.txt",
			"default://master@repo/a/b/file.txt",
			"file:\\master@repo\\some\\path\\to\\file.txt",
			`file:\\master@repo\some\path\to\file.txt`,
			"default://feature@x@repo/file.txt",
			"default://master@repo/dir/a@b/file.txt",
			"default://master@repo/dir/nested.ulock",
			"git://dev@space",
		}
		for _, uri := range uris {
			p := mustPath(t, "file.txt", uri)
			lock, err := NewLock(p)
			require.NoError(t, err, uri)

			restored, err := FromLock(lock)
			require.NoError(t, err, uri)
			assert.Equal(t, p.URI(), restored.URI(), uri)
			assert.Equal(t, p.FileName(), restored.FileName(), uri)
			assert.False(t, IsLock(restored), uri)
		}
	})

	t.Run("accepts lock path without extension", func(t *testing.T) {
		lockPath := mustPath(t, "/", "default://locks@system/repo/master/some/file.txt")
		restored, err := FromLock(lockPath)
		require.NoError(t, err)
		assert.Equal(t, "default://master@repo/some/file.txt", restored.URI())
		assert.Equal(t, "/", restored.FileName())
	})

	t.Run("literal examples", func(t *testing.T) {
		restored, err := FromLock(mustPath(t, "file.txt.ulock", "default://locks@system/repo/master/some/path/to/file.txt.ulock"))
		require.NoError(t, err)
		assert.Equal(t, "default://master@repo/some/path/to/file.txt", restored.URI())
		assert.Equal(t, "file.txt", restored.FileName())

		restored, err = FromLock(mustPath(t, "file.txt.ulock", `file:\\locks@system\repo\master\some\path\to\file.txt.ulock`))
		require.NoError(t, err)
		assert.Equal(t, `file:\\master@repo\some\path\to\file.txt`, restored.URI())
	})

	t.Run("rejects non lock uris", func(t *testing.T) {
		uris := []string{
			"default://master@repo/some/file.txt",
			"default://locks@system",
			"default://locks@system/repo",
			"default://xlocks@system/repo/master/file.txt",
			"default://locks@systemx/repo/master/file.txt",
			"default://locks@system//master/file.txt",
		}
		for _, uri := range uris {
			_, err := FromLock(mustPath(t, "file.txt.ulock", uri))
			require.Error(t, err, uri)
			assert.ErrorIs(t, err, ErrMalformedLockURI, uri)
		}

		_, err := FromLock(nil)
		assert.ErrorIs(t, err, ErrInvalidArgument)
	})
}
