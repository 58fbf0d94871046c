// Package vfstest holds a shared conformance suite (spec §4.1, §8)
// that every adapter's own test file invokes against a fresh
// instance, the way the teacher's internal/git package shares
// test_helpers_test.go across its own test files.
package vfstest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ConfigButler/vfscore/internal/vfs"
)

// Suite exercises the universal contracts every vfs.FS implementation
// must satisfy, independent of backing store.
func Suite(t *testing.T, factory func() vfs.FS) {
	t.Helper()
	ctx := context.Background()

	t.Run("write then read round-trips", func(t *testing.T) {
		fsys := factory()
		require.NoError(t, fsys.WriteFile(ctx, "/a.txt", []byte("hello")))
		got, err := fsys.ReadFileBuffer(ctx, "/a.txt")
		require.NoError(t, err)
		assert.Equal(t, []byte("hello"), got)
	})

	t.Run("exists matches stat success", func(t *testing.T) {
		fsys := factory()
		require.NoError(t, fsys.WriteFile(ctx, "/a.txt", []byte("x")))

		exists, err := fsys.Exists(ctx, "/a.txt")
		require.NoError(t, err)
		assert.True(t, exists)
		_, err = fsys.Stat(ctx, "/a.txt")
		assert.NoError(t, err)

		exists, err = fsys.Exists(ctx, "/missing.txt")
		require.NoError(t, err)
		assert.False(t, exists)
		_, err = fsys.Stat(ctx, "/missing.txt")
		assert.Error(t, err)
		assert.True(t, vfs.IsNotFound(err))
	})

	t.Run("mkdir recursive is idempotent", func(t *testing.T) {
		fsys := factory()
		require.NoError(t, fsys.Mkdir(ctx, "/a/b/c", vfs.MkdirOptions{Recursive: true}))
		require.NoError(t, fsys.Mkdir(ctx, "/a/b/c", vfs.MkdirOptions{Recursive: true}))
		st, err := fsys.Stat(ctx, "/a/b/c")
		require.NoError(t, err)
		assert.True(t, st.IsDirectory)
	})

	t.Run("mkdir non-recursive fails Exists on existing", func(t *testing.T) {
		fsys := factory()
		require.NoError(t, fsys.Mkdir(ctx, "/a", vfs.MkdirOptions{}))
		err := fsys.Mkdir(ctx, "/a", vfs.MkdirOptions{})
		require.Error(t, err)
		assert.True(t, vfs.IsExists(err))
	})

	t.Run("rm force swallows not found", func(t *testing.T) {
		fsys := factory()
		err := fsys.Rm(ctx, "/missing", vfs.RmOptions{Force: true})
		assert.NoError(t, err)
	})

	t.Run("rm without force fails not found", func(t *testing.T) {
		fsys := factory()
		err := fsys.Rm(ctx, "/missing", vfs.RmOptions{})
		require.Error(t, err)
		assert.True(t, vfs.IsNotFound(err))
	})

	t.Run("readdir returns sorted names", func(t *testing.T) {
		fsys := factory()
		require.NoError(t, fsys.Mkdir(ctx, "/dir", vfs.MkdirOptions{Recursive: true}))
		require.NoError(t, fsys.WriteFile(ctx, "/dir/b.txt", []byte("b")))
		require.NoError(t, fsys.WriteFile(ctx, "/dir/a.txt", []byte("a")))
		require.NoError(t, fsys.Mkdir(ctx, "/dir/c", vfs.MkdirOptions{Recursive: true}))

		names, err := fsys.Readdir(ctx, "/dir")
		require.NoError(t, err)
		assert.Equal(t, []string{"a.txt", "b.txt", "c"}, names)
	})

	t.Run("append concatenates", func(t *testing.T) {
		fsys := factory()
		require.NoError(t, fsys.WriteFile(ctx, "/log.txt", []byte("first")))
		require.NoError(t, fsys.AppendFile(ctx, "/log.txt", []byte("-second")))
		got, err := fsys.ReadFileBuffer(ctx, "/log.txt")
		require.NoError(t, err)
		assert.Equal(t, "first-second", string(got))
	})
}
