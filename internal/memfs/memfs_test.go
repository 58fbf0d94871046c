package memfs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ConfigButler/vfscore/internal/vfs"
	"github.com/ConfigButler/vfscore/internal/vfs/vfstest"
)

func TestMemFS_Conformance(t *testing.T) {
	vfstest.Suite(t, func() vfs.FS { return New() })
}

func TestMemFS_ReaddirFindLikeScenario(t *testing.T) {
	ctx := context.Background()
	f := New()
	require.NoError(t, f.Mkdir(ctx, "/project", vfs.MkdirOptions{Recursive: true}))
	require.NoError(t, f.Mkdir(ctx, "/project/src", vfs.MkdirOptions{Recursive: true}))
	require.NoError(t, f.Mkdir(ctx, "/project/tests", vfs.MkdirOptions{Recursive: true}))
	require.NoError(t, f.WriteFile(ctx, "/project/README.md", []byte("x")))
	require.NoError(t, f.WriteFile(ctx, "/project/package.json", []byte("{}")))
	require.NoError(t, f.WriteFile(ctx, "/project/tsconfig.json", []byte("{}")))

	names, err := f.Readdir(ctx, "/project")
	require.NoError(t, err)
	assert.Equal(t, []string{"README.md", "package.json", "src", "tests", "tsconfig.json"}, names)
}

func TestMemFS_SymlinkRoundTrip(t *testing.T) {
	ctx := context.Background()
	f := New()
	require.NoError(t, f.WriteFile(ctx, "/target.txt", []byte("data")))
	require.NoError(t, f.Symlink(ctx, "/target.txt", "/link.txt"))

	target, err := f.Readlink(ctx, "/link.txt")
	require.NoError(t, err)
	assert.Equal(t, "/target.txt", target)

	st, err := f.Lstat(ctx, "/link.txt")
	require.NoError(t, err)
	assert.True(t, st.IsSymbolicLink)
}
