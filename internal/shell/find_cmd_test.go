package shell_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ConfigButler/vfscore/internal/blobstore/mock"
	"github.com/ConfigButler/vfscore/internal/shell"
	"github.com/ConfigButler/vfscore/internal/vfs"
)

func TestFindCmd_ListsEverythingByDefault(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, mock.NewMemBucket())
	require.Equal(t, 0, shell.Dispatch(ctx, h.env, []string{"mount", "-t", "mem", "none", "/scratch"}))

	require.NoError(t, h.env.Router.Mkdir(ctx, "/scratch/sub", vfs.MkdirOptions{Recursive: true}))
	require.NoError(t, h.env.Router.WriteFile(ctx, "/scratch/a.txt", []byte("a")))
	require.NoError(t, h.env.Router.WriteFile(ctx, "/scratch/sub/b.txt", []byte("b")))

	code := shell.Dispatch(ctx, h.env, []string{"find", "/scratch"})
	require.Equal(t, 0, code, h.stderr.String())
	out := h.stdout.String()
	assert.Contains(t, out, "/scratch\n")
	assert.Contains(t, out, "/scratch/a.txt\n")
	assert.Contains(t, out, "/scratch/sub\n")
	assert.Contains(t, out, "/scratch/sub/b.txt\n")
}

func TestFindCmd_MaxDepthLimitsDescent(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, mock.NewMemBucket())
	require.Equal(t, 0, shell.Dispatch(ctx, h.env, []string{"mount", "-t", "mem", "none", "/scratch"}))

	require.NoError(t, h.env.Router.Mkdir(ctx, "/scratch/sub", vfs.MkdirOptions{Recursive: true}))
	require.NoError(t, h.env.Router.WriteFile(ctx, "/scratch/sub/b.txt", []byte("b")))

	code := shell.Dispatch(ctx, h.env, []string{"find", "/scratch", "-maxdepth", "1"})
	require.Equal(t, 0, code, h.stderr.String())
	out := h.stdout.String()
	assert.Contains(t, out, "/scratch/sub\n")
	assert.NotContains(t, out, "b.txt")
}

func TestFindCmd_TypeFilterSelectsFilesOnly(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, mock.NewMemBucket())
	require.Equal(t, 0, shell.Dispatch(ctx, h.env, []string{"mount", "-t", "mem", "none", "/scratch"}))

	require.NoError(t, h.env.Router.Mkdir(ctx, "/scratch/sub", vfs.MkdirOptions{Recursive: true}))
	require.NoError(t, h.env.Router.WriteFile(ctx, "/scratch/a.txt", []byte("a")))

	code := shell.Dispatch(ctx, h.env, []string{"find", "/scratch", "-type", "f"})
	require.Equal(t, 0, code, h.stderr.String())
	out := h.stdout.String()
	assert.Contains(t, out, "/scratch/a.txt\n")
	assert.NotContains(t, out, "/scratch/sub\n")
}

func TestFindCmd_MindepthExcludesStartingPath(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, mock.NewMemBucket())
	require.Equal(t, 0, shell.Dispatch(ctx, h.env, []string{"mount", "-t", "mem", "none", "/scratch"}))
	require.NoError(t, h.env.Router.WriteFile(ctx, "/scratch/a.txt", []byte("a")))

	code := shell.Dispatch(ctx, h.env, []string{"find", "/scratch", "-mindepth", "1"})
	require.Equal(t, 0, code, h.stderr.String())
	out := h.stdout.String()
	assert.NotContains(t, out, "/scratch\n")
	assert.Contains(t, out, "/scratch/a.txt\n")
}
